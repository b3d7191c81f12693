package scheduler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chuxijin/coulddrive-sync/internal/driveclient"
	"github.com/chuxijin/coulddrive-sync/internal/driveclient/baidu"
	"github.com/chuxijin/coulddrive-sync/internal/driveclient/quark"
	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// ClientFactory builds the DriveClient matching an account's provider.
// A func type rather than an interface, so tests can inject a stub
// returning a fake client without a fake struct.
type ClientFactory func(account *model.DriveAccount) (driveclient.DriveClient, error)

// NewClientFactory returns the production ClientFactory, constructing
// one adapter per call — adapters hold no long-lived connection, only
// an HTTP client and the account's cookie string, so there is no
// benefit to caching them across jobs.
func NewClientFactory(httpClient *http.Client, logger *slog.Logger) ClientFactory {
	return func(account *model.DriveAccount) (driveclient.DriveClient, error) {
		switch account.Provider {
		case model.ProviderBaidu:
			return baidu.New(account.Cookies, httpClient, logger), nil
		case model.ProviderQuark:
			return quark.New(account.Cookies, httpClient, logger), nil
		default:
			return nil, fmt.Errorf("scheduler: unknown provider %q for account %d", account.Provider, account.ID)
		}
	}
}
