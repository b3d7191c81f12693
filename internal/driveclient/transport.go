package driveclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// Retry tuning shared by every provider adapter — base 1s, factor 2x,
// max 60s, +/-25% jitter, up to 5 retries after the first attempt. Matches the teacher's Graph client
// constants; there is nothing Graph-specific about this policy, so it is
// hoisted here and reused by both Baidu and Quark.
const (
	MaxRetries     = 5
	BaseBackoff    = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0
	JitterFraction = 0.25
	UserAgent      = "coulddrive-sync/1.0"
)

// Transport is a small retrying HTTP wrapper shared by the Baidu and
// Quark adapters. It handles exponential backoff with jitter and
// cookie-header injection; provider-specific request/response shaping
// stays in each adapter package.
type Transport struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	// SleepFunc waits between retries; overridden in tests to avoid
	// real delays, mirroring the teacher's sleepFunc injection.
	SleepFunc func(ctx context.Context, d time.Duration) error
}

// NewTransport constructs a Transport with sane defaults.
func NewTransport(httpClient *http.Client, logger *slog.Logger) *Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		HTTPClient: httpClient,
		Logger:     logger,
		SleepFunc:  timeSleep,
	}
}

// Do issues method/url with cookies attached, retrying transient network
// errors and 429/5xx-equivalent responses with exponential backoff.
// Callers classify the final response body themselves (each provider
// encodes errors inside a 200 JSON envelope, not via HTTP status).
func (t *Transport) Do(ctx context.Context, method, url, cookies string, body io.Reader) (*http.Response, error) {
	var attempt int

	for {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, fmt.Errorf("driveclient: building request: %w", err)
		}

		req.Header.Set("User-Agent", UserAgent)
		if cookies != "" {
			req.Header.Set("Cookie", cookies)
		}

		resp, err := t.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("driveclient: request canceled: %w", ctx.Err())
			}

			if attempt >= MaxRetries {
				return nil, fmt.Errorf("%w: %s %s failed after %d retries: %v", ErrNetwork, method, url, MaxRetries, err)
			}

			backoff := t.calcBackoff(attempt)
			t.Logger.Warn("retrying after network error",
				slog.String("method", method), slog.String("url", url),
				slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

			if sleepErr := t.SleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("driveclient: request canceled: %w", sleepErr)
			}

			attempt++

			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			resp.Body.Close()

			if attempt >= MaxRetries {
				return nil, fmt.Errorf("%w: %s %s returned %d after %d retries", ErrRateLimit, method, url, resp.StatusCode, MaxRetries)
			}

			backoff := t.retryBackoff(resp, attempt)
			t.Logger.Warn("retrying after HTTP error",
				slog.String("method", method), slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1), slog.Duration("backoff", backoff))

			if err := t.SleepFunc(ctx, backoff); err != nil {
				return nil, fmt.Errorf("driveclient: request canceled: %w", err)
			}

			attempt++

			continue
		}

		return resp, nil
	}
}

func (t *Transport) calcBackoff(attempt int) time.Duration {
	base := float64(BaseBackoff) * math.Pow(BackoffFactor, float64(attempt))
	if base > float64(MaxBackoff) {
		base = float64(MaxBackoff)
	}

	jitter := base * JitterFraction * (rand.Float64()*2 - 1)

	d := time.Duration(base + jitter)
	if d < 0 {
		d = BaseBackoff
	}

	return d
}

func (t *Transport) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := time.ParseDuration(ra + "s"); err == nil {
			return secs
		}
	}

	return t.calcBackoff(attempt)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
