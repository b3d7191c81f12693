package store

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := Open(context.Background(), filepath.Join(t.TempDir(), "store_test.db"), logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = st.Close() })

	return st
}

func TestCreateAndGetAccountRoundTrips(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateAccount(ctx, &model.DriveAccount{
		Provider: model.ProviderBaidu,
		Username: "alice",
		Cookies:  "BDUSS=x",
		IsValid:  true,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := st.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, model.ProviderBaidu, got.Provider)
	assert.True(t, got.IsValid)
}

func TestGetAccountNotFoundWrapsSQLErrNoRows(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetAccount(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListAccountsOrdersByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	firstID, err := st.CreateAccount(ctx, &model.DriveAccount{Provider: model.ProviderBaidu, Username: "first"})
	require.NoError(t, err)
	secondID, err := st.CreateAccount(ctx, &model.DriveAccount{Provider: model.ProviderQuark, Username: "second"})
	require.NoError(t, err)

	accounts, err := st.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, firstID, accounts[0].ID)
	assert.Equal(t, secondID, accounts[1].ID)
}

func TestInvalidateAccountClearsIsValid(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateAccount(ctx, &model.DriveAccount{Provider: model.ProviderBaidu, Username: "alice", IsValid: true})
	require.NoError(t, err)

	require.NoError(t, st.InvalidateAccount(ctx, id))

	got, err := st.GetAccount(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.IsValid)
}

func TestCreateAndGetRuleTemplateRoundTrips(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.CreateRuleTemplate(ctx, &model.RuleTemplate{
		Name:          "skip-tmp",
		RuleConfigRaw: []byte(`{"exclusions":[],"renames":[]}`),
	})
	require.NoError(t, err)

	got, err := st.GetRuleTemplate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "skip-tmp", got.Name)
	assert.JSONEq(t, `{"exclusions":[],"renames":[]}`, string(got.RuleConfigRaw))
}

func TestGetRuleTemplateNotFoundWrapsSQLErrNoRows(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetRuleTemplate(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestListRuleTemplatesOrdersByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	firstID, err := st.CreateRuleTemplate(ctx, &model.RuleTemplate{Name: "first", RuleConfigRaw: []byte(`{}`)})
	require.NoError(t, err)
	secondID, err := st.CreateRuleTemplate(ctx, &model.RuleTemplate{Name: "second", RuleConfigRaw: []byte(`{}`)})
	require.NoError(t, err)

	templates, err := st.ListRuleTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, firstID, templates[0].ID)
	assert.Equal(t, secondID, templates[1].ID)
}
