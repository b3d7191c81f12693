package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountAddCreatesAccount(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	cmd := newAccountAddCmd()
	cmd.SetArgs([]string{"--provider", "baidu", "--username", "alice", "--cookies", "BDUSS=abc123"})

	require.NoError(t, cmd.ExecuteContext(ctx))

	accounts, err := cc.Store.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].Username)
	assert.True(t, accounts[0].IsValid)
}

func TestAccountAddRejectsUnknownProvider(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	cmd := newAccountAddCmd()
	cmd.SetArgs([]string{"--provider", "dropbox", "--username", "alice", "--cookies", "x"})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")

	accounts, listErr := cc.Store.ListAccounts(ctx)
	require.NoError(t, listErr)
	assert.Empty(t, accounts)
}

func TestAccountListReturnsCreatedAccounts(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	add := newAccountAddCmd()
	add.SetArgs([]string{"--provider", "quark", "--username", "bob", "--cookies", "sess=xyz"})
	require.NoError(t, add.ExecuteContext(ctx))

	list := newAccountListCmd()
	list.SetArgs(nil)
	require.NoError(t, list.ExecuteContext(ctx))
}
