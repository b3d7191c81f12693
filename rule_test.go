package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRuleConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rule.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestRuleAddCreatesTemplate(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	path := writeRuleConfigFile(t, `{"exclusions":[{"pattern":".tmp","mode":"ends","target":"name","item_type":"file"}],"renames":[]}`)

	cmd := newRuleAddCmd()
	cmd.SetArgs([]string{"--name", "skip-tmp", "--file", path})

	require.NoError(t, cmd.ExecuteContext(ctx))

	templates, err := cc.Store.ListRuleTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "skip-tmp", templates[0].Name)
}

func TestRuleAddRejectsMalformedJSON(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	path := writeRuleConfigFile(t, `{not valid json`)

	cmd := newRuleAddCmd()
	cmd.SetArgs([]string{"--name", "bad", "--file", path})

	err := cmd.ExecuteContext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing rule config")
}

func TestRuleShowPrintsStoredConfig(t *testing.T) {
	cc := newTestCLIContext(t)
	ctx := withCLIContext(cc)

	path := writeRuleConfigFile(t, `{"exclusions":[],"renames":[]}`)

	add := newRuleAddCmd()
	add.SetArgs([]string{"--name", "empty", "--file", path})
	require.NoError(t, add.ExecuteContext(ctx))

	templates, err := cc.Store.ListRuleTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)

	show := newRuleShowCmd()
	show.SetArgs([]string{"--id", "1"})
	assert.Equal(t, int64(1), templates[0].ID)
	require.NoError(t, show.ExecuteContext(ctx))
}
