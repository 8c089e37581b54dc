// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/auspex/internal/config"
	"github.com/xkilldash9x/auspex/internal/scraper"
)

func TestApplyEnvAliases(t *testing.T) {
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("AUSPEX_AGENT_LLM_API_KEY", "")
	t.Setenv("AUSPEX_AGENT_LLM_MODEL", "")
	os.Unsetenv("LLM_BASE_URL")

	applyEnvAliases()

	assert.Equal(t, "sk-test", os.Getenv("AUSPEX_AGENT_LLM_API_KEY"))
	assert.Equal(t, "gpt-4o-mini", os.Getenv("AUSPEX_AGENT_LLM_MODEL"))
	assert.Empty(t, os.Getenv("AUSPEX_AGENT_LLM_BASE_URL"))
}

func TestApplyEnvAliasesDoesNotClobber(t *testing.T) {
	t.Setenv("LLM_MODEL", "alias-model")
	t.Setenv("AUSPEX_AGENT_LLM_MODEL", "explicit-model")

	applyEnvAliases()

	assert.Equal(t, "explicit-model", os.Getenv("AUSPEX_AGENT_LLM_MODEL"))
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"", "http", "stealth", "browser"} {
		tier, err := parseTier(name)
		require.NoError(t, err)
		assert.Equal(t, scraper.Tier(name), tier)
	}

	_, err := parseTier("warp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tier "warp"`)
}

func TestBrowseRequiresFlags(t *testing.T) {
	cmd := newBrowseCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestScrapeRequiresURL(t *testing.T) {
	cmd := newScrapeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestScrapeRejectsUnknownTier(t *testing.T) {
	cmd := newScrapeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", "https://example.com", "--tier", "warp"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestScrapeBatchRejectsSingleURLFlags(t *testing.T) {
	prev := cfg
	cfg = &config.Config{Browser: config.BrowserConfig{PoolSize: 1}}
	t.Cleanup(func() { cfg = prev })

	cmd := newScrapeCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{
		"--url", "https://a.example.com",
		"--url", "https://b.example.com",
		"--tier", "http",
	})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single-URL scrapes only")
}

func TestRootVersionFlag(t *testing.T) {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	rootCmd.SetArgs([]string{"--version"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, Version, strings.TrimSpace(out.String()))
}
