// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auspex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "auspex", cfg.Logger.ServiceName)
	assert.Equal(t, DefaultMaxIterations, cfg.Agent.MaxIterations)
	assert.Equal(t, 120*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, DefaultNavigationTimeout, cfg.Agent.NavigationTimeout)
	assert.Equal(t, DefaultActionDelay, cfg.Agent.ActionDelay)
	assert.Equal(t, DefaultScreenshotQuality, cfg.Agent.ScreenshotQuality)
	assert.Equal(t, 2000, cfg.Agent.BlockedTextThreshold)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 2, cfg.Browser.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Scraper.Timeout)
	assert.Equal(t, 3, cfg.Scraper.MaxConcurrency)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
logger:
  level: debug
  format: json
agent:
  max_iterations: 5
  timeout: 45s
  llm:
    model: gpt-4o
    base_url: https://llm.internal/v1
    api_key: sk-local
browser:
  pool_size: 4
scraper:
  max_concurrency: 8
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 45*time.Second, cfg.Agent.Timeout)
	assert.Equal(t, "gpt-4o", cfg.Agent.LLM.Model)
	assert.Equal(t, "https://llm.internal/v1", cfg.Agent.LLM.BaseURL)
	assert.Equal(t, 4, cfg.Browser.PoolSize)
	assert.Equal(t, 8, cfg.Scraper.MaxConcurrency)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("AUSPEX_AGENT_LLM_MODEL", "env-model")
	t.Setenv("AUSPEX_LOGGER_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.Agent.LLM.Model)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "browser:\n  pool_size: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.pool_size")

	_, err = Load(writeConfig(t, "scraper:\n  max_concurrency: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scraper.max_concurrency")
}

func TestLoadDoesNotRequireLLM(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Agent.LLM.Model)
}

func TestAgentValidateRequiresLLM(t *testing.T) {
	a := AgentConfig{}
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.llm.model")

	a.LLM.Model = "gpt-4o"
	err = a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.llm.base_url")

	a.LLM.BaseURL = "https://llm.internal/v1"
	require.NoError(t, a.Validate())
}

func TestAgentValidateAppliesDefaults(t *testing.T) {
	a := AgentConfig{LLM: LLMConfig{Model: "m", BaseURL: "u"}}
	require.NoError(t, a.Validate())

	assert.Equal(t, DefaultMaxIterations, a.MaxIterations)
	assert.Equal(t, DefaultTimeoutMs*time.Millisecond, a.Timeout)
	assert.Equal(t, DefaultMaxWaitMs*time.Millisecond, a.MaxWait)
	assert.Equal(t, DefaultNavigationTimeout, a.NavigationTimeout)
	assert.Equal(t, DefaultActionDelay, a.ActionDelay)
	assert.Equal(t, DefaultScreenshotQuality, a.ScreenshotQuality)
	assert.Equal(t, 2000, a.BlockedTextThreshold)
}

func TestAgentValidateBounds(t *testing.T) {
	a := AgentConfig{LLM: LLMConfig{Model: "m", BaseURL: "u"}, ScreenshotQuality: 101}
	err := a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screenshot_quality")

	a = AgentConfig{LLM: LLMConfig{Model: "m", BaseURL: "u"}, MaxTotalTokens: -1}
	err = a.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_total_tokens")
}
