// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default budgets and timeouts for a single agent run.
const (
	DefaultMaxIterations     = 30
	DefaultTimeoutMs         = 120_000
	DefaultMaxWaitMs         = 5_000
	DefaultNavigationTimeout = 15 * time.Second
	DefaultActionDelay       = 500 * time.Millisecond
	DefaultScreenshotQuality = 75
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Scraper ScraperConfig `mapstructure:"scraper" yaml:"scraper"`
}

// LoggerConfig controls the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMConfig defines the connection and sampling parameters for the
// chat-completion endpoint.
type LLMConfig struct {
	APIKey           string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL          string        `mapstructure:"base_url" yaml:"base_url"`
	Model            string        `mapstructure:"model" yaml:"model"`
	Temperature      float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	TopP             float64       `mapstructure:"top_p" yaml:"top_p"`
	FrequencyPenalty float64       `mapstructure:"frequency_penalty" yaml:"frequency_penalty"`
	PresencePenalty  float64       `mapstructure:"presence_penalty" yaml:"presence_penalty"`
	APITimeout       time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	// RequestsPerSecond limits outbound LLM calls. Zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Server   string `mapstructure:"server" yaml:"server"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Cookie is an initial cookie injected into the browser context before
// navigation.
type Cookie struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Value  string `mapstructure:"value" yaml:"value"`
	Domain string `mapstructure:"domain" yaml:"domain"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// AgentConfig is the immutable configuration of a single agent. It is
// validated once at construction; per-run overrides live in RunOptions.
type AgentConfig struct {
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`

	MaxIterations     int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxWait           time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionDelay       time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	// MaxTotalTokens caps the cumulative token usage of a run. Zero means
	// unlimited.
	MaxTotalTokens int `mapstructure:"max_total_tokens" yaml:"max_total_tokens"`

	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
	BlockedDomains []string `mapstructure:"blocked_domains" yaml:"blocked_domains"`

	Proxy        *ProxyConfig      `mapstructure:"proxy" yaml:"proxy"`
	Cookies      []Cookie          `mapstructure:"cookies" yaml:"cookies"`
	ExtraHeaders map[string]string `mapstructure:"extra_headers" yaml:"extra_headers"`

	Vision            bool `mapstructure:"vision" yaml:"vision"`
	ScreenshotQuality int  `mapstructure:"screenshot_quality" yaml:"screenshot_quality"`

	// BlockedTextThreshold is the body-text length below which challenge
	// phrase matching marks a page as blocked.
	BlockedTextThreshold int `mapstructure:"blocked_text_threshold" yaml:"blocked_text_threshold"`

	// RunLogDir enables the per-run plain-text log when non-empty.
	RunLogDir string `mapstructure:"run_log_dir" yaml:"run_log_dir"`
}

// BrowserConfig configures the shared playwright browser pool.
type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless" yaml:"headless"`
	PoolSize       int           `mapstructure:"pool_size" yaml:"pool_size"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	Args           []string      `mapstructure:"args" yaml:"args"`
}

// ScraperConfig configures the tiered scraper cascade.
type ScraperConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	Proxy          *ProxyConfig  `mapstructure:"proxy" yaml:"proxy"`
}

// SetDefaults registers every default value on the provided viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.service_name", "auspex")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)

	// Empty defaults register the keys so AutomaticEnv overrides are seen
	// by Unmarshal.
	v.SetDefault("agent.llm.api_key", "")
	v.SetDefault("agent.llm.base_url", "")
	v.SetDefault("agent.llm.model", "")
	v.SetDefault("agent.llm.temperature", 0.0)
	v.SetDefault("agent.llm.max_tokens", 1024)
	v.SetDefault("agent.llm.api_timeout", "90s")
	v.SetDefault("agent.max_iterations", DefaultMaxIterations)
	v.SetDefault("agent.timeout", "120s")
	v.SetDefault("agent.max_wait", "5s")
	v.SetDefault("agent.navigation_timeout", "15s")
	v.SetDefault("agent.action_delay", "500ms")
	v.SetDefault("agent.screenshot_quality", DefaultScreenshotQuality)
	v.SetDefault("agent.blocked_text_threshold", 2000)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.pool_size", 2)
	v.SetDefault("browser.acquire_timeout", "30s")

	v.SetDefault("scraper.timeout", "30s")
	v.SetDefault("scraper.max_concurrency", 3)
}

// Load reads the configuration file (if any) plus AUSPEX_* environment
// overrides and returns a validated Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("auspex")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AUSPEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the whole configuration tree. LLM connection settings are
// not required here; they are enforced when an agent is constructed, so
// commands that never talk to the model work without them.
func (c *Config) Validate() error {
	if err := c.Agent.validateRuntime(); err != nil {
		return err
	}
	if c.Browser.PoolSize < 1 {
		return fmt.Errorf("browser.pool_size must be at least 1, got %d", c.Browser.PoolSize)
	}
	if c.Scraper.MaxConcurrency < 1 {
		return fmt.Errorf("scraper.max_concurrency must be at least 1, got %d", c.Scraper.MaxConcurrency)
	}
	return nil
}

// Validate checks the agent configuration and applies bound corrections
// where a zero value means "use the default".
func (a *AgentConfig) Validate() error {
	if err := a.validateRuntime(); err != nil {
		return err
	}
	if a.LLM.Model == "" {
		return fmt.Errorf("agent.llm.model is required")
	}
	if a.LLM.BaseURL == "" {
		return fmt.Errorf("agent.llm.base_url is required")
	}
	return nil
}

func (a *AgentConfig) validateRuntime() error {
	if a.MaxIterations <= 0 {
		a.MaxIterations = DefaultMaxIterations
	}
	if a.Timeout <= 0 {
		a.Timeout = DefaultTimeoutMs * time.Millisecond
	}
	if a.MaxWait <= 0 {
		a.MaxWait = DefaultMaxWaitMs * time.Millisecond
	}
	if a.NavigationTimeout <= 0 {
		a.NavigationTimeout = DefaultNavigationTimeout
	}
	if a.ActionDelay <= 0 {
		a.ActionDelay = DefaultActionDelay
	}
	if a.ScreenshotQuality == 0 {
		a.ScreenshotQuality = DefaultScreenshotQuality
	}
	if a.ScreenshotQuality < 1 || a.ScreenshotQuality > 100 {
		return fmt.Errorf("agent.screenshot_quality must be within [1,100], got %d", a.ScreenshotQuality)
	}
	if a.BlockedTextThreshold <= 0 {
		a.BlockedTextThreshold = 2000
	}
	if a.MaxTotalTokens < 0 {
		return fmt.Errorf("agent.max_total_tokens must not be negative, got %d", a.MaxTotalTokens)
	}
	return nil
}
