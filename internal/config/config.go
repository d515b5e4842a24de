// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Heal    HealConfig    `mapstructure:"heal" yaml:"heal"`
	LLM     LLMConfig     `mapstructure:"llm" yaml:"llm"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig holds all the configuration for the logger.
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

// HealConfig configures the self-healing resolution engine.
type HealConfig struct {
	// Enabled gates every cache/AI fallback. When false the engine degrades
	// to plain automation: declared locator errors are rethrown verbatim.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	CacheFile  string `mapstructure:"cache_file" yaml:"cache_file"`
	ReportFile string `mapstructure:"report_file" yaml:"report_file"`

	// MaxAITries bounds how many plan answers the picker probes.
	MaxAITries int `mapstructure:"max_ai_tries" yaml:"max_ai_tries"`
	// MaxCandidates caps raw DOM sampling, in DOM order.
	MaxCandidates int `mapstructure:"max_candidates" yaml:"max_candidates"`
	// MaxPlanCandidates caps how many ranked candidates are sent to the model.
	MaxPlanCandidates int `mapstructure:"max_plan_candidates" yaml:"max_plan_candidates"`

	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	QuickTimeout time.Duration `mapstructure:"quick_timeout" yaml:"quick_timeout"`

	Rank RankConfig `mapstructure:"rank" yaml:"rank"`
}

// RankConfig exposes the candidate ranking weights. The absolute numbers are
// tunable; only their relative ordering matters.
type RankConfig struct {
	FullMatch int `mapstructure:"full_match" yaml:"full_match"`
	Contained int `mapstructure:"contained" yaml:"contained"`
	Token     int `mapstructure:"token" yaml:"token"`
	TagHint   int `mapstructure:"tag_hint" yaml:"tag_hint"`
	RoleHint  int `mapstructure:"role_hint" yaml:"role_hint"`
	TestID    int `mapstructure:"test_id" yaml:"test_id"`
	Visible   int `mapstructure:"visible" yaml:"visible"`
}

// Provider defines the supported completion backends.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// Providers lists every supported backend, for error messages and CLI help.
func Providers() []Provider {
	return []Provider{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama}
}

// LLMConfig defines the configuration for the completion backend.
type LLMConfig struct {
	Provider    Provider      `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`

	// Retry policy applied around every backend call.
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay"`

	// Client-side rate limiting shared by all calls in the process.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "mend")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Heal --
	v.SetDefault("heal.enabled", true)
	v.SetDefault("heal.cache_file", filepath.Join(".self-heal", "cache.json"))
	v.SetDefault("heal.report_file", filepath.Join(".self-heal", "report.jsonl"))
	v.SetDefault("heal.max_ai_tries", 4)
	v.SetDefault("heal.max_candidates", 80)
	v.SetDefault("heal.max_plan_candidates", 40)
	v.SetDefault("heal.timeout", "5s")
	v.SetDefault("heal.quick_timeout", "1500ms")
	v.SetDefault("heal.rank.full_match", 15)
	v.SetDefault("heal.rank.contained", 8)
	v.SetDefault("heal.rank.token", 3)
	v.SetDefault("heal.rank.tag_hint", 5)
	v.SetDefault("heal.rank.role_hint", 5)
	v.SetDefault("heal.rank.test_id", 2)
	v.SetDefault("heal.rank.visible", 1)

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderGemini))
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_base_delay", "500ms")
	v.SetDefault("llm.rate_limit", 1.0)
	v.SetDefault("llm.rate_burst", 2)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", "90s")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewFromViper creates a configuration instance from a viper object.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the config file.
	v.BindEnv("llm.api_key", "MEND_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("MEND_API_KEY")
	}

	var err error
	if cfg.Heal.CacheFile, err = ExpandPath(cfg.Heal.CacheFile); err != nil {
		return nil, fmt.Errorf("invalid heal.cache_file: %w", err)
	}
	if cfg.Heal.ReportFile, err = ExpandPath(cfg.Heal.ReportFile); err != nil {
		return nil, fmt.Errorf("invalid heal.report_file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPath resolves a leading "~" to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	return homedir.Expand(path)
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Heal.Validate(); err != nil {
		return fmt.Errorf("heal configuration invalid: %w", err)
	}
	if err := c.LLM.Validate(c.Heal.Enabled); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the heal engine settings.
func (h *HealConfig) Validate() error {
	if h.MaxAITries <= 0 {
		return fmt.Errorf("max_ai_tries must be a positive integer")
	}
	if h.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be a positive integer")
	}
	if h.MaxPlanCandidates <= 0 || h.MaxPlanCandidates > h.MaxCandidates {
		return fmt.Errorf("max_plan_candidates must be in 1..max_candidates")
	}
	if h.Timeout <= 0 || h.QuickTimeout <= 0 {
		return fmt.Errorf("timeout and quick_timeout must be positive durations")
	}
	return nil
}

// Validate checks the backend settings. The API key requirement only applies
// when healing is enabled and the provider is a hosted one; the local Ollama
// server needs no key.
func (l *LLMConfig) Validate(healEnabled bool) error {
	switch l.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q, supported: %v", l.Provider, Providers())
	}
	if !healEnabled {
		return nil
	}
	if l.Provider != ProviderOllama && l.APIKey == "" {
		return fmt.Errorf("api key is required for provider %q. Set MEND_API_KEY", l.Provider)
	}
	if l.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// DefaultModel returns the model used when llm.model is left empty.
func (l *LLMConfig) DefaultModel() string {
	if l.Model != "" {
		return l.Model
	}
	switch l.Provider {
	case ProviderGemini:
		return "gemini-2.5-flash"
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderOllama:
		return "llama3.1"
	}
	return ""
}
