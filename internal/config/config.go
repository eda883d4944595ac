package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/newthinker/strategylab/internal/core"
)

type Config struct {
	Server     ServerConfig               `mapstructure:"server"`
	Log        LogConfig                  `mapstructure:"log"`
	Data       DataConfig                 `mapstructure:"data"`
	Collectors map[string]CollectorConfig `mapstructure:"collectors"`
	Plugin     PluginConfig               `mapstructure:"plugin"`
	Backtest   BacktestConfig             `mapstructure:"backtest"`
	LLM        LLMConfig                  `mapstructure:"llm"`
	Storage    StorageConfig              `mapstructure:"storage"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
	Encoding    string `mapstructure:"encoding"` // json or console; empty follows development
	File        string `mapstructure:"file"`     // also write logs here
}

// DataConfig selects the price provider and the default request.
type DataConfig struct {
	Provider string `mapstructure:"provider"`
	Symbol   string `mapstructure:"symbol"`
	Period   string `mapstructure:"period"`
	Interval string `mapstructure:"interval"`
}

type CollectorConfig struct {
	APIKey    string         `mapstructure:"api_key"`
	APISecret string         `mapstructure:"api_secret"`
	BaseURL   string         `mapstructure:"base_url"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Extra     map[string]any `mapstructure:"extra"`
}

// PluginConfig bounds strategy execution. Zero limits are unbounded.
type PluginConfig struct {
	Form            string        `mapstructure:"form"` // "auto", "script" or "function"
	EntryPoint      string        `mapstructure:"entry_point"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxSeriesLength int           `mapstructure:"max_series_length"`
	MaxSteps        uint64        `mapstructure:"max_steps"`
}

type BacktestConfig struct {
	InitialCapital      float64 `mapstructure:"initial_capital"`
	AnnualizationFactor float64 `mapstructure:"annualization_factor"`
	Workers             int     `mapstructure:"workers"`
}

type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Claude      ClaudeConfig  `mapstructure:"claude"`
	OpenAI      OpenAIConfig  `mapstructure:"openai"`
	Gemini      GeminiConfig  `mapstructure:"gemini"`
	Ollama      OllamaConfig  `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig is served through Gemini's OpenAI-compatible endpoint.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

type StorageConfig struct {
	Records RecordsConfig `mapstructure:"records"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// RecordsConfig selects the strategy record store.
type RecordsConfig struct {
	Type string `mapstructure:"type"` // "memory" or "sqlite"
	DSN  string `mapstructure:"dsn"`  // For sqlite
}

// ArchiveConfig selects where strategy sources are read from and exports
// are written to.
type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file on top of Defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Log: LogConfig{
			Level: "info",
		},
		Data: DataConfig{
			Provider: "yahoo",
			Symbol:   "BTC-USD",
			Period:   "1y",
			Interval: "1d",
		},
		Plugin: PluginConfig{
			Form:            string(core.FormAuto),
			EntryPoint:      "apply_strategy",
			Timeout:         10 * time.Second,
			MaxSeriesLength: 100000,
		},
		Backtest: BacktestConfig{
			InitialCapital:      1000,
			AnnualizationFactor: 252,
			Workers:             4,
		},
		LLM: LLMConfig{
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		Storage: StorageConfig{
			Records: RecordsConfig{
				Type: "memory",
			},
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: ".",
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors. Zero values that have a
// runtime default are accepted.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	if e := c.Log.Encoding; e != "" && e != "json" && e != "console" {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("log encoding must be json or console, got %q", e))
	}

	// Plugin validation
	if c.Plugin.Form != "" && !core.StrategyForm(c.Plugin.Form).IsValid() {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("plugin form must be auto, script or function, got %q", c.Plugin.Form))
	}
	if c.Plugin.Timeout < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("plugin timeout cannot be negative, got %s", c.Plugin.Timeout))
	}
	if c.Plugin.MaxSeriesLength < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("max_series_length cannot be negative, got %d", c.Plugin.MaxSeriesLength))
	}

	// Backtest validation
	if c.Backtest.InitialCapital < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital cannot be negative, got %f", c.Backtest.InitialCapital))
	}
	if c.Backtest.AnnualizationFactor < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("annualization_factor cannot be negative, got %f", c.Backtest.AnnualizationFactor))
	}
	if c.Backtest.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("workers cannot be negative, got %d", c.Backtest.Workers))
	}

	// Storage validation
	switch c.Storage.Records.Type {
	case "", "memory":
	case "sqlite":
		if c.Storage.Records.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.records.dsn required when type is sqlite"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown record store type: %s", c.Storage.Records.Type))
	}
	switch c.Storage.Archive.Type {
	case "", "localfs":
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.archive.s3.bucket required when type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type: %s", c.Storage.Archive.Type))
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("llm temperature must be between 0 and 2, got %g", c.LLM.Temperature))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "gemini":
			if c.LLM.Gemini.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("gemini api_key required when provider is gemini"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		default:
			return core.WrapError(core.ErrConfigInvalid,
				fmt.Errorf("unknown llm provider: %s", c.LLM.Provider))
		}
	}

	return nil
}

// Collector returns the settings for a named provider, or a zero config.
func (c *Config) Collector(name string) CollectorConfig {
	if c.Collectors == nil {
		return CollectorConfig{}
	}
	return c.Collectors[name]
}
