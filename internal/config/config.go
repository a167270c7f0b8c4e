package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Image     ImageConfig     `yaml:"image" mapstructure:"image"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings. PrimaryModel handles normal
// extraction; FallbackModel is the cheaper model used only after a
// capacity-exhaustion failure on the primary.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	PrimaryModel  string `yaml:"primary_model" mapstructure:"primary_model"`
	FallbackModel string `yaml:"fallback_model" mapstructure:"fallback_model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ImageConfig configures image acquisition.
type ImageConfig struct {
	MaxBytes      int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	DownloadRetry int    `yaml:"download_retry" mapstructure:"download_retry"`
}

// Timeout returns the per-download timeout as a duration.
func (c ImageConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ExtractConfig configures the extraction pipeline.
type ExtractConfig struct {
	MaxBatchRefs        int     `yaml:"max_batch_refs" mapstructure:"max_batch_refs"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// ReconcileConfig configures the periodic reconciliation job.
type ReconcileConfig struct {
	TickSecs        int `yaml:"tick_secs" mapstructure:"tick_secs"`
	QuietWindowMins int `yaml:"quiet_window_mins" mapstructure:"quiet_window_mins"`
}

// TickInterval returns the scheduler period as a duration.
func (c ReconcileConfig) TickInterval() time.Duration {
	return time.Duration(c.TickSecs) * time.Second
}

// QuietWindow returns the staleness threshold as a duration.
func (c ReconcileConfig) QuietWindow() time.Duration {
	return time.Duration(c.QuietWindowMins) * time.Minute
}

// AnalysisConfig configures the optional remote batch-analysis service. When
// BaseURL is set the reconciler delegates to it instead of running the
// in-process pipeline.
type AnalysisConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the remote-analysis request timeout as a duration.
func (c AnalysisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WARDROBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.primary_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fallback_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("image.max_bytes", 20*1024*1024)
	v.SetDefault("image.timeout_secs", 30)
	v.SetDefault("image.user_agent", "Mozilla/5.0 (X11; Linux x86_64) wardrobe-pipeline/1.0")
	v.SetDefault("image.download_retry", 2)
	v.SetDefault("extract.max_batch_refs", 5)
	v.SetDefault("extract.confidence_threshold", 0.6)
	v.SetDefault("reconcile.tick_secs", 60)
	v.SetDefault("reconcile.quiet_window_mins", 10)
	v.SetDefault("analysis.timeout_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
