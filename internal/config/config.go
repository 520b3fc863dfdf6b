package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once
// at process entry and passed into constructors; core logic never reads
// ambient environment state.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig configures the source registry.
type SourcesConfig struct {
	File         string `yaml:"file" mapstructure:"file"`
	SocrataToken string `yaml:"socrata_token" mapstructure:"socrata_token"`
}

// FetchConfig configures the shared HTTP client.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BrowserConfig configures the headless download adapter.
type BrowserConfig struct {
	DownloadDir      string `yaml:"download_dir" mapstructure:"download_dir"`
	Headless         bool   `yaml:"headless" mapstructure:"headless"`
	DownloadWaitSecs int    `yaml:"download_wait_secs" mapstructure:"download_wait_secs"`
}

// DownloadWaitDuration returns the bounded wait for a download event.
func (c BrowserConfig) DownloadWaitDuration() time.Duration {
	if c.DownloadWaitSecs <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.DownloadWaitSecs) * time.Second
}

// ReportConfig configures run-summary output.
type ReportConfig struct {
	LogDir string `yaml:"log_dir" mapstructure:"log_dir"`
}

// ServerConfig configures the status server.
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
	v.SetEnvPrefix("PERMIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys that default to empty still need registering:
	// AutomaticEnv only surfaces keys viper already knows about.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sources.file", "")
	v.SetDefault("sources.socrata_token", "")
	v.SetDefault("fetch.user_agent", "permit-cli/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("browser.download_dir", "downloads")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.download_wait_secs", 90)
	v.SetDefault("report.log_dir", "logs")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
