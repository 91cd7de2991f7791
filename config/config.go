// Package config loads application configuration from config.yaml, .env and
// COMMISSION_* environment variables, and initializes the global logger.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/warp/commission-engine/commission"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Renewal   RenewalConfig   `yaml:"renewal" mapstructure:"renewal"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	IDs       IDConfig        `yaml:"ids" mapstructure:"ids"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	Scenarios   bool     `yaml:"scenarios" mapstructure:"scenarios"`
}

// StoreConfig selects the persistence backend: sqlite, postgres or memory.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RenewalConfig configures renewal scans. TermMonths has no default.
type RenewalConfig struct {
	LookaheadDays int `yaml:"lookahead_days" mapstructure:"lookahead_days"`
	TermMonths    int `yaml:"term_months" mapstructure:"term_months"`
}

// SchedulerConfig configures the background renewal scan.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// IDConfig shapes generated transaction and client ids.
type IDConfig struct {
	Length     int `yaml:"length" mapstructure:"length"`
	MinLetters int `yaml:"min_letters" mapstructure:"min_letters"`
	MinDigits  int `yaml:"min_digits" mapstructure:"min_digits"`
}

// ReconcileConfig bounds optimistic concurrency retries.
type ReconcileConfig struct {
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
}

// Load reads configuration. configFile, when set, replaces the config.yaml
// lookup in the working directory. A .env file, if present, is loaded into
// the environment first.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("COMMISSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.scenarios", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/commissions.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("renewal.lookahead_days", commission.DefaultLookaheadDays)
	v.SetDefault("renewal.term_months", 0)
	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("ids.length", 7)
	v.SetDefault("ids.min_letters", 2)
	v.SetDefault("ids.min_digits", 2)
	v.SetDefault("reconcile.max_retries", commission.DefaultMaxRetries)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for postgres")
		}
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Renewal.LookaheadDays <= 0 {
		return eris.Errorf("config: renewal.lookahead_days must be positive, got %d", c.Renewal.LookaheadDays)
	}
	if c.Renewal.TermMonths < 0 {
		return eris.Errorf("config: renewal.term_months must not be negative, got %d", c.Renewal.TermMonths)
	}
	if c.IDs.MinLetters+c.IDs.MinDigits > c.IDs.Length {
		return eris.Errorf("config: ids.length %d is shorter than min_letters + min_digits", c.IDs.Length)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return eris.New("config: scheduler.interval must be positive")
	}
	return nil
}

// EngineConfig is the commission engine view of the configuration.
func (c *Config) EngineConfig() commission.EngineConfig {
	return commission.EngineConfig{
		LookaheadDays: c.Renewal.LookaheadDays,
		Term:          commission.TermLength{Months: c.Renewal.TermMonths},
	}
}

// IDGenerator builds the configured id generator.
func (c *Config) IDGenerator() *commission.CodeGenerator {
	return &commission.CodeGenerator{
		Length:     c.IDs.Length,
		MinLetters: c.IDs.MinLetters,
		MinDigits:  c.IDs.MinDigits,
	}
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
