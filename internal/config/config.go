// Package config loads service configuration from defaults, an optional
// YAML file and CATALOG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Notification modes.
const (
	NotifySync     = "sync"
	NotifyOutbox   = "outbox"
	NotifyDisabled = "disabled"
)

// EnvPrefix prefixes every environment override, e.g. CATALOG_DATABASE_DSN.
const EnvPrefix = "CATALOG"

// Config is the full service configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type AppConfig struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

// Development reports whether the service runs in development mode.
func (a AppConfig) Development() bool {
	return a.Env == "development"
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"`
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

type CatalogConfig struct {
	DefaultLimit        int  `mapstructure:"default_limit"`
	MaxLimit            int  `mapstructure:"max_limit"`
	MaxQueryLength      int  `mapstructure:"max_query_length"`
	NameCaseInsensitive bool `mapstructure:"name_case_insensitive"`
}

type NotifyConfig struct {
	Mode     string        `mapstructure:"mode"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Relay    RelayConfig   `mapstructure:"relay"`
}

type RelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	Lease        time.Duration `mapstructure:"lease"`

	// InProcess runs the relay inside the API server instead of cmd/worker.
	InProcess bool `mapstructure:"in_process"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 8000)
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "catalog.db")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("catalog.default_limit", 10)
	v.SetDefault("catalog.max_limit", 100)
	v.SetDefault("catalog.max_query_length", 100)
	v.SetDefault("catalog.name_case_insensitive", false)

	v.SetDefault("notify.mode", NotifySync)
	v.SetDefault("notify.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("notify.api_key", "")
	v.SetDefault("notify.model", "gpt-4o-mini")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.relay.poll_interval", time.Second)
	v.SetDefault("notify.relay.batch_size", 50)
	v.SetDefault("notify.relay.max_attempts", 6)
	v.SetDefault("notify.relay.backoff_base", 5*time.Second)
	v.SetDefault("notify.relay.backoff_max", 10*time.Minute)
	v.SetDefault("notify.relay.lease", time.Minute)
	v.SetDefault("notify.relay.in_process", true)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3466"})
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required"))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("app.port: %d out of range", c.App.Port))
	}

	if c.Catalog.MaxLimit < 1 {
		errs = append(errs, errors.New("catalog.max_limit: must be positive"))
	}
	if c.Catalog.DefaultLimit < 1 || c.Catalog.DefaultLimit > c.Catalog.MaxLimit {
		errs = append(errs, fmt.Errorf("catalog.default_limit: must be between 1 and max_limit (%d)", c.Catalog.MaxLimit))
	}
	if c.Catalog.MaxQueryLength < 1 {
		errs = append(errs, errors.New("catalog.max_query_length: must be positive"))
	}

	switch c.Notify.Mode {
	case NotifySync, NotifyOutbox:
		if c.Notify.Endpoint == "" {
			errs = append(errs, fmt.Errorf("notify.endpoint: required in %s mode", c.Notify.Mode))
		}
		if c.Notify.Timeout <= 0 {
			errs = append(errs, errors.New("notify.timeout: must be positive"))
		}
	case NotifyDisabled:
	default:
		errs = append(errs, fmt.Errorf("notify.mode: unknown mode %q", c.Notify.Mode))
	}

	if c.Notify.Mode == NotifyOutbox {
		r := c.Notify.Relay
		if r.PollInterval <= 0 || r.Lease <= 0 || r.BackoffBase <= 0 || r.BackoffMax < r.BackoffBase {
			errs = append(errs, errors.New("notify.relay: intervals must be positive and backoff_max >= backoff_base"))
		}
		if r.BatchSize < 1 || r.MaxAttempts < 1 {
			errs = append(errs, errors.New("notify.relay: batch_size and max_attempts must be positive"))
		}
	}

	return errors.Join(errs...)
}
