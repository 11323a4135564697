// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the accounts service configuration.
//
// Sources are layered, later wins: built-in defaults, an optional YAML
// file, ACCOUNTS_* environment variables (plus DATABASE_URL), then any
// command-line flag the user explicitly set. The file is checked against
// the schema from GenerateSchema first, so misspelled keys fail loudly.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accounts/internal/auth"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the full service configuration. Keys are dotted koanf paths;
// flag names map onto them by replacing "-" with "_" within a section.
type Config struct {
	HTTP    HTTPConfig    `koanf:"http"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Storage StorageConfig `koanf:"storage"`
	Session SessionConfig `koanf:"session"`
	Hasher  HasherConfig  `koanf:"hasher"`
}

// HTTPConfig configures the account HTTP server.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"             env:"ACCOUNTS_HTTP_ADDR"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" env:"ACCOUNTS_HTTP_SHUTDOWN_TIMEOUT"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" env:"ACCOUNTS_METRICS_ADDR"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format" env:"ACCOUNTS_LOG_FORMAT" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level"  env:"ACCOUNTS_LOG_LEVEL"  jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// StorageConfig selects and configures the user store.
type StorageConfig struct {
	Driver      string `koanf:"driver"       env:"ACCOUNTS_STORAGE_DRIVER" jsonschema:"enum=memory,enum=postgres,enum=sqlite"`
	DatabaseURL string `koanf:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `koanf:"sqlite_path"  env:"ACCOUNTS_SQLITE_PATH"`
	AutoMigrate bool   `koanf:"auto_migrate" env:"ACCOUNTS_AUTO_MIGRATE"`
}

// SessionConfig configures browser sessions.
type SessionConfig struct {
	CookieName    string        `koanf:"cookie_name"    env:"ACCOUNTS_SESSION_COOKIE_NAME"`
	TTL           time.Duration `koanf:"ttl"            env:"ACCOUNTS_SESSION_TTL"`
	CookieSecure  bool          `koanf:"cookie_secure"  env:"ACCOUNTS_COOKIE_SECURE"`
	SweepInterval time.Duration `koanf:"sweep_interval" env:"ACCOUNTS_SESSION_SWEEP_INTERVAL"`
}

// HasherConfig configures scrypt. Stored credentials do not record their
// parameters, so changing N, R or P invalidates existing passwords.
type HasherConfig struct {
	N             int   `koanf:"n"              env:"ACCOUNTS_SCRYPT_N"            jsonschema:"minimum=2"`
	R             int   `koanf:"r"              env:"ACCOUNTS_SCRYPT_R"            jsonschema:"minimum=1"`
	P             int   `koanf:"p"              env:"ACCOUNTS_SCRYPT_P"            jsonschema:"minimum=1"`
	MaxConcurrent int64 `koanf:"max_concurrent" env:"ACCOUNTS_HASH_MAX_CONCURRENT" jsonschema:"minimum=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
		Log:     LogConfig{Format: "json", Level: "info"},
		Storage: StorageConfig{
			Driver:      DriverMemory,
			SQLitePath:  "accounts.db",
			AutoMigrate: true,
		},
		Session: SessionConfig{
			CookieName:    "accounts_session",
			TTL:           24 * time.Hour,
			CookieSecure:  true,
			SweepInterval: 10 * time.Minute,
		},
		Hasher: HasherConfig{
			N:             1 << 15,
			R:             8,
			P:             1,
			MaxConcurrent: 4,
		},
	}
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"http-addr":      "http.addr",
	"metrics-addr":   "metrics.addr",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"storage-driver": "storage.driver",
	"database-url":   "storage.database_url",
	"sqlite-path":    "storage.sqlite_path",
	"auto-migrate":   "storage.auto_migrate",
	"session-ttl":    "session.ttl",
	"cookie-secure":  "session.cookie_secure",
}

// Load builds a Config. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if path != "" {
		fp := file.Provider(path)
		data, err := fp.ReadBytes()
		if err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
		if err := ValidateDocument(data); err != nil {
			return Config{}, oops.With("source", "file").With("path", path).Wrap(err)
		}

		k := koanf.New(".")
		if err := k.Load(fp, yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
		if err := k.Unmarshal("", &cfg); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := applyFlags(&cfg, flags); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// applyFlags overlays explicitly changed flags on cfg. Unchanged flags keep
// their lower-precedence value.
func applyFlags(cfg *Config, flags *pflag.FlagSet) error {
	k := koanf.New(".")
	provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return invalid("http.addr", "http address is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return invalid("http.shutdown_timeout", "shutdown timeout must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log format must be 'json' or 'text'")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return invalid("storage.database_url", "database url is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return invalid("storage.sqlite_path", "sqlite path is required for the sqlite driver")
		}
	default:
		return invalid("storage.driver", "storage driver must be memory, postgres or sqlite")
	}

	if c.Session.CookieName == "" {
		return invalid("session.cookie_name", "cookie name is required")
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", "sweep interval must be positive")
	}
	if c.Hasher.MaxConcurrent <= 0 {
		return invalid("hasher.max_concurrent", "hash concurrency must be positive")
	}
	if err := c.Hasher.ScryptParams().Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "hasher").Wrap(err)
	}
	return nil
}

// ScryptParams converts the hasher section, keeping the default key and
// salt lengths.
func (h HasherConfig) ScryptParams() auth.ScryptParams {
	params := auth.DefaultScryptParams()
	params.N = h.N
	params.R = h.R
	params.P = h.P
	return params
}

func invalid(key, msg string) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf("%s", msg)
}
