// Package config loads pictor settings from defaults, an optional file and
// PICTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PICTOR_STORAGE_DRIVER.
const EnvPrefix = "PICTOR"

// Config is the decoded configuration tree.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Blob    BlobConfig    `mapstructure:"blob"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Sentry  SentryConfig  `mapstructure:"sentry"`
}

type StorageConfig struct {
	Driver           string `mapstructure:"driver"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	PostgresDSN      string `mapstructure:"postgres_dsn"`
	PostgresMaxConns int32  `mapstructure:"postgres_max_conns"`
	ConnectRetries   uint64 `mapstructure:"connect_retries"`
}

// BlobConfig selects where thumbnail bytes live. Driver "none" keeps them inline.
type BlobConfig struct {
	Driver      string `mapstructure:"driver"`
	FSRoot      string `mapstructure:"fs_root"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
	S3Prefix    string `mapstructure:"s3_prefix"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

type MetricsConfig struct {
	Backend string `mapstructure:"backend"` // expvar, prometheus or none
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

var defaults = map[string]any{
	"storage.driver":             "sqlite",
	"storage.sqlite_path":        "pictor.db",
	"storage.postgres_dsn":       "",
	"storage.postgres_max_conns": 3,
	"storage.connect_retries":    5,
	"blob.driver":                "none",
	"blob.fs_root":               "thumbnails",
	"blob.s3_bucket":             "",
	"blob.s3_region":             "",
	"blob.s3_endpoint":           "",
	"blob.s3_path_style":         false,
	"blob.s3_prefix":             "",
	"log.level":                  "info",
	"log.format":                 "json",
	"log.file":                   "",
	"log.max_size_mb":            50,
	"log.max_backups":            3,
	"metrics.backend":            "expvar",
	"sentry.dsn":                 "",
	"sentry.environment":         "local",
	"sentry.release":             "",
}

// New returns a viper instance carrying defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path when non-empty (yaml, toml or json by extension) and decodes
// the merged configuration.
func Load(path string) (Config, *viper.Viper, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := Decode(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// Decode unmarshals and validates the current values of v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown driver names.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	switch c.Blob.Driver {
	case "none", "memory", "fs", "s3":
	default:
		errs = append(errs, fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver))
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		errs = append(errs, errors.New("blob.s3_bucket: required for s3 driver"))
	}
	switch c.Metrics.Backend {
	case "expvar", "prometheus", "none":
	default:
		errs = append(errs, fmt.Errorf("metrics.backend: unknown backend %q", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}

// Watch re-decodes the file on every write and passes valid configurations to
// onChange. Invalid edits are reported through onError and otherwise ignored.
func Watch(v *viper.Viper, onChange func(Config), onError func(error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
