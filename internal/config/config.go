// Package config loads changeset settings.
//
// Precedence (highest to lowest): explicitly set flags, CHANGESET_ env
// vars, the YAML config file, built-in defaults.
//
// Environment variables map onto keys by dropping the prefix, lowercasing
// and splitting on the first underscore: CHANGESET_DATABASE_DSN sets
// database.dsn and CHANGESET_RETRY_MAX_DELAY sets retry.max_delay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/roach88/changeset/internal/logging"
	"github.com/roach88/changeset/internal/retry"
	"github.com/roach88/changeset/internal/store"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "CHANGESET_"

// DefaultFile is the config file Load reads when no path is given and it exists.
const DefaultFile = "changeset.yaml"

// Config is the effective configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database" yaml:"database"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Retry    RetryConfig    `koanf:"retry" yaml:"retry"`
}

// DatabaseConfig selects the target database.
type DatabaseConfig struct {
	Driver        string `koanf:"driver" yaml:"driver"`
	DSN           string `koanf:"dsn" yaml:"dsn"`
	BusyTimeoutMS int    `koanf:"busy_timeout_ms" yaml:"busy_timeout_ms"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	File   string `koanf:"file" yaml:"file"`
	// Log file rotation. MaxBackups 0 keeps every rotated file.
	MaxSizeMB  int `koanf:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int `koanf:"max_backups" yaml:"max_backups"`
}

// RetryConfig bounds re-application of rolled-back cycles.
type RetryConfig struct {
	Attempts int           `koanf:"attempts" yaml:"attempts"`
	Delay    time.Duration `koanf:"delay" yaml:"delay"`
	MaxDelay time.Duration `koanf:"max_delay" yaml:"max_delay"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:        "sqlite3",
			DSN:           "changeset.db",
			BusyTimeoutMS: int(store.DefaultBusyTimeout / time.Millisecond),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  logging.DefaultMaxSizeMB,
			MaxBackups: logging.DefaultMaxBackups,
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    time.Second,
			MaxDelay: 30 * time.Second,
		},
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"database.driver":          d.Database.Driver,
		"database.dsn":             d.Database.DSN,
		"database.busy_timeout_ms": d.Database.BusyTimeoutMS,
		"log.level":                d.Log.Level,
		"log.format":               d.Log.Format,
		"log.file":                 d.Log.File,
		"log.max_size_mb":          d.Log.MaxSizeMB,
		"log.max_backups":          d.Log.MaxBackups,
		"retry.attempts":           d.Retry.Attempts,
		"retry.delay":              d.Retry.Delay.String(),
		"retry.max_delay":          d.Retry.MaxDelay.String(),
	}
}

// Load builds the configuration from defaults, the config file at path
// (or DefaultFile when path is empty and the file exists), the
// environment and flags. Only flags marked as changed are applied; a flag
// named "log-level" sets log.level. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key := strings.Replace(f.Name, "-", ".", 1)
			key = strings.ReplaceAll(key, "-", "_")
			if !k.Exists(key) {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps CHANGESET_RETRY_MAX_DELAY to retry.max_delay.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if _, err := store.LookupDialect(c.Database.Driver); err != nil {
		return fmt.Errorf("invalid config: database.driver: %w", err)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("invalid config: database.dsn is required")
	}
	if c.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("invalid config: database.busy_timeout_ms must be >= 0")
	}
	if !slices.Contains(logging.ValidFormats, c.Log.Format) {
		return fmt.Errorf("invalid config: log.format %q: must be one of %v", c.Log.Format, logging.ValidFormats)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid config: log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.MaxSizeMB < 1 {
		return fmt.Errorf("invalid config: log.max_size_mb must be >= 1")
	}
	if c.Log.MaxBackups < 0 {
		return fmt.Errorf("invalid config: log.max_backups must be >= 0")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("invalid config: retry.attempts must be >= 1")
	}
	if c.Retry.Delay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("invalid config: retry delays must be >= 0")
	}
	return nil
}

// StoreConfig returns the store settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		Driver:      c.Database.Driver,
		DSN:         c.Database.DSN,
		BusyTimeout: time.Duration(c.Database.BusyTimeoutMS) * time.Millisecond,
	}
}

// RetryPolicy returns the retry settings.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		MaxDelay: c.Retry.MaxDelay,
	}
}

// LogOptions returns the logger settings.
func (c *Config) LogOptions() logging.Options {
	opts := logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = -1
	}
	return opts
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
