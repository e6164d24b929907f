// Package config loads runtime settings from, in increasing precedence, flag
// defaults, a YAML file, a .env file, STUDYPLAN_ environment variables and
// explicitly set flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by Load. Nested keys use
// a double underscore, e.g. STUDYPLAN_DB__DSN.
const EnvPrefix = "STUDYPLAN_"

// Config holds application configuration.
type Config struct {
	Env      string `koanf:"env" validate:"oneof=local development production"` // logging mode
	Timezone string `koanf:"timezone" validate:"required"`                      // learner calendar for presets and buckets
	DB       DB     `koanf:"db"`
	Cache    Cache  `koanf:"cache"`
	Sync     Sync   `koanf:"sync"`
}

// DB selects and tunes the persistence backend.
type DB struct {
	Driver          string        `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN             string        `koanf:"dsn" validate:"required"`
	MaxConns        int           `koanf:"max_conns" validate:"gte=1"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime" validate:"gte=0"`
}

// Cache tunes the progress snapshot cache.
type Cache struct {
	Capacity int           `koanf:"capacity" validate:"gte=1"`
	TTL      time.Duration `koanf:"ttl" validate:"gt=0"`
}

// Sync tunes plan imports.
type Sync struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
	Workers  int    `koanf:"workers" validate:"gte=1"`
}

// RegisterFlags adds every configuration key to flags. Flag defaults are the
// configuration defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a YAML config file")
	flags.String("env", "local", "environment: local, development or production")
	flags.String("timezone", "UTC", "IANA time zone of the learner")
	flags.String("db.driver", "sqlite", "persistence backend: sqlite or postgres")
	flags.String("db.dsn", "studyplan.db", "database file (sqlite) or connection string (postgres)")
	flags.Int("db.max_conns", 10, "maximum pool connections (postgres)")
	flags.Duration("db.max_conn_lifetime", 30*time.Minute, "maximum lifetime of a pooled connection (postgres)")
	flags.Int("cache.capacity", 1000, "maximum cached progress snapshots")
	flags.Duration("cache.ttl", time.Minute, "lifetime of a cached progress snapshot")
	flags.String("sync.repos_dir", "repos", "where git plan sources are checked out")
	flags.Int("sync.workers", 4, "owners reconciled in parallel")
}

// Load builds a Config from a parsed flag set prepared by RegisterFlags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	k := koanf.New(".")

	if path, _ := flags.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	// Unchanged flags only fill keys no other layer set.
	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("error loading flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the time zone.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
