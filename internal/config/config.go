// Package config loads smkrecon settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lemmego/smklog"
	"github.com/lemmego/smklog/reconcile"
)

// EnvPrefix prefixes every environment override, e.g. SMK_DB_DRIVER.
const EnvPrefix = "SMK_"

type Settings struct {
	Database  DatabaseSettings  `yaml:"database" envPrefix:"DB_"`
	Cache     CacheSettings     `yaml:"cache" envPrefix:"CACHE_"`
	Reconcile reconcile.Options `yaml:"reconcile" envPrefix:"RECONCILE_"`
	Log       LogSettings       `yaml:"log" envPrefix:"LOG_"`
}

type DatabaseSettings struct {
	// Provider is the registered adapter name: gorm, bun or mongo.
	Provider      string `yaml:"provider" env:"PROVIDER"`
	CreateSchema  bool   `yaml:"create_schema" env:"CREATE_SCHEMA"`
	smklog.Config `yaml:",inline"`
}

type CacheSettings struct {
	// Backend is "memory" or "redis".
	Backend  string        `yaml:"backend" env:"BACKEND"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
	Prefix   string        `yaml:"prefix" env:"PREFIX"`
}

type LogSettings struct {
	Mode  string `yaml:"mode" env:"MODE"`
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the settings used when neither file nor environment say otherwise.
func Default() Settings {
	return Settings{
		Database: DatabaseSettings{
			Provider: "gorm",
			Config: smklog.Config{
				Driver:   "sqlite",
				Database: "smk.db",
			},
		},
		Cache: CacheSettings{
			Backend: "memory",
			Addr:    "localhost:6379",
			TTL:     10 * time.Minute,
			Prefix:  "smk:",
		},
		Reconcile: reconcile.DefaultOptions(),
		Log:       LogSettings{Mode: "dev"},
	}
}

// Load reads path (skipped when empty or missing) over the defaults and then
// applies SMK_* environment overrides.
func Load(path string) (Settings, error) {
	s := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return s, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(raw, &s); err != nil {
				return s, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&s, env.Options{Prefix: EnvPrefix}); err != nil {
		return s, fmt.Errorf("read environment: %w", err)
	}
	return s, s.Validate()
}

// Validate checks the settings that cannot be defaulted.
func (s Settings) Validate() error {
	if s.Database.Provider == "" {
		return smklog.InvalidInput("database.provider is required")
	}
	switch s.Cache.Backend {
	case "memory", "redis":
	default:
		return smklog.InvalidArgument("cache.backend", fmt.Sprintf("unknown backend %q", s.Cache.Backend))
	}
	return s.Reconcile.Validate()
}
