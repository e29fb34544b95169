// Package config loads comunicadod's runtime configuration: an optional
// TOML file on disk, overridden by COMUNICADO_-prefixed environment
// variables — the database and bindings paths and the log level only,
// no secrets.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/olafkfreund/comunicado-sub000/internal/store"
)

// Config is the full set of values the CLI harness and Host need at
// startup.
type Config struct {
	DBPath               string `toml:"db_path"`
	BindingsPath         string `toml:"bindings_path"`
	DefaultRetentionDays int    `toml:"default_retention_days"`
	SearchResultLimit    int    `toml:"search_result_limit"`
	LogLevel             string `toml:"log_level"`
}

// Default returns the configuration used when no file is present and no
// environment variables override it.
func Default() Config {
	return Config{
		DBPath:               "comunicado.db",
		BindingsPath:         "bindings.toml",
		DefaultRetentionDays: 90,
		SearchResultLimit:    100,
		LogLevel:             "info",
	}
}

// Load builds a Config starting from Default, layering in path (if it
// exists) and then environment variables, in that precedence order.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, store.NewError("Load", store.KindMalformed, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, store.NewError("Load", store.KindIo, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("COMUNICADO_DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("COMUNICADO_BINDINGS_PATH"); ok {
		cfg.BindingsPath = v
	}
	if v, ok := os.LookupEnv("COMUNICADO_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
}
