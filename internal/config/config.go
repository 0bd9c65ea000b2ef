// Package config resolves harness settings from the process environment.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config carries the filesystem layout for recorded runs.
type Config struct {
	// RunsDir is the root directory that receives one subdirectory per run.
	RunsDir string `env:"SRH_RUNS_DIR" envDefault:"runs"`
	// IndexPath is the SQLite runs index. Empty resolves to RunsDir/runs.db.
	IndexPath string `env:"SRH_INDEX_PATH"`
	// EnvCatalog points at an optional YAML catalog of remote environments.
	EnvCatalog string `env:"SRH_ENV_CATALOG"`
}

// Load parses the SRH_* variables and fills derived defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.RunsDir == "" {
		return Config{}, fmt.Errorf("SRH_RUNS_DIR must not be empty")
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = filepath.Join(cfg.RunsDir, "runs.db")
	}
	return cfg, nil
}
