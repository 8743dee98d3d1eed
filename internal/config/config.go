package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to assemble a feasibility checker.
type Config struct {
	// Path to the YAML network description.
	Model string `yaml:"model"`

	Pruner PrunerConfig `yaml:"pruner"`

	// Top-level constraints, combined by conjunction in the order listed.
	Constraints []ConstraintSpec `yaml:"constraints"`

	Cache CacheConfig `yaml:"cache"`

	// Max concurrent evaluations in batch mode.
	Workers int `yaml:"workers"`

	// SQLite file for the evaluation log; empty disables logging to disk.
	LogDB string `yaml:"log_db"`
}

// PrunerConfig selects the pruning collaborator.
type PrunerConfig struct {
	Kind    string `yaml:"kind"`    // channel, remote
	Addr    string `yaml:"addr"`    // remote only
	Timeout string `yaml:"timeout"` // remote only, Go duration
}

// CacheConfig selects the result cache.
type CacheConfig struct {
	Kind string `yaml:"kind"` // none, memory, sqlite
	Path string `yaml:"path"` // sqlite only
}

// ConstraintSpec describes one node of the constraint tree.
type ConstraintSpec struct {
	Type     string           `yaml:"type"`               // all, channel, l0norm
	Relation string           `yaml:"relation,omitempty"` // l0norm only
	Budget   int64            `yaml:"budget,omitempty"`   // l0norm only
	Children []ConstraintSpec `yaml:"children,omitempty"` // all only
}

// DefaultConfig returns sensible defaults: a structural check with the
// local channel pruner and an in-memory cache.
func DefaultConfig() Config {
	return Config{
		Pruner:      PrunerConfig{Kind: "channel", Timeout: "30s"},
		Constraints: []ConstraintSpec{{Type: "channel"}},
		Cache:       CacheConfig{Kind: "memory"},
		Workers:     4,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path uses defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Model = envOr("FEASIBLE_MODEL", c.Model)
	c.Pruner.Addr = envOr("FEASIBLE_PRUNER_ADDR", c.Pruner.Addr)
	if c.Pruner.Addr != "" && os.Getenv("FEASIBLE_PRUNER_ADDR") != "" {
		c.Pruner.Kind = "remote"
	}
	c.Cache.Path = envOr("FEASIBLE_CACHE_PATH", c.Cache.Path)
	c.LogDB = envOr("FEASIBLE_LOG_DB", c.LogDB)
	if v := os.Getenv("FEASIBLE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FEASIBLE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks enumerations and the constraint tree.
func (c Config) Validate() error {
	switch c.Pruner.Kind {
	case "channel":
	case "remote":
		if c.Pruner.Addr == "" {
			return fmt.Errorf("pruner: remote requires addr")
		}
	default:
		return fmt.Errorf("pruner: unknown kind %q", c.Pruner.Kind)
	}
	if _, err := c.PrunerTimeout(); err != nil {
		return err
	}
	switch c.Cache.Kind {
	case "", "none", "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			return fmt.Errorf("cache: sqlite requires path")
		}
	default:
		return fmt.Errorf("cache: unknown kind %q", c.Cache.Kind)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	for i, s := range c.Constraints {
		if err := s.validate(); err != nil {
			return fmt.Errorf("constraints[%d]: %w", i, err)
		}
	}
	return nil
}

// PrunerTimeout parses the remote pruner timeout.
func (c Config) PrunerTimeout() (time.Duration, error) {
	if c.Pruner.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Pruner.Timeout)
	if err != nil {
		return 0, fmt.Errorf("pruner timeout: %w", err)
	}
	return d, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
