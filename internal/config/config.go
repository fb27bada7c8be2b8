// Package config loads agent settings from a YAML file with AGT_* environment
// overrides.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/petasbytes/toolguard/internal/sizeguard"
	"github.com/petasbytes/toolguard/memory"
)

// Config is the full agent configuration. Zero fields in a file keep their defaults.
type Config struct {
	SoftLimit                 int     `yaml:"soft_limit"`
	Retention                 int     `yaml:"retention"`
	HeadSnapRatio             float64 `yaml:"head_snap_ratio"`
	TailSnapRatio             float64 `yaml:"tail_snap_ratio"`
	AllowSyntheticToolResults bool    `yaml:"allow_synthetic_tool_results"`
	SessionsDir               string  `yaml:"sessions_dir"`
	Store                     string  `yaml:"store"`
	TokenBudget               int     `yaml:"token_budget"`
	Model                     string  `yaml:"model"`
	LogLevel                  string  `yaml:"log_level"`
}

func Default() Config {
	l := sizeguard.DefaultLimits()
	return Config{
		SoftLimit:                 l.SoftLimit,
		Retention:                 l.Retention,
		HeadSnapRatio:             l.HeadSnapRatio,
		TailSnapRatio:             l.TailSnapRatio,
		AllowSyntheticToolResults: true,
		SessionsDir:               ".agent/sessions",
		Store:                     memory.KindJSONL,
		TokenBudget:               100000,
		LogLevel:                  "info",
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result. A missing file is an error only when
// path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "config: read")
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: parse %s", path)
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
	if v := os.Getenv("AGT_TOKEN_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid AGT_TOKEN_BUDGET %q", v)
		}
		c.TokenBudget = n
	}
	if v := os.Getenv("AGT_SOFT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid AGT_SOFT_LIMIT %q", v)
		}
		c.SoftLimit = n
	}
	if v := os.Getenv("AGT_ALLOW_SYNTHETIC_TOOL_RESULTS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid AGT_ALLOW_SYNTHETIC_TOOL_RESULTS %q", v)
		}
		c.AllowSyntheticToolResults = b
	}
	if v := os.Getenv("AGT_SESSIONS_DIR"); v != "" {
		c.SessionsDir = v
	}
	if v := os.Getenv("AGT_MODEL"); v != "" {
		c.Model = v
	}
	return nil
}

// Validate rejects settings the guards cannot work with.
func (c Config) Validate() error {
	switch {
	case c.SoftLimit <= 0:
		return errors.Errorf("config: soft_limit must be positive, got %d", c.SoftLimit)
	case c.Retention <= 0:
		return errors.Errorf("config: retention must be positive, got %d", c.Retention)
	case c.HeadSnapRatio < 0 || c.HeadSnapRatio > 1:
		return errors.Errorf("config: head_snap_ratio must be within [0,1], got %v", c.HeadSnapRatio)
	case c.TailSnapRatio < 0 || c.TailSnapRatio > 1:
		return errors.Errorf("config: tail_snap_ratio must be within [0,1], got %v", c.TailSnapRatio)
	case c.TokenBudget <= 0:
		return errors.Errorf("config: token_budget must be positive, got %d", c.TokenBudget)
	case strings.TrimSpace(c.SessionsDir) == "":
		return errors.New("config: sessions_dir must not be empty")
	}
	if _, err := memory.Ext(c.Store); err != nil {
		return errors.Wrap(err, "config")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "config: log_level %q", c.LogLevel)
	}
	return nil
}

// Limits returns the size limits for sizeguard.
func (c Config) Limits() sizeguard.Limits {
	return sizeguard.Limits{
		SoftLimit:     c.SoftLimit,
		Retention:     c.Retention,
		HeadSnapRatio: c.HeadSnapRatio,
		TailSnapRatio: c.TailSnapRatio,
	}
}

// Level returns the parsed log level; Validate guarantees it parses.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
