// Package config loads Verdict's configuration: defaults, overlaid by
// an optional YAML file, overlaid by VERDICT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every runtime knob. Zero values are replaced by
// defaults on load, so a partial YAML file works.
type Config struct {
	// DatabaseURL is the SQLite file path. Empty means in-memory.
	DatabaseURL string `yaml:"database_url"`

	// MaxSessionRecords caps how many records one session keeps.
	MaxSessionRecords int `yaml:"max_session_records"`

	// RetentionDays is the age cutoff for the daily cleanup sweep.
	RetentionDays int `yaml:"retention_days"`

	// ContextRecords bounds how many records enrich an LLM prompt.
	ContextRecords int `yaml:"context_records"`

	// LLMTimeout bounds every sampling request.
	LLMTimeout time.Duration `yaml:"llm_timeout"`

	// MaxTokens is the default completion cap for sampling requests.
	MaxTokens int `yaml:"max_tokens"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DatabaseURL:       "",
		MaxSessionRecords: 20,
		RetentionDays:     1,
		ContextRecords:    10,
		LLMTimeout:        90 * time.Second,
		MaxTokens:         5000,
	}
}

// Load builds the effective configuration. path may be empty (no
// file); VERDICT_CONFIG overrides it; a named file that does not exist
// is an error, but the default path being absent is not.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if env := os.Getenv("VERDICT_CONFIG"); env != "" {
		path, explicit = env, true
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// Default path absent: run on defaults.
		default:
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	hydrate(&cfg)

	if cfg.RetentionDays < 1 {
		return Config{}, fmt.Errorf("retention_days must be at least 1, got %d", cfg.RetentionDays)
	}
	if cfg.MaxSessionRecords < 1 {
		return Config{}, fmt.Errorf("max_session_records must be at least 1, got %d", cfg.MaxSessionRecords)
	}
	return cfg, nil
}

// applyEnv overlays VERDICT_* variables onto cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("VERDICT_DB_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	for _, e := range []struct {
		name   string
		target *int
	}{
		{"VERDICT_MAX_SESSION_RECORDS", &cfg.MaxSessionRecords},
		{"VERDICT_RETENTION_DAYS", &cfg.RetentionDays},
		{"VERDICT_CONTEXT_RECORDS", &cfg.ContextRecords},
		{"VERDICT_MAX_TOKENS", &cfg.MaxTokens},
	} {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", e.name, v)
		}
		*e.target = n
	}
	if v := os.Getenv("VERDICT_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("VERDICT_LLM_TIMEOUT: %q is not a duration", v)
		}
		cfg.LLMTimeout = d
	}
	return nil
}

// hydrate fills zero values with defaults after file and env overlays.
func hydrate(cfg *Config) {
	def := Default()
	if cfg.MaxSessionRecords == 0 {
		cfg.MaxSessionRecords = def.MaxSessionRecords
	}
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = def.RetentionDays
	}
	if cfg.ContextRecords == 0 {
		cfg.ContextRecords = def.ContextRecords
	}
	if cfg.LLMTimeout == 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
}
