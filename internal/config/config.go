// Package config loads engine configuration from YAML with environment
// variable expansion. All ranking and budgeting tunables live here as
// validated defaults rather than hard-coded constants.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the backlogctx server.
type Config struct {
	Log       Log       `yaml:"log"`
	Search    Search    `yaml:"search"`
	Hydration Hydration `yaml:"hydration"`
	Snapshot  Snapshot  `yaml:"snapshot"`
	Embedding Embedding `yaml:"embedding"`

	// CorpusPath optionally seeds the in-process store from a YAML corpus
	// file at startup.
	CorpusPath string `yaml:"corpus_path"`
}

// Log configures the slog handler.
type Log struct {
	Level string `yaml:"level"`
}

// Search holds the ranking and fusion tunables. The weight and bonus
// defaults are empirically tuned against the fixture corpus and validated
// by the golden-ranking tests; they are configurable, not load-bearing.
type Search struct {
	TextWeight        float64       `yaml:"text_weight"`
	VectorWeight      float64       `yaml:"vector_weight"`
	CoordinationBonus float64       `yaml:"coordination_bonus"`
	DefaultLimit      int           `yaml:"default_limit"`
	MaxLimit          int           `yaml:"max_limit"`
	CacheSize         int           `yaml:"cache_size"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// Hydration bounds the context-hydration pipeline.
type Hydration struct {
	DefaultDepth     int           `yaml:"default_depth"`
	MaxDepth         int           `yaml:"max_depth"`
	DefaultMaxTokens int           `yaml:"default_max_tokens"`
	CrossRefCap      int           `yaml:"cross_ref_cap"`
	SemanticCap      int           `yaml:"semantic_cap"`
	ActivityCap      int           `yaml:"activity_cap"`
	SessionGap       time.Duration `yaml:"session_gap"`
}

// Snapshot configures retrieval-index persistence.
type Snapshot struct {
	Path     string        `yaml:"path"`
	Debounce time.Duration `yaml:"debounce"`
}

// Embedding selects the optional embedding provider. An empty provider
// disables embeddings and the index serves lexical-only search.
type Embedding struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Endpoint  string `yaml:"endpoint"`
	CacheSize int    `yaml:"cache_size"`
}

// Default returns the tuned defaults.
func Default() *Config {
	return &Config{
		Log: Log{Level: "info"},
		Search: Search{
			TextWeight:        0.7,
			VectorWeight:      0.3,
			CoordinationBonus: 0.5,
			DefaultLimit:      10,
			MaxLimit:          100,
			CacheSize:         1000,
			CacheTTL:          time.Hour,
		},
		Hydration: Hydration{
			DefaultDepth:     1,
			MaxDepth:         3,
			DefaultMaxTokens: 4000,
			CrossRefCap:      10,
			SemanticCap:      5,
			ActivityCap:      20,
			SessionGap:       30 * time.Minute,
		},
		Snapshot: Snapshot{
			Path:     defaultSnapshotPath(),
			Debounce: 2 * time.Second,
		},
		Embedding: Embedding{
			CacheSize: 10000,
		},
	}
}

// Load reads a YAML config file with env-var expansion into cfg, then
// validates it. A missing file leaves the defaults untouched.
func Load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg.Validate()
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Validate checks structural invariants of the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Search,
		validation.Field(&c.Search.TextWeight, validation.Required, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Search.VectorWeight, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Search.CoordinationBonus, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.Search.DefaultLimit, validation.Required, validation.Min(1)),
		validation.Field(&c.Search.MaxLimit, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if err := validation.ValidateStruct(&c.Hydration,
		validation.Field(&c.Hydration.DefaultDepth, validation.Required, validation.Min(1), validation.Max(3)),
		validation.Field(&c.Hydration.MaxDepth, validation.Required, validation.Min(1), validation.Max(3)),
		validation.Field(&c.Hydration.DefaultMaxTokens, validation.Required, validation.Min(100)),
		validation.Field(&c.Hydration.CrossRefCap, validation.Required, validation.Min(1)),
		validation.Field(&c.Hydration.SemanticCap, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("hydration: %w", err)
	}

	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search: default_limit %d exceeds max_limit %d",
			c.Search.DefaultLimit, c.Search.MaxLimit)
	}
	if c.Hydration.SessionGap <= 0 {
		return fmt.Errorf("hydration: session_gap must be positive")
	}
	if c.Snapshot.Debounce <= 0 {
		return fmt.Errorf("snapshot: debounce must be positive")
	}
	return nil
}

// defaultSnapshotPath places the snapshot database under the user's home
// directory, falling back to the working directory when home is unknown.
func defaultSnapshotPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "backlogctx.db"
	}
	return home + "/.backlogctx/index.db"
}
