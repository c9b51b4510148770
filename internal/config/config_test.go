package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.7, cfg.Search.TextWeight)
	assert.Equal(t, 0.3, cfg.Search.VectorWeight)
	assert.Equal(t, 0.5, cfg.Search.CoordinationBonus)
	assert.Equal(t, 4000, cfg.Hydration.DefaultMaxTokens)
	assert.Equal(t, 30*time.Minute, cfg.Hydration.SessionGap)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := Default()
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.TextWeight)
}

func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SNAPSHOT_DIR", "/tmp/ctxtest")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
search:
  text_weight: 0.6
  vector_weight: 0.4
  coordination_bonus: 0.25
  default_limit: 5
  max_limit: 50
snapshot:
  path: ${TEST_SNAPSHOT_DIR}/index.db
  debounce: 500ms
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg := Default()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, 0.6, cfg.Search.TextWeight)
	assert.Equal(t, 0.25, cfg.Search.CoordinationBonus)
	assert.Equal(t, "/tmp/ctxtest/index.db", cfg.Snapshot.Path)
	assert.Equal(t, 500*time.Millisecond, cfg.Snapshot.Debounce)
	// Untouched sections keep defaults.
	assert.Equal(t, 3, cfg.Hydration.MaxDepth)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"text weight above one", func(c *Config) { c.Search.TextWeight = 1.5 }},
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"default limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
		{"depth above three", func(c *Config) { c.Hydration.MaxDepth = 7 }},
		{"tiny token budget", func(c *Config) { c.Hydration.DefaultMaxTokens = 10 }},
		{"negative session gap", func(c *Config) { c.Hydration.SessionGap = -time.Minute }},
		{"zero debounce", func(c *Config) { c.Snapshot.Debounce = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: ["), 0o644))

	cfg := Default()
	assert.Error(t, Load(path, cfg))
}
