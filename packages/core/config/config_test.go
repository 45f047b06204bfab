package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, OrderRandom, cfg.Order)
	assert.Equal(t, 30000, cfg.Timeout)
	assert.False(t, cfg.GetBail())
	assert.True(t, cfg.IsDefault())
	assert.NoError(t, cfg.Validate())
}

func TestGetters_NilPointers(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.GetBail())
	assert.False(t, cfg.GetVerbose())
	assert.False(t, cfg.GetNoColor())
}

func TestLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hitsuite.json")
	content := `{"order": "declared", "seed": 7, "bail": true, "variables": {"host": "localhost"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, OrderDeclared, cfg.Order)
	assert.EqualValues(t, 7, cfg.Seed)
	assert.True(t, cfg.GetBail())
	assert.Equal(t, "localhost", cfg.Variables["host"])
	assert.Equal(t, 30000, cfg.Timeout, "unset values keep their defaults")
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hitsuite.yaml")
	content := `
order: alpha
rate: 2.5
tags: [smoke, fast]
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, OrderAlpha, cfg.Order)
	assert.InDelta(t, 2.5, cfg.Rate, 0.0001)
	assert.Equal(t, []string{"smoke", "fast"}, cfg.Tags)
	require.NotNil(t, cfg.Log)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"order": "sideways"}`), 0644))
	_, err := LoadConfig(bad)
	assert.ErrorContains(t, err, "unknown order")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0644))
	_, err = LoadConfig(broken)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Variables = map[string]any{"a": 1, "b": 2}

	merged := base.Merge(&Config{
		Order:     OrderDeclared,
		Bail:      BoolPtr(true),
		Variables: map[string]any{"b": 3},
		Log:       &LogConfig{File: "run.log"},
	})

	assert.Equal(t, OrderDeclared, merged.Order)
	assert.True(t, merged.GetBail())
	assert.False(t, merged.GetVerbose())
	assert.Equal(t, map[string]any{"a": 1, "b": 3}, merged.Variables)
	assert.Equal(t, "warn", merged.Log.Level)
	assert.Equal(t, "run.log", merged.Log.File)

	assert.Equal(t, OrderRandom, base.Order, "merge must not modify the receiver")
	assert.Equal(t, 2, base.Variables["b"])
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	for _, name := range []string{"saved.json", "saved.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.Order = OrderAlpha
			cfg.Retries = 2

			require.NoError(t, cfg.SaveConfig(path))
			loaded, err := LoadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, OrderAlpha, loaded.Order)
			assert.Equal(t, 2, loaded.Retries)
		})
	}
}
