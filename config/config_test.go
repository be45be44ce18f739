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

	assert.Equal(t, 4, cfg.Profile.WeeksPerWindow)
	assert.Equal(t, []string{"parquet"}, cfg.Output.Formats)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FromFile(t *testing.T) {
	content := `
engine:
  workers: 3
output:
  dir: /tmp/out
  formats: [Parquet, xlsx]
  division_prefix: true
log:
  format: json
`
	path := filepath.Join(t.TempDir(), "sociometer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.Workers)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, []string{"parquet", "xlsx"}, cfg.Output.Formats)
	assert.True(t, cfg.Output.DivisionPrefix)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Profile.WeeksPerWindow)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("engine: [1, 2"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Engine.Workers = -1 }},
		{"zero weeks", func(c *Config) { c.Profile.WeeksPerWindow = 0 }},
		{"no dir", func(c *Config) { c.Output.Dir = "" }},
		{"no formats", func(c *Config) { c.Output.Formats = nil }},
		{"unknown format", func(c *Config) { c.Output.Formats = []string{"pickle"} }},
		{"upload size", func(c *Config) { c.Server.MaxUploadMB = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
