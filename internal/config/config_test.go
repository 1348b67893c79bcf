package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9093, cfg.Server.Port)
	assert.Equal(t, "default", cfg.Pipeline.DefaultModel)
	assert.Equal(t, 4096, cfg.Pipeline.RecordCapacity)
	assert.Equal(t, time.Hour, cfg.Analytics.Window)
	assert.Equal(t, 0.1, cfg.Analytics.LearningRate)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8181
  host: 0.0.0.0
pipeline:
  default_model: claude-sonnet
analytics:
  learning_rate: 0.2
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "claude-sonnet", cfg.Pipeline.DefaultModel)
	assert.Equal(t, 0.2, cfg.Analytics.LearningRate)
	// untouched keys keep defaults
	assert.Equal(t, 4096, cfg.Pipeline.RecordCapacity)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o600))

	t.Setenv("PROMPTPRESS_SERVER_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestEnvKeyTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PROMPTPRESS_SERVER_PORT", "server.port"},
		{"PROMPTPRESS_LOGGING_LEVEL", "logging.level"},
		{"PROMPTPRESS_ANALYTICS_LEARNING_RATE", "analytics.learning_rate"},
		{"PROMPTPRESS_PIPELINE_DEFAULT_MODEL", "pipeline.default_model"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envKeyTransform(tt.in), tt.in)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.RecordCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Analytics.LearningRate = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
