package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLegacyEnv(t *testing.T) {
	t.Helper()
	for _, env := range legacyEnv {
		t.Setenv(env, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearLegacyEnv(t)

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "ap-northeast-2", cfg.Store.Region)
	assert.Equal(t, "es", cfg.Store.Service)
	assert.True(t, cfg.Store.Sign)
	assert.Equal(t, 30*time.Second, cfg.Store.Timeout)
	assert.Equal(t, "logs", cfg.Index.Prefix)
	assert.Equal(t, 1, cfg.Index.Shards)
	assert.Equal(t, 0, cfg.Index.Replicas)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, time.Hour, cfg.Cache.PruneInterval)
	assert.False(t, cfg.StoreEnabled())
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	t.Setenv("OPENSEARCH_ENDPOINT", "search-logs.ap-northeast-2.es.amazonaws.com")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("INDEX_PREFIX", "applogs")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "search-logs.ap-northeast-2.es.amazonaws.com", cfg.Store.Endpoint)
	assert.Equal(t, "us-east-1", cfg.Store.Region)
	assert.Equal(t, "applogs", cfg.Index.Prefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.StoreEnabled())
}

func TestLoadConfigLegacyLevelCase(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"INFO", "info"},
		{"Debug", "debug"},
		{"warning", "warn"},
		{"WARNING", "warn"},
		{"ERROR", "error"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			clearLegacyEnv(t)
			t.Setenv("LOG_LEVEL", tt.env)

			cfg, err := LoadConfig(t.TempDir())
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Logging.Level)
		})
	}
}

func TestLoadConfigRejectsUnknownLevel(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestLoadConfigPrefixedEnvWins(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("INDEX_PREFIX", "legacy")
	t.Setenv("LOGROUTER_INDEX_PREFIX", "current")
	t.Setenv("LOGROUTER_PIPELINE_WORKERS", "3")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "current", cfg.Index.Prefix)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
}

func TestLoadConfigFile(t *testing.T) {
	clearLegacyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
environment: staging
store:
  endpoint: http://localhost:9200
  sign: false
  timeout: 5s
index:
  prefix: logs
  replicas: 1
server:
  access_key: s3cret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http://localhost:9200", cfg.Store.Endpoint)
	assert.False(t, cfg.Store.Sign)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Equal(t, 1, cfg.Index.Replicas)
	assert.Equal(t, "s3cret", cfg.Server.AccessKey)
}

func TestLoadConfigValidation(t *testing.T) {
	clearLegacyEnv(t)
	t.Setenv("LOGROUTER_PIPELINE_WORKERS", "0")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidateRejectsUppercasePrefix(t *testing.T) {
	clearLegacyEnv(t)
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Index.Prefix = "Logs"
	assert.Error(t, Validate(cfg))
}
