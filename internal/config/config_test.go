package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.TokenSecret = "test-secret"
	return cfg
}

func TestDefaultConfig_Validate(t *testing.T) {
	cfg := validConfig()
	cfg.Resolve()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_MissingTokenSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_secret")
}

func TestValidate_PageSizeBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Detail.PageSize = 0
	assert.Error(t, cfg.Validate())

	cfg.Detail.PageSize = 1001
	assert.Error(t, cfg.Validate())

	cfg.Detail.PageSize = 50
	assert.NoError(t, cfg.Validate())
}

func TestValidate_S3RequiresBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Type = "s3"
	assert.Error(t, cfg.Validate())

	cfg.Storage.S3.Bucket = "sift-archive"
	assert.NoError(t, cfg.Validate())
}

func TestResolve_DerivesPathsFromDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = "/var/lib/sift"
	cfg.Resolve()

	assert.Equal(t, filepath.Join("/var/lib/sift", "archive"), cfg.Storage.Path)
	assert.Equal(t, filepath.Join("/var/lib/sift", "retention"), cfg.Retention.WorkDir)
	assert.Equal(t, filepath.Join("/var/lib/sift", "sift.db"), cfg.DatabasePath())
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /tmp/sift-test
http:
  addr: ":7070"
auth:
  token_secret: yaml-secret
detail:
  page_size: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sift-test", cfg.DataDir)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "yaml-secret", cfg.Auth.TokenSecret)
	assert.Equal(t, 25, cfg.Detail.PageSize)
	// Untouched fields keep defaults.
	assert.Equal(t, ":9100", cfg.HTTP.MetricsAddr)
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"data_dir": "/tmp/sift-json", "auth": {"token_secret": "json-secret"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sift-json", cfg.DataDir)
	assert.Equal(t, "json-secret", cfg.Auth.TokenSecret)
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("SIFT_HTTP_ADDR", ":6060")
	t.Setenv("SIFT_TOKEN_SECRET", "env-secret")
	t.Setenv("SIFT_TOKEN_TTL", "30m")
	t.Setenv("SIFT_DETAIL_PAGE_SIZE", "10")
	t.Setenv("SIFT_RETENTION_ENABLED", "true")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, ":6060", cfg.HTTP.Addr)
	assert.Equal(t, "env-secret", cfg.Auth.TokenSecret)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Detail.PageSize)
	assert.True(t, cfg.Retention.Enabled)
}
