package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.x.com", cfg.X.APIBaseURL)
	assert.Equal(t, 100, cfg.Sync.PageSize)
	assert.Equal(t, 6, cfg.Sync.Concurrency)
	assert.Equal(t, 3, cfg.Media.MaxAttempts)
	assert.Equal(t, "jsonl", cfg.Manifest.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BOOKMARKVAULT_ARCHIVE_DIR", "/tmp/vault")
	t.Setenv("BOOKMARKVAULT_PAGE_SIZE", "50")
	t.Setenv("BOOKMARKVAULT_CONCURRENCY", "4")
	t.Setenv("BOOKMARKVAULT_MANIFEST_BACKEND", "sqlite")
	t.Setenv("BOOKMARKVAULT_SYNC_INTERVAL", "30m")
	t.Setenv("BOOKMARKVAULT_NOTIFICATIONS_ENABLED", "true")
	t.Setenv("BOOKMARKVAULT_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/vault", cfg.Archive.RootDir)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "sqlite", cfg.Manifest.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Server.SyncInterval)
	assert.True(t, cfg.Notifications.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, filepath.Join("/tmp/vault", "manifest.db"), cfg.ManifestPath())
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("BOOKMARKVAULT_PAGE_SIZE", "lots")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAGE_SIZE")
	assert.Equal(t, 100, cfg.Sync.PageSize)
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "bookmarkvault.yaml")

	testConfig := `
x:
  api_base_url: http://localhost:9999
  user_id: "42"
  timeout: 5s
archive:
  root_dir: /data/vault
  media_dir_name: assets
sync:
  page_size: 20
  concurrency: 8
  min_rate_limit_wait: 2s
retry:
  max_attempts: 5
  base_delay: 250ms
media:
  max_bytes: 1048576
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(configPath, []byte(testConfig), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(configPath))

	assert.Equal(t, "http://localhost:9999", cfg.X.APIBaseURL)
	assert.Equal(t, "42", cfg.X.UserID)
	assert.Equal(t, 5*time.Second, cfg.X.Timeout)
	assert.Equal(t, filepath.Join("/data/vault", "assets"), cfg.MediaDir())
	assert.Equal(t, 20, cfg.Sync.PageSize)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Sync.MinRateLimitWait)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, int64(1048576), cfg.Media.MaxBytes)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Media.MaxAttempts)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("sync: [unterminated"), 0644))

	err := DefaultConfig().LoadFromFile(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *Config) {}},
		{name: "page size too large", mutate: func(c *Config) { c.Sync.PageSize = 101 }, wantErr: "page size"},
		{name: "concurrency below pool floor", mutate: func(c *Config) { c.Sync.Concurrency = 2 }, wantErr: "concurrency"},
		{name: "concurrency above pool ceiling", mutate: func(c *Config) { c.Sync.Concurrency = 9 }, wantErr: "concurrency"},
		{name: "unknown backend", mutate: func(c *Config) { c.Manifest.Backend = "redis" }, wantErr: "manifest backend"},
		{name: "nested media dir", mutate: func(c *Config) { c.Archive.MediaDirName = "a/b" }, wantErr: "media directory"},
		{name: "zero retry attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: "retry max attempts"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "log level"},
		{name: "missing archive root", mutate: func(c *Config) { c.Archive.RootDir = "" }, wantErr: "archive root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"archive-dir":   "/flags/vault",
		"page-size":     10,
		"max-pages":     3,
		"concurrency":   5,
		"resume":        true,
		"sync-interval": time.Hour,
		"log-level":     "error",
		"addr":          "",
	})

	assert.Equal(t, "/flags/vault", cfg.Archive.RootDir)
	assert.Equal(t, 10, cfg.Sync.PageSize)
	assert.Equal(t, 3, cfg.Sync.MaxPages)
	assert.Equal(t, 5, cfg.Sync.Concurrency)
	assert.True(t, cfg.Sync.Resume)
	assert.Equal(t, time.Hour, cfg.Server.SyncInterval)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.ListenAddr, "empty flag must not override")
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Archive.RootDir = "/saved/vault"
	cfg.Sync.MaxPages = 7
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/saved/vault", loaded.Archive.RootDir)
	assert.Equal(t, 7, loaded.Sync.MaxPages)
}
