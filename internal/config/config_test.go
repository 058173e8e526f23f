package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 2*24*time.Hour, cfg.Auth.IdleTimeout)
	assert.Equal(t, "breaking-news", cfg.BreakingNews.CategorySlug)
	assert.Equal(t, "local", cfg.Storage.Driver)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  listen_addr: ":9000"
database:
  driver: sqlite
  dsn: file.db
auth:
  idle_timeout: 1h
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("NEWSDESK_DATABASE_DSN", "env.db")
	t.Setenv("NEWSDESK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "env.db", cfg.Database.DSN)
	assert.Equal(t, time.Hour, cfg.Auth.IdleTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("NEWSDESK_DATABASE_DRIVER", "oracle")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
