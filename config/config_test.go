package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: ":9090"
redis:
  addr: "redis:6379"
  db: 2
match:
  defaultTimeout: 15s
  maxTimeout: 1m
  eventGrace: 500ms
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	require.NoError(t, Load(path))
	assert.Equal(t, ":9090", C.Server.Port)
	assert.Equal(t, "redis:6379", C.Redis.Addr)
	assert.Equal(t, 2, C.Redis.DB)
	assert.Equal(t, 15*time.Second, C.Match.DefaultTimeout)
	assert.Equal(t, time.Minute, C.Match.MaxTimeout)
	assert.Equal(t, 500*time.Millisecond, C.Match.EventGrace)
	// untouched keys fall back to defaults
	assert.Equal(t, 5*time.Minute, C.Match.EntryTTL)
	assert.Equal(t, 10*time.Minute, C.Cache.TTL)
	assert.Equal(t, "debug", C.Log.Level)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	require.NoError(t, Load(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, ":8080", C.Server.Port)
	assert.Equal(t, "localhost:6379", C.Redis.Addr)
	assert.Equal(t, 30*time.Second, C.Match.DefaultTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PEERMATCH_REDIS_ADDR", "10.0.0.5:6380")
	t.Setenv("PEERMATCH_DATABASE_DSN", "postgres://x")

	require.NoError(t, Load(""))
	assert.Equal(t, "10.0.0.5:6380", C.Redis.Addr)
	assert.Equal(t, "postgres://x", C.Database.DSN)
}

func TestValidate(t *testing.T) {
	var c Config
	c.Redis.Addr = "localhost:6379"
	c.Match.DefaultTimeout = time.Minute
	c.Match.MaxTimeout = time.Second
	assert.Error(t, c.Validate())

	c.Match.MaxTimeout = 2 * time.Minute
	assert.NoError(t, c.Validate())

	c.Redis.Addr = ""
	assert.Error(t, c.Validate())
}

func TestValidate_EntryTTLCoversMaxTimeout(t *testing.T) {
	var c Config
	c.Redis.Addr = "localhost:6379"
	c.Match.DefaultTimeout = 30 * time.Second
	c.Match.MaxTimeout = 2 * time.Minute

	c.Match.EntryTTL = time.Minute
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entryTTL")

	c.Match.EntryTTL = 2 * time.Minute
	assert.NoError(t, c.Validate())

	// zero disables expiry
	c.Match.EntryTTL = 0
	assert.NoError(t, c.Validate())
}

func TestLoad_RejectsShortEntryTTL(t *testing.T) {
	t.Setenv("PEERMATCH_MATCH_ENTRYTTL", "10s")
	assert.Error(t, Load(""))
}
