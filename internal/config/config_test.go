package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 10.0, cfg.Limits.VotesPerSecond)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  addr: ":9090"
  read_timeout: 5s
database:
  dsn: "postgres://localhost/rankforum?sslmode=disable"
  enabled: true
redis:
  addr: "redis:6379"
  ttl: 45s
  enabled: true
limits:
  votes_per_second: 2.5
  vote_burst: 5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 45*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 2.5, cfg.Limits.VotesPerSecond)
	assert.Equal(t, 5, cfg.Limits.VoteBurst)
	// untouched keys keep defaults
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("RANKFORUM_ADDR", ":7070")
	t.Setenv("PG_DSN", "postgres://db/rf")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "postgres://db/rf", cfg.Database.DSN)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestValidateRejectsBadLimits(t *testing.T) {
	cfg := Default()
	cfg.Limits.VotesPerSecond = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "votes_per_second")
}

func TestValidateRequiresDSNWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Database.Enabled = true
	cfg.Database.DSN = ""

	require.Error(t, cfg.Validate())
}
