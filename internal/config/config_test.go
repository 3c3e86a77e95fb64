package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigToml = `
[development]
port = 9000
log_level = "trace"
log_to_stdout = true
seed_defaults = true
session_ttl = "2h"

[production]
host = "0.0.0.0"
port = 8080
log_level = "info"
logs_path = "/var/log/rolegate/service"
accounts_backend = "postgres"
postgres_host = "localhost"
postgres_port = "5432"
postgres_db_name = "rolegate"
sessions_backend = "redis"
redis_host = "localhost"
redis_port = "6379"
session_cache_enabled = true
signed_cookies = true
login_rate_limit_allowed_per_min = 5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Development(t *testing.T) {
	path := writeConfig(t, testConfigToml)

	cfg, err := Load("dev", path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.True(t, cfg.SeedDefaults)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL.Duration)
	assert.Equal(t, "memory", cfg.AccountsBackend)
	assert.Equal(t, "memory", cfg.SessionsBackend)
	assert.Equal(t, 15, cfg.LoginRateLimitAllowedPerMin)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_Production(t *testing.T) {
	path := writeConfig(t, testConfigToml)

	cfg, err := Load("production", path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "postgres", cfg.AccountsBackend)
	assert.Equal(t, "redis", cfg.SessionsBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL.Duration)
	assert.True(t, cfg.SessionCacheEnabled)
	assert.True(t, cfg.SignedCookies)
	assert.Equal(t, 5, cfg.LoginRateLimitAllowedPerMin)
	assert.True(t, cfg.RedisEnabled())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("dev", filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	path := writeConfig(t, testConfigToml)
	_, err = Load("staging", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")

	path = writeConfig(t, "[development]\nport = 1\n")
	_, err = Load("prod", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	path = writeConfig(t, "[development]\nsessions_backend = \"redis\"\n")
	_, err = Load("dev", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis_host")

	path = writeConfig(t, "[development]\naccounts_backend = \"mongo\"\n")
	_, err = Load("dev", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown accounts backend")

	path = writeConfig(t, "[development]\nsession_ttl = \"forever\"\n")
	_, err = Load("dev", path)
	require.Error(t, err)
}
