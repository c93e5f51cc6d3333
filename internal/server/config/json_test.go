package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	dir := t.TempDir()
	path := writeTempJSON(t, dir, "flag.json", map[string]any{
		"listen_addr":            "www.example:9000",
		"store_driver":           "postgres",
		"database_dsn":           "medisoft.db",
		"session_secret":         "my_secret_key",
		"session_ttl":            "10m",
		"session_sweep_interval": 2000000000,
		"cookie_secure":          true,
		"login_burst":            3,
		"max_upload_bytes":       1024,
		"s3_bucket":              "bucket",
		"classify_timeout":       "750ms",
		"kdf_threads":            2,
		"log_backend":            "zap",
	})

	t.Run("loads from json", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-config", path}))

		assert.Equal(t, "www.example:9000", cfg.ListenAddr)
		assert.Equal(t, StorePostgres, cfg.StoreDriver)
		assert.Equal(t, "medisoft.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SessionSecret)
		assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 2*time.Second, cfg.SessionSweepInterval)
		assert.True(t, cfg.CookieSecure)
		assert.Equal(t, 3, cfg.LoginBurst)
		assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, 750*time.Millisecond, cfg.ClassifyTimeout)
		assert.Equal(t, uint(2), cfg.KDFThreads)
		assert.Equal(t, "zap", cfg.LogBackend)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg, []string{"-c", path}))

		assert.Equal(t, "users.json", cfg.UsersFile)
		assert.Equal(t, "dashboard", cfg.LandingPage)
		assert.Equal(t, "us-east-1", cfg.S3Region)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		cfg := &Config{ListenAddr: "defaults:1234", SessionTTL: 2 * time.Minute}
		require.NoError(t, parseJson(cfg, []string{"-a", ":1"}))

		assert.Equal(t, "defaults:1234", cfg.ListenAddr)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
	})

	t.Run("invalid JSON → error", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		assert.Error(t, parseJson(&Config{}, []string{"-config", bad}))
	})

	t.Run("missing file → error", func(t *testing.T) {
		assert.Error(t, parseJson(&Config{}, []string{"-c", filepath.Join(dir, "nope.json")}))
	})
}
