package config

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.ListenAddr)
	assert.Equal(t, StoreFile, c.StoreDriver)
	assert.Equal(t, "users.json", c.UsersFile)
	assert.Equal(t, "secretKey", c.SessionSecret)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.Equal(t, "dashboard", c.LandingPage)
	assert.Equal(t, UploadFS, c.UploadBackend)
	assert.Equal(t, "static/uploads", c.UploadDir)
	assert.Equal(t, int64(16*1024*1024), c.MaxUploadBytes)
	assert.Equal(t, "model.json", c.ModelFile)
	assert.Equal(t, cryptox.DefaultParams, c.KDFParams())
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsWithoutSources(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"listen_addr":  ":7000",
		"users_file":   "from-json.json",
		"landing_page": "profile",
	})
	t.Setenv("MEDISOFT_USERS_FILE", "from-env.json")
	t.Setenv("MEDISOFT_LOG_LEVEL", "debug")

	c, err := LoadConfig([]string{"-c", path, "-f", "from-flag.json"})
	require.NoError(t, err)

	assert.Equal(t, ":7000", c.ListenAddr, "json over defaults")
	assert.Equal(t, "profile", c.LandingPage)
	assert.Equal(t, "debug", c.LogLevel, "env over defaults")
	assert.Equal(t, "from-flag.json", c.UsersFile, "flags over env over json")
}

func TestLoadConfig_InvalidResult(t *testing.T) {
	_, err := LoadConfig([]string{"-store", "mongo"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, ok: true},
		{name: "postgres store", mutate: func(c *Config) { c.StoreDriver = StorePostgres }, ok: true},
		{name: "s3 uploads", mutate: func(c *Config) { c.UploadBackend = UploadS3 }, ok: true},
		{name: "unknown store", mutate: func(c *Config) { c.StoreDriver = "redis" }},
		{name: "file store without path", mutate: func(c *Config) { c.UsersFile = "" }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreDriver = StorePostgres; c.DatabaseDSN = "" }},
		{name: "unknown upload backend", mutate: func(c *Config) { c.UploadBackend = "ftp" }},
		{name: "empty secret", mutate: func(c *Config) { c.SessionSecret = "" }},
		{name: "zero ttl", mutate: func(c *Config) { c.SessionTTL = 0 }},
		{name: "zero burst", mutate: func(c *Config) { c.LoginBurst = 0 }},
		{name: "zero upload size", mutate: func(c *Config) { c.MaxUploadBytes = 0 }},
		{name: "too many threads", mutate: func(c *Config) { c.KDFThreads = 300 }},
		{name: "memory above ceiling", mutate: func(c *Config) { c.KDFMemoryKiB = cryptox.MaxMemoryKiB + 1 }},
		{name: "memory wraps uint32", mutate: func(c *Config) {
			wrapped := uint64(1)<<32 + 1024
			c.KDFMemoryKiB = uint(wrapped)
		}},
		{name: "time wraps uint32", mutate: func(c *Config) {
			wrapped := uint64(1)<<32 + 1
			c.KDFTime = uint(wrapped)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}
