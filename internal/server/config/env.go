package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/flagx"
	"github.com/joho/godotenv"
)

const envPrefix = "MEDISOFT_"

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file (the one named by -env-file, or ./.env when
// present) and then overlays MEDISOFT_* variables onto config. Variables that
// are already set in the process environment win over the dotenv file.
func parseEnv(config *Config, args []string) error {
	if err := loadDotenv(flagx.EnvFileFlag(args)); err != nil {
		return err
	}

	for _, b := range envBindings(config) {
		raw, ok := os.LookupEnv(envPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(raw); err != nil {
			return fmt.Errorf("env %s%s: %w", envPrefix, b.name, err)
		}
	}
	return nil
}

func loadDotenv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}

	if _, err := os.Stat(defaultEnvFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(defaultEnvFile)
}

type envBinding struct {
	name string
	set  func(string) error
}

func envBindings(c *Config) []envBinding {
	return []envBinding{
		{"LISTEN_ADDR", stringSetter(&c.ListenAddr)},
		{"STORE_DRIVER", stringSetter(&c.StoreDriver)},
		{"USERS_FILE", stringSetter(&c.UsersFile)},
		{"DATABASE_DSN", stringSetter(&c.DatabaseDSN)},
		{"SESSION_SECRET", stringSetter(&c.SessionSecret)},
		{"SESSION_TTL", durationSetter(&c.SessionTTL)},
		{"SESSION_SWEEP_INTERVAL", durationSetter(&c.SessionSweepInterval)},
		{"COOKIE_NAME", stringSetter(&c.CookieName)},
		{"COOKIE_SECURE", boolSetter(&c.CookieSecure)},
		{"LANDING_PAGE", stringSetter(&c.LandingPage)},
		{"LOGIN_RATE_PER_MINUTE", intSetter(&c.LoginRatePerMinute)},
		{"LOGIN_BURST", intSetter(&c.LoginBurst)},
		{"UPLOAD_BACKEND", stringSetter(&c.UploadBackend)},
		{"UPLOAD_DIR", stringSetter(&c.UploadDir)},
		{"MAX_UPLOAD_BYTES", int64Setter(&c.MaxUploadBytes)},
		{"S3_ROOT_USER", stringSetter(&c.S3RootUser)},
		{"S3_ROOT_PASSWORD", stringSetter(&c.S3RootPassword)},
		{"S3_BUCKET", stringSetter(&c.S3Bucket)},
		{"S3_REGION", stringSetter(&c.S3Region)},
		{"S3_BASE_ENDPOINT", stringSetter(&c.S3BaseEndpoint)},
		{"MODEL_FILE", stringSetter(&c.ModelFile)},
		{"CLASSIFY_TIMEOUT", durationSetter(&c.ClassifyTimeout)},
		{"KDF_TIME", uintSetter(&c.KDFTime)},
		{"KDF_MEMORY_KIB", uintSetter(&c.KDFMemoryKiB)},
		{"KDF_THREADS", uintSetter(&c.KDFThreads)},
		{"LOG_BACKEND", stringSetter(&c.LogBackend)},
		{"LOG_LEVEL", stringSetter(&c.LogLevel)},
	}
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func int64Setter(dst *int64) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func uintSetter(dst *uint) func(string) error {
	return func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return err
		}
		*dst = uint(n)
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
