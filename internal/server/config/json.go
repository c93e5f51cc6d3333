package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/flagx"
	"github.com/dmitrijs2005/medisoft/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Every field is
// optional; absent fields leave the current value untouched. Durations accept
// "15m" style strings or integer nanoseconds.
type JsonConfig struct {
	ListenAddr           *string         `json:"listen_addr"`
	StoreDriver          *string         `json:"store_driver"`
	UsersFile            *string         `json:"users_file"`
	DatabaseDSN          *string         `json:"database_dsn"`
	SessionSecret        *string         `json:"session_secret"`
	SessionTTL           *timex.Duration `json:"session_ttl"`
	SessionSweepInterval *timex.Duration `json:"session_sweep_interval"`
	CookieName           *string         `json:"cookie_name"`
	CookieSecure         *bool           `json:"cookie_secure"`
	LandingPage          *string         `json:"landing_page"`
	LoginRatePerMinute   *int            `json:"login_rate_per_minute"`
	LoginBurst           *int            `json:"login_burst"`
	UploadBackend        *string         `json:"upload_backend"`
	UploadDir            *string         `json:"upload_dir"`
	MaxUploadBytes       *int64          `json:"max_upload_bytes"`
	S3RootUser           *string         `json:"s3_root_user"`
	S3RootPassword       *string         `json:"s3_root_password"`
	S3Bucket             *string         `json:"s3_bucket"`
	S3Region             *string         `json:"s3_region"`
	S3BaseEndpoint       *string         `json:"s3_base_endpoint"`
	ModelFile            *string         `json:"model_file"`
	ClassifyTimeout      *timex.Duration `json:"classify_timeout"`
	KDFTime              *uint           `json:"kdf_time"`
	KDFMemoryKiB         *uint           `json:"kdf_memory_kib"`
	KDFThreads           *uint           `json:"kdf_threads"`
	LogBackend           *string         `json:"log_backend"`
	LogLevel             *string         `json:"log_level"`
}

// parseJson overlays the file named by -c / -config onto config.
// Without the flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.JsonConfigFlags(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.StoreDriver, c.StoreDriver)
	setString(&config.UsersFile, c.UsersFile)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SessionSecret, c.SessionSecret)
	setDuration(&config.SessionTTL, c.SessionTTL)
	setDuration(&config.SessionSweepInterval, c.SessionSweepInterval)
	setString(&config.CookieName, c.CookieName)
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	setString(&config.LandingPage, c.LandingPage)
	if c.LoginRatePerMinute != nil {
		config.LoginRatePerMinute = *c.LoginRatePerMinute
	}
	if c.LoginBurst != nil {
		config.LoginBurst = *c.LoginBurst
	}
	setString(&config.UploadBackend, c.UploadBackend)
	setString(&config.UploadDir, c.UploadDir)
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.ModelFile, c.ModelFile)
	setDuration(&config.ClassifyTimeout, c.ClassifyTimeout)
	if c.KDFTime != nil {
		config.KDFTime = *c.KDFTime
	}
	if c.KDFMemoryKiB != nil {
		config.KDFMemoryKiB = *c.KDFMemoryKiB
	}
	if c.KDFThreads != nil {
		config.KDFThreads = *c.KDFThreads
	}
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
