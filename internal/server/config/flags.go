package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/medisoft/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string            HTTP bind address (e.g. ":8080")
//	-store string        user store driver: file | postgres
//	-f string            users file for the file store
//	-d string            PostgreSQL DSN for the postgres store
//	-s string            session signing secret
//	-session-ttl dur     idle session lifetime (e.g. "30m")
//	-landing string      page shown after login
//	-upload-backend str  fs | s3
//	-upload-dir string   directory for the fs upload backend
//	-model string        classifier model file
//	-u, -p, -b, -g, -e   S3 user, password, bucket, region, base endpoint
//	-log-backend string  slog | zap
//	-log-level string    debug | info | warn | error
//
// args are filtered with flagx.FilterArgs first so flags owned by other
// loaders (-c, -env-file) do not make parsing fail.
func parseFlags(config *Config, args []string) error {
	names := []string{
		"a", "store", "f", "d", "s", "session-ttl", "landing",
		"upload-backend", "upload-dir", "model",
		"u", "p", "b", "g", "e",
		"log-backend", "log-level",
	}
	allowed := make([]string, 0, len(names)*2)
	for _, n := range names {
		allowed = append(allowed, "-"+n, "--"+n)
	}

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.StoreDriver, "store", config.StoreDriver, "user store driver (file|postgres)")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "users file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SessionSecret, "s", config.SessionSecret, "session secret")
	fs.DurationVar(&config.SessionTTL, "session-ttl", config.SessionTTL, "idle session lifetime")
	fs.StringVar(&config.LandingPage, "landing", config.LandingPage, "page shown after login")
	fs.StringVar(&config.UploadBackend, "upload-backend", config.UploadBackend, "upload backend (fs|s3)")
	fs.StringVar(&config.UploadDir, "upload-dir", config.UploadDir, "upload directory")
	fs.StringVar(&config.ModelFile, "model", config.ModelFile, "classifier model file")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, allowed))
}
