// Package server wires the MediSoft components together and runs them until
// the process is told to stop.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/config"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medisoft/internal/server/services"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
	"github.com/dmitrijs2005/medisoft/internal/server/uploads"
	"github.com/dmitrijs2005/medisoft/internal/server/web"
)

// logOutput receives the application log.
var logOutput io.Writer = os.Stdout

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	sessions *session.Manager
	web      *web.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel, logOutput)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	repos, err := repomanager.New(ctx, repomanager.Options{
		Driver:      c.StoreDriver,
		UsersFile:   c.UsersFile,
		DatabaseDSN: c.DatabaseDSN,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	auth := services.NewAuthService(repos.Users(),
		services.WithKDFParams(c.KDFParams()),
		services.WithLogger(logger),
	)

	sessions := session.NewManager(c.SessionTTL, logger)

	up, err := newUploader(ctx, c, logger)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	landing, err := session.ParsePage(c.LandingPage)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("landing page: %w", err)
	}

	srv, err := web.NewServer(web.Options{
		CookieName:         c.CookieName,
		CookieSecure:       c.CookieSecure,
		Secret:             []byte(c.SessionSecret),
		SessionTTL:         c.SessionTTL,
		Landing:            landing,
		LoginRatePerMinute: c.LoginRatePerMinute,
		LoginBurst:         c.LoginBurst,
	}, auth, sessions, up, logger)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("web init error: %w", err)
	}

	return &App{config: c, logger: logger, repos: repos, sessions: sessions, web: srv}, nil
}

func newUploader(ctx context.Context, c *config.Config, logger logging.Logger) (*uploads.Service, error) {
	var store uploads.ImageStore
	switch c.UploadBackend {
	case config.UploadS3:
		s, err := uploads.NewS3Store(ctx, uploads.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		store = s
	default:
		s, err := uploads.NewFSStore(c.UploadDir)
		if err != nil {
			return nil, fmt.Errorf("upload dir init error: %w", err)
		}
		store = s
	}

	classifier, err := uploads.LoadPlaceholderClassifier(c.ModelFile)
	if err != nil {
		logger.Warn(ctx, "image model not loaded", "path", c.ModelFile, "error", err)
	}

	return uploads.NewService(store, classifier, c.MaxUploadBytes, c.ClassifyTimeout, logger), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or one of the components fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.ListenAddr, "store", app.config.StoreDriver)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.web.Run(ctx, app.config.ListenAddr); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sessions.Run(ctx, app.config.SessionSweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.repos.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
