// Package web is the HTTP front end of the session core. Every request is
// bound to a session by a signed cookie; every response is a JSON view model
// telling the renderer which page to draw and with what data.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
	"github.com/dmitrijs2005/medisoft/internal/server/uploads"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Accounts is the account surface the front end needs.
type Accounts interface {
	CreateAccount(ctx context.Context, acc models.NewAccount) (models.User, error)
	Authenticate(ctx context.Context, id, password string) (models.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
}

// Uploader stores and classifies images.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (uploads.Result, error)
	MaxBytes() int64
}

// Options configures a Server.
type Options struct {
	CookieName         string
	CookieSecure       bool
	Secret             []byte
	SessionTTL         time.Duration
	Landing            session.PageID
	LoginRatePerMinute int
	LoginBurst         int
}

type Server struct {
	opts     Options
	auth     Accounts
	sessions *session.Manager
	uploads  Uploader
	router   *session.Router
	limiter  *clientLimiter
	logger   logging.Logger
}

func NewServer(opts Options, auth Accounts, sessions *session.Manager, up Uploader, logger logging.Logger) (*Server, error) {
	if len(opts.Secret) == 0 {
		return nil, errors.New("session secret is empty")
	}
	if !opts.Landing.Valid() {
		return nil, fmt.Errorf("invalid landing page %d", int(opts.Landing))
	}

	s := &Server{
		opts:     opts,
		auth:     auth,
		sessions: sessions,
		uploads:  up,
		limiter:  newClientLimiter(opts.LoginRatePerMinute, opts.LoginBurst),
		logger:   logger.With("module", "web"),
	}

	router, err := session.NewRouter(s.pageHandlers())
	if err != nil {
		return nil, err
	}
	s.router = router

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/state", s.handleState)
		r.Post("/navigate", s.handleNavigate)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)
			r.Post("/login", s.handleLogin)
			r.Post("/register", s.handleRegister)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireLogin)
			r.Post("/profile", s.handleProfile)
			r.Post("/settings/password", s.handleChangePassword)
			r.Post("/settings/theme", s.handleTheme)
			r.Post("/journal", s.handleJournal)
			r.Post("/medications", s.handleMedication)
			r.Post("/appointments", s.handleAppointment)
			r.Post("/community", s.handleCommunity)
			r.Post("/assistant", s.handleAssistant)
			r.Post("/upload", s.handleUpload)
		})
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ticker.C:
			s.limiter.prune(10 * time.Minute)
		case <-ctx.Done():
			s.logger.Info(ctx, "shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			<-errCh
			return nil
		}
	}
}

// respond writes the view model for the caller's session after an action.
// err, when set, decides the status and the error text; message and result
// describe a successful action.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, err error, message string, result any) {
	ctx := r.Context()
	rs, ok := sessionFromContext(ctx)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, viewModel{Error: "no session"})
		return
	}
	snap := rs.state.Snapshot()

	vm := viewModel{
		Page:     snap.Page.Slug(),
		LoggedIn: snap.LoggedIn,
		UserID:   snap.UserID,
		DarkMode: snap.DarkMode,
		Message:  message,
		Result:   result,
	}

	status := http.StatusOK
	if err != nil {
		status, vm.Error = errorResponse(err)
		vm.Message = ""
		if status >= http.StatusInternalServerError {
			s.logger.Error(ctx, "request failed", "path", r.URL.Path, "error", err)
		}
	}

	if errors.Is(err, common.ErrorUnauthorized) {
		vm.View = session.ViewLoginRequired
		writeJSON(w, status, vm)
		return
	}

	view, rerr := s.router.Resolve(ctx, snap)
	if rerr != nil {
		if err == nil {
			status, vm.Error = errorResponse(rerr)
			s.logger.Error(ctx, "render failed", "page", snap.Page.Slug(), "error", rerr)
		}
		vm.View = session.ViewPage
		writeJSON(w, status, vm)
		return
	}

	vm.View = view.Kind
	vm.Data = view.Data
	if view.Kind == session.ViewLoginRequired && vm.Message == "" && vm.Error == "" {
		vm.Message = loginPrompt(snap.Page)
	}
	writeJSON(w, status, vm)
}
