package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type contextKey string

const (
	contextSessionKey contextKey = "session"
)

type requestSession struct {
	id    string
	state *session.State
}

func sessionFromContext(ctx context.Context) (requestSession, bool) {
	s, ok := ctx.Value(contextSessionKey).(requestSession)
	return s, ok
}

// sessionMiddleware attaches the caller's session to the request context.
// A missing, invalid or expired cookie starts a fresh session and sets a new
// cookie. A logged-in session whose account no longer exists is logged out.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var (
			id    string
			state *session.State
			ok    bool
		)
		if c, err := r.Cookie(s.opts.CookieName); err == nil {
			if sid, err := session.ParseToken(c.Value, s.opts.Secret); err == nil {
				id = sid
				state, ok = s.sessions.Get(sid)
			}
		}
		if !ok {
			id, state = s.sessions.Create()
			s.logger.Debug(ctx, "session created", "session_id", id)
		}

		if err := s.setSessionCookie(w, id); err != nil {
			s.logger.Error(ctx, "sign session cookie", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if snap := state.Snapshot(); snap.LoggedIn {
			if _, err := s.auth.GetUser(ctx, snap.UserID); errors.Is(err, common.ErrorNotFound) {
				s.logger.Warn(ctx, "session user vanished, logging out", "session_id", id, "user_id", snap.UserID)
				state.Logout()
			}
		}

		ctx = context.WithValue(ctx, contextSessionKey, requestSession{id: id, state: state})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rotateSession replaces the caller's session with a fresh id so an id known
// before login is useless afterwards. Only the theme carries over.
func (s *Server) rotateSession(w http.ResponseWriter, r *http.Request) (*http.Request, error) {
	old := currentSession(r)
	id, state := s.sessions.Create()
	state.SetDarkMode(old.state.Snapshot().DarkMode)

	w.Header().Del("Set-Cookie")
	if err := s.setSessionCookie(w, id); err != nil {
		s.sessions.Delete(id)
		return r, err
	}
	s.sessions.Delete(old.id)

	ctx := context.WithValue(r.Context(), contextSessionKey, requestSession{id: id, state: state})
	return r.WithContext(ctx), nil
}

// setSessionCookie refreshes the cookie so its expiry follows the idle TTL.
func (s *Server) setSessionCookie(w http.ResponseWriter, id string) error {
	token, err := session.IssueToken(id, s.opts.Secret, s.opts.SessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.opts.SessionTTL / time.Second),
	})
	return nil
}

// requestLogger logs one line per request through the server logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// rateLimit rejects requests from a client address that exceeded its budget.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientKey(r)) {
			s.logger.Warn(r.Context(), "rate limited", "path", r.URL.Path, "client", clientKey(r))
			s.respond(w, r, errRateLimited, "", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
