package session

import (
	"context"
	"fmt"
	"strings"
)

// Handler produces the view data of one page for a snapshot.
type Handler func(ctx context.Context, snap Snapshot) (any, error)

// ViewKind tells the renderer what to draw for a resolved page.
type ViewKind string

const (
	ViewPage          ViewKind = "page"
	ViewLoginRequired ViewKind = "login_required"
)

// LoginRequiredMessage is shown in place of a protected page while logged out.
const LoginRequiredMessage = "Please login to access this page."

// View is the outcome of resolving a snapshot: the page the session is on,
// what to draw for it, and the page's data when it is drawn.
type View struct {
	Page PageID
	Kind ViewKind
	Data any
}

// Router maps every PageID to its Handler. Construction fails unless the
// mapping is total, so Resolve never meets an unmapped page.
type Router struct {
	handlers [pageCount]Handler
}

// NewRouter builds a Router from handlers, which must cover every page.
func NewRouter(handlers map[PageID]Handler) (*Router, error) {
	r := &Router{}
	var missing []string
	for _, p := range AllPages() {
		h, ok := handlers[p]
		if !ok || h == nil {
			missing = append(missing, p.Slug())
			continue
		}
		r.handlers[p] = h
	}
	for p := range handlers {
		if !p.Valid() {
			return nil, fmt.Errorf("handler for undeclared page %d", int(p))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("no handler for pages: %s", strings.Join(missing, ", "))
	}
	return r, nil
}

// Resolve decides what to draw for snap. A protected page while logged out
// keeps its PageID but resolves to the login-required view; its handler is
// not called.
func (r *Router) Resolve(ctx context.Context, snap Snapshot) (View, error) {
	if !snap.Page.Valid() {
		return View{}, fmt.Errorf("invalid page %d", int(snap.Page))
	}
	if snap.Page.Protected() && !snap.LoggedIn {
		return View{Page: snap.Page, Kind: ViewLoginRequired}, nil
	}

	data, err := r.handlers[snap.Page](ctx, snap)
	if err != nil {
		return View{}, fmt.Errorf("render %s: %w", snap.Page.Slug(), err)
	}
	return View{Page: snap.Page, Kind: ViewPage, Data: data}, nil
}
