package session

import "sync"

// Snapshot is a consistent copy of a State.
type Snapshot struct {
	LoggedIn bool   `json:"logged_in"`
	UserID   string `json:"user_id,omitempty"`
	Page     PageID `json:"page"`
	DarkMode bool   `json:"dark_mode"`
}

// State is the mutable per-client record. The zero value is not usable; use
// NewState. All methods are safe for concurrent use.
//
// When LoggedIn is true, UserID names the account that logged in. Whether that
// account still exists is checked by the caller on each request.
type State struct {
	mu       sync.Mutex
	loggedIn bool
	userID   string
	page     PageID
	darkMode bool
}

// NewState returns a logged-out state on the home page.
func NewState() *State {
	return &State{page: PageHome}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{LoggedIn: s.loggedIn, UserID: s.userID, Page: s.page, DarkMode: s.darkMode}
}

// Navigate moves to p unconditionally. Whether a protected page may render
// is decided by the Router, not here.
func (s *State) Navigate(p PageID) {
	s.mu.Lock()
	s.page = p
	s.mu.Unlock()
}

// Login records a successful authentication and moves to landing.
func (s *State) Login(userID string, landing PageID) {
	s.mu.Lock()
	s.loggedIn = true
	s.userID = userID
	s.page = landing
	s.mu.Unlock()
}

// Logout resets the state in place to the shape NewState returns.
func (s *State) Logout() {
	s.mu.Lock()
	s.loggedIn = false
	s.userID = ""
	s.page = PageHome
	s.darkMode = false
	s.mu.Unlock()
}

func (s *State) SetDarkMode(on bool) {
	s.mu.Lock()
	s.darkMode = on
	s.mu.Unlock()
}
