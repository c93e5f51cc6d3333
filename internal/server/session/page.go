// Package session models one client's interactive state: whether it is logged
// in, as whom, which page it is on and its theme, plus the router that maps
// the current page to what should be rendered.
package session

import (
	"fmt"
	"strings"
)

// PageID names a navigation target.
type PageID int

const (
	PageHome PageID = iota
	PageLogin
	PageRegister
	PageDashboard
	PageProfile
	PageSettings
	PageJournal
	PageMedications
	PageAppointments
	PageCommunity
	PageAnalytics
	PageFitness
	PageAIAssistant
	PageUploadImage

	pageCount
)

var slugs = [pageCount]string{
	PageHome:         "home",
	PageLogin:        "login",
	PageRegister:     "register",
	PageDashboard:    "dashboard",
	PageProfile:      "profile",
	PageSettings:     "settings",
	PageJournal:      "journal",
	PageMedications:  "medications",
	PageAppointments: "appointments",
	PageCommunity:    "community",
	PageAnalytics:    "analytics",
	PageFitness:      "fitness",
	PageAIAssistant:  "ai_assistant",
	PageUploadImage:  "upload_image",
}

// aliases are older page names still accepted on navigation.
var aliases = map[string]PageID{
	"index":          PageHome,
	"create_account": PageRegister,
	"health_journal": PageJournal,
	"upload":         PageUploadImage,
	"assistant":      PageAIAssistant,
}

// AllPages lists every page in declaration order.
func AllPages() []PageID {
	out := make([]PageID, 0, pageCount)
	for p := PageID(0); p < pageCount; p++ {
		out = append(out, p)
	}
	return out
}

// ParsePage resolves a slug or legacy alias, case-insensitively.
func ParsePage(s string) (PageID, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	for p, slug := range slugs {
		if slug == key {
			return PageID(p), nil
		}
	}
	if p, ok := aliases[key]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown page %q", s)
}

// Valid reports whether p is a declared page.
func (p PageID) Valid() bool { return p >= 0 && p < pageCount }

// Slug is the stable external name of p.
func (p PageID) Slug() string {
	if !p.Valid() {
		return fmt.Sprintf("page(%d)", int(p))
	}
	return slugs[p]
}

func (p PageID) String() string { return p.Slug() }

// Protected reports whether p needs a logged-in session to render.
func (p PageID) Protected() bool {
	switch p {
	case PageHome, PageLogin, PageRegister:
		return false
	default:
		return true
	}
}

func (p PageID) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid page %d", int(p))
	}
	return []byte(p.Slug()), nil
}

func (p *PageID) UnmarshalText(b []byte) error {
	v, err := ParsePage(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
