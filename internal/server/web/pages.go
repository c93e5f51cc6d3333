package web

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
)

type pageInfo struct {
	Title  string   `json:"title"`
	Text   string   `json:"text,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

type metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Delta string `json:"delta"`
}

type dashboardPage struct {
	pageInfo
	Greeting string   `json:"greeting"`
	Metrics  []metric `json:"metrics"`
}

type profilePage struct {
	pageInfo
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     string        `json:"email"`
	Mobile    string        `json:"mobile"`
	Gender    models.Gender `json:"gender"`
}

type settingsPage struct {
	pageInfo
	DarkMode bool `json:"dark_mode"`
}

var loginPrompts = map[session.PageID]string{
	session.PageDashboard:    "Please login to view your dashboard.",
	session.PageProfile:      "Please login to view your profile.",
	session.PageSettings:     "Please login to access settings.",
	session.PageJournal:      "Please login to use the health journal.",
	session.PageMedications:  "Please login to track medications.",
	session.PageAppointments: "Please login to manage appointments.",
	session.PageCommunity:    "Please login to join the community.",
	session.PageAnalytics:    "Please login to view analytics.",
	session.PageFitness:      "Please login to view fitness data.",
	session.PageAIAssistant:  "Please login to use the AI assistant.",
	session.PageUploadImage:  "Please login to upload images.",
}

func loginPrompt(p session.PageID) string {
	if msg, ok := loginPrompts[p]; ok {
		return msg
	}
	return session.LoginRequiredMessage
}

func static(info pageInfo) session.Handler {
	return func(context.Context, session.Snapshot) (any, error) { return info, nil }
}

func (s *Server) pageHandlers() map[session.PageID]session.Handler {
	return map[session.PageID]session.Handler{
		session.PageHome: static(pageInfo{
			Title: "Welcome to MediSoft",
			Text:  "Please login or create an account to get started.",
		}),
		session.PageLogin: static(pageInfo{Title: "Login", Fields: []string{"user_id", "password"}}),
		session.PageRegister: static(pageInfo{
			Title:  "Create Account",
			Fields: []string{"first_name", "last_name", "user_id", "email", "password", "confirm_password", "mobile", "gender"},
		}),
		session.PageDashboard: s.dashboardPage,
		session.PageProfile:   s.profilePage,
		session.PageSettings:  s.settingsPage,
		session.PageJournal: static(pageInfo{
			Title: "Health Journal", Text: "Log your daily activities here.", Fields: []string{"activity"},
		}),
		session.PageMedications: static(pageInfo{
			Title: "Medications", Text: "Log and track your medications here.", Fields: []string{"name", "dosage", "time"},
		}),
		session.PageAppointments: static(pageInfo{
			Title: "Appointments", Text: "Schedule and manage your doctor appointments.", Fields: []string{"doctor", "date", "time"},
		}),
		session.PageCommunity: static(pageInfo{
			Title: "Community", Text: "Share your health tips and achievements!", Fields: []string{"post"},
		}),
		session.PageAnalytics: static(pageInfo{
			Title: "Analytics", Text: "View advanced health analytics and predictive trends.",
		}),
		session.PageFitness: static(pageInfo{
			Title: "Fitness", Text: "Sync your fitness tracker and view your progress.",
		}),
		session.PageAIAssistant: static(pageInfo{
			Title: "AI Health Assistant", Text: "Ask me anything about your health!", Fields: []string{"question"},
		}),
		session.PageUploadImage: static(pageInfo{
			Title: "Upload Image for Disease Prediction", Text: "Choose a jpg, jpeg or png image.", Fields: []string{"file"},
		}),
	}
}

func (s *Server) dashboardPage(ctx context.Context, snap session.Snapshot) (any, error) {
	u, err := s.auth.GetUser(ctx, snap.UserID)
	if err != nil {
		return nil, err
	}
	return dashboardPage{
		pageInfo: pageInfo{Title: "Dashboard"},
		Greeting: fmt.Sprintf("Welcome back, %s! Let's make today healthier!", u.FullName()),
		Metrics:  liveMetrics(),
	}, nil
}

// liveMetrics are placeholder readings until a tracker is connected.
func liveMetrics() []metric {
	return []metric{
		{Name: "Heart Rate", Value: fmt.Sprintf("%d bpm", 60+rand.IntN(21)), Delta: []string{"-2%", "+1%", "0%"}[rand.IntN(3)] + " from last hour"},
		{Name: "Blood Pressure", Value: fmt.Sprintf("%d/%d mmHg", 110+rand.IntN(21), 70+rand.IntN(16)), Delta: "Stable"},
		{Name: "Steps", Value: fmt.Sprintf("%d", rand.IntN(1001)), Delta: fmt.Sprintf("%d%% to goal", rand.IntN(101))},
	}
}

func (s *Server) profilePage(ctx context.Context, snap session.Snapshot) (any, error) {
	u, err := s.auth.GetUser(ctx, snap.UserID)
	if err != nil {
		return nil, err
	}
	return profilePage{
		pageInfo:  pageInfo{Title: "Profile", Fields: []string{"first_name", "last_name", "email", "mobile"}},
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Mobile:    u.Mobile,
		Gender:    u.Gender,
	}, nil
}

func (s *Server) settingsPage(_ context.Context, snap session.Snapshot) (any, error) {
	return settingsPage{
		pageInfo: pageInfo{Title: "Settings", Fields: []string{"old_password", "new_password", "confirm_new_password", "dark_mode"}},
		DarkMode: snap.DarkMode,
	}, nil
}
