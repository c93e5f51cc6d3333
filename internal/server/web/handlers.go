package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/dmitrijs2005/medisoft/internal/server/services"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func currentSession(r *http.Request) requestSession {
	rs, _ := sessionFromContext(r.Context())
	return rs
}

// requireLogin rejects actions from logged-out sessions without touching
// their state.
func (s *Server) requireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentSession(r).state.Snapshot().LoggedIn {
			s.respond(w, r, common.ErrorUnauthorized, "", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// formValue returns the trimmed value of a required field.
func formValue(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.PostFormValue(name))
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", common.ErrValidation, name)
	}
	return v, nil
}

func parseForm(r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: malformed form", common.ErrValidation)
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, nil, "", nil)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	page, err := session.ParsePage(r.PostFormValue("page"))
	if err != nil {
		s.respond(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err), "", nil)
		return
	}

	currentSession(r).state.Navigate(page)
	s.respond(w, r, nil, "", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	id := strings.TrimSpace(r.PostFormValue("user_id"))
	password := r.PostFormValue("password")

	user, err := s.auth.Authenticate(r.Context(), id, password)
	if err != nil {
		s.logger.Info(r.Context(), "login failed", "user_id", id)
		s.respond(w, r, err, "", nil)
		return
	}

	r, err = s.rotateSession(w, r)
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	rs := currentSession(r)
	rs.state.Login(user.ID, s.opts.Landing)
	s.logger.Info(r.Context(), "login", "user_id", user.ID, "session_id", rs.id)
	s.respond(w, r, nil, "Login successful!", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}

	acc := models.NewAccount{
		ID:              r.PostFormValue("user_id"),
		FirstName:       r.PostFormValue("first_name"),
		LastName:        r.PostFormValue("last_name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Mobile:          r.PostFormValue("mobile"),
		Gender:          r.PostFormValue("gender"),
	}

	if _, err := s.auth.CreateAccount(r.Context(), acc); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}

	currentSession(r).state.Navigate(session.PageLogin)
	s.respond(w, r, nil, "Account created successfully! Please login.", nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	rs := currentSession(r)
	wasLoggedIn := rs.state.Snapshot().LoggedIn
	rs.state.Logout()

	if !wasLoggedIn {
		s.respond(w, r, nil, "", nil)
		return
	}
	s.logger.Info(r.Context(), "logout", "session_id", rs.id)
	s.respond(w, r, nil, "Logged out successfully!", nil)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}

	var upd models.ProfileUpdate
	optional := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}
	upd.FirstName = optional("first_name")
	upd.LastName = optional("last_name")
	upd.Email = optional("email")
	upd.Mobile = optional("mobile")
	if g := optional("gender"); g != nil {
		gender, err := models.ParseGender(*g)
		if err != nil {
			s.respond(w, r, fmt.Errorf("%w: %v", common.ErrValidation, err), "", nil)
			return
		}
		upd.Gender = &gender
	}

	snap := currentSession(r).state.Snapshot()
	if _, err := s.auth.UpdateProfile(r.Context(), snap.UserID, upd); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, "Profile updated successfully!", nil)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	oldPassword := r.PostFormValue("old_password")
	newPassword := r.PostFormValue("new_password")

	if err := services.CheckConfirmation(newPassword, r.PostFormValue("confirm_new_password")); err != nil {
		s.respond(w, r, withMessage(err, "New passwords do not match!"), "", nil)
		return
	}

	snap := currentSession(r).state.Snapshot()
	if err := s.auth.ChangePassword(r.Context(), snap.UserID, oldPassword, newPassword); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			err = withMessage(err, "Incorrect old password!")
		}
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, "Password changed successfully!", nil)
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	on, err := parseCheckbox(r.PostFormValue("dark_mode"))
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}

	currentSession(r).state.SetDarkMode(on)
	if on {
		s.respond(w, r, nil, "Enabled dark mode!", nil)
		return
	}
	s.respond(w, r, nil, "Disabled dark mode!", nil)
}

// parseCheckbox accepts the usual boolean spellings plus "on"/"off"; an
// absent value means unchecked.
func parseCheckbox(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "off":
		return false, nil
	case "on":
		return true, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: dark_mode must be a boolean", common.ErrValidation)
	}
	return b, nil
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	fields, err := requiredFields(r, "activity")
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, "Logged: "+fields[0], nil)
}

func (s *Server) handleMedication(w http.ResponseWriter, r *http.Request) {
	fields, err := requiredFields(r, "name", "dosage", "time")
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	at, err := time.Parse("15:04", fields[2])
	if err != nil {
		s.respond(w, r, fmt.Errorf("%w: time must be HH:MM", common.ErrValidation), "", nil)
		return
	}
	s.respond(w, r, nil, fmt.Sprintf("Added %s (%s) at %s", fields[0], fields[1], at.Format("15:04")), nil)
}

func (s *Server) handleAppointment(w http.ResponseWriter, r *http.Request) {
	fields, err := requiredFields(r, "doctor", "date", "time")
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	day, err := time.Parse("2006-01-02", fields[1])
	if err != nil {
		s.respond(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", common.ErrValidation), "", nil)
		return
	}
	at, err := time.Parse("15:04", fields[2])
	if err != nil {
		s.respond(w, r, fmt.Errorf("%w: time must be HH:MM", common.ErrValidation), "", nil)
		return
	}
	s.respond(w, r, nil, fmt.Sprintf("Appointment with %s scheduled on %s at %s",
		fields[0], day.Format("2006-01-02"), at.Format("15:04")), nil)
}

func (s *Server) handleCommunity(w http.ResponseWriter, r *http.Request) {
	fields, err := requiredFields(r, "post")
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, "Posted: "+fields[0], nil)
}

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if _, err := requiredFields(r, "question"); err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, "AI: Here's some advice based on your query: [Placeholder response]", nil)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes()+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respond(w, r, common.ErrFileTooLarge, "", nil)
			return
		}
		s.respond(w, r, fmt.Errorf("%w: expected a multipart form", common.ErrValidation), "", nil)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respond(w, r, withMessage(fmt.Errorf("%w: missing file", common.ErrValidation), "No selected file"), "", nil)
		return
	}
	defer file.Close()

	res, err := s.uploads.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.respond(w, r, err, "", nil)
		return
	}
	s.respond(w, r, nil, fmt.Sprintf("Image uploaded successfully as %s!", res.Filename), res)
}

func requiredFields(r *http.Request, names ...string) ([]string, error) {
	if err := parseForm(r); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		v, err := formValue(r, n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
