package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/server/session"
)

// viewModel is what the renderer receives after every request.
type viewModel struct {
	Page     string           `json:"page"`
	View     session.ViewKind `json:"view"`
	LoggedIn bool             `json:"logged_in"`
	UserID   string           `json:"user_id,omitempty"`
	DarkMode bool             `json:"dark_mode"`
	Message  string           `json:"message,omitempty"`
	Error    string           `json:"error,omitempty"`
	Data     any              `json:"data,omitempty"`
	Result   any              `json:"result,omitempty"`
}

// userError replaces the default user-visible text of err.
type userError struct {
	err error
	msg string
}

func (e *userError) Error() string { return e.err.Error() }
func (e *userError) Unwrap() error { return e.err }

func withMessage(err error, msg string) error { return &userError{err: err, msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps an error to its HTTP status and the text shown to the user.
func errorResponse(err error) (int, string) {
	status, msg := defaultErrorResponse(err)
	var ue *userError
	if errors.As(err, &ue) {
		msg = ue.msg
	}
	return status, msg
}

func defaultErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrPasswordMismatch):
		return http.StatusBadRequest, "Passwords do not match!"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials!"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, session.LoginRequiredMessage
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "User not found."
	case errors.Is(err, common.ErrDuplicateID):
		return http.StatusConflict, "User ID already exists!"
	case errors.Is(err, common.ErrConcurrentModification):
		return http.StatusConflict, "The account data changed while saving, please try again."
	case errors.Is(err, common.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "File is too large."
	case errors.Is(err, common.ErrUnsupportedFile):
		return http.StatusUnsupportedMediaType, "Only jpg, jpeg and png images are accepted."
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, "Too many attempts, please wait a moment."
	case errors.Is(err, common.ErrStoreCorrupt):
		return http.StatusInternalServerError, "The user store is damaged and cannot be read. Contact the administrator."
	default:
		return http.StatusInternalServerError, "Something went wrong."
	}
}

// validationMessage strips the sentinel prefix from a validation error.
func validationMessage(err error) string {
	msg := err.Error()
	prefix := common.ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}
