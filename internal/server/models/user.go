package models

import (
	"fmt"
	"strings"
)

// Gender is the closed set offered on the registration form.
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
	GenderOther  Gender = "Other"
)

// ParseGender accepts the three form values case-insensitively.
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male":
		return GenderMale, nil
	case "female":
		return GenderFemale, nil
	case "other":
		return GenderOther, nil
	default:
		return "", fmt.Errorf("unknown gender %q", s)
	}
}

// User is one account in the user store. ID is the primary key and never
// changes after creation. Credential holds derived secret material, never a
// password.
type User struct {
	ID         string `json:"-"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Credential string `json:"password"`
	Mobile     string `json:"mobile"`
	Gender     Gender `json:"gender"`
}

// FullName joins first and last name for greetings.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Users is the whole store keyed by user ID.
type Users map[string]User

// Clone returns a copy that can be mutated without touching u.
func (u Users) Clone() Users {
	out := make(Users, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
