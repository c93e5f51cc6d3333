package models

// NewAccount is the registration form.
type NewAccount struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	Mobile          string
	Gender          string
}

// ProfileUpdate names the non-credential fields to overwrite; nil fields are
// left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Mobile    *string
	Gender    *Gender
}
