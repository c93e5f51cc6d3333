// Package cli is the operator console. It works directly against the user
// store through the same account service the web server uses, so its writes
// go through the same optimistic version check.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
)

// Accounts is the part of the account service the console needs.
type Accounts interface {
	CreateAccount(ctx context.Context, acc models.NewAccount) (models.User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type App struct {
	accounts Accounts
	in       *bufio.Reader
	out      io.Writer
}

func NewApp(accounts Accounts, in io.Reader, out io.Writer) *App {
	return &App{accounts: accounts, in: bufio.NewReader(in), out: out}
}

func (a *App) ask(prompt string) (string, error) {
	return GetSimpleText(a.in, prompt, a.out)
}

// Register creates an account from interactive answers.
func (a *App) Register(ctx context.Context) error {
	var acc models.NewAccount
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"User ID", &acc.ID},
		{"First name", &acc.FirstName},
		{"Last name", &acc.LastName},
		{"Email", &acc.Email},
		{"Mobile", &acc.Mobile},
		{"Gender (Male/Female/Other)", &acc.Gender},
	}
	for _, f := range fields {
		v, err := a.ask(f.prompt)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	var err error
	if acc.Password, err = GetPassword("Password", a.out); err != nil {
		return err
	}
	if acc.ConfirmPassword, err = GetPassword("Confirm password", a.out); err != nil {
		return err
	}

	u, err := a.accounts.CreateAccount(ctx, acc)
	if err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintf(a.out, "Account %s created.\n", u.ID)
	return nil
}

// Passwd changes a user's password after checking the old one.
func (a *App) Passwd(ctx context.Context) error {
	id, err := a.ask("User ID")
	if err != nil {
		return err
	}
	oldPw, err := GetPassword("Old password", a.out)
	if err != nil {
		return err
	}
	newPw, err := GetPassword("New password", a.out)
	if err != nil {
		return err
	}
	confirm, err := GetPassword("Confirm new password", a.out)
	if err != nil {
		return err
	}
	if newPw != confirm {
		fmt.Fprintln(a.out, "New passwords do not match!")
		return common.ErrPasswordMismatch
	}

	if err := a.accounts.ChangePassword(ctx, id, oldPw, newPw); err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintln(a.out, "Password changed successfully!")
	return nil
}

// List prints every account, one per line, sorted by id.
func (a *App) List(ctx context.Context) error {
	all, err := a.accounts.ListUsers(ctx)
	if err != nil {
		a.report(err)
		return err
	}
	if len(all) == 0 {
		fmt.Fprintln(a.out, "No users.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tGENDER")
	for _, u := range all {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, strings.TrimSpace(u.FirstName+" "+u.LastName), u.Email, u.Gender)
	}
	return tw.Flush()
}

// Show prints one account's profile. Credentials are never shown.
func (a *App) Show(ctx context.Context) error {
	id, err := a.ask("User ID")
	if err != nil {
		return err
	}
	u, err := a.accounts.GetUser(ctx, id)
	if err != nil {
		a.report(err)
		return err
	}
	fmt.Fprintf(a.out, "ID:         %s\nFirst name: %s\nLast name:  %s\nEmail:      %s\nMobile:     %s\nGender:     %s\n",
		u.ID, u.FirstName, u.LastName, u.Email, u.Mobile, u.Gender)
	return nil
}

func (a *App) report(err error) {
	switch {
	case errors.Is(err, common.ErrPasswordMismatch):
		fmt.Fprintln(a.out, "Passwords do not match!")
	case errors.Is(err, common.ErrDuplicateID):
		fmt.Fprintln(a.out, "User ID already exists!")
	case errors.Is(err, common.ErrInvalidCredentials):
		fmt.Fprintln(a.out, "Incorrect user ID or password!")
	case errors.Is(err, common.ErrorNotFound):
		fmt.Fprintln(a.out, "No such user.")
	case errors.Is(err, common.ErrValidation):
		fmt.Fprintln(a.out, "Invalid input:", err.Error())
	default:
		fmt.Fprintln(a.out, "Error:", err.Error())
	}
}
