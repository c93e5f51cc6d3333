// Package services contains server-side business logic. This file implements
// AuthService, which owns every read and write of user accounts: creating
// accounts, verifying credentials, changing passwords and editing profiles.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/cryptox"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/users"
)

// DefaultMaxRetries bounds how often a mutation is replayed after the store
// reports a concurrent modification by another process.
const DefaultMaxRetries = 3

// AuthService validates credentials and maintains user accounts.
//
// Mutations within one process are serialized by a mutex. Every mutation
// loads the store, applies its change to that fresh copy and saves it
// conditionally on the loaded version, so writers in other processes are
// detected rather than overwritten; the whole step is then replayed on the
// new content.
type AuthService struct {
	store      users.Store
	params     cryptox.Params
	logger     logging.Logger
	maxRetries int

	// dummy is verified against when the user id is unknown, so unknown ids
	// cost the same as wrong passwords.
	dummy string

	mu sync.Mutex
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithKDFParams sets the argon2id parameters used for new credentials.
func WithKDFParams(p cryptox.Params) AuthOption {
	return func(s *AuthService) { s.params = p }
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) AuthOption {
	return func(s *AuthService) { s.logger = l }
}

// WithMaxRetries sets the replay bound for conflicting saves.
func WithMaxRetries(n int) AuthOption {
	return func(s *AuthService) { s.maxRetries = n }
}

func NewAuthService(store users.Store, opts ...AuthOption) *AuthService {
	s := &AuthService{
		store:      store,
		params:     cryptox.DefaultParams,
		logger:     logging.Nop(),
		maxRetries: DefaultMaxRetries,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "auth")

	secret, err := common.MakeRandHexString(16)
	if err != nil {
		secret = "unknown-user"
	}
	s.dummy = cryptox.DeriveCredential(secret, s.params)

	return s
}

// CheckConfirmation fails with ErrPasswordMismatch unless both entries match.
func CheckConfirmation(password, confirm string) error {
	if password != confirm {
		return common.ErrPasswordMismatch
	}
	return nil
}

// CreateAccount registers a new user. The password confirmation is checked
// first, then the identifier is checked for uniqueness against the freshly
// loaded store.
func (s *AuthService) CreateAccount(ctx context.Context, acc models.NewAccount) (models.User, error) {
	if err := CheckConfirmation(acc.Password, acc.ConfirmPassword); err != nil {
		return models.User{}, err
	}

	id := strings.TrimSpace(acc.ID)
	if id == "" {
		return models.User{}, fmt.Errorf("%w: user id is required", common.ErrValidation)
	}
	if acc.Password == "" {
		return models.User{}, fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	gender, err := models.ParseGender(acc.Gender)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	user := models.User{
		ID:         id,
		FirstName:  strings.TrimSpace(acc.FirstName),
		LastName:   strings.TrimSpace(acc.LastName),
		Email:      strings.TrimSpace(acc.Email),
		Credential: cryptox.DeriveCredential(acc.Password, s.params),
		Mobile:     strings.TrimSpace(acc.Mobile),
		Gender:     gender,
	}

	err = s.mutate(ctx, func(all models.Users) (bool, error) {
		if _, ok := all[id]; ok {
			return false, common.ErrDuplicateID
		}
		all[id] = user
		return true, nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info(ctx, "account created", "user_id", id)
	user.Credential = ""
	return user, nil
}

// Authenticate returns the user when password verifies against the stored
// credential. Unknown ids and wrong passwords both yield ErrInvalidCredentials.
// A credential stored by the legacy plaintext or SHA-256 schemes is replaced
// by a salted one after a successful login.
func (s *AuthService) Authenticate(ctx context.Context, id, password string) (models.User, error) {
	all, _, err := s.store.Load(ctx)
	if err != nil {
		return models.User{}, err
	}

	user, ok := all[id]
	if !ok {
		_, _, _ = cryptox.VerifyCredential(s.dummy, password)
		return models.User{}, common.ErrInvalidCredentials
	}

	scheme, match, err := cryptox.VerifyCredential(user.Credential, password)
	if err != nil {
		s.logger.Warn(ctx, "stored credential is malformed", "user_id", id, "error", err)
		return models.User{}, common.ErrInvalidCredentials
	}
	if !match {
		return models.User{}, common.ErrInvalidCredentials
	}

	if scheme != cryptox.SchemeArgon2id {
		if err := s.upgradeCredential(ctx, id, user.Credential, password); err != nil {
			s.logger.Warn(ctx, "credential upgrade failed", "user_id", id, "scheme", scheme.String(), "error", err)
		} else {
			s.logger.Info(ctx, "legacy credential upgraded", "user_id", id, "scheme", scheme.String())
		}
	}

	user.Credential = ""
	return user, nil
}

// ChangePassword replaces the credential of id after verifying oldPassword
// against the current stored credential.
func (s *AuthService) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new password is required", common.ErrValidation)
	}
	credential := cryptox.DeriveCredential(newPassword, s.params)

	err := s.mutate(ctx, func(all models.Users) (bool, error) {
		user, ok := all[id]
		if !ok {
			return false, common.ErrInvalidCredentials
		}
		_, match, err := cryptox.VerifyCredential(user.Credential, oldPassword)
		if err != nil || !match {
			return false, common.ErrInvalidCredentials
		}
		user.Credential = credential
		all[id] = user
		return true, nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", id)
	return nil
}

// UpdateProfile overwrites the non-nil fields of upd on the user id.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error) {
	var updated models.User

	err := s.mutate(ctx, func(all models.Users) (bool, error) {
		user, ok := all[id]
		if !ok {
			return false, common.ErrorNotFound
		}
		before := user
		applyProfile(&user, upd)
		updated = user
		if user == before {
			return false, nil
		}
		all[id] = user
		return true, nil
	})
	if err != nil {
		return models.User{}, err
	}

	s.logger.Info(ctx, "profile updated", "user_id", id)
	updated.Credential = ""
	return updated, nil
}

// GetUser returns the user without its credential.
func (s *AuthService) GetUser(ctx context.Context, id string) (models.User, error) {
	all, _, err := s.store.Load(ctx)
	if err != nil {
		return models.User{}, err
	}
	user, ok := all[id]
	if !ok {
		return models.User{}, common.ErrorNotFound
	}
	user.Credential = ""
	return user, nil
}

// ListUsers returns all users ordered by id, without credentials.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	all, _, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(all))
	for _, u := range all {
		u.Credential = ""
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- helpers below ---

// mutate runs fn on a fresh copy of the store and saves the result
// conditionally on the version that copy was loaded at. fn reports whether it
// changed anything; unchanged stores are not written.
func (s *AuthService) mutate(ctx context.Context, fn func(all models.Users) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		all, version, err := s.store.Load(ctx)
		if err != nil {
			return err
		}

		changed, err := fn(all)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		_, err = s.store.Save(ctx, all, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, common.ErrConcurrentModification) || attempt >= s.maxRetries {
			return err
		}
		s.logger.Warn(ctx, "store changed underneath, retrying", "attempt", attempt+1)
	}
}

// upgradeCredential re-derives the credential of id from password, unless
// the stored value changed since it was verified.
func (s *AuthService) upgradeCredential(ctx context.Context, id, verified, password string) error {
	credential := cryptox.DeriveCredential(password, s.params)
	return s.mutate(ctx, func(all models.Users) (bool, error) {
		user, ok := all[id]
		if !ok || user.Credential != verified {
			return false, nil
		}
		user.Credential = credential
		all[id] = user
		return true, nil
	})
}

func applyProfile(u *models.User, upd models.ProfileUpdate) {
	if upd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		u.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Email != nil {
		u.Email = strings.TrimSpace(*upd.Email)
	}
	if upd.Mobile != nil {
		u.Mobile = strings.TrimSpace(*upd.Mobile)
	}
	if upd.Gender != nil {
		u.Gender = *upd.Gender
	}
}
