package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/cryptox"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var testParams = cryptox.Params{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newFileBackedService(t *testing.T) (*AuthService, *users.FileStore) {
	t.Helper()
	store := users.NewFileStore(filepath.Join(t.TempDir(), "users.json"), logging.Nop())
	return NewAuthService(store, WithKDFParams(testParams)), store
}

func account(id, password string) models.NewAccount {
	return models.NewAccount{
		ID: id, FirstName: "First", LastName: "Last", Email: id + "@example.com",
		Password: password, ConfirmPassword: password, Mobile: "555", Gender: "Other",
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

// conflictStore reports a concurrent modification on the first n saves.
type conflictStore struct {
	users.Store
	mu        sync.Mutex
	conflicts int
	saves     int
}

func (c *conflictStore) Save(ctx context.Context, u models.Users, v users.Version) (users.Version, error) {
	c.mu.Lock()
	c.saves++
	if c.conflicts > 0 {
		c.conflicts--
		c.mu.Unlock()
		return users.VersionNone, common.ErrConcurrentModification
	}
	c.mu.Unlock()
	return c.Store.Save(ctx, u, v)
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) (models.Users, users.Version, error) {
	return nil, users.VersionNone, f.err
}

func (f failingStore) Save(context.Context, models.Users, users.Version) (users.Version, error) {
	return users.VersionNone, f.err
}

// --- tests ---

func TestCreateAccountThenAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileBackedService(t)

	created, err := svc.CreateAccount(ctx, account("u1", "p"))
	require.NoError(t, err)
	assert.Equal(t, "u1", created.ID)
	assert.Equal(t, models.GenderOther, created.Gender)
	assert.Empty(t, created.Credential)

	got, err := svc.Authenticate(ctx, "u1", "p")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "u1@example.com", got.Email)
	assert.Empty(t, got.Credential)

	_, err = svc.Authenticate(ctx, "u1", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestCreateAccount_StoresSaltedCredential(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)

	_, err := svc.CreateAccount(ctx, account("u1", "secret"))
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, account("u2", "secret"))
	require.NoError(t, err)

	raw := string(readFile(t, store.Path()))
	assert.NotContains(t, raw, `"secret"`)

	all, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cryptox.SchemeArgon2id, cryptox.Identify(all["u1"].Credential))
	assert.NotEqual(t, all["u1"].Credential, all["u2"].Credential, "equal passwords must not share a credential")
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(a *models.NewAccount)
		want   error
	}{
		{name: "password mismatch", mutate: func(a *models.NewAccount) { a.ConfirmPassword = "other" }, want: common.ErrPasswordMismatch},
		{name: "mismatch wins over empty id", mutate: func(a *models.NewAccount) { a.ID = ""; a.ConfirmPassword = "x" }, want: common.ErrPasswordMismatch},
		{name: "blank id", mutate: func(a *models.NewAccount) { a.ID = "   " }, want: common.ErrValidation},
		{name: "empty password", mutate: func(a *models.NewAccount) { a.Password = ""; a.ConfirmPassword = "" }, want: common.ErrValidation},
		{name: "unknown gender", mutate: func(a *models.NewAccount) { a.Gender = "robot" }, want: common.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newFileBackedService(t)
			acc := account("u1", "p")
			tt.mutate(&acc)

			_, err := svc.CreateAccount(context.Background(), acc)
			assert.ErrorIs(t, err, tt.want)

			_, statErr := os.Stat(store.Path())
			assert.True(t, os.IsNotExist(statErr), "failed creation must not write the store")
		})
	}
}

func TestCreateAccount_DuplicateLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)

	_, err := svc.CreateAccount(ctx, account("u1", "p"))
	require.NoError(t, err)
	before := readFile(t, store.Path())

	dup := account("u1", "other")
	dup.FirstName = "Impostor"
	_, err = svc.CreateAccount(ctx, dup)
	assert.ErrorIs(t, err, common.ErrDuplicateID)

	assert.Equal(t, before, readFile(t, store.Path()))

	_, err = svc.Authenticate(ctx, "u1", "p")
	assert.NoError(t, err)
}

func TestCreateAccount_ConcurrentDistinctIDs(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateAccount(ctx, account(fmt.Sprintf("user-%d", i), "p"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	all, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}

func TestCreateAccount_TwoProcessesSharingOneFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "users.json")

	// Two services with their own stores model two processes: nothing but the
	// file's version check keeps them from overwriting each other.
	a := NewAuthService(users.NewFileStore(path, logging.Nop()), WithKDFParams(testParams), WithMaxRetries(50))
	b := NewAuthService(users.NewFileStore(path, logging.Nop()), WithKDFParams(testParams), WithMaxRetries(50))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := a.CreateAccount(ctx, account(fmt.Sprintf("a-%d", i), "p"))
			assert.NoError(t, err)
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := b.CreateAccount(ctx, account(fmt.Sprintf("b-%d", i), "p"))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := a.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestMutate_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	inner := users.NewFileStore(filepath.Join(t.TempDir(), "users.json"), logging.Nop())
	store := &conflictStore{Store: inner, conflicts: 2}
	svc := NewAuthService(store, WithKDFParams(testParams), WithMaxRetries(2))

	_, err := svc.CreateAccount(ctx, account("u1", "p"))
	require.NoError(t, err)
	assert.Equal(t, 3, store.saves)
}

func TestMutate_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	inner := users.NewFileStore(filepath.Join(t.TempDir(), "users.json"), logging.Nop())
	store := &conflictStore{Store: inner, conflicts: 10}
	svc := NewAuthService(store, WithKDFParams(testParams), WithMaxRetries(1))

	_, err := svc.CreateAccount(ctx, account("u1", "p"))
	assert.ErrorIs(t, err, common.ErrConcurrentModification)
	assert.Equal(t, 2, store.saves)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	svc, _ := newFileBackedService(t)

	_, err := svc.Authenticate(context.Background(), "ghost", "p")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestAuthenticate_StoreErrorsSurface(t *testing.T) {
	corrupt := fmt.Errorf("%w: bad bytes", common.ErrStoreCorrupt)
	svc := NewAuthService(failingStore{err: corrupt}, WithKDFParams(testParams))

	_, err := svc.Authenticate(context.Background(), "u1", "p")
	assert.ErrorIs(t, err, common.ErrStoreCorrupt)
	assert.False(t, errors.Is(err, common.ErrInvalidCredentials))

	_, err = svc.CreateAccount(context.Background(), account("u1", "p"))
	assert.ErrorIs(t, err, common.ErrStoreCorrupt)
}

func TestAuthenticate_UpgradesLegacyCredentials(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)

	sum := sha256.Sum256([]byte("hashed-pw"))
	legacy := fmt.Sprintf(`{
  "plain": {"first_name": "P", "last_name": "", "email": "", "password": "plain-pw", "mobile": "", "gender": "Male"},
  "hashed": {"first_name": "H", "last_name": "", "email": "", "password": %q, "mobile": "", "gender": "Female"}
}`, hex.EncodeToString(sum[:]))
	require.NoError(t, os.WriteFile(store.Path(), []byte(legacy), 0o600))

	_, err := svc.Authenticate(ctx, "plain", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "plain", "plain-pw")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "hashed", "hashed-pw")
	require.NoError(t, err)

	all, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cryptox.SchemeArgon2id, cryptox.Identify(all["plain"].Credential))
	assert.Equal(t, cryptox.SchemeArgon2id, cryptox.Identify(all["hashed"].Credential))

	_, err = svc.Authenticate(ctx, "plain", "plain-pw")
	assert.NoError(t, err, "upgraded credential still verifies")
	_, err = svc.Authenticate(ctx, "plain", all["plain"].Credential)
	assert.Error(t, err)
}

func TestAuthenticate_OutOfRangeStoredCostsAreRejected(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)

	doc := `{
  "p0": {"first_name": "", "last_name": "", "email": "", "password": "$argon2id$v=19$m=65536,t=1,p=0$c2FsdHNhbHQ$a2V5a2V5", "mobile": "", "gender": "Male"},
  "t0": {"first_name": "", "last_name": "", "email": "", "password": "$argon2id$v=19$m=65536,t=0,p=1$c2FsdHNhbHQ$a2V5a2V5", "mobile": "", "gender": "Male"},
  "huge": {"first_name": "", "last_name": "", "email": "", "password": "$argon2id$v=19$m=4294967295,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5", "mobile": "", "gender": "Male"}
}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o600))

	for _, id := range []string{"p0", "t0", "huge"} {
		assert.NotPanics(t, func() {
			_, err := svc.Authenticate(ctx, id, "pw")
			assert.ErrorIs(t, err, common.ErrInvalidCredentials, id)
		})
		assert.NotPanics(t, func() {
			assert.ErrorIs(t, svc.ChangePassword(ctx, id, "pw", "new"), common.ErrInvalidCredentials, id)
		})
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)
	_, err := svc.CreateAccount(ctx, account("u1", "old"))
	require.NoError(t, err)

	t.Run("wrong old password leaves credential", func(t *testing.T) {
		before := readFile(t, store.Path())
		err := svc.ChangePassword(ctx, "u1", "nope", "new")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
		assert.Equal(t, before, readFile(t, store.Path()))
	})

	t.Run("unknown user", func(t *testing.T) {
		assert.ErrorIs(t, svc.ChangePassword(ctx, "ghost", "old", "new"), common.ErrInvalidCredentials)
	})

	t.Run("empty new password", func(t *testing.T) {
		assert.ErrorIs(t, svc.ChangePassword(ctx, "u1", "old", ""), common.ErrValidation)
	})

	t.Run("correct old password", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, "u1", "old", "new"))

		_, err := svc.Authenticate(ctx, "u1", "new")
		assert.NoError(t, err)
		_, err = svc.Authenticate(ctx, "u1", "old")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	})
}

func TestCheckConfirmation(t *testing.T) {
	assert.NoError(t, CheckConfirmation("a", "a"))
	assert.ErrorIs(t, CheckConfirmation("a", "b"), common.ErrPasswordMismatch)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, store := newFileBackedService(t)
	_, err := svc.CreateAccount(ctx, account("u1", "p"))
	require.NoError(t, err)

	first, email := "Grace", " grace@example.com "
	gender := models.GenderFemale
	got, err := svc.UpdateProfile(ctx, "u1", models.ProfileUpdate{FirstName: &first, Email: &email, Gender: &gender})
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.FirstName)
	assert.Equal(t, "Last", got.LastName)
	assert.Equal(t, "grace@example.com", got.Email)
	assert.Equal(t, models.GenderFemale, got.Gender)
	assert.Empty(t, got.Credential)

	_, err = svc.Authenticate(ctx, "u1", "p")
	assert.NoError(t, err, "profile edits keep the credential")

	before := readFile(t, store.Path())
	_, err = svc.UpdateProfile(ctx, "u1", models.ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, before, readFile(t, store.Path()), "no-op update does not rewrite")

	_, err = svc.UpdateProfile(ctx, "ghost", models.ProfileUpdate{FirstName: &first})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetAndListUsers(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFileBackedService(t)
	for _, id := range []string{"c", "a", "b"} {
		_, err := svc.CreateAccount(ctx, account(id, "p"))
		require.NoError(t, err)
	}

	u, err := svc.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", u.ID)
	assert.Empty(t, u.Credential)

	_, err = svc.GetUser(ctx, "zzz")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
		assert.Empty(t, u.Credential)
	}
	assert.Equal(t, "a,b,c", strings.Join(ids, ","))
}
