package users

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/filex"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
)

// FileStore keeps all users in one JSON file that is rewritten in full on
// every save. The version of the file is the SHA-256 of its bytes, which makes
// the conditional write work across processes sharing the file (the server and
// the operator CLI), not only across goroutines.
//
// Every Load reads and hashes the file; the parsed users are reused only while
// the hash matches, so a rewrite by another process is always seen even when
// size and modification time stay the same. Watch drops the cache as soon as
// anything touches the file.
type FileStore struct {
	path   string
	perm   os.FileMode
	logger logging.Logger

	mu    sync.Mutex
	cache *snapshot
}

type snapshot struct {
	users   models.Users
	version Version
}

func NewFileStore(path string, logger logging.Logger) *FileStore {
	return &FileStore{
		path:   path,
		perm:   0o600,
		logger: logger.With("module", "user_store", "path", path),
	}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (models.Users, Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.read()
	if err != nil {
		return nil, VersionNone, err
	}

	return snap.users.Clone(), snap.version, nil
}

func (s *FileStore) Save(ctx context.Context, users models.Users, expected Version) (Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readVersion()
	if err != nil {
		return VersionNone, err
	}
	if current != expected {
		s.logger.Warn(ctx, "stale write rejected", "expected", expected, "current", current)
		s.cache = nil
		return VersionNone, common.ErrConcurrentModification
	}

	data, err := Encode(users)
	if err != nil {
		return VersionNone, err
	}

	if err := filex.WriteFileAtomic(s.path, data, s.perm); err != nil {
		return VersionNone, fmt.Errorf("write user store: %w", err)
	}

	version := versionOf(data)
	s.cache = &snapshot{users: users.Clone(), version: version}

	s.logger.Debug(ctx, "user store saved", "users", len(users), "version", version)
	return version, nil
}

// Invalidate forgets the cached content so the next Load re-reads the file.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
}

// read returns the current snapshot. The file is always read; only decoding
// is skipped when its hash matches the cached one. Must hold s.mu.
func (s *FileStore) read() (*snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.cache = nil
			return &snapshot{users: models.Users{}, version: VersionNone}, nil
		}
		return nil, fmt.Errorf("read user store: %w", err)
	}

	version := versionOf(data)
	if c := s.cache; c != nil && c.version == version {
		return c, nil
	}

	users, err := Decode(data)
	if err != nil {
		s.cache = nil
		return nil, err
	}

	s.cache = &snapshot{users: users, version: version}
	return s.cache, nil
}

// readVersion hashes the file as it is on disk right now, bypassing the cache.
// Must hold s.mu.
func (s *FileStore) readVersion() (Version, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return VersionNone, nil
		}
		return VersionNone, fmt.Errorf("read user store: %w", err)
	}
	return versionOf(data), nil
}
