package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/filex"
	"github.com/google/uuid"
)

// ImageStore persists uploaded images and returns where each one ended up.
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

// storageKey places name under a dated, unique prefix so uploads from
// different users never overwrite each other.
func storageKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s/%s", d.Year(), int(d.Month()), d.Day(), uuid.NewString(), name)
}

// FSStore keeps images under a local directory.
type FSStore struct {
	dir string
}

// NewFSStore creates dir when needed. Relative paths are taken from the
// working directory.
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	return &FSStore{dir: abs}, nil
}

func (s *FSStore) Dir() string { return s.dir }

func (s *FSStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(storageKey(name)))
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := filex.WriteFileAtomic(path, data, 0o640); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return path, nil
}
