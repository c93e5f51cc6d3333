package repomanager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/medisoft/internal/filex"
	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/users"
)

// FileRepositoryManager serves the flat JSON store and keeps its cache fresh
// by watching the file.
type FileRepositoryManager struct {
	store *users.FileStore
}

// NewFileRepositoryManager makes sure the directory of path exists. The file
// itself is created by the first save.
func NewFileRepositoryManager(path string, logger logging.Logger) (*FileRepositoryManager, error) {
	dir, err := filex.EnsureDir(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("users file dir: %w", err)
	}
	abs := filepath.Join(dir, filepath.Base(path))
	return &FileRepositoryManager{store: users.NewFileStore(abs, logger)}, nil
}

func (m *FileRepositoryManager) Users() users.Store { return m.store }

// FileStore exposes the concrete store for callers that need its path.
func (m *FileRepositoryManager) FileStore() *users.FileStore { return m.store }

func (m *FileRepositoryManager) Run(ctx context.Context) error { return m.store.Watch(ctx) }

func (m *FileRepositoryManager) Close() error { return nil }
