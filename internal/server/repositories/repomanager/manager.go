// Package repomanager opens the user store selected by configuration and owns
// the resources behind it (files, watchers, database connections).
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/users"
)

// Drivers accepted by New.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// RepositoryManager vends the user store and runs its background upkeep.
type RepositoryManager interface {
	Users() users.Store
	// Run performs background upkeep until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}

// Options selects and locates the store.
type Options struct {
	Driver      string
	UsersFile   string
	DatabaseDSN string
}

// New opens the store named by opts.Driver.
func New(ctx context.Context, opts Options, logger logging.Logger) (RepositoryManager, error) {
	switch opts.Driver {
	case DriverFile, "":
		return NewFileRepositoryManager(opts.UsersFile, logger)
	case DriverPostgres:
		return NewPostgresRepositoryManager(ctx, opts.DatabaseDSN, logger)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
