package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/medisoft/internal/logging"
	"github.com/dmitrijs2005/medisoft/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepositoryManager serves the SQL store over a pgx connection pool.
type PostgresRepositoryManager struct {
	db     *sql.DB
	store  *users.SQLStore
	logger logging.Logger
}

// NewPostgresRepositoryManager connects to dsn and applies pending migrations.
func NewPostgresRepositoryManager(ctx context.Context, dsn string, logger logging.Logger) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	m, err := newSQLRepositoryManager(ctx, db, "postgres", logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func newSQLRepositoryManager(ctx context.Context, db *sql.DB, dialect string, logger logging.Logger) (*PostgresRepositoryManager, error) {
	logger = logger.With("module", "user_store")
	store := users.NewSQLStore(db)
	if err := store.Migrate(ctx, dialect); err != nil {
		return nil, fmt.Errorf("db migrations error: %w", err)
	}
	logger.Info(ctx, "user store migrations applied", "dialect", dialect)
	return &PostgresRepositoryManager{db: db, store: store, logger: logger}, nil
}

func (m *PostgresRepositoryManager) Users() users.Store { return m.store }

// Run has no upkeep to do; it only waits for ctx.
func (m *PostgresRepositoryManager) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *PostgresRepositoryManager) Close() error { return m.db.Close() }
