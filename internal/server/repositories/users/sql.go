package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/dbx"
	"github.com/dmitrijs2005/medisoft/internal/server/migrations"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
	"github.com/pressly/goose/v3"
)

// SQLStore keeps users in a relational table. The version token is a counter
// in store_meta bumped by every successful save inside the same transaction
// that rewrites the users table.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate applies the embedded schema migrations using the given goose
// dialect ("postgres", "pgx", "sqlite3").
func (s *SQLStore) Migrate(ctx context.Context, dialect string) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db, ".")
}

func (s *SQLStore) Load(ctx context.Context) (models.Users, Version, error) {
	users := models.Users{}
	var version int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := tx.QueryRowContext(ctx, `SELECT version FROM store_meta WHERE id = 1`).Scan(&version); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: missing store_meta row", common.ErrStoreCorrupt)
			}
			return fmt.Errorf("db error: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			`SELECT id, first_name, last_name, email, password, mobile, gender FROM users`)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u models.User
			if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Credential, &u.Mobile, &u.Gender); err != nil {
				return fmt.Errorf("db error: %w", err)
			}
			users[u.ID] = u
		}
		return rows.Err()
	})
	if err != nil {
		return nil, VersionNone, err
	}

	return users, sqlVersion(version), nil
}

func (s *SQLStore) Save(ctx context.Context, users models.Users, expected Version) (Version, error) {
	want, err := parseSQLVersion(expected)
	if err != nil {
		return VersionNone, err
	}

	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var next int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE store_meta SET version = version + 1 WHERE id = 1 AND version = $1 RETURNING version`,
			want).Scan(&next)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrConcurrentModification
			}
			return fmt.Errorf("db error: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM users`); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		for _, id := range ids {
			u := users[id]
			_, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, first_name, last_name, email, password, mobile, gender)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				id, u.FirstName, u.LastName, u.Email, u.Credential, u.Mobile, string(u.Gender))
			if err != nil {
				return fmt.Errorf("db error: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return VersionNone, err
	}

	return sqlVersion(next), nil
}

func sqlVersion(v int64) Version {
	if v == 0 {
		return VersionNone
	}
	return Version(strconv.FormatInt(v, 10))
}

func parseSQLVersion(v Version) (int64, error) {
	if v == VersionNone {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad version token %q", common.ErrConcurrentModification, v)
	}
	return n, nil
}
