// Package users holds the user store: the canonical mapping from user ID to
// account record. Every implementation hands out a version token with each
// read and refuses a write whose token is stale, so a caller that loaded,
// checked uniqueness and then saved can never silently overwrite a writer
// that got in between.
package users

import (
	"context"

	"github.com/dmitrijs2005/medisoft/internal/server/models"
)

// Version identifies one state of the store. The empty Version means the
// store has never been written.
type Version string

const VersionNone Version = ""

// Store is the persisted user mapping.
type Store interface {
	// Load returns a private copy of every user plus the version it was read
	// at. A store that does not exist yet loads as empty at VersionNone.
	// Unreadable content fails with common.ErrStoreCorrupt.
	Load(ctx context.Context) (models.Users, Version, error)

	// Save replaces the whole content with users if the store is still at
	// expected, and returns the new version. Otherwise it fails with
	// common.ErrConcurrentModification and changes nothing.
	Save(ctx context.Context, users models.Users, expected Version) (Version, error)
}
