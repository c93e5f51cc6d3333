package users

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/dmitrijs2005/medisoft/internal/server/models"
)

// Encode renders users as the flat JSON document kept on disk:
//
//	{"<id>": {"first_name": ..., "last_name": ..., "email": ...,
//	          "password": ..., "mobile": ..., "gender": ...}}
//
// Keys are sorted, so equal content always encodes to equal bytes.
func Encode(users models.Users) ([]byte, error) {
	if users == nil {
		users = models.Users{}
	}
	b, err := json.MarshalIndent(users, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode users: %w", err)
	}
	return append(b, '\n'), nil
}

// Decode parses the on-disk document. Anything that is not a JSON object of
// user objects is reported as common.ErrStoreCorrupt.
func Decode(data []byte) (models.Users, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", common.ErrStoreCorrupt)
	}

	var users models.Users
	if err := json.Unmarshal(trimmed, &users); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreCorrupt, err)
	}

	for id, u := range users {
		u.ID = id
		users[id] = u
	}

	return users, nil
}

func versionOf(data []byte) Version {
	sum := sha256.Sum256(data)
	return Version(hex.EncodeToString(sum[:]))
}
