// Package cryptox derives and verifies stored account credentials.
//
// New credentials are always argon2id with a random per-user salt, encoded in
// the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// Two legacy formats written by earlier deployments are still recognised so
// existing accounts can log in once and be upgraded: unsalted SHA-256 hex
// digests and plaintext.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"golang.org/x/crypto/argon2"
)

// Params tunes the argon2id derivation.
type Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
	SaltLen   int
}

// DefaultParams matches the cost used for master keys elsewhere in the project.
var DefaultParams = Params{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	KeyLen:    32,
	SaltLen:   16,
}

// Scheme identifies how a stored credential was produced.
type Scheme int

const (
	SchemeArgon2id Scheme = iota
	SchemeLegacySHA256
	SchemeLegacyPlain
)

func (s Scheme) String() string {
	switch s {
	case SchemeArgon2id:
		return "argon2id"
	case SchemeLegacySHA256:
		return "sha256"
	default:
		return "plain"
	}
}

const argon2idPrefix = "$argon2id$"

var ErrMalformedCredential = errors.New("malformed credential")

// Bounds accepted for stored and configured argon2id costs.
const (
	MaxTime      = 64
	MaxMemoryKiB = 4 * 1024 * 1024
)

var b64 = base64.RawStdEncoding

// DeriveKey runs argon2id over password and salt.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
}

// DeriveCredential derives a new encoded credential for password with a fresh salt.
func DeriveCredential(password string, p Params) string {
	salt := common.GenerateRandByteArray(p.SaltLen)
	pw := []byte(password)
	defer common.WipeByteArray(pw)

	key := DeriveKey(pw, salt, p)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version, p.MemoryKiB, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key))
}

// Identify reports the scheme of a stored credential.
func Identify(encoded string) Scheme {
	switch {
	case strings.HasPrefix(encoded, argon2idPrefix):
		return SchemeArgon2id
	case isSHA256Hex(encoded):
		return SchemeLegacySHA256
	default:
		return SchemeLegacyPlain
	}
}

// VerifyCredential checks password against encoded using a constant-time
// comparison and returns the scheme the stored value used. An empty stored
// credential never matches.
func VerifyCredential(encoded, password string) (Scheme, bool, error) {
	scheme := Identify(encoded)
	if encoded == "" {
		return scheme, false, nil
	}

	switch scheme {
	case SchemeArgon2id:
		p, salt, key, err := decodeArgon2id(encoded)
		if err != nil {
			return scheme, false, err
		}
		candidate := DeriveKey([]byte(password), salt, p)
		return scheme, subtle.ConstantTimeCompare(key, candidate) == 1, nil

	case SchemeLegacySHA256:
		sum := sha256.Sum256([]byte(password))
		candidate := hex.EncodeToString(sum[:])
		return scheme, subtle.ConstantTimeCompare([]byte(strings.ToLower(encoded)), []byte(candidate)) == 1, nil

	default:
		return scheme, subtle.ConstantTimeCompare([]byte(encoded), []byte(password)) == 1, nil
	}
}

func decodeArgon2id(encoded string) (Params, []byte, []byte, error) {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return Params{}, nil, nil, ErrMalformedCredential
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, ErrMalformedCredential
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, nil, ErrMalformedCredential
	}

	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Params{}, nil, nil, ErrMalformedCredential
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, ErrMalformedCredential
	}

	if len(salt) == 0 || !p.valid() {
		return Params{}, nil, nil, ErrMalformedCredential
	}

	p.SaltLen = len(salt)
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}

// valid reports whether argon2 can run with these costs without panicking or
// allocating an unbounded amount of memory.
func (p Params) valid() bool {
	return p.Time >= 1 && p.Time <= MaxTime &&
		p.Threads >= 1 &&
		p.MemoryKiB >= 8*uint32(p.Threads) && p.MemoryKiB <= MaxMemoryKiB
}

// Validate checks costs before they are used to derive new credentials.
func (p Params) Validate() error {
	if !p.valid() {
		return fmt.Errorf("argon2id params out of range: t=%d (1..%d), p=%d (>=1), m=%d KiB (%d..%d)",
			p.Time, MaxTime, p.Threads, p.MemoryKiB, 8*uint32(p.Threads), MaxMemoryKiB)
	}
	return nil
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
