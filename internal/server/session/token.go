package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/medisoft/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the session id inside a signed cookie value.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// IssueToken signs sessionID with HS256 and an expiry of validity from now.
func IssueToken(sessionID string, secretKey []byte, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validity)),
		},
		SessionID: sessionID,
	})

	return token.SignedString(secretKey)
}

// ParseToken returns the session id of a token signed with secretKey.
// Bad signatures, expired tokens and garbage all yield common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", common.ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
