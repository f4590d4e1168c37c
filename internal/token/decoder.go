// Package token defines the token boundary: issuing and decoding the
// bearer credentials the authorization pipeline consumes. The decision
// engine only ever sees the Claims produced here; signing mechanics stay
// behind the Decoder interface.
package token

import (
	"context"
	"errors"
	"time"
)

// Decode failure modes. Every Decoder error unwraps to exactly one of
// these so callers can classify without knowing the token format.
var (
	ErrMalformed        = errors.New("token: malformed")
	ErrSignatureInvalid = errors.New("token: signature invalid")
	ErrExpired          = errors.New("token: expired")
	ErrRevoked          = errors.New("token: revoked")
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   int64
	Username  string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Extra     map[string]any
}

// Decoder verifies a raw token string and returns its claims.
type Decoder interface {
	Decode(ctx context.Context, raw string) (*Claims, error)
}

// Issuer mints tokens for authenticated users.
type Issuer interface {
	Issue(ctx context.Context, userID int64, username, role string) (raw string, claims *Claims, err error)
}

// Revoker withdraws a previously issued token before its natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, claims *Claims) error
}
