package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "token:revoked:"

// JWT issues and verifies HS256 tokens and keeps a Redis denylist of
// revoked token IDs. The denylist entry lives exactly as long as the
// token it blocks would have.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	redis  *redis.Client
	now    func() time.Time
}

type jwtClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWT constructs the JWT issuer/decoder. A nil redis client disables
// revocation checks (useful in tests that do not exercise logout).
func NewJWT(secret, issuer string, ttl time.Duration, client *redis.Client) *JWT {
	return &JWT{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		redis:  client,
		now:    time.Now,
	}
}

// Issue mints a signed token for the user.
func (j *JWT) Issue(_ context.Context, userID int64, username, role string) (string, *Claims, error) {
	now := j.now().UTC()
	expires := now.Add(j.ttl)
	tokenID := uuid.NewString()

	claims := jwtClaims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return raw, &Claims{
		Subject:   userID,
		Username:  username,
		Role:      role,
		TokenID:   tokenID,
		IssuedAt:  now,
		ExpiresAt: expires,
	}, nil
}

// Decode verifies signature and expiry, then consults the revocation list.
func (j *JWT) Decode(ctx context.Context, raw string) (*Claims, error) {
	var parsed jwtClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, classifyParseError(err)
	}

	var userID int64
	if _, err := fmt.Sscanf(parsed.Subject, "%d", &userID); err != nil {
		return nil, fmt.Errorf("%w: subject %q", ErrMalformed, parsed.Subject)
	}

	claims := &Claims{
		Subject:  userID,
		Username: parsed.Username,
		Role:     parsed.Role,
		TokenID:  parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}

	if j.redis != nil && claims.TokenID != "" {
		revoked, err := j.redis.Exists(ctx, revocationKeyPrefix+claims.TokenID).Result()
		if err != nil {
			return nil, fmt.Errorf("token: revocation check: %w", err)
		}
		if revoked > 0 {
			return nil, fmt.Errorf("%w: id %s", ErrRevoked, claims.TokenID)
		}
	}
	return claims, nil
}

// Revoke denylists the token ID until the token would have expired anyway.
func (j *JWT) Revoke(ctx context.Context, claims *Claims) error {
	if j.redis == nil || claims == nil || claims.TokenID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := j.redis.Set(ctx, revocationKeyPrefix+claims.TokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("token: revoke: %w", err)
	}
	return nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

var (
	_ Decoder = (*JWT)(nil)
	_ Issuer  = (*JWT)(nil)
	_ Revoker = (*JWT)(nil)
)
