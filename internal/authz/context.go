package authz

import (
	"context"
	"time"
)

// AuthContext is the decoded identity for one request. Built once from a
// successfully verified token, read-only afterwards, discarded with the
// request. Its absence (nil) is a legal state meaning "unauthenticated"
// and is handled by TokenValidity, not by panicking downstream.
type AuthContext struct {
	UserID      int64
	Username    string
	Role        Role
	Permissions map[Permission]struct{}
	ExpiresAt   time.Time
	Extra       map[string]any
}

// NewContext builds an AuthContext for a verified identity. Permissions
// are always re-derived from the role through the resolver; any permission
// list a token may embed is ignored so grants can never go stale between
// token issue and use.
func NewContext(resolver *Resolver, userID int64, username string, role Role, expiresAt time.Time, extra map[string]any) *AuthContext {
	return &AuthContext{
		UserID:      userID,
		Username:    username,
		Role:        role,
		Permissions: resolver.Resolve(role),
		ExpiresAt:   expiresAt,
		Extra:       extra,
	}
}

// HasPermission reports whether the context carries perm.
func (a *AuthContext) HasPermission(perm Permission) bool {
	if a == nil {
		return false
	}
	_, ok := a.Permissions[perm]
	return ok
}

// Expired reports whether the token backing this context has expired.
func (a *AuthContext) Expired(now time.Time) bool {
	if a == nil {
		return true
	}
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

type identityContextKey struct{}

type tokenErrorContextKey struct{}

// ContextWithIdentity stores the authenticated identity in ctx.
func ContextWithIdentity(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, identityContextKey{}, ac)
}

// IdentityFromContext extracts the identity, nil when unauthenticated.
func IdentityFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(identityContextKey{}).(*AuthContext)
	return ac
}

// ContextWithTokenError records a token decode failure so TokenValidity
// can report the precise reason (invalid vs revoked vs expired) instead of
// a bare "unauthenticated".
func ContextWithTokenError(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	return context.WithValue(ctx, tokenErrorContextKey{}, err)
}

// TokenErrorFromContext returns the recorded decode failure, if any.
func TokenErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(tokenErrorContextKey{}).(error)
	return err
}
