package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/favum/favum/internal/app"
	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/token"
)

type stubDecoder struct {
	claims *token.Claims
	err    error
}

func (s *stubDecoder) Decode(_ context.Context, _ string) (*token.Claims, error) {
	return s.claims, s.err
}

type captured struct {
	identity *authz.AuthContext
	tokenErr error
}

func runTokenMiddleware(t *testing.T, decoder token.Decoder, authorization string) captured {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := authz.NewResolver(authz.DefaultGraph())

	var got captured
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.identity = authz.IdentityFromContext(r.Context())
		got.tokenErr = authz.TokenErrorFromContext(r.Context())
	})
	handler := app.TokenMiddleware(decoder, resolver, logger)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func validClaims(role string) *token.Claims {
	return &token.Claims{
		Subject:   42,
		Username:  "alice",
		Role:      role,
		TokenID:   "jti-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestTokenMiddlewareNoHeader(t *testing.T) {
	got := runTokenMiddleware(t, &stubDecoder{}, "")
	if got.identity != nil {
		t.Fatal("request without a token must stay unauthenticated")
	}
	if got.tokenErr != nil {
		t.Fatalf("no token is not a token error, got %v", got.tokenErr)
	}
}

func TestTokenMiddlewareValidToken(t *testing.T) {
	got := runTokenMiddleware(t,
		&stubDecoder{claims: validClaims("moderator")},
		"Bearer some-token")

	if got.identity == nil {
		t.Fatal("expected identity from a valid token")
	}
	if got.identity.UserID != 42 || got.identity.Role != authz.RoleModerator {
		t.Fatalf("identity mismatch: %+v", got.identity)
	}
	// Permissions come from the role graph, not the token.
	if !got.identity.HasPermission(authz.PermPostsCreate) {
		t.Fatal("moderator identity must carry permissions inherited from user")
	}
}

func TestTokenMiddlewareExpired(t *testing.T) {
	got := runTokenMiddleware(t,
		&stubDecoder{err: token.ErrExpired},
		"Bearer stale")

	if got.identity != nil {
		t.Fatal("expired token must not produce an identity")
	}
	if !errors.Is(got.tokenErr, authz.ErrTokenExpired) {
		t.Fatalf("expected expired classification, got %v", got.tokenErr)
	}
}

func TestTokenMiddlewareRevoked(t *testing.T) {
	got := runTokenMiddleware(t,
		&stubDecoder{err: token.ErrRevoked},
		"Bearer revoked")

	if !errors.Is(got.tokenErr, authz.ErrTokenRevoked) {
		t.Fatalf("expected revoked classification, got %v", got.tokenErr)
	}
}

func TestTokenMiddlewareMalformed(t *testing.T) {
	got := runTokenMiddleware(t,
		&stubDecoder{err: token.ErrMalformed},
		"Bearer garbage")

	if !errors.Is(got.tokenErr, authz.ErrTokenInvalid) {
		t.Fatalf("expected invalid classification, got %v", got.tokenErr)
	}
}

func TestTokenMiddlewareUnknownRole(t *testing.T) {
	got := runTokenMiddleware(t,
		&stubDecoder{claims: validClaims("wizard")},
		"Bearer some-token")

	if got.identity != nil {
		t.Fatal("a token with an unknown role must not authenticate")
	}
	if !errors.Is(got.tokenErr, authz.ErrTokenInvalid) {
		t.Fatalf("expected invalid classification, got %v", got.tokenErr)
	}
}
