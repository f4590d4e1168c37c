package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestJWT(t *testing.T, ttl time.Duration) *JWT {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewJWT("test-secret", "favum-test", ttl, client)
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	j := newTestJWT(t, time.Hour)

	raw, issued, err := j.Issue(context.Background(), 42, "alice", "moderator")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.TokenID == "" {
		t.Fatal("expected a token id")
	}

	claims, err := j.Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if claims.Subject != 42 {
		t.Fatalf("expected subject 42, got %d", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %q", claims.Username)
	}
	if claims.Role != "moderator" {
		t.Fatalf("expected role moderator, got %q", claims.Role)
	}
	if claims.TokenID != issued.TokenID {
		t.Fatalf("token id mismatch: %q vs %q", claims.TokenID, issued.TokenID)
	}
}

func TestDecodeExpired(t *testing.T) {
	j := newTestJWT(t, time.Hour)
	base := time.Now()
	j.now = func() time.Time { return base.Add(-2 * time.Hour) }

	raw, _, err := j.Issue(context.Background(), 1, "bob", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	j.now = func() time.Time { return base }
	if _, err := j.Decode(context.Background(), raw); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestDecodeWrongSecret(t *testing.T) {
	j := newTestJWT(t, time.Hour)
	raw, _, err := j.Issue(context.Background(), 1, "bob", "user")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewJWT("different-secret", "favum-test", time.Hour, nil)
	if _, err := other.Decode(context.Background(), raw); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	j := newTestJWT(t, time.Hour)
	if _, err := j.Decode(context.Background(), "not.a.token"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestRevokedTokenIsRejected(t *testing.T) {
	j := newTestJWT(t, time.Hour)

	raw, claims, err := j.Issue(context.Background(), 7, "carol", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := j.Decode(context.Background(), raw); err != nil {
		t.Fatalf("decode before revoke: %v", err)
	}

	if err := j.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := j.Decode(context.Background(), raw); !errors.Is(err, ErrRevoked) {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	j := newTestJWT(t, time.Hour)
	claims := &Claims{TokenID: "abc", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := j.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
}
