package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedDecision struct {
	allowed bool
	reason  Reason
}

type stubRecorder struct {
	decisions []recordedDecision
}

func (s *stubRecorder) RecordDecision(allowed bool, reason Reason) {
	s.decisions = append(s.decisions, recordedDecision{allowed: allowed, reason: reason})
}

func denialBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body
}

func newGuardedRequest(identity *AuthContext) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if identity != nil {
		req = req.WithContext(ContextWithIdentity(req.Context(), identity))
	}
	return req
}

func TestGuardFirstDenyShortCircuits(t *testing.T) {
	guard := Guard{Now: fixedNow}

	roleCheckCalled := false
	countingRoleCheck := func(ctx context.Context, identity *AuthContext, req Request) Decision {
		roleCheckCalled = true
		return RoleCheck(RoleAdmin)(ctx, identity, req)
	}
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	// No token at all: the denial must be Unauthenticated, not
	// InsufficientRole, and the role rule must never run.
	mw := guard.Protect(TokenValidity(fixedNow), countingRoleCheck)
	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(nil))

	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, string(ReasonUnauthenticated), denialBody(t, res)["reason"])
	assert.False(t, roleCheckCalled, "later rules must not run after a deny")
	assert.False(t, handlerCalled, "handler must not run on deny")
}

func TestGuardAllowsInvokesHandlerOnce(t *testing.T) {
	guard := Guard{Now: fixedNow}

	invocations := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invocations++
		w.WriteHeader(http.StatusNoContent)
	})

	mw := guard.Protect(TokenValidity(fixedNow), RoleCheck(RoleUser))
	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))

	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Equal(t, 1, invocations)
}

func TestGuardEmptyRulesIsPublic(t *testing.T) {
	guard := Guard{Now: fixedNow}

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	mw := guard.Protect()
	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(nil))
	assert.True(t, handlerCalled)
}

func TestGuardRecordsDecisions(t *testing.T) {
	recorder := &stubRecorder{}
	guard := Guard{Metrics: recorder, Now: fixedNow}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mw := guard.Protect(TokenValidity(fixedNow))

	mw(handler).ServeHTTP(httptest.NewRecorder(), newGuardedRequest(validIdentity(RoleUser)))
	mw(handler).ServeHTTP(httptest.NewRecorder(), newGuardedRequest(nil))

	require.Len(t, recorder.decisions, 2)
	assert.True(t, recorder.decisions[0].allowed)
	assert.False(t, recorder.decisions[1].allowed)
	assert.Equal(t, ReasonUnauthenticated, recorder.decisions[1].reason)
}

func TestGuardUnparseableResourceIDIs404(t *testing.T) {
	guard := Guard{Now: fixedNow}

	extractor := ResourceIDFunc(func(r *http.Request) (int64, error) {
		return PathResourceID(func(*http.Request) string { return "not-a-number" })(r)
	})
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	mw := guard.ProtectResource(extractor, TokenValidity(fixedNow))
	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))

	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, string(ReasonResourceNotFound), denialBody(t, res)["reason"])
	assert.False(t, handlerCalled)
}

func TestGuardPassesResourceIDToRules(t *testing.T) {
	guard := Guard{Now: fixedNow}

	var seenID int64
	lookup := func(_ context.Context, resourceID int64) (int64, error) {
		seenID = resourceID
		return 42, nil
	}
	extractor := ResourceIDFunc(func(*http.Request) (int64, error) { return 1234, nil })

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mw := guard.ProtectResource(extractor, TokenValidity(fixedNow), OwnershipCheck(lookup))
	mw(handler).ServeHTTP(httptest.NewRecorder(), newGuardedRequest(validIdentity(RoleUser)))

	assert.EqualValues(t, 1234, seenID)
}

func TestRequireOwnerPreset(t *testing.T) {
	guard := Guard{Now: fixedNow}
	extractor := ResourceIDFunc(func(*http.Request) (int64, error) { return 7, nil })

	t.Run("owner allowed, handler invoked exactly once", func(t *testing.T) {
		invocations := 0
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			invocations++
		})
		mw := guard.RequireOwner(extractor, ownerLookupFixed(42), RoleModerator)
		res := httptest.NewRecorder()
		mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))
		assert.Equal(t, http.StatusOK, res.Code)
		assert.Equal(t, 1, invocations)
	})

	t.Run("non-owner denied", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		mw := guard.RequireOwner(extractor, ownerLookupFixed(99), RoleModerator)
		res := httptest.NewRecorder()
		mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.Equal(t, string(ReasonNotOwner), denialBody(t, res)["reason"])
	})

	t.Run("moderator bypasses ownership", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
		mw := guard.RequireOwner(extractor, ownerLookupFixed(99), RoleModerator)
		res := httptest.NewRecorder()
		mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleModerator)))
		assert.Equal(t, http.StatusOK, res.Code)
	})
}

func TestRequireRolePreset(t *testing.T) {
	guard := Guard{Now: fixedNow}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	mw := guard.RequireRole(RoleAdmin)

	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, string(ReasonInsufficientRole), denialBody(t, res)["reason"])

	res = httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleAdmin)))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAuthenticatedPresetExpiredToken(t *testing.T) {
	guard := Guard{Now: fixedNow}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	identity := validIdentity(RoleUser)
	identity.ExpiresAt = fixedNow().Add(-time.Minute)

	res := httptest.NewRecorder()
	guard.RequireAuthenticated()(handler).ServeHTTP(res, newGuardedRequest(identity))
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, string(ReasonTokenExpired), denialBody(t, res)["reason"])
}

func TestRequireAnyPermissionPreset(t *testing.T) {
	guard := Guard{Now: fixedNow}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	mw := guard.RequireAnyPermission(PermContentManage)

	res := httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleModerator)))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	mw(handler).ServeHTTP(res, newGuardedRequest(validIdentity(RoleUser)))
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, string(ReasonInsufficientPermission), denialBody(t, res)["reason"])
}
