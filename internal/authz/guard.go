package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/favum/favum/internal/platform/httpx"
)

// DecisionRecorder receives the outcome of every guarded request.
// Implemented by the observability package; nil disables recording.
type DecisionRecorder interface {
	RecordDecision(allowed bool, reason Reason)
}

// DenialAuditor receives every denial for the asynchronous audit trail.
// Implementations must not block the request path on failure; nil
// disables auditing.
type DenialAuditor interface {
	AuditDenial(ctx context.Context, userID int64, path string, reason Reason, status int)
}

// ResourceIDFunc extracts the target resource identifier from a request,
// for routes guarded by an ownership rule.
type ResourceIDFunc func(*http.Request) (int64, error)

// Guard composes ordered rules around HTTP handlers. Evaluation is
// first-deny-wins: once a rule denies, later rules are not evaluated and
// the wrapped handler is never invoked. The failure path performs no
// mutation; logging and metrics are its only observable effects.
type Guard struct {
	Logger  *slog.Logger
	Metrics DecisionRecorder
	Auditor DenialAuditor
	Now     func() time.Time
}

// NewGuard constructs a Guard.
func NewGuard(logger *slog.Logger, metrics DecisionRecorder) Guard {
	return Guard{Logger: logger, Metrics: metrics, Now: time.Now}
}

// Protect wraps a handler with the given rules. An empty rule list means
// the route is public and the handler runs unconditionally.
func (g Guard) Protect(rules ...Rule) func(http.Handler) http.Handler {
	return g.protect(nil, rules)
}

// ProtectResource is Protect for routes whose rules need a resource
// identifier, extracted per request by resourceID.
func (g Guard) ProtectResource(resourceID ResourceIDFunc, rules ...Rule) func(http.Handler) http.Handler {
	return g.protect(resourceID, rules)
}

func (g Guard) protect(resourceID ResourceIDFunc, rules []Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity := IdentityFromContext(ctx)

			req := Request{}
			if resourceID != nil {
				id, err := resourceID(r)
				if err != nil {
					// An unparseable identifier cannot name an existing
					// resource.
					g.deny(w, r, Deny(ReasonResourceNotFound, http.StatusNotFound, "resource not found"))
					return
				}
				req.ResourceID = id
			}

			for _, rule := range rules {
				decision := rule(ctx, identity, req)
				if !decision.Allowed {
					g.deny(w, r, decision)
					return
				}
			}
			if g.Metrics != nil {
				g.Metrics.RecordDecision(true, "")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g Guard) deny(w http.ResponseWriter, r *http.Request, decision Decision) {
	if g.Logger != nil {
		g.Logger.Warn("request denied",
			slog.String("path", r.URL.Path),
			slog.String("reason", string(decision.Reason)),
			slog.Int("status", decision.Status),
		)
	}
	if g.Metrics != nil {
		g.Metrics.RecordDecision(false, decision.Reason)
	}
	if g.Auditor != nil {
		var userID int64
		if identity := IdentityFromContext(r.Context()); identity != nil {
			userID = identity.UserID
		}
		g.Auditor.AuditDenial(r.Context(), userID, r.URL.Path, decision.Reason, decision.Status)
	}
	httpx.DenyProblem(w, decision.Status, string(decision.Reason), decision.Message)
}

// Presets. Each is composition sugar over the primitive rules; none of
// them introduces behavior the primitives cannot express.

// RequireAuthenticated admits any identity with a valid, unexpired token.
func (g Guard) RequireAuthenticated() func(http.Handler) http.Handler {
	return g.Protect(TokenValidity(g.Now))
}

// RequireRole admits identities holding one of the given roles.
func (g Guard) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return g.Protect(TokenValidity(g.Now), RoleCheck(roles...))
}

// RequireAnyPermission admits identities holding at least one permission.
func (g Guard) RequireAnyPermission(perms ...Permission) func(http.Handler) http.Handler {
	return g.Protect(TokenValidity(g.Now), PermissionCheck(false, perms...))
}

// RequireAllPermissions admits identities holding every permission.
func (g Guard) RequireAllPermissions(perms ...Permission) func(http.Handler) http.Handler {
	return g.Protect(TokenValidity(g.Now), PermissionCheck(true, perms...))
}

// RequireOwner admits the resource owner, or any identity whose role is
// in the bypass set.
func (g Guard) RequireOwner(resourceID ResourceIDFunc, lookup OwnerLookup, bypass ...Role) func(http.Handler) http.Handler {
	return g.ProtectResource(resourceID, TokenValidity(g.Now), OwnershipCheck(lookup, bypass...))
}

// PathResourceID builds a ResourceIDFunc over a URL path parameter
// produced by the router; the value function receives the request and
// returns the raw parameter (chi.URLParam partially applied upstream).
func PathResourceID(param func(*http.Request) string) ResourceIDFunc {
	return func(r *http.Request) (int64, error) {
		return strconv.ParseInt(param(r), 10, 64)
	}
}
