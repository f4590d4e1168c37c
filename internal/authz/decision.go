package authz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Reason is a stable machine-readable code attached to every denial.
type Reason string

// Denial reasons grouped by taxonomy: authentication (401),
// authorization (403), resource (404), infrastructure (500).
const (
	ReasonUnauthenticated        Reason = "unauthenticated"
	ReasonTokenExpired           Reason = "token_expired"
	ReasonTokenInvalid           Reason = "token_invalid"
	ReasonTokenRevoked           Reason = "token_revoked"
	ReasonInsufficientRole       Reason = "insufficient_role"
	ReasonInsufficientPermission Reason = "insufficient_permission"
	ReasonNotOwner               Reason = "not_owner"
	ReasonResourceNotFound       Reason = "resource_not_found"
	ReasonOwnerLookupFailed      Reason = "owner_lookup_failed"
)

// Decode failure sentinels. The token middleware maps decoder errors onto
// these before recording them in the request context; TokenValidity turns
// them into the matching denial.
var (
	ErrTokenExpired = errors.New("authz: token expired")
	ErrTokenInvalid = errors.New("authz: token invalid")
	ErrTokenRevoked = errors.New("authz: token revoked")
)

// ErrOwnerNotFound is returned by an OwnerLookup when the resource does
// not exist. Distinct from a failed lookup: absence yields 404, failure
// yields 500, and neither is evidence of non-ownership.
var ErrOwnerNotFound = errors.New("authz: resource owner not found")

// Decision is the outcome of one rule. Denials carry a reason code, the
// HTTP status the transport layer should map to, and a human-readable
// message that never leaks internal state beyond the named requirement.
type Decision struct {
	Allowed bool
	Reason  Reason
	Status  int
	Message string
}

// Allow is the passing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a rejecting decision.
func Deny(reason Reason, status int, message string) Decision {
	return Decision{Reason: reason, Status: status, Message: message}
}

// Request carries the per-request parameters a rule may need beyond the
// identity itself. ResourceID is only meaningful for ownership rules.
type Request struct {
	ResourceID int64
}

// Rule is a pure authorization check. It reads the identity and request,
// never mutates either, and its only permitted side effect is the I/O an
// injected OwnerLookup performs.
type Rule func(ctx context.Context, identity *AuthContext, req Request) Decision

// OwnerLookup resolves the owning user of a resource. It is the sole
// asynchronous boundary in the decision pipeline and may block on I/O;
// implementations must honor ctx cancellation. Return ErrOwnerNotFound
// (possibly wrapped) when the resource does not exist.
type OwnerLookup func(ctx context.Context, resourceID int64) (int64, error)

// TokenValidity denies unauthenticated or expired identities. It must run
// before any rule that reads role or permissions, since those fields are
// meaningless on an absent identity.
func TokenValidity(now func() time.Time) Rule {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, identity *AuthContext, _ Request) Decision {
		if identity == nil {
			if err := TokenErrorFromContext(ctx); err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					return Deny(ReasonTokenExpired, http.StatusUnauthorized, "token has expired")
				case errors.Is(err, ErrTokenRevoked):
					return Deny(ReasonTokenRevoked, http.StatusUnauthorized, "token has been revoked")
				default:
					return Deny(ReasonTokenInvalid, http.StatusUnauthorized, "token is invalid")
				}
			}
			return Deny(ReasonUnauthenticated, http.StatusUnauthorized, "authentication required")
		}
		if identity.Expired(now()) {
			return Deny(ReasonTokenExpired, http.StatusUnauthorized, "token has expired")
		}
		return Allow()
	}
}

// RoleCheck denies identities whose role is outside the allowed set.
// RoleSuper always passes: the super role bypass is an intentional,
// documented exception, not a side effect of set membership.
func RoleCheck(allowed ...Role) Rule {
	set := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(_ context.Context, identity *AuthContext, _ Request) Decision {
		if identity == nil {
			return Deny(ReasonUnauthenticated, http.StatusUnauthorized, "authentication required")
		}
		if identity.Role == RoleSuper {
			return Allow()
		}
		if _, ok := set[identity.Role]; !ok {
			return Deny(ReasonInsufficientRole, http.StatusForbidden,
				fmt.Sprintf("role %q is not permitted", identity.Role))
		}
		return Allow()
	}
}

// PermissionCheck denies identities missing the required permissions:
// every one of them when requireAll is true, at least one otherwise.
func PermissionCheck(requireAll bool, perms ...Permission) Rule {
	return func(_ context.Context, identity *AuthContext, _ Request) Decision {
		if identity == nil {
			return Deny(ReasonUnauthenticated, http.StatusUnauthorized, "authentication required")
		}
		matched := 0
		var missing Permission
		for _, p := range perms {
			if identity.HasPermission(p) {
				matched++
				continue
			}
			missing = p
		}
		if requireAll && matched != len(perms) {
			return Deny(ReasonInsufficientPermission, http.StatusForbidden,
				fmt.Sprintf("permission %q required", missing))
		}
		if !requireAll && matched == 0 && len(perms) > 0 {
			return Deny(ReasonInsufficientPermission, http.StatusForbidden, "none of the required permissions granted")
		}
		return Allow()
	}
}

// OwnershipCheck denies identities that do not own the resource named by
// the request. Roles in bypass skip the lookup entirely; the bypass set
// is a parameter, not a hardcoded list. A missing resource is reported as
// 404, a failed or cancelled lookup as 500: neither implies non-ownership.
func OwnershipCheck(lookup OwnerLookup, bypass ...Role) Rule {
	bypassSet := make(map[Role]struct{}, len(bypass))
	for _, r := range bypass {
		bypassSet[r] = struct{}{}
	}
	return func(ctx context.Context, identity *AuthContext, req Request) Decision {
		if identity == nil {
			return Deny(ReasonUnauthenticated, http.StatusUnauthorized, "authentication required")
		}
		if _, ok := bypassSet[identity.Role]; ok || identity.Role == RoleSuper {
			return Allow()
		}
		ownerID, err := safeLookup(ctx, lookup, req.ResourceID)
		if err != nil {
			if errors.Is(err, ErrOwnerNotFound) {
				return Deny(ReasonResourceNotFound, http.StatusNotFound, "resource not found")
			}
			return Deny(ReasonOwnerLookupFailed, http.StatusInternalServerError, "ownership could not be verified")
		}
		if ownerID != identity.UserID {
			return Deny(ReasonNotOwner, http.StatusForbidden, "resource belongs to another user")
		}
		return Allow()
	}
}

// safeLookup shields the pipeline from a panicking lookup callback; an
// unexpected panic is an infrastructure failure, not a crash of the
// request pipeline.
func safeLookup(ctx context.Context, lookup OwnerLookup, resourceID int64) (ownerID int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("authz: owner lookup panicked: %v", r)
		}
	}()
	if lookup == nil {
		return 0, errors.New("authz: owner lookup not configured")
	}
	ownerID, err = lookup(ctx, resourceID)
	if err != nil {
		return 0, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}
	return ownerID, nil
}
