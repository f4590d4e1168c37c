// Package rbac exposes a read-only admin surface over the static role
// graph: which roles exist, what they grant directly, what they resolve
// to transitively. The graph itself is boot-time configuration; there is
// no mutation API.
package rbac

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/platform/httpx"
)

// Handler serves role and permission listings.
type Handler struct {
	logger   *slog.Logger
	graph    *authz.Graph
	resolver *authz.Resolver
	guard    authz.Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, graph *authz.Graph, resolver *authz.Resolver, guard authz.Guard) *Handler {
	return &Handler{logger: logger, graph: graph, resolver: resolver, guard: guard}
}

// MountRoutes registers rbac admin routes. Everything here requires the
// users.manage permission.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAllPermissions(authz.PermUsersManage))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{role}", h.showRole)
		r.Get("/permissions", h.listPermissions)
	})
}

type roleSummary struct {
	Role     string   `json:"role"`
	Direct   []string `json:"direct_permissions"`
	Parents  []string `json:"parents"`
	Resolved []string `json:"resolved_permissions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles := authz.Roles()
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	out := make([]roleSummary, 0, len(roles))
	for _, role := range roles {
		if !h.graph.Contains(role) {
			continue
		}
		out = append(out, h.summarize(role))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	role, err := authz.ParseRole(chi.URLParam(r, "role"))
	if err != nil || !h.graph.Contains(role) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown role")
		return
	}
	httpx.JSON(w, http.StatusOK, h.summarize(role))
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := authz.Permissions()
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, string(p))
	}
	sort.Strings(out)
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) summarize(role authz.Role) roleSummary {
	summary := roleSummary{Role: string(role)}
	for p := range h.graph.DirectPermissions(role) {
		summary.Direct = append(summary.Direct, string(p))
	}
	for _, parent := range h.graph.Parents(role) {
		summary.Parents = append(summary.Parents, string(parent))
	}
	for p := range h.resolver.Resolve(role) {
		summary.Resolved = append(summary.Resolved, string(p))
	}
	sort.Strings(summary.Direct)
	sort.Strings(summary.Parents)
	sort.Strings(summary.Resolved)
	return summary
}
