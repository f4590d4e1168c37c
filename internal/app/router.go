package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/favum/favum/internal/auth"
	"github.com/favum/favum/internal/observability"
	"github.com/favum/favum/internal/posts"
	"github.com/favum/favum/internal/rbac"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Middleware   MiddlewareConfig
	AuthHandler  *auth.Handler
	PostsHandler *posts.Handler
	RBACHandler  *rbac.Handler
	Metrics      *observability.Metrics
}

// NewRouter constructs the chi.Router with Favum defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Middleware) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/posts", params.PostsHandler.MountRoutes)
	if params.RBACHandler != nil {
		r.Route("/admin/rbac", params.RBACHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
