package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/observability"
	"github.com/favum/favum/internal/token"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Decoder  token.Decoder
	Resolver *authz.Resolver
	Metrics  *observability.Metrics
}

// TokenMiddleware resolves the bearer token into an identity. It never
// rejects by itself: decode failures are recorded on the context and a
// missing token simply leaves the request unauthenticated, so the guard
// rules on each route decide what that means.
func TokenMiddleware(decoder token.Decoder, resolver *authz.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			claims, err := decoder.Decode(ctx, raw)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrExpired):
					ctx = authz.ContextWithTokenError(ctx, authz.ErrTokenExpired)
				case errors.Is(err, token.ErrRevoked):
					ctx = authz.ContextWithTokenError(ctx, authz.ErrTokenRevoked)
				default:
					ctx = authz.ContextWithTokenError(ctx, authz.ErrTokenInvalid)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			role, err := authz.ParseRole(claims.Role)
			if err != nil {
				// A token carrying a role outside the enumeration is a
				// misconfiguration, not a downgrade-to-default case.
				if logger != nil {
					logger.Error("token carries unknown role",
						slog.String("role", claims.Role),
						slog.Int64("user_id", claims.Subject))
				}
				ctx = authz.ContextWithTokenError(ctx, authz.ErrTokenInvalid)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			identity := authz.NewContext(resolver, claims.Subject, claims.Username, role, claims.ExpiresAt, claims.Extra)
			next.ServeHTTP(w, r.WithContext(authz.ContextWithIdentity(ctx, identity)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// MiddlewareStack installs the Favum middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	rateRequests := 120
	rateWindow := time.Minute
	if cfg.Config != nil {
		if cfg.Config.AppRequestTimeout > 0 {
			timeout = cfg.Config.AppRequestTimeout
		}
		if cfg.Config.RateLimitRequests > 0 {
			rateRequests = cfg.Config.RateLimitRequests
		}
		if cfg.Config.RateLimitWindow > 0 {
			rateWindow = cfg.Config.RateLimitWindow
		}
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(rateRequests, rateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)),
		TokenMiddleware(cfg.Decoder, cfg.Resolver, cfg.Logger),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
