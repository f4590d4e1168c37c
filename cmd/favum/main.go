package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/favum/favum/internal/app"
	"github.com/favum/favum/internal/auth"
	"github.com/favum/favum/internal/authz"
	"github.com/favum/favum/internal/observability"
	"github.com/favum/favum/internal/platform/cache"
	"github.com/favum/favum/internal/platform/db"
	"github.com/favum/favum/internal/posts"
	"github.com/favum/favum/internal/rbac"
	"github.com/favum/favum/internal/token"
	"github.com/favum/favum/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	graph := authz.DefaultGraph()
	resolver := authz.NewResolver(graph)
	metrics := observability.NewMetrics()

	tokens := token.NewJWT(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL, redisClient)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	guard := authz.NewGuard(logger, metrics)
	guard.Auditor = &jobs.DenialAuditor{Client: jobsClient, Logger: logger}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokens, tokens, jobsClient, logger)
	authHandler := auth.NewHandler(logger, authService, tokens, guard)

	postsRepo := posts.NewRepository(dbpool)
	postsService := posts.NewService(postsRepo)
	postsHandler := posts.NewHandler(logger, postsService, guard)

	rbacHandler := rbac.NewHandler(logger, graph, resolver, guard)

	router := app.NewRouter(app.RouterParams{
		Middleware: app.MiddlewareConfig{
			Logger:   logger,
			Config:   cfg,
			Decoder:  tokens,
			Resolver: resolver,
			Metrics:  metrics,
		},
		AuthHandler:  authHandler,
		PostsHandler: postsHandler,
		RBACHandler:  rbacHandler,
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
