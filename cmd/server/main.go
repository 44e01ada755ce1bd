package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/HammerMeetNail/feedsync/internal/config"
	"github.com/HammerMeetNail/feedsync/internal/database"
	"github.com/HammerMeetNail/feedsync/internal/handlers"
	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/middleware"
	"github.com/HammerMeetNail/feedsync/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting feedsync server...")

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	logger.Info("Running database migrations...", map[string]interface{}{"path": cfg.Server.MigrationsPath})
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Server.MigrationsPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(database.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	userService := services.NewUserService(dbAdapter)
	activityService := services.NewActivityService(dbAdapter)
	reactionService := services.NewReactionService(dbAdapter, redisAdapter)

	var verifier services.TokenVerifier
	if cfg.Auth.OIDCEnabled() {
		oidcVerifier, err := services.NewOIDCVerifier(context.Background(), services.OIDCVerifierConfig{
			IssuerURL: cfg.Auth.OIDCIssuerURL,
			ClientID:  cfg.Auth.OIDCClientID,
		})
		if err != nil {
			return fmt.Errorf("initializing oidc verifier: %w", err)
		}
		verifier = oidcVerifier
		logger.Info("OIDC bearer authentication enabled", map[string]interface{}{"issuer": cfg.Auth.OIDCIssuerURL})
	}
	if cfg.Auth.AllowDevHeader {
		logger.Warn("Dev user header authentication enabled", map[string]interface{}{"header": middleware.UserIDHeader})
	}

	healthHandler := handlers.NewHealthHandler(db, redisDB)
	itemHandler := handlers.NewItemHandler(activityService)
	reactionHandler := handlers.NewReactionHandler(reactionService)

	authMiddleware := middleware.NewAuthMiddleware(verifier, userService, cfg.Auth.AllowDevHeader)
	requestLogger := middleware.NewRequestLogger(logger)
	reactionLimiter := middleware.NewRateLimiter(
		redisDB.Client,
		resolveReactionRateLimit(cfg, logger, os.LookupEnv),
		cfg.RateLimit.Window,
		"rl:reactions:",
		middleware.UserKey,
		true,
	)
	limitReactions := func(h http.HandlerFunc) http.Handler {
		return reactionLimiter.Middleware(h)
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	mux.HandleFunc("GET /api/items", itemHandler.List)
	mux.HandleFunc("POST /api/items", itemHandler.Create)
	mux.HandleFunc("GET /api/items/{id}/reactions", reactionHandler.GetSummary)

	mux.Handle("POST /api/reactions", limitReactions(reactionHandler.AddReaction))
	mux.Handle("DELETE /api/reactions/{id}", limitReactions(reactionHandler.RemoveReaction))
	mux.HandleFunc("GET /api/reactions/kinds", reactionHandler.GetAllowedKinds)

	// Build middleware chain (order matters: outermost last)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

// resolveReactionRateLimit lets REACTION_RATE_LIMIT override the configured
// limit. Development gets a generous default so local scrolling and tapping
// never trips it.
func resolveReactionRateLimit(cfg *config.Config, logger *logging.Logger, lookupEnv func(string) (string, bool)) int64 {
	limit := cfg.RateLimit.ReactionsPerWindow
	if limit <= 0 {
		limit = 120
	}
	if cfg.Server.Environment == "development" {
		limit = 1000
		logger.Info("Using development reaction rate limit", map[string]interface{}{"limit": limit})
	}
	if v, ok := lookupEnv("REACTION_RATE_LIMIT"); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			limit = parsed
			logger.Info("Using reaction rate limit from env", map[string]interface{}{"limit": limit})
		} else {
			logger.Warn("Invalid REACTION_RATE_LIMIT; using default", map[string]interface{}{
				"value": v,
				"limit": limit,
			})
		}
	}
	return limit
}
