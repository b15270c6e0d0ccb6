package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genesis-login/internal/config"
	"genesis-login/internal/directory"
	"genesis-login/internal/handlers"
	"genesis-login/internal/session"
	"genesis-login/internal/store"

	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting login service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Durable token storage: Redis when configured, process-local otherwise.
	var kv store.KV
	if cfg.RedisURL != "" {
		redisKV, err := store.NewRedisKV(cfg.RedisURL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize redis", zap.Error(err))
		}
		defer redisKV.Close()
		kv = redisKV
	} else {
		logger.Warn("REDIS_URL not set, sessions will not survive a restart")
		kv = store.NewMemoryKV()
	}

	// Directory client for the unauthenticated read endpoints
	dir := directory.NewClient(cfg.BaseURL, cfg.APIPrefix, cfg.HTTPTimeout, logger)

	// Session orchestrator
	orchestrator := session.NewOrchestrator(session.Options{
		BaseURL:       cfg.BaseURL,
		APIPrefix:     cfg.APIPrefix,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		StoragePrefix: cfg.StoragePrefix,
		Timeout:       cfg.HTTPTimeout,
	}, dir, kv, logger)
	defer orchestrator.Close()

	// Resolve the identity-provider config and bind the session to its
	// tenant. A failed lookup is best-effort: the service starts with a
	// disabled client and every grant fails until the config resolves.
	ctx := context.Background()
	if cfg.IdpUUID != "" {
		idpConfig, err := dir.GetIdentityProvider(ctx, cfg.IdpUUID)
		if err != nil {
			logger.Error("Failed to load IdP configuration", zap.String("idp_uuid", cfg.IdpUUID), zap.Error(err))
		} else {
			logger.Info("Identity provider resolved",
				zap.String("idp_uuid", idpConfig.UUID),
				zap.String("name", idpConfig.Name))
			orchestrator.Bind(ctx, idpConfig)
		}
	} else {
		logger.Warn("GENESIS_IDP_UUID not set, credential operations are disabled")
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(orchestrator, logger)
	authorizationHandler := handlers.NewAuthorizationHandler(
		dir,
		orchestrator,
		cfg.BaseURL,
		cfg.APIPrefix,
		cfg.HTTPTimeout,
		logger,
	)

	// Setup router
	router := SetupRouter(sessionHandler, authorizationHandler, logger)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
