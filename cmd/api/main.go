package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miso-46/AI-minutes/internal/api"
	"github.com/miso-46/AI-minutes/internal/api/handler"
	"github.com/miso-46/AI-minutes/internal/api/middleware"
	"github.com/miso-46/AI-minutes/internal/app"
	"github.com/miso-46/AI-minutes/internal/auth"
	"github.com/miso-46/AI-minutes/internal/config"
	"github.com/miso-46/AI-minutes/internal/logger"
	"github.com/miso-46/AI-minutes/internal/metrics"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	verifier, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize token verifier")
	}

	metrics.MustRegister()

	ctx := context.Background()
	components, err := app.Wire(ctx, cfg, nil)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}

	router := api.SetupRouter(api.RouterDeps{
		Pipeline: components.Pipeline,
		Minutes:  components.Minutes,
		Chat:     components.Chat,
		Summary:  components.Summary,
		Verifier: verifier,
		HealthChecks: map[string]handler.HealthCheck{
			"database": components.Ping,
		},
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}, cfg.Server.Mode)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	// Running jobs get longer to reach a terminal status.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancelDrain()
	if err := components.Dispatcher.Shutdown(drainCtx); err != nil {
		appLogger.WithError(err).Warn("Pipeline jobs still running at exit")
	}
	components.Close()

	appLogger.Info("Server exited")
}
