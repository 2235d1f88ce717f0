package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/mentionwatch/mentionwatch/internal/ai"
	"github.com/mentionwatch/mentionwatch/internal/api"
	"github.com/mentionwatch/mentionwatch/internal/auth"
	"github.com/mentionwatch/mentionwatch/internal/config"
	"github.com/mentionwatch/mentionwatch/internal/database"
	"github.com/mentionwatch/mentionwatch/internal/logging"
	"github.com/mentionwatch/mentionwatch/internal/metrics"
	"github.com/mentionwatch/mentionwatch/internal/polling"
	"github.com/mentionwatch/mentionwatch/internal/server"
	"github.com/mentionwatch/mentionwatch/internal/social"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting mentionwatch")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = os.Getenv("DATABASE_URL")

	logger.Info("connecting to database")
	db, err := database.Connect(context.Background(), dbConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Run pending migrations (non-fatal to allow app to start even if migrations fail)
	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Create repositories
	accountRepo := database.NewPostgresAccountRepository(db)
	mentionRepo := database.NewPostgresMentionRepository(db)
	stateRepo := database.NewPostgresOAuthStateRepository(db)

	// Twitter API plumbing
	twitterClient := social.NewTwitterClient(cfg.Twitter.ClientID, cfg.Twitter.ClientSecret, logger)
	tokenManager := social.NewTokenManager(twitterClient, accountRepo, logger)
	oauthManager := social.NewOAuthManager(twitterClient, accountRepo, stateRepo, cfg.Twitter, logger)

	// AI reply suggestions are optional; run without them when no key is set
	var responder *ai.Responder
	aiConfig := ai.ConfigFromEnv()
	if aiConfig.APIKey != "" {
		responder, err = ai.NewResponder(aiConfig, logger)
		if err != nil {
			logger.Warn("failed to initialize AI responder, suggestions disabled", "error", err)
		} else {
			logger.Info("AI responder initialized", "model", aiConfig.Model)
		}
	} else {
		logger.Info("OPENAI_API_KEY not set, AI suggestions disabled")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Poll scheduler
	fetcher := polling.NewFetcher(twitterClient, accountRepo, mentionRepo, logger)
	scheduler := polling.NewScheduler(fetcher, tokenManager, accountRepo, oauthManager, collector, cfg.Polling, logger)

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.HealthCheck(r.Context(), db); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Service info endpoint
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"mentionwatch","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	// Load auth configuration
	authConfig := auth.LoadConfigFromEnv()
	logger.Info("auth configured", "jwt_secret_set", authConfig.JWTSecret != "change-this-secret")

	// Add REST API routes
	logger.Info("setting up REST API")
	api.SetupRoutes(mux, accountRepo, mentionRepo, twitterClient, tokenManager, oauthManager, scheduler, responder, authConfig, logger)

	// Start the poll scheduler
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go scheduler.Start(schedulerCtx)

	// Start server
	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("mentionwatch started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	stopScheduler()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
