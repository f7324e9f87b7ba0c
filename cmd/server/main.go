package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/veil-waf/phishguard/internal/classify"
	"github.com/veil-waf/phishguard/internal/config"
	"github.com/veil-waf/phishguard/internal/db"
	"github.com/veil-waf/phishguard/internal/handlers"
	"github.com/veil-waf/phishguard/internal/ratelimit"
	"github.com/veil-waf/phishguard/internal/server"
	"github.com/veil-waf/phishguard/internal/sse"
	phishtls "github.com/veil-waf/phishguard/internal/tls"
	"github.com/veil-waf/phishguard/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := server.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trained artifacts are loaded once; without them nothing can be scored.
	store := classify.NewArtifactStore(classify.ArtifactPaths{
		Model:      cfg.ModelPath,
		Vectorizer: cfg.TFIDFPath,
		Labels:     cfg.LabelsPath,
	}, logger)
	artifacts, err := store.Load()
	if err != nil {
		logger.Error("failed to load model artifacts", "err", err)
		os.Exit(1)
	}
	scorer := classify.NewScorer(artifacts, logger)

	sseHub := sse.NewHub(logger)

	// Scan history (optional). With a database, live events come back through
	// LISTEN/NOTIFY so every replica sees every scan; without one, scans are
	// published to the hub directly.
	var (
		recorder handlers.ScanRecorder
		history  handlers.ScanHistory
		events   handlers.EventPublisher = sseHub
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		recorder, history, events = database, database, nil

		pgListener := sse.NewPGListener(database.Pool, database, sseHub, logger)
		go server.RunWithRecovery(ctx, logger, "pg-listener", pgListener.Listen)
	} else {
		logger.Warn("DATABASE_URL not set; scan history disabled")
	}

	limiter := ratelimit.New(ratelimit.Bucket{PerMinute: cfg.RateLimitPerMinute, Burst: cfg.RateLimitBurst})
	limiter.SetBucket("batch", ratelimit.Bucket{PerMinute: cfg.RateLimitPerMinute, Burst: max(cfg.RateLimitBurst, cfg.BatchMaxURLs)})

	checker := handlers.NewChecker(scorer, recorder, events, logger)
	checkHandler := handlers.NewCheckHandler(checker, limiter, cfg.BatchMaxURLs, cfg.BatchConcurrency, logger)
	historyHandler := handlers.NewHistoryHandler(history, logger)
	streamHandler := handlers.NewStreamHandler(sseHub, history, logger)
	wsManager := ws.NewManager(checker, limiter, logger)

	// Build router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/health", handlers.Health)
	r.Post("/checkURL", checkHandler.CheckURL)
	r.Post("/checkURLs", checkHandler.CheckURLs)
	r.Get("/ws", wsManager.HandleWS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/scans", historyHandler.ListScans)
		api.Get("/stats", historyHandler.GetStats)
		api.Get("/stream", streamHandler.HandleSSE)
	})

	// Start background goroutines
	go server.RunWithRecovery(ctx, logger, "ratelimit-cleanup", limiter.CleanupLoop)

	if cfg.TLSEnabled() {
		cm := phishtls.NewCertManager(phishtls.Options{
			Domains: cfg.TLSDomains,
			Email:   cfg.ACMEEmail,
			Staging: cfg.ACMEStaging,
		}, logger)
		go func() {
			if err := cm.ListenAndServe(ctx, r); err != nil {
				logger.Error("TLS server failed", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel() // stop background goroutines and the TLS server
		wsManager.CloseAll()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Port, "history", history != nil, "tls", cfg.TLSEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// corsMiddleware opens the API to every origin; the browser extension calls
// it from arbitrary pages.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
