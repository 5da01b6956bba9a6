// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/sse"
)

// Run starts the HTTP server with the given options: it builds or restores
// the index, then serves the API while the watcher and the reconcile loop
// keep the index in step with the vault.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("snapshot_path", cfg.Snapshot.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker. Per-document index events feed its throttled stream.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	sys, err := openSystem(cfg, logger,
		func(path string) { broker.PublishDocumentEvent(sse.TypeDocumentIndexed, path) },
		func(path string) { broker.PublishDocumentEvent(sse.TypeDocumentRemoved, path) })
	if err != nil {
		return err
	}
	defer sys.close(logger)

	// Populate the index before accepting requests.
	if err := loadIndex(ctx, sys.index, sys.snaps, logger); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	// Build API handler and router.
	h := api.NewHandler(sys.index, sys.registry, sys.orchestrator, sys.embedder, func() {
		broker.Publish(sse.Event{Type: sse.TypeIndexRebuilt, Data: sys.index.Stats()})
	})
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Cancelled after the server drains so the watcher and reconcile loop
	// exit and g.Wait can return.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the vault for changes. A watcher failure degrades the server to
	// periodic reconciliation instead of killing it.
	g.Go(func() error {
		if err := index.Watch(gCtx, sys.index, sys.files, logger); err != nil {
			logger.Warn("File watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Periodic and triggered reconciliation.
	g.Go(func() error {
		return sys.index.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		cancelRun()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
