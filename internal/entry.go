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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/engine"
	"github.com/starford/laguz/internal/graph"
	"github.com/starford/laguz/internal/index"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/sse"
	"github.com/starford/laguz/internal/vault"
	"github.com/starford/laguz/internal/watch"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. In MCP mode stdout carries the
	// protocol frames, so logs move to stderr.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_roots", strings.Join(cfg.Vault.AllPaths(), ",")),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure eager vault directories exist. Lazy roots are reference
	// material and must already be there.
	for _, root := range cfg.Vault.EagerPaths() {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return fmt.Errorf("create vault dir: %w", err)
		}
	}

	// Initialize vault storage over every configured root.
	store, err := vault.NewFS(cfg.Vault.AllPaths()...)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	// Initialize SQLite archive.
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}
	defer db.Close()

	// Build the initial graph from the eager roots.
	eng := engine.New(store, cfg.Vault.MaxFiles, logger)
	live, err := eng.Load(ctx, cfg.Vault.EagerPaths())
	if err != nil {
		var qe *engine.QuotaError
		if errors.As(err, &qe) {
			logger.Error("vault exceeds file limit, refusing to scan",
				slog.Int("count", qe.Count),
				slog.Int("limit", qe.Limit))
		}
		return fmt.Errorf("initial scan: %w", err)
	}

	// Pull in lazy-root files the eager graph already links to.
	if resolved, delta, rerr := eng.Resolve(ctx, live, cfg.Vault.LazyPaths()); rerr != nil {
		logger.Warn("initial resolve pass failed", slog.String("error", rerr.Error()))
	} else if !delta.Empty() {
		live = resolved
	}

	guard := engine.NewEchoGuard(cfg.Engine.EchoWindow.Std())
	disp := engine.NewDispatcher(eng, guard, live, cfg.Vault.LazyPaths(), logger)

	// Rebuild the archive from the live graph, then keep it current as a
	// delta subscriber.
	archive := index.NewArchive(db, logger)
	if err := db.Reset(); err != nil {
		logger.Warn("archive reset failed", slog.String("error", err.Error()))
	}
	archive.ApplyDelta(graph.SnapshotDelta(live))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	disp.Register(archive)
	disp.Register(broker)

	// Build API service and router.
	svc := api.NewService(disp, db)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	logger.Info("Server starting...",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.Int("nodes", live.Len()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	grp, gCtx := errgroup.WithContext(runCtx)

	// Dispatcher goroutine: the single writer for the graph.
	grp.Go(func() error {
		return disp.Run(gCtx)
	})

	// One watcher per eager root.
	for _, root := range cfg.Vault.EagerPaths() {
		root := root
		grp.Go(func() error {
			if err := watch.Watch(gCtx, store, root, disp.Events(), disp.Snapshot, logger); err != nil {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		})
	}

	// Periodic resolve retry for link targets that appear later.
	if cfg.Engine.ResolveRetry > 0 {
		grp.Go(func() error {
			ticker := time.NewTicker(cfg.Engine.ResolveRetry.Std())
			defer ticker.Stop()
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					if err := disp.ResolvePending(gCtx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("resolve retry failed", slog.String("error", err.Error()))
					}
				}
			}
		})
	}

	// Start HTTP server.
	grp.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// MCP stdio server.
	if app.mcp {
		mcpSrv := mcpserver.New(svc)
		grp.Go(func() error {
			if err := mcpSrv.ServeStdio(); err != nil {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	grp.Go(func() error {
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
		broker.Close()
		stop()

		return nil
	})

	if err := grp.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
