// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/quill/internal/export"
	"github.com/starford/quill/internal/mcpserver"
	"github.com/starford/quill/internal/noteservice"
	"github.com/starford/quill/internal/shell"
	"github.com/starford/quill/internal/sse"
	"github.com/starford/quill/internal/store"
	"github.com/starford/quill/internal/ui"
	"github.com/starford/quill/internal/watch"
	"github.com/starford/quill/internal/web"
)

const eventThrottle = 250 * time.Millisecond

func newApplication(opts []Option) (*application, error) {
	app := &application{
		version:   "dev",
		logOutput: os.Stdout,
	}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openStore opens the note database. A failure is logged and replaced by a
// store that fails every operation, so the surfaces still come up with an
// empty list. The returned db is nil in that case.
func (a *application) openStore(logger *slog.Logger) (store.Store, *store.DB) {
	db, err := store.Open(a.config.SQLite.Path)
	if err != nil {
		logger.Error("open note store failed",
			slog.String("sqlite_path", a.config.SQLite.Path),
			slog.String("error", err.Error()))
		return store.Unavailable{Err: err}, nil
	}
	return db, db
}

// Run starts the web server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	st, db := app.openStore(logger)
	if db != nil {
		defer db.Close()
	}

	svc := noteservice.NewService(st)
	ctrl := ui.New(svc, logger)
	defer ctrl.Close()
	if err := ctrl.Reload(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	broker := sse.NewBroker(eventThrottle)
	defer broker.Close()

	srv := web.NewServer(ctrl, svc, broker, logger)

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
		if db == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"store unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"sse_clients": broker.ClientCount(),
		})
	})

	r.Mount("/", srv.Router(cfg.Auth.AuthEnabled(), cfg.Auth.Token))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}
	// SSE streams never finish on their own; closing the broker ends them.
	httpServer.RegisterOnShutdown(broker.Close)

	// Registered before anything listens so a signal never hits the default
	// handler once the server is reachable.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// stop ends every goroutine of the group, including the watcher, which
	// only returns when its context is done.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Reload when another process writes the database.
	if cfg.Watch.Enabled && db != nil {
		g.Go(func() error {
			err := watch.Watch(gCtx, db.Path(), cfg.Watch.Debounce, logger, func(ctx context.Context) {
				if err := ctrl.Reload(ctx); err != nil {
					logger.Warn("reload after store change failed", slog.String("error", err.Error()))
					return
				}
				broker.NotesChanged("watch")
			})
			if err != nil {
				logger.Warn("store watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunShell starts the interactive terminal shell.
func RunShell(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	st, db := app.openStore(logger)
	if db != nil {
		defer db.Close()
	}

	ctrl := ui.New(noteservice.NewService(st), logger)
	defer ctrl.Close()
	if err := ctrl.Reload(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	return shell.Run(ctx, ctrl)
}

// RunMCP serves the note tools over MCP stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	st, db := app.openStore(logger)
	if db != nil {
		defer db.Close()
	}

	logger.Info("Starting MCP stdio server", slog.String("version", app.version))
	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpserver.New(noteservice.NewService(st), app.version).ServeStdio()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// RunExport writes every note as a Markdown file under dir.
func RunExport(ctx context.Context, dir string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer db.Close()

	n, err := export.ToDir(ctx, noteservice.NewService(db), dir)
	if err != nil {
		return err
	}
	logger.Info("Export finished", slog.Int("notes", n), slog.String("dir", dir))
	return nil
}

// RunImport reads Markdown note files from dir into the store.
func RunImport(ctx context.Context, dir string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	defer db.Close()

	imported, skipped, err := export.FromDir(ctx, noteservice.NewService(db), dir)
	for _, s := range skipped {
		logger.Warn("Skipped note file", slog.String("path", s.Path), slog.String("error", s.Err.Error()))
	}
	if err != nil {
		return err
	}
	logger.Info("Import finished",
		slog.Int("notes", imported),
		slog.Int("skipped", len(skipped)),
		slog.String("dir", dir))
	return nil
}
