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

	"golang.org/x/sync/errgroup"

	"github.com/starford/flashdesk/internal/hostapi"
	"github.com/starford/flashdesk/internal/mcpserver"
	"github.com/starford/flashdesk/internal/noteservice"
	"github.com/starford/flashdesk/internal/notify"
	"github.com/starford/flashdesk/internal/prefs"
	"github.com/starford/flashdesk/internal/querycache"
	"github.com/starford/flashdesk/internal/sse"
	"github.com/starford/flashdesk/internal/watch"
	"github.com/starford/flashdesk/internal/web"
)

// setup applies opts and builds the logger and note service every command
// shares.
func setup(opts []Option) (*application, *slog.Logger, *noteservice.Service, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	host := app.host
	if host == nil {
		var hopts []hostapi.Option
		if cfg.Host.APIKey != "" {
			hopts = append(hopts, hostapi.WithAPIKey(cfg.Host.APIKey))
		}
		if cfg.Host.Timeout > 0 {
			hopts = append(hopts, hostapi.WithTimeout(cfg.Host.Timeout))
		}
		host = hostapi.NewClient(cfg.Host.BaseURL, hopts...)
	}

	cache, err := querycache.New(querycache.Options{
		Size:     cfg.Cache.Size,
		FreshFor: cfg.Cache.FreshFor,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init cache: %w", err)
	}

	return app, logger, noteservice.NewService(host, cache), nil
}

func openPrefs(path string) (prefs.Store, error) {
	if path == "" {
		return prefs.NewMemory(), nil
	}
	return prefs.Open(path)
}

// Run starts the web server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, svc, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("host_url", cfg.Host.BaseURL),
		slog.String("prefs_path", cfg.Prefs.Path),
		slog.String("collection_path", cfg.Watch.CollectionPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := openPrefs(cfg.Prefs.Path)
	if err != nil {
		return fmt.Errorf("init prefs: %w", err)
	}
	defer store.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	unsubscribe := svc.Cache().Subscribe(func(ev querycache.Event) {
		if ev.Status == querycache.StatusStale {
			broker.PublishStale(ev.Key)
		}
	})
	defer unsubscribe()

	notices := notify.NewCenter(50, notify.PublisherFunc(func(n notify.Notification) {
		broker.Publish(sse.Event{Type: sse.TypeNotify, Data: n})
	}))

	webOpts := web.Options{
		Service:         svc,
		Prefs:           store,
		Notices:         notices,
		Events:          broker,
		AuthEnabled:     cfg.Auth.AuthEnabled(),
		AuthToken:       cfg.Auth.Token,
		DefaultPageSize: cfg.UI.DefaultPageSize,
		QueryRowLimit:   cfg.UI.QueryRowLimit,
		Logger:          logger,
	}
	srv, err := web.NewServer(webOpts)
	if err != nil {
		return fmt.Errorf("init web: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: web.NewRouter(srv, webOpts),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Watch the collection file for writes made by the desktop application.
	if path := cfg.Watch.CollectionPath; path != "" {
		g.Go(func() error {
			err := watch.Watch(gCtx, path, 0, logger, func(changed string) {
				keys := svc.InvalidateItems()
				logger.Info("collection changed",
					slog.String("path", changed),
					slog.Int("stale_lists", len(keys)))
				broker.PublishCollectionChanged(changed)
			})
			if err != nil {
				logger.Warn("collection watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

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
		defer signal.Stop(quit)

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
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tool surface on stdin/stdout. Logs must not go to
// stdout here; pass WithLogOutput(os.Stderr).
func RunMCP(_ context.Context, opts ...Option) error {
	app, logger, svc, err := setup(opts)
	if err != nil {
		return err
	}
	logger.Info("MCP server starting", slog.String("host_url", app.config.Host.BaseURL))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Query runs one read-only query against the host.
func Query(ctx context.Context, q string, opts ...Option) (*hostapi.QueryResult, error) {
	_, _, svc, err := setup(opts)
	if err != nil {
		return nil, err
	}
	return svc.Query(ctx, q)
}
