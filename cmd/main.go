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

	"github.com/okian/starsim/internal/adapters/http/api"
	"github.com/okian/starsim/internal/adapters/repository"
	app "github.com/okian/starsim/internal/app"
	"github.com/okian/starsim/internal/config"
	"github.com/okian/starsim/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Apply configured log level (fallback to info on invalid input)
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithMaxSessions(cfg.MaxSessions),
		app.WithBatchConcurrency(cfg.BatchConcurrency),
		app.WithRecommendationLimit(cfg.RecommendationLimit),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.SnapshotPath != "" {
		if err := loadSnapshot(ctx, svc, cfg.SnapshotPath, log); err != nil {
			return err
		}
	}

	// Start service metrics updater
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, svc, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore builds the configured snapshot repository.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Storage {
	case config.StorageSQLite:
		store, err := repository.OpenSQLite(ctx, cfg.SQLitePath, repository.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info(ctx, "using sqlite store", logger.String("path", cfg.SQLitePath))
		return store, nil
	default:
		log.Info(ctx, "using in-memory store")
		return repository.NewMemStore(repository.WithLogger(log)), nil
	}
}

// loadSnapshot replaces the served data with the YAML snapshot at path.
func loadSnapshot(ctx context.Context, svc *app.Service, path string, log logger.Logger) error {
	snap, err := repository.ReadSnapshotFile(path)
	if err != nil {
		return err
	}
	counts, err := svc.LoadSnapshot(ctx, snap)
	if err != nil {
		return fmt.Errorf("load snapshot %s: %w", path, err)
	}
	log.Info(ctx, "snapshot loaded",
		logger.String("path", path),
		logger.Int("contracts", counts.Contracts),
		logger.Int("rows", counts.Rows),
		logger.Int("cutPoints", counts.CutPoints),
	)
	return nil
}

// newHTTPServer wires the API router into an http.Server.
func newHTTPServer(cfg *config.Config, svc *app.Service, log logger.Logger) *http.Server {
	apiServer := api.NewServer(svc, log)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Router(cfg.CORSOrigins),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startServiceMetricsUpdater periodically refreshes gauges derived from
// service stats.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats refreshes the active session gauge
			_ = svc.GetStats()
		}
	}
}
