// Package main implements the entry point for the fingercloak API,
// a browser fingerprint correlation and snapshot service.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NikitaSitlivy/fingercloak-api/chunkstore"
	"github.com/NikitaSitlivy/fingercloak-api/config"
	"github.com/NikitaSitlivy/fingercloak-api/errors"
	"github.com/NikitaSitlivy/fingercloak-api/fingerprint"
	"github.com/NikitaSitlivy/fingercloak-api/httpapi"
	"github.com/NikitaSitlivy/fingercloak-api/ingest"
	"github.com/NikitaSitlivy/fingercloak-api/kvstore"
	"github.com/NikitaSitlivy/fingercloak-api/metric"
	"github.com/NikitaSitlivy/fingercloak-api/snapstore"
)

const appName = "fingercloak-api"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, fingerprint.Version)
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	loader := config.NewLoader()
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	logger.Info("Starting fingercloak API",
		"addr", cfg.HTTP.Addr,
		"chunk_ttl_ms", cfg.Chunks.TTLMs,
		"backend", backendMode(cfg),
		"config_path", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := metric.NewRegistry()

	backend, err := kvstore.New(ctx, kvstore.Config{
		NATSURL:    cfg.NATS.URL,
		Bucket:     cfg.Chunks.Bucket,
		DefaultTTL: cfg.Chunks.TTL(),
		Logger:     slogBridge{logger},
		OnEvict:    func(string) { metrics.Metrics.RecordChunkExpired() },
	})
	if err != nil {
		return fmt.Errorf("create chunk backend: %w", err)
	}
	metrics.Metrics.RecordNATSStatus(backend.Shared())

	chunks, err := chunkstore.New(backend, cfg.Chunks.TTL())
	if err != nil {
		return fmt.Errorf("create chunk store: %w", err)
	}

	snaps, err := snapstore.New(cfg.Snapshots.WriteDir,
		snapstore.WithTTL(cfg.Snapshots.TTL),
		snapstore.WithEvictionHook(metrics.Metrics.RecordSnapshotEvicted))
	if err != nil {
		if snaps == nil || !errors.IsTransient(err) {
			return fmt.Errorf("create snapshot store: %w", err)
		}
		// A failed journal is degraded service, not a startup failure.
		logger.Warn("snapshot journal unavailable", "error", err)
	}

	svc, err := fingerprint.New(chunks, snaps, cfg.Identity.IPHMACSalt, logger)
	if err != nil {
		return fmt.Errorf("create fingerprint service: %w", err)
	}

	ing, err := ingest.NewHandler(chunks, cfg.Ingest.EdgeSecret, cfg.Ingest.TLSSecret, logger)
	if err != nil {
		return fmt.Errorf("create ingest handler: %w", err)
	}

	api, err := httpapi.NewServer(svc, ing, cfg, metrics, logger)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "timeout", cliCfg.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := snaps.Close(shutdownCtx); err != nil {
			logger.Warn("snapshot store close failed", "error", err)
		}
		if err := backend.Close(shutdownCtx); err != nil {
			logger.Warn("chunk backend close failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func backendMode(cfg *config.Config) string {
	if cfg.NATS.URL == "" {
		return "memory"
	}
	return "nats"
}

// slogBridge adapts slog to the natsclient logging interface.
type slogBridge struct {
	logger *slog.Logger
}

func (b slogBridge) Printf(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...))
}

func (b slogBridge) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b slogBridge) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
