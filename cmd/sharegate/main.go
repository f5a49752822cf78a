package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/marmos91/sharegate/internal/audit"
	"github.com/marmos91/sharegate/internal/logging"
	"github.com/marmos91/sharegate/internal/server"
	"github.com/marmos91/sharegate/pkg/config"
	"github.com/marmos91/sharegate/pkg/metrics"
	"github.com/marmos91/sharegate/pkg/share"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	listenAddr := flag.String("listen", "", "Override the configured listen address")
	flag.Parse()

	if err := run(*configPath, *listenAddr); err != nil {
		fmt.Fprintf(os.Stderr, "sharegate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listenAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditLog, err := audit.New(cfg.Audit.LogPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer func() { _ = auditLog.Close() }()

	shareStore, err := config.CreateShareStore(ctx, &cfg.Shares, log)
	if err != nil {
		return fmt.Errorf("failed to create share store: %w", err)
	}
	defer func() {
		if err := shareStore.Close(); err != nil {
			log.Error("failed to close share store", zap.Error(err))
		}
	}()

	blobStore, err := config.CreateBlobStore(ctx, &cfg.Upload, log)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	shares := share.NewManager(shareStore, log,
		share.WithDefaultExpiry(cfg.Shares.DefaultExpiry))

	srv, err := server.New(server.Options{
		Config:   cfg,
		Logger:   log,
		Shares:   shares,
		Blobs:    blobStore,
		AuditLog: auditLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting sharegate",
		zap.String("listen_addr", cfg.Server.ListenAddr),
		zap.String("share_store", cfg.Shares.Type),
		zap.String("blob_store", cfg.Upload.Type),
		zap.Bool("metrics_enabled", cfg.Metrics.Enabled))

	if err := srv.Serve(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("sharegate stopped")
	return nil
}
