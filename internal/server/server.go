package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marmos91/sharegate/internal/audit"
	"github.com/marmos91/sharegate/internal/auth"
	"github.com/marmos91/sharegate/internal/ratelimiter"
	"github.com/marmos91/sharegate/pkg/config"
	"github.com/marmos91/sharegate/pkg/metrics"
	"github.com/marmos91/sharegate/pkg/share"
	"github.com/marmos91/sharegate/pkg/store/blob"
)

// Server ties the gate, stores, and share manager together behind one
// http.Server.
type Server struct {
	cfg *config.Config
	log *zap.Logger

	authenticator *auth.Authenticator
	allowlist     *auth.Allowlist
	limiter       *ratelimiter.RateLimiter
	audit         *audit.Log
	shares        *share.Manager
	blobs         blob.BlobStore

	gateMetrics   metrics.GateMetrics
	shareMetrics  metrics.ShareMetrics
	uploadMetrics metrics.UploadMetrics

	httpServer   *http.Server
	shutdownOnce sync.Once
}

// Options carries the dependencies main has already constructed.
type Options struct {
	Config   *config.Config
	Logger   *zap.Logger
	Shares   *share.Manager
	Blobs    blob.BlobStore
	AuditLog *audit.Log
}

// New assembles the server from configuration and constructed stores.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Shares == nil {
		return nil, fmt.Errorf("share manager is required")
	}
	if opts.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:           opts.Config,
		log:           log,
		allowlist:     auth.NewAllowlist(opts.Config.Auth.AllowedIPs),
		limiter:       ratelimiter.New(opts.Config.RateLimit.RequestsPerSecond, opts.Config.RateLimit.Burst),
		audit:         opts.AuditLog,
		shares:        opts.Shares,
		blobs:         opts.Blobs,
		gateMetrics:   metrics.NewGateMetrics(),
		shareMetrics:  metrics.NewShareMetrics(),
		uploadMetrics: metrics.NewUploadMetrics(),
	}

	// The hook runs outside the tracker's lock, so audit I/O is safe here.
	tracker := auth.NewAttemptTracker(auth.TrackerConfig{
		MaxFailures: opts.Config.Auth.MaxFailedAttempts,
		BlockWindow: opts.Config.Auth.BlockDuration,
		OnBlock: func(ip string, window time.Duration) {
			log.Warn("client blocked after repeated auth failures",
				zap.String("ip", ip),
				zap.Duration("block_window", window))
			s.recordAudit(ip, "blocked", "-")
		},
	})
	s.authenticator = auth.NewAuthenticator(opts.Config.Auth.Password, opts.Config.Auth.Token, tracker)

	s.httpServer = &http.Server{
		Addr:         opts.Config.Server.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Serve starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
//
// Cancellation triggers graceful shutdown bounded by the configured
// shutdown timeout. Background maintenance (share purging, rate-limiter
// cleanup) runs for the lifetime of the context.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	go s.maintenanceLoop(ctx)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", ln.Addr().String()))

		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			s.log.Error("server shutdown error", zap.Error(err))
		} else {
			s.log.Info("server stopped gracefully")
		}
	})
	return shutdownErr
}

// maintenanceLoop runs the periodic purge of expired share links and
// rate-limiter bucket cleanup.
func (s *Server) maintenanceLoop(ctx context.Context) {
	interval := s.cfg.Shares.PurgeInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.shares.PurgeExpired(ctx, s.cfg.Shares.Retention)
			if err != nil {
				s.log.Error("share purge failed", zap.Error(err))
			} else if purged > 0 {
				s.shareMetrics.RecordPurged(purged)
				s.log.Info("purged expired share links", zap.Int("count", purged))
			}

			if removed := s.limiter.Cleanup(); removed > 0 {
				s.log.Debug("dropped idle rate limiter buckets", zap.Int("count", removed))
			}
		}
	}
}
