// Explorer Server
//
// Features:
// - Two-level directory listings over local, S3 or in-memory storage
// - File and directory operations, upload, move and copy
// - Share links served anonymously under /shared/<id>
// - SSE and WebSocket change notifications
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fruitsalade/explorer/internal/api"
	"github.com/fruitsalade/explorer/internal/auth"
	"github.com/fruitsalade/explorer/internal/config"
	"github.com/fruitsalade/explorer/internal/events"
	"github.com/fruitsalade/explorer/internal/explorer"
	"github.com/fruitsalade/explorer/internal/files"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/sharing"
	"github.com/fruitsalade/explorer/internal/storage/backends"
)

func main() {
	issueToken := flag.String("issue-token", "", "Print a JWT for this subject and exit (requires JWT_SECRET)")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of a token printed by -issue-token")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	authHandler := auth.New(cfg.JWTSecret)
	if *issueToken != "" {
		os.Exit(printToken(authHandler, *issueToken, *tokenTTL))
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Explorer Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("backend", cfg.StorageBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := backends.NewBackendFromConfig(ctx, cfg)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()

	if !authHandler.Enabled() {
		logging.Warn("JWT_SECRET not set, owner API is unauthenticated")
	}

	// Initialize SSE/WebSocket broadcaster
	broadcaster := events.NewBroadcaster()
	logging.Info("event broadcaster initialized")

	// Explorer services
	cwd := explorer.InitHome(ctx, store, cfg.HomeDir)
	fileService := files.New(store, broadcaster)
	registry := sharing.NewMemoryRegistry()
	shareService := sharing.NewService(registry, cfg.ShareLinkPrefix, broadcaster)
	gateway := sharing.NewGateway(registry, fileService)
	rateLimiter := api.NewRateLimiter(cfg.ShareRateLimitRPS, cfg.ShareRateLimitBurst)
	logging.Info("explorer initialized",
		zap.String("cwd", cwd.Get()),
		zap.Bool("share_rate_limit", rateLimiter.Enabled()))

	// Create API server
	srv := api.NewServer(api.Deps{
		Explorer:      explorer.New(store),
		Files:         fileService,
		Shares:        shareService,
		Gateway:       gateway,
		Cwd:           cwd,
		Auth:          authHandler,
		Broadcaster:   broadcaster,
		RateLimiter:   rateLimiter,
		MaxUploadSize: cfg.MaxUploadSize,
		BackendType:   store.Type(),
	})

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP(S) server
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.TLSEnabled()
	if useTLS {
		httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			httpServer.Close()
		}
		metricsServer.Close()
	}()

	// Start periodic rate limiter cleanup
	if rateLimiter.Enabled() {
		go func() {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rateLimiter.Cleanup(time.Hour)
				}
			}
		}()
	}

	if useTLS {
		logging.Info("server listening (TLS 1.3)",
			zap.String("addr", cfg.ListenAddr),
			zap.String("cert", cfg.TLSCertFile))
		if err := httpServer.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	} else {
		logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Fatal("server error", zap.Error(err))
		}
	}
}

func printToken(a *auth.Auth, subject string, ttl time.Duration) int {
	if !a.Enabled() {
		fmt.Fprintln(os.Stderr, "JWT_SECRET must be set to issue tokens")
		return 1
	}
	token, err := a.IssueToken(subject, ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		return 1
	}
	fmt.Println(token)
	return 0
}
