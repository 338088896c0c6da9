package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tendant/simple-presign/pkg/presign/api"
	"github.com/tendant/simple-presign/pkg/presign/config"
	"github.com/tendant/simple-presign/pkg/presign/metrics"
)

const shutdownTimeout = 10 * time.Second

// gateway holds everything built from configuration
type gateway struct {
	handler http.Handler
	limiter *api.RateLimiter
}

func newGateway(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (*gateway, error) {
	selector, err := cfg.BuildSelector(ctx, logger)
	if err != nil {
		return nil, err
	}

	prom := metrics.NewProm()

	issuer, err := cfg.BuildIssuer(selector, prom, logger)
	if err != nil {
		return nil, err
	}

	verifier, err := cfg.BuildVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to build token verifier: %w", err)
	}

	gw := &gateway{}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithProber(selector),
		api.WithObserver(prom),
		api.WithRequestMetrics(prom),
		api.WithMetricsHandler(prom.Handler()),
		api.WithAllowedOrigins(cfg.Origins()...),
		api.WithAuthRequirements(cfg.Auth.RequireUpload, cfg.Auth.RequireDownload, cfg.Auth.RequireList),
	}
	if cfg.HTTP.RateLimitPerMinute > 0 {
		gw.limiter, err = api.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, api.WithRateLimiter(gw.limiter))
	}

	gw.handler = api.NewHandler(issuer, verifier, opts...).Routes()

	logger.Info("Presign gateway configured",
		"environment", cfg.Environment,
		"bucket", issuer.Bucket(),
		"expires_in", issuer.Expiry().String(),
		"allowed_origins", cfg.Origins(),
		"require_auth_upload", cfg.Auth.RequireUpload,
		"require_auth_download", cfg.Auth.RequireDownload,
		"require_auth_list", cfg.Auth.RequireList,
		"rate_limit_per_minute", cfg.HTTP.RateLimitPerMinute)

	return gw, nil
}

func (g *gateway) Close() {
	if g.limiter != nil {
		g.limiter.Stop()
	}
}

// run serves until ctx is cancelled, then shuts down gracefully
func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	gw, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer gw.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gw.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Presign gateway starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exiting")
	return nil
}
