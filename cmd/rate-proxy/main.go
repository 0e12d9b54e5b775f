package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotelops/rate-proxy/pkg/config"
	"github.com/hotelops/rate-proxy/pkg/engine"
	"github.com/hotelops/rate-proxy/pkg/kv"
	"github.com/hotelops/rate-proxy/pkg/lock"
	"github.com/hotelops/rate-proxy/pkg/logging"
	"github.com/hotelops/rate-proxy/pkg/quota"
	"github.com/hotelops/rate-proxy/pkg/revalidator"
	"github.com/hotelops/rate-proxy/pkg/server"
	"github.com/hotelops/rate-proxy/pkg/upstream"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		errLogger := logging.Setup(logging.DefaultConfig())
		errLogger.Error().Err(err).Msg("Configuration error")
		return 1
	}

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	store, err := kv.NewFromURL(cfg.RedisURL)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid REDIS_URL")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !store.Ping(ctx) {
		logger.Error().Str("redis_url", cfg.RedisURL).Msg("Redis unreachable")
		return 1
	}
	logger.Info().Msg("Connected to Redis")

	pricing, err := upstream.New(upstream.Config{
		BaseURL: cfg.RateAPIURL,
		Token:   cfg.RateAPIToken,
		Timeout: cfg.UpstreamTimeout,
	}, logging.NewLogger("upstream"))
	if err != nil {
		logger.Error().Err(err).Msg("Invalid upstream configuration")
		return 1
	}

	accountant := quota.New(store, cfg.Quota, logging.NewLogger("quota"))
	locker := lock.New(store, logging.NewLogger("lock"))

	cacheEngine := engine.New(store, locker, pricing, accountant, engine.Config{
		CacheTTL:       cfg.CacheTTL,
		LockTTL:        cfg.LockTTL,
		LockRetries:    cfg.LockRetries,
		LockRetryDelay: cfg.LockRetryDelay,
	}, logging.NewLogger("engine"))

	revalidatorDone := make(chan struct{})
	if cfg.RevalidatorEnabled {
		runner := revalidator.New(cacheEngine, cfg.RefreshInterval, logging.NewLogger("revalidator"))
		go func() {
			defer close(revalidatorDone)
			runner.Run(ctx)
		}()
	} else {
		close(revalidatorDone)
		logger.Info().Msg("Revalidator disabled on this replica")
	}

	handler := server.New(cacheEngine, store, accountant, logging.NewLogger("server"))
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Mux(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("Starting rate proxy")
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server failed")
			return 1
		}
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Server shutdown incomplete")
	}
	<-revalidatorDone

	logger.Info().Msg("Shutdown complete")
	return 0
}
