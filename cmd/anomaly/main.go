// Command anomaly serves the Anomaly Scorer's gRPC surface, scoring
// per-patient vitals against a rolling baseline kept in Redis (with an
// in-process fallback when Redis is unreachable).
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/caretrace-health/telemetry-pipeline/internal/anomalyrpc"
	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/logging"
	"github.com/caretrace-health/telemetry-pipeline/internal/rpcserver"
	"github.com/caretrace-health/telemetry-pipeline/internal/scoring"
)

func main() {
	cfg, err := config.LoadScorer()
	if err != nil {
		panic(err)
	}

	logger := logging.New("anomaly", cfg.LogLevel)

	fallback := scoring.NewMemoryStore(cfg.Window)

	var primary scoring.BaselineStore
	if cfg.CacheEnabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable at startup, using in-process baseline store only", "error", err)
		} else {
			primary = scoring.NewRedisStore(redisClient, cfg.Window, cfg.BaselineTTL)
			logger.Info("redis baseline store connected", "addr", cfg.RedisAddr)
		}
	}

	store := scoring.NewCacheFirstStore(primary, fallback, logger)
	scorer := scoring.NewScorer(store, cfg.MinSamples)

	grpcServer := rpcserver.New(logger)
	anomalyrpc.Register(grpcServer, anomalyrpc.NewServer(scorer))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Error("listen", "addr", cfg.GRPCAddr, "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	grpcServer.GracefulStop()
	logger.Info("shutdown complete")
}
