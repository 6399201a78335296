// Command registry serves the Registry's gRPC read-side (devices,
// patients, threshold profiles) over a PostgreSQL-backed store.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/logging"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
	"github.com/caretrace-health/telemetry-pipeline/internal/registrystore"
	"github.com/caretrace-health/telemetry-pipeline/internal/rpcserver"
)

func main() {
	cfg, err := config.LoadRegistry()
	if err != nil {
		panic(err)
	}

	logger := logging.New("registry", cfg.LogLevel)

	store, err := registrystore.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open store", "error", err)
		os.Exit(1)
	}

	if cfg.SeedDemoData {
		if err := store.Seed(context.Background()); err != nil {
			logger.Error("seed demo data", "error", err)
		} else {
			logger.Info("seeded demo data")
		}
	}

	grpcServer := rpcserver.New(logger)
	registryrpc.Register(grpcServer, registryrpc.NewServer(store))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		store.Close()
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
	logger.Info("gRPC server stopped")

	if err := store.Close(); err != nil {
		logger.Error("close store", "error", err)
	}
	logger.Info("shutdown complete")
}
