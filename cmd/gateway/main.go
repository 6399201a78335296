// Command gateway serves the ingress tier: an HTTP and a gRPC endpoint
// that both accept device measurements and publish them to the raw topic.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/gateway"
	"github.com/caretrace-health/telemetry-pipeline/internal/logging"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
	"github.com/caretrace-health/telemetry-pipeline/internal/rpcserver"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		panic(err)
	}

	logger := logging.New("gateway", cfg.LogLevel)

	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		logger.Error("connect to broker", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		logger.Error("create jetstream context", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if _, err := broker.EnsureStream(ctx, js, pipelineevents.TopicRaw, cfg.Partitions); err != nil {
		logger.Error("ensure raw stream", "error", err)
		os.Exit(1)
	}

	publisher := broker.NewPublisher(js, cfg.Partitions, cfg.ProducerMaxAttempts, cfg.ProducerInitialBackoff, cfg.ProducerMaxBackoff)

	var registryClient *registryrpc.Client
	if cfg.VerifyDevice {
		registryClient, err = registryrpc.Dial(cfg.Registry.Addr)
		if err != nil {
			logger.Error("dial registry", "addr", cfg.Registry.Addr, "error", err)
			os.Exit(1)
		}
		defer registryClient.Close()
	}

	var registryForIngest gateway.RegistryClient
	if registryClient != nil {
		registryForIngest = registryClient
	}
	ingestor := gateway.NewIngestor(publisher, registryForIngest, cfg.VerifyDevice, logger)

	httpHandler := gateway.NewHandler(ingestor, logger)
	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: httpHandler.Routes()}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	grpcServer := rpcserver.New(logger)
	gateway.Register(grpcServer, gateway.NewGRPCServer(ingestor))

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDeadline)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
