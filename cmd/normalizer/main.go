// Command normalizer consumes raw telemetry, canonicalizes and clamps
// vitals, and republishes normalized telemetry.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/logging"
	"github.com/caretrace-health/telemetry-pipeline/internal/normalizer"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipeline"
)

func main() {
	cfg, err := config.LoadNormalizer()
	if err != nil {
		panic(err)
	}

	logger := logging.New("normalizer", cfg.LogLevel)

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
	if _, err := broker.EnsureStream(ctx, js, cfg.InputTopic, cfg.Partitions); err != nil {
		logger.Error("ensure input stream", "error", err)
		os.Exit(1)
	}
	if _, err := broker.EnsureStream(ctx, js, cfg.OutputTopic, cfg.Partitions); err != nil {
		logger.Error("ensure output stream", "error", err)
		os.Exit(1)
	}

	consumers := make([]pipeline.Consumer, 0, cfg.Partitions)
	for p := 0; p < cfg.Partitions; p++ {
		subject := cfg.InputTopic + ".p" + strconv.Itoa(p)
		c, err := broker.NewConsumer(ctx, js, cfg.InputTopic, subject, cfg.ConsumerGroup, cfg.MaxDeliver)
		if err != nil {
			logger.Error("create consumer", "subject", subject, "error", err)
			os.Exit(1)
		}
		consumers = append(consumers, c)
	}

	publisher := broker.NewPublisher(js, cfg.Partitions, 8, 0, 0)
	n := normalizer.New(cfg, logger)
	handler := normalizer.Handler(n, publisher)

	runner := pipeline.NewRunner(consumers, handler, logger, cfg.ShutdownDeadline)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("normalizer started", "input_topic", cfg.InputTopic, "output_topic", cfg.OutputTopic, "partitions", cfg.Partitions)
	if err := runner.Run(sigCtx); err != nil {
		logger.Error("runner exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
