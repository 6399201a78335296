// Command rules consumes enriched telemetry, scores it against the
// Anomaly Scorer, evaluates threshold rules, and publishes scored
// telemetry and (when warranted) alerts.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/caretrace-health/telemetry-pipeline/internal/anomalyrpc"
	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/logging"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipeline"
	"github.com/caretrace-health/telemetry-pipeline/internal/rules"
)

// anomalyClientAdapter adapts anomalyrpc.Client to rules.AnomalyClient,
// applying the configured per-call timeout so a slow or unreachable
// Anomaly Scorer degrades the rule evaluation instead of blocking it.
type anomalyClientAdapter struct {
	client  *anomalyrpc.Client
	timeout config.RPCPeer
}

func (a *anomalyClientAdapter) ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*rules.AnomalyResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout.Timeout)
	defer cancel()

	resp, err := a.client.ScoreVitals(callCtx, patientID, vitals)
	if err != nil {
		return nil, err
	}
	return &rules.AnomalyResult{Scores: resp.Scores, OverallRiskScore: resp.OverallRiskScore}, nil
}

func main() {
	cfg, err := config.LoadRules()
	if err != nil {
		panic(err)
	}

	logger := logging.New("rules-engine", cfg.LogLevel)

	anomalyClient, err := anomalyrpc.Dial(cfg.Anomaly.Addr)
	if err != nil {
		logger.Error("dial anomaly scorer", "addr", cfg.Anomaly.Addr, "error", err)
		os.Exit(1)
	}
	defer anomalyClient.Close()

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
	if _, err := broker.EnsureStream(ctx, js, cfg.ScoredTopic, cfg.Partitions); err != nil {
		logger.Error("ensure scored stream", "error", err)
		os.Exit(1)
	}
	if _, err := broker.EnsureStream(ctx, js, cfg.AlertsTopic, cfg.Partitions); err != nil {
		logger.Error("ensure alerts stream", "error", err)
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

	scoredPublisher := broker.NewPublisher(js, cfg.Partitions, 8, 0, 0)
	alertsPublisher := broker.NewPublisher(js, cfg.Partitions, 8, 0, 0)

	adapter := &anomalyClientAdapter{client: anomalyClient, timeout: cfg.Anomaly}
	engine := rules.New(adapter, cfg.RuleDefaults)
	handler := rules.Handler(engine, scoredPublisher, alertsPublisher, logger)

	runner := pipeline.NewRunner(consumers, handler, logger, cfg.ShutdownDeadline)

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("rules engine started", "input_topic", cfg.InputTopic, "scored_topic", cfg.ScoredTopic, "alerts_topic", cfg.AlertsTopic, "partitions", cfg.Partitions)
	if err := runner.Run(sigCtx); err != nil {
		logger.Error("runner exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
