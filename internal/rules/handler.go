package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/idgen"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipeline"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// Handler returns a pipeline.Handler that decodes an enriched-topic
// message, evaluates it, and publishes the scored event (always) and the
// alert event (iff severity != ok) before acknowledging the input. Both
// publishes must succeed before the handler returns nil; a failure on
// either leaves the input unacknowledged for redelivery, so a scored
// event and its alert are never durably split across a crash.
func Handler(e *Engine, scoredPublisher, alertsPublisher *broker.Publisher, log *slog.Logger) pipeline.Handler {
	newEventID := idgen.NewEventID
	newAlertID := func() string {
		id, err := idgen.NewAlertID()
		if err != nil {
			// idgen.NewAlertID only fails if the underlying CSPRNG read
			// fails; fall back to a UUID so a scored/alert pair is never
			// dropped for want of an ID.
			return idgen.NewEventID()
		}
		return id
	}

	return func(ctx context.Context, payload []byte) error {
		var enriched pipelineevents.EnrichedTelemetry
		if err := json.Unmarshal(payload, &enriched); err != nil {
			log.Error("discarding unparseable message", "error", err)
			return nil
		}

		scored, alert := e.Evaluate(ctx, enriched, newEventID, newAlertID)
		if scored.AnomalyDegraded {
			log.Warn("anomaly scorer unavailable, proceeding with degraded scores", "event_id", scored.EventID, "patient_id", scored.PatientID)
		}

		scoredPayload, err := json.Marshal(scored)
		if err != nil {
			return fmt.Errorf("rules: encode scored telemetry: %w", err)
		}
		if err := scoredPublisher.Publish(ctx, pipelineevents.TopicScored, scored.DeviceID, scored.EventID, scoredPayload); err != nil {
			return fmt.Errorf("rules: publish scored telemetry: %w", err)
		}

		if alert == nil {
			return nil
		}

		alertPayload, err := json.Marshal(alert)
		if err != nil {
			return fmt.Errorf("rules: encode alert: %w", err)
		}
		if err := alertsPublisher.Publish(ctx, pipelineevents.TopicAlerts, alert.DeviceID, alert.EventID, alertPayload); err != nil {
			return fmt.Errorf("rules: publish alert: %w", err)
		}
		return nil
	}
}
