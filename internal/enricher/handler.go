package enricher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipeline"
)

// Handler returns a pipeline.Handler that decodes a normalized-topic
// message, enriches it, and publishes the result to the enriched topic.
func Handler(e *Enricher, publisher *broker.Publisher) pipeline.Handler {
	return func(ctx context.Context, payload []byte) error {
		normalized, err := DecodeNormalized(payload)
		if err != nil {
			e.log.Error("discarding unparseable message", "error", err)
			return nil
		}

		enriched := e.Enrich(ctx, normalized)

		out, err := json.Marshal(enriched)
		if err != nil {
			return fmt.Errorf("enricher: encode enriched telemetry: %w", err)
		}

		if err := publisher.Publish(ctx, enriched.EventType, enriched.DeviceID, enriched.EventID, out); err != nil {
			return fmt.Errorf("enricher: publish enriched telemetry: %w", err)
		}
		return nil
	}
}
