package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipeline"
)

// Handler returns a pipeline.Handler that decodes a raw-topic message,
// normalizes it, and publishes the result to the normalized topic.
func Handler(n *Normalizer, publisher *broker.Publisher) pipeline.Handler {
	return func(ctx context.Context, payload []byte) error {
		raw, err := DecodeRaw(payload)
		if err != nil {
			n.log.Error("discarding unparseable message", "error", err)
			return nil
		}

		normalized := n.Normalize(raw, time.Now().UTC())

		out, err := json.Marshal(normalized)
		if err != nil {
			return fmt.Errorf("normalizer: encode normalized telemetry: %w", err)
		}

		if err := publisher.Publish(ctx, normalized.EventType, normalized.DeviceID, normalized.EventID, out); err != nil {
			return fmt.Errorf("normalizer: publish normalized telemetry: %w", err)
		}
		return nil
	}
}
