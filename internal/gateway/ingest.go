package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
	"github.com/caretrace-health/telemetry-pipeline/internal/idgen"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
)

// RegistryClient is the subset of registryrpc.Client the Gateway depends
// on for device verification.
type RegistryClient interface {
	GetDevice(ctx context.Context, deviceID string) (*registryrpc.GetDeviceResponse, error)
}

// Ingestor validates incoming measurements, optionally verifies the device
// against the Registry, and publishes the resulting raw-telemetry event.
// Both the HTTP and gRPC ingress surfaces share this one code path so
// validation and publish semantics never diverge between transports.
type Ingestor struct {
	publisher    *broker.Publisher
	registry     RegistryClient
	verifyDevice bool
	log          *slog.Logger
}

// NewIngestor returns an Ingestor. registry may be nil when verifyDevice is
// false.
func NewIngestor(publisher *broker.Publisher, registry RegistryClient, verifyDevice bool, log *slog.Logger) *Ingestor {
	return &Ingestor{publisher: publisher, registry: registry, verifyDevice: verifyDevice, log: log}
}

// Accept validates measurements for deviceID, verifies the device if
// configured to, builds and publishes a RawTelemetry event to the raw
// topic, and returns the event's envelope.
func (i *Ingestor) Accept(ctx context.Context, deviceID, traceID string, measurements []pipelineevents.Measurement, metadata map[string]string) (pipelineevents.Envelope, error) {
	if deviceID == "" {
		return pipelineevents.Envelope{}, newValidationError("device_id is required")
	}
	if len(measurements) == 0 {
		return pipelineevents.Envelope{}, newValidationError("measurements must not be empty")
	}
	for _, m := range measurements {
		if m.Metric == "" {
			return pipelineevents.Envelope{}, newValidationError("measurement metric is required")
		}
	}

	if i.verifyDevice && i.registry != nil {
		if _, err := i.registry.GetDevice(ctx, deviceID); err != nil {
			if status.Code(err) == codes.NotFound {
				return pipelineevents.Envelope{}, newDeviceNotFoundError(deviceID)
			}
			i.log.Warn("registry unreachable, accepting measurement anyway (fail-open)", "device_id", deviceID, "error", err)
		}
	}

	if traceID == "" {
		traceID = idgen.NewTraceID()
	}
	eventID := idgen.NewEventID()

	raw := pipelineevents.RawTelemetry{
		Envelope:     pipelineevents.NewEnvelope(eventID, traceID, pipelineevents.TopicRaw, ""),
		DeviceID:     deviceID,
		Measurements: measurements,
		Metadata:     metadata,
	}

	payload, err := json.Marshal(raw)
	if err != nil {
		return pipelineevents.Envelope{}, fmt.Errorf("gateway: encode raw telemetry: %w", err)
	}

	if err := i.publisher.Publish(ctx, pipelineevents.TopicRaw, deviceID, eventID, payload); err != nil {
		return pipelineevents.Envelope{}, fmt.Errorf("gateway: publish raw telemetry: %w", err)
	}

	return raw.Envelope, nil
}

// DeviceNotFoundError indicates device verification is enabled and the
// Registry authoritatively reported the device is not registered (as
// opposed to the Registry being unreachable, which fails open). It maps
// to HTTP 400 / gRPC status device_not_found=3.
type DeviceNotFoundError struct {
	DeviceID string
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("device %s is not registered", e.DeviceID)
}

func newDeviceNotFoundError(deviceID string) *DeviceNotFoundError {
	return &DeviceNotFoundError{DeviceID: deviceID}
}
