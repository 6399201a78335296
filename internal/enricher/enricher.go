// Package enricher implements the Enricher stage: three ordered Registry
// lookups (device, patient, threshold profile) attached to each normalized
// telemetry event, with orphan detection when no patient_id can be
// resolved.
package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/idgen"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
)

// RegistryClient is the subset of registryrpc.Client the Enricher depends
// on.
type RegistryClient interface {
	GetDevice(ctx context.Context, deviceID string) (*registryrpc.GetDeviceResponse, error)
	GetPatient(ctx context.Context, patientID string) (*registryrpc.GetPatientResponse, error)
	GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*registryrpc.GetThresholdProfileResponse, error)
}

// Enricher attaches device/patient/threshold context to normalized
// telemetry events.
type Enricher struct {
	registry RegistryClient
	peer     config.RPCPeer
	log      *slog.Logger
}

// New returns an Enricher backed by registry, using peer's timeout/retry
// policy for every lookup.
func New(registry RegistryClient, peer config.RPCPeer, log *slog.Logger) *Enricher {
	return &Enricher{registry: registry, peer: peer, log: log}
}

// withRetry calls fn up to e.peer.Retries+1 times, waiting peer.RetryDelay*attempt
// (linear backoff) between attempts, and per-call deadline e.peer.Timeout.
func (e *Enricher) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	attempts := e.peer.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.peer.Timeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-time.After(e.peer.RetryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	e.log.Warn("registry lookup failed after retries", "op", op, "error", lastErr)
	return lastErr
}

// Enrich performs the three ordered lookups and returns the enriched
// event. Lookup failures on GetPatient/GetThresholdProfile are non-fatal:
// the event is still emitted with the corresponding fields absent.
func (e *Enricher) Enrich(ctx context.Context, in pipelineevents.NormalizedTelemetry) pipelineevents.EnrichedTelemetry {
	out := pipelineevents.EnrichedTelemetry{
		Envelope:              pipelineevents.NewEnvelope(idgen.NewEventID(), in.TraceID, pipelineevents.TopicEnriched, in.EventID),
		DeviceID:              in.DeviceID,
		PatientID:             in.PatientID,
		Vitals:                in.Vitals,
		ValidationStatus:      in.ValidationStatus,
		NormalizationMetadata: in.NormalizationMetadata,
	}

	var sources []string

	patientID := in.PatientID

	var deviceResp *registryrpc.GetDeviceResponse
	err := e.withRetry(ctx, "GetDevice", func(ctx context.Context) error {
		resp, err := e.registry.GetDevice(ctx, in.DeviceID)
		if err != nil {
			return err
		}
		deviceResp = resp
		return nil
	})
	switch {
	case err == nil && deviceResp.Device != nil && deviceResp.Device.PatientID != "":
		patientID = deviceResp.Device.PatientID
		sources = append(sources, "device")
	case patientID != "":
		// keep the patient_id already carried on the input event
	default:
		out.Orphan = true
		out.EnrichmentMetadata = pipelineevents.EnrichmentMetadata{EnrichmentSources: enrichmentSourcesOrNone(sources)}
		return out
	}

	out.PatientID = patientID

	patientResp, err := e.lookupPatient(ctx, patientID)
	if err == nil {
		sources = append(sources, "patient")
		out.PatientProfile = &pipelineevents.PatientProfile{Age: patientResp.Patient.Age, Sex: string(patientResp.Patient.Sex)}
	}

	thresholdResp, err := e.lookupThresholds(ctx, patientID, in.DeviceID)
	if err == nil {
		sources = append(sources, "thresholds")
		out.Thresholds = thresholdsFromProfile(thresholdResp.ThresholdProfile)
	}

	out.EnrichmentMetadata = pipelineevents.EnrichmentMetadata{EnrichmentSources: enrichmentSourcesOrNone(sources)}
	return out
}

// enrichmentSourcesOrNone reports ["none"] when the Registry was
// unreachable for every lookup attempted, rather than an empty slice.
func enrichmentSourcesOrNone(sources []string) []string {
	if len(sources) == 0 {
		return []string{"none"}
	}
	return sources
}

func (e *Enricher) lookupPatient(ctx context.Context, patientID string) (*registryrpc.GetPatientResponse, error) {
	var resp *registryrpc.GetPatientResponse
	err := e.withRetry(ctx, "GetPatient", func(ctx context.Context) error {
		r, err := e.registry.GetPatient(ctx, patientID)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func (e *Enricher) lookupThresholds(ctx context.Context, patientID, deviceID string) (*registryrpc.GetThresholdProfileResponse, error) {
	var resp *registryrpc.GetThresholdProfileResponse
	err := e.withRetry(ctx, "GetThresholdProfile", func(ctx context.Context) error {
		r, err := e.registry.GetThresholdProfile(ctx, patientID, deviceID)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

func thresholdsFromProfile(tp *pipelineevents.ThresholdProfile) *pipelineevents.Thresholds {
	if tp == nil {
		return nil
	}
	return &pipelineevents.Thresholds{
		HeartRate:        tp.HeartRate,
		BloodPressure:    tp.BloodPressure,
		Temperature:      tp.Temperature,
		OxygenSaturation: tp.OxygenSaturation,
		RespiratoryRate:  tp.RespiratoryRate,
	}
}

// DecodeNormalized unmarshals a normalized-topic message payload.
func DecodeNormalized(payload []byte) (pipelineevents.NormalizedTelemetry, error) {
	var n pipelineevents.NormalizedTelemetry
	if err := json.Unmarshal(payload, &n); err != nil {
		return pipelineevents.NormalizedTelemetry{}, fmt.Errorf("enricher: decode normalized telemetry: %w", err)
	}
	return n, nil
}
