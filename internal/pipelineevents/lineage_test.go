package pipelineevents_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/enricher"
	"github.com/caretrace-health/telemetry-pipeline/internal/idgen"
	"github.com/caretrace-health/telemetry-pipeline/internal/normalizer"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
	"github.com/caretrace-health/telemetry-pipeline/internal/rules"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRegistry struct{}

func (fakeRegistry) GetDevice(ctx context.Context, deviceID string) (*registryrpc.GetDeviceResponse, error) {
	return &registryrpc.GetDeviceResponse{Device: &pipelineevents.Device{DeviceID: deviceID, PatientID: "patient-001"}}, nil
}

func (fakeRegistry) GetPatient(ctx context.Context, patientID string) (*registryrpc.GetPatientResponse, error) {
	return &registryrpc.GetPatientResponse{Patient: &pipelineevents.Patient{PatientID: patientID, Age: 65, Sex: pipelineevents.SexMale}}, nil
}

func (fakeRegistry) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*registryrpc.GetThresholdProfileResponse, error) {
	return &registryrpc.GetThresholdProfileResponse{ThresholdProfile: &pipelineevents.ThresholdProfile{
		PatientID: patientID,
		HeartRate: pipelineevents.Range{Min: 60, Max: 100},
	}}, nil
}

type fakeAnomaly struct{}

func (fakeAnomaly) ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*rules.AnomalyResult, error) {
	scores := make(map[string]pipelineevents.AnomalyScore, len(vitals))
	for metric := range vitals {
		scores[metric] = pipelineevents.AnomalyScore{Score: 0, Severity: pipelineevents.SeverityOK}
	}
	return &rules.AnomalyResult{Scores: scores, OverallRiskScore: 0}, nil
}

// TestLineage_TraceIDAndSourceEventID_PropagateAcrossStages drives one raw
// event through Normalize -> Enrich -> Evaluate and checks that trace_id
// travels unchanged end to end (P1) and that each stage's source_event_id
// links back to the previous stage's freshly minted event_id (P2).
func TestLineage_TraceIDAndSourceEventID_PropagateAcrossStages(t *testing.T) {
	traceID := idgen.NewTraceID()
	raw := pipelineevents.RawTelemetry{
		Envelope:     pipelineevents.NewEnvelope(idgen.NewEventID(), traceID, pipelineevents.TopicRaw, ""),
		DeviceID:     "device-001",
		Measurements: []pipelineevents.Measurement{{Metric: pipelineevents.MetricHeartRate, Value: 80, Unit: pipelineevents.UnitBPM}},
	}

	normCfg := &config.NormalizerConfig{
		HeartRate:    config.ClampBounds{Min: 20, Max: 240},
		OxygenSat:    config.ClampBounds{Min: 50, Max: 100},
		TemperatureC: config.ClampBounds{Min: 30, Max: 45},
	}
	norm := normalizer.New(normCfg, discardLogger()).Normalize(raw, time.Now())

	if norm.TraceID != traceID {
		t.Fatalf("normalized trace_id = %q, want %q (P1)", norm.TraceID, traceID)
	}
	if norm.SourceEventID != raw.EventID {
		t.Fatalf("normalized source_event_id = %q, want raw event_id %q (P2)", norm.SourceEventID, raw.EventID)
	}

	peer := config.RPCPeer{Timeout: time.Second, Retries: 1, RetryDelay: time.Millisecond}
	enriched := enricher.New(fakeRegistry{}, peer, discardLogger()).Enrich(context.Background(), norm)

	if enriched.TraceID != traceID {
		t.Fatalf("enriched trace_id = %q, want %q (P1)", enriched.TraceID, traceID)
	}
	if enriched.SourceEventID != norm.EventID {
		t.Fatalf("enriched source_event_id = %q, want normalized event_id %q (P2)", enriched.SourceEventID, norm.EventID)
	}

	engine := rules.New(fakeAnomaly{}, config.RuleThresholds{HRVeryHigh: 120, SpO2Low: 90})
	newEventID := idgen.NewEventID
	newAlertID := func() string {
		id, err := idgen.NewAlertID()
		if err != nil {
			return idgen.NewEventID()
		}
		return id
	}
	scored, alert := engine.Evaluate(context.Background(), enriched, newEventID, newAlertID)

	if scored.TraceID != traceID {
		t.Fatalf("scored trace_id = %q, want %q (P1)", scored.TraceID, traceID)
	}
	if scored.SourceEventID != enriched.EventID {
		t.Fatalf("scored source_event_id = %q, want enriched event_id %q (P2)", scored.SourceEventID, enriched.EventID)
	}
	if alert != nil {
		if alert.TraceID != traceID {
			t.Errorf("alert trace_id = %q, want %q (P1)", alert.TraceID, traceID)
		}
		if alert.SourceEventID != scored.EventID {
			t.Errorf("alert source_event_id = %q, want scored event_id %q (P2)", alert.SourceEventID, scored.EventID)
		}
	}
}
