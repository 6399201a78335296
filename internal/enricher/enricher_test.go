package enricher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
	"github.com/caretrace-health/telemetry-pipeline/internal/registryrpc"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPeer() config.RPCPeer {
	return config.RPCPeer{Timeout: time.Second, Retries: 1, RetryDelay: time.Millisecond}
}

type fakeRegistry struct {
	device    *registryrpc.GetDeviceResponse
	deviceErr error
	patient    *registryrpc.GetPatientResponse
	patientErr error
	thresholds    *registryrpc.GetThresholdProfileResponse
	thresholdsErr error
}

func (f *fakeRegistry) GetDevice(ctx context.Context, deviceID string) (*registryrpc.GetDeviceResponse, error) {
	return f.device, f.deviceErr
}

func (f *fakeRegistry) GetPatient(ctx context.Context, patientID string) (*registryrpc.GetPatientResponse, error) {
	return f.patient, f.patientErr
}

func (f *fakeRegistry) GetThresholdProfile(ctx context.Context, patientID, deviceID string) (*registryrpc.GetThresholdProfileResponse, error) {
	return f.thresholds, f.thresholdsErr
}

func TestEnrich_HappyPath_ResolvesPatientAndThresholds(t *testing.T) {
	reg := &fakeRegistry{
		device:  &registryrpc.GetDeviceResponse{Device: &pipelineevents.Device{DeviceID: "device-001", PatientID: "patient-001"}},
		patient: &registryrpc.GetPatientResponse{Patient: &pipelineevents.Patient{PatientID: "patient-001", Age: 72, Sex: pipelineevents.SexFemale}},
		thresholds: &registryrpc.GetThresholdProfileResponse{ThresholdProfile: &pipelineevents.ThresholdProfile{
			PatientID: "patient-001",
			HeartRate: pipelineevents.Range{Min: 60, Max: 100},
		}},
	}
	e := New(reg, testPeer(), discardLogger())

	in := pipelineevents.NormalizedTelemetry{
		Envelope: pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		DeviceID: "device-001",
		Vitals:   map[string]pipelineevents.Vital{"heart_rate": {Value: 80}},
	}

	out := e.Enrich(context.Background(), in)

	if out.Orphan {
		t.Fatalf("expected non-orphan event")
	}
	if out.PatientID != "patient-001" {
		t.Errorf("patient_id = %q, want patient-001", out.PatientID)
	}
	if out.PatientProfile == nil || out.PatientProfile.Age != 72 {
		t.Errorf("patientProfile = %+v, want age 72", out.PatientProfile)
	}
	if out.Thresholds == nil || out.Thresholds.HeartRate.Max != 100 {
		t.Errorf("thresholds = %+v, want heart_rate max 100", out.Thresholds)
	}
	if out.SourceEventID != "evt-1" {
		t.Errorf("source_event_id = %q, want evt-1", out.SourceEventID)
	}
	if out.TraceID != "trace-1" {
		t.Errorf("trace_id = %q, want copied unchanged", out.TraceID)
	}
	want := []string{"device", "patient", "thresholds"}
	if len(out.EnrichmentMetadata.EnrichmentSources) != len(want) {
		t.Errorf("enrichment_sources = %v, want %v", out.EnrichmentMetadata.EnrichmentSources, want)
	}
}

func TestEnrich_NoPatientIDResolvable_MarksOrphan(t *testing.T) {
	reg := &fakeRegistry{
		deviceErr: errors.New("device not found"),
	}
	e := New(reg, testPeer(), discardLogger())

	in := pipelineevents.NormalizedTelemetry{
		Envelope: pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		DeviceID: "device-999",
	}

	out := e.Enrich(context.Background(), in)

	if !out.Orphan {
		t.Fatalf("expected orphan=true")
	}
	if out.PatientProfile != nil {
		t.Errorf("orphan event must not carry patientProfile")
	}
	if out.Thresholds != nil {
		t.Errorf("orphan event must not carry thresholds")
	}
	if len(out.EnrichmentMetadata.EnrichmentSources) != 1 || out.EnrichmentMetadata.EnrichmentSources[0] != "none" {
		t.Errorf("enrichment_sources = %v, want [none]", out.EnrichmentMetadata.EnrichmentSources)
	}
}

func TestEnrich_DeviceLookupFailsButInputCarriesPatientID_NotOrphan(t *testing.T) {
	reg := &fakeRegistry{
		deviceErr:  errors.New("registry unreachable"),
		patientErr: errors.New("registry unreachable"),
		thresholdsErr: errors.New("registry unreachable"),
	}
	e := New(reg, testPeer(), discardLogger())

	in := pipelineevents.NormalizedTelemetry{
		Envelope:  pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		DeviceID:  "device-001",
		PatientID: "patient-from-prior-stage",
	}

	out := e.Enrich(context.Background(), in)

	if out.Orphan {
		t.Fatalf("expected non-orphan: input already carried a patient_id")
	}
	if out.PatientID != "patient-from-prior-stage" {
		t.Errorf("patient_id = %q, want preserved", out.PatientID)
	}
	wantSources := []string{"none"}
	if len(out.EnrichmentMetadata.EnrichmentSources) != 1 || out.EnrichmentMetadata.EnrichmentSources[0] != "none" {
		t.Errorf("enrichment_sources = %v, want %v when every lookup failed", out.EnrichmentMetadata.EnrichmentSources, wantSources)
	}
}

func TestEnrich_PatientLookupFailsNonFatal(t *testing.T) {
	reg := &fakeRegistry{
		device:     &registryrpc.GetDeviceResponse{Device: &pipelineevents.Device{DeviceID: "device-001", PatientID: "patient-001"}},
		patientErr: errors.New("timeout"),
		thresholds: &registryrpc.GetThresholdProfileResponse{ThresholdProfile: &pipelineevents.ThresholdProfile{PatientID: "patient-001"}},
	}
	e := New(reg, testPeer(), discardLogger())

	in := pipelineevents.NormalizedTelemetry{
		Envelope: pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		DeviceID: "device-001",
	}

	out := e.Enrich(context.Background(), in)

	if out.Orphan {
		t.Fatalf("expected non-orphan event")
	}
	if out.PatientProfile != nil {
		t.Errorf("expected nil patientProfile when patient lookup failed")
	}
	if out.Thresholds == nil {
		t.Errorf("expected thresholds present despite patient lookup failure")
	}
}
