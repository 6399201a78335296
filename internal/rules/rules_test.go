package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

func idGen(id string) func() string {
	return func() string { return id }
}

type fakeAnomalyClient struct {
	result *AnomalyResult
	err    error
}

func (f *fakeAnomalyClient) ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*AnomalyResult, error) {
	return f.result, f.err
}

func testThresholds() *pipelineevents.Thresholds {
	return &pipelineevents.Thresholds{
		HeartRate:        pipelineevents.Range{Min: 60, Max: 100},
		OxygenSaturation: pipelineevents.Range{Min: 95, Max: 100},
		Temperature:      pipelineevents.Range{Min: 36.1, Max: 37.2},
	}
}

func testDefaults() config.RuleThresholds {
	return config.RuleThresholds{HRVeryHigh: 120, SpO2Low: 90}
}

// capturingAnomalyClient records the vitals map it was called with, so
// tests can assert what crosses the ScoreVitals wire boundary.
type capturingAnomalyClient struct {
	gotVitals map[string]float64
	result    *AnomalyResult
}

func (f *capturingAnomalyClient) ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*AnomalyResult, error) {
	f.gotVitals = vitals
	if f.result != nil {
		return f.result, nil
	}
	return &AnomalyResult{}, nil
}

func TestEvaluate_OrphanEvent_SkipsRulesAndAnomaly(t *testing.T) {
	anomaly := &fakeAnomalyClient{}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope: pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		Orphan:   true,
	}

	scored, alert := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	if scored.OverallSeverity != pipelineevents.SeverityOK {
		t.Errorf("overall_severity = %q, want ok for orphan event", scored.OverallSeverity)
	}
	if alert != nil {
		t.Errorf("expected no alert for orphan event")
	}
}

func TestEvaluate_R2_SpO2Low_TriggersCriticalAlert(t *testing.T) {
	anomaly := &fakeAnomalyClient{result: &AnomalyResult{OverallRiskScore: 0.1}}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:   pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID:  "patient-001",
		DeviceID:   "device-001",
		Thresholds: testThresholds(),
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricOxygenSaturation: {Value: 85},
		},
	}

	scored, alert := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	if scored.OverallSeverity != pipelineevents.SeverityCritical {
		t.Errorf("overall_severity = %q, want critical", scored.OverallSeverity)
	}
	if len(scored.RulesTriggered) != 1 || scored.RulesTriggered[0] != "spo2_min_below" {
		t.Errorf("rulesTriggered = %v, want [spo2_min_below]", scored.RulesTriggered)
	}
	if alert == nil {
		t.Fatalf("expected alert for non-ok severity")
	}
	if alert.AlertID != "alert-1" {
		t.Errorf("alert_id = %q, want alert-1", alert.AlertID)
	}
	if alert.EventID == alert.AlertID {
		t.Errorf("alert event_id must differ from alert_id")
	}
}

func TestEvaluate_R4_CombinedRule_TriggersCritical(t *testing.T) {
	anomaly := &fakeAnomalyClient{result: &AnomalyResult{}}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:   pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID:  "patient-001",
		DeviceID:   "device-001",
		Thresholds: testThresholds(),
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricHeartRate:        {Value: 130},
			pipelineevents.MetricOxygenSaturation: {Value: 85},
		},
	}

	scored, alert := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	foundCombined := false
	for _, r := range scored.RulesTriggered {
		if r == "hr_high_spo2_low_combined" {
			foundCombined = true
		}
	}
	if !foundCombined {
		t.Errorf("rulesTriggered = %v, want hr_high_spo2_low_combined present", scored.RulesTriggered)
	}
	if alert == nil || alert.Severity != pipelineevents.SeverityCritical {
		t.Errorf("expected critical alert, got %+v", alert)
	}
}

func TestEvaluate_NoRulesTriggered_NoAlert(t *testing.T) {
	anomaly := &fakeAnomalyClient{result: &AnomalyResult{}}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:   pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID:  "patient-001",
		DeviceID:   "device-001",
		Thresholds: testThresholds(),
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricHeartRate: {Value: 72},
		},
	}

	scored, alert := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	if scored.OverallSeverity != pipelineevents.SeverityOK {
		t.Errorf("overall_severity = %q, want ok", scored.OverallSeverity)
	}
	if alert != nil {
		t.Errorf("expected no alert, got %+v", alert)
	}
}

func TestEvaluate_AnomalyScorerFailure_DegradesGracefully(t *testing.T) {
	anomaly := &fakeAnomalyClient{err: errors.New("deadline exceeded")}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:   pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID:  "patient-001",
		DeviceID:   "device-001",
		Thresholds: testThresholds(),
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricHeartRate: {Value: 72},
		},
	}

	scored, _ := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	if !scored.AnomalyDegraded {
		t.Errorf("expected anomaly_degraded=true when scorer call fails")
	}
	if scored.OverallRiskScore != 0 {
		t.Errorf("overall_risk_score = %v, want 0 on degraded scoring", scored.OverallRiskScore)
	}
}

func TestEvaluate_TemperatureFahrenheit_ComparedAfterConversion(t *testing.T) {
	anomaly := &fakeAnomalyClient{result: &AnomalyResult{}}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:   pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID:  "patient-001",
		DeviceID:   "device-001",
		Thresholds: testThresholds(),
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricTemperature: {Value: 104, Unit: pipelineevents.UnitFahrenheit}, // ~40C, above 37.2C max
		},
	}

	scored, alert := e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	found := false
	for _, r := range scored.RulesTriggered {
		if r == "temp_max_exceeded" {
			found = true
		}
	}
	if !found {
		t.Errorf("rulesTriggered = %v, want temp_max_exceeded", scored.RulesTriggered)
	}
	if alert == nil {
		t.Errorf("expected alert for exceeded temperature threshold")
	}
}

func TestEvaluate_FahrenheitTemperature_ConvertedBeforeScoring(t *testing.T) {
	anomaly := &capturingAnomalyClient{}
	e := New(anomaly, testDefaults())

	in := pipelineevents.EnrichedTelemetry{
		Envelope:  pipelineevents.Envelope{EventID: "evt-1", TraceID: "trace-1"},
		PatientID: "patient-001",
		DeviceID:  "device-001",
		Vitals: map[string]pipelineevents.Vital{
			pipelineevents.MetricTemperature: {Value: 98.6, Unit: pipelineevents.UnitFahrenheit},
		},
	}

	e.Evaluate(context.Background(), in, idGen("evt-2"), idGen("alert-1"))

	got, ok := anomaly.gotVitals[pipelineevents.MetricTemperature]
	if !ok {
		t.Fatalf("expected temperature to be passed to ScoreVitals")
	}
	// 98.6F is normal body temperature, ~37.0C; the Scorer's fallback range
	// is Celsius-denominated, so an un-converted 98.6 would read as a wildly
	// abnormal value.
	if got < 36.5 || got > 37.5 {
		t.Errorf("vitals[temperature] = %v, want ~37.0 (98.6F converted to Celsius)", got)
	}
}
