// Package rules implements the Rules Engine stage: it scores enriched
// telemetry against the Anomaly Scorer, evaluates a fixed threshold rule
// set, aggregates severity, and emits a scored event (always) and an alert
// event (iff severity != ok).
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// AnomalyClient is the subset of anomalyrpc.Client the Rules Engine
// depends on.
type AnomalyClient interface {
	ScoreVitals(ctx context.Context, patientID string, vitals map[string]float64) (*AnomalyResult, error)
}

// AnomalyResult mirrors anomalyrpc.ScoreVitalsResponse, kept as a distinct
// type here so this package does not need to import anomalyrpc directly
// (only the thin adapter in cmd/rules does).
type AnomalyResult struct {
	Scores           map[string]pipelineevents.AnomalyScore
	OverallRiskScore float64
}

// ruleResult records one triggered rule.
type ruleResult struct {
	ruleID    string
	severity  pipelineevents.Severity
	metric    string
	value     float64
	threshold float64
	message   string
}

// Engine evaluates R1-R4 against enriched telemetry and fuses the result
// with the Anomaly Scorer's per-metric severities.
type Engine struct {
	anomaly  AnomalyClient
	defaults config.RuleThresholds
}

// New returns an Engine backed by anomaly, using defaults' hr_very_high and
// spo2_low constants for rule R4.
func New(anomaly AnomalyClient, defaults config.RuleThresholds) *Engine {
	return &Engine{anomaly: anomaly, defaults: defaults}
}

func vitalValue(vitals map[string]pipelineevents.Vital, metric string) (float64, bool) {
	v, ok := vitals[metric]
	if !ok {
		return 0, false
	}
	return v.Value, true
}

// celsius converts a temperature vital to Celsius for rule comparison;
// thresholds are always expressed in Celsius (matching the Normalizer's
// clamp bounds). The stored/published vital value and unit are untouched.
func celsius(vital pipelineevents.Vital) float64 {
	switch strings.ToLower(vital.Unit) {
	case pipelineevents.UnitFahrenheit, "f":
		return (vital.Value - 32) * 5 / 9
	default:
		return vital.Value
	}
}

func (e *Engine) evaluateRules(vitals map[string]pipelineevents.Vital, thresholds *pipelineevents.Thresholds) []ruleResult {
	if thresholds == nil {
		return nil
	}

	var results []ruleResult

	if hr, ok := vitalValue(vitals, pipelineevents.MetricHeartRate); ok {
		if hr > thresholds.HeartRate.Max {
			results = append(results, ruleResult{
				ruleID: "hr_max_exceeded", severity: pipelineevents.SeverityWarning,
				metric: pipelineevents.MetricHeartRate, value: hr, threshold: thresholds.HeartRate.Max,
				message: fmt.Sprintf("heart_rate %.1f exceeds maximum threshold %.1f", hr, thresholds.HeartRate.Max),
			})
		}
	}

	if spo2, ok := vitalValue(vitals, pipelineevents.MetricOxygenSaturation); ok {
		if spo2 < thresholds.OxygenSaturation.Min {
			results = append(results, ruleResult{
				ruleID: "spo2_min_below", severity: pipelineevents.SeverityCritical,
				metric: pipelineevents.MetricOxygenSaturation, value: spo2, threshold: thresholds.OxygenSaturation.Min,
				message: fmt.Sprintf("oxygen_saturation %.1f below minimum threshold %.1f", spo2, thresholds.OxygenSaturation.Min),
			})
		}
	}

	if tempVital, ok := vitals[pipelineevents.MetricTemperature]; ok {
		tempC := celsius(tempVital)
		if tempC > thresholds.Temperature.Max {
			results = append(results, ruleResult{
				ruleID: "temp_max_exceeded", severity: pipelineevents.SeverityWarning,
				metric: pipelineevents.MetricTemperature, value: tempC, threshold: thresholds.Temperature.Max,
				message: fmt.Sprintf("temperature %.1f°C exceeds maximum threshold %.1f°C", tempC, thresholds.Temperature.Max),
			})
		}
	}

	hr, hasHR := vitalValue(vitals, pipelineevents.MetricHeartRate)
	spo2, hasSpO2 := vitalValue(vitals, pipelineevents.MetricOxygenSaturation)
	if hasHR && hasSpO2 && hr > e.defaults.HRVeryHigh && spo2 < e.defaults.SpO2Low {
		results = append(results, ruleResult{
			ruleID: "hr_high_spo2_low_combined", severity: pipelineevents.SeverityCritical,
			metric: pipelineevents.MetricHeartRate, value: hr, threshold: e.defaults.HRVeryHigh,
			message: fmt.Sprintf("critical combination: heart_rate %.1f very high (> %.1f) and oxygen_saturation %.1f low (< %.1f)", hr, e.defaults.HRVeryHigh, spo2, e.defaults.SpO2Low),
		})
	}

	return results
}

// Evaluate scores and evaluates in, returning the scored event and,
// non-nil, an alert iff the aggregated severity is not ok.
func (e *Engine) Evaluate(ctx context.Context, in pipelineevents.EnrichedTelemetry, newEventID, newAlertID func() string) (pipelineevents.ScoredTelemetry, *pipelineevents.Alert) {
	scored := pipelineevents.ScoredTelemetry{
		Envelope:              pipelineevents.NewEnvelope(newEventID(), in.TraceID, pipelineevents.TopicScored, in.EventID),
		DeviceID:              in.DeviceID,
		PatientID:             in.PatientID,
		Vitals:                in.Vitals,
		ValidationStatus:      in.ValidationStatus,
		NormalizationMetadata: in.NormalizationMetadata,
		Orphan:                in.Orphan,
		PatientProfile:        in.PatientProfile,
		Thresholds:            in.Thresholds,
		EnrichmentMetadata:    in.EnrichmentMetadata,
	}

	if in.Orphan {
		scored.OverallSeverity = pipelineevents.SeverityOK
		scored.RulesTriggered = []string{}
		return scored, nil
	}

	var anomalyScores map[string]pipelineevents.AnomalyScore
	var overallRisk float64
	degraded := false

	// The Anomaly Scorer's wire contract carries bare floats with no unit
	// field, so every unit-bearing vital must be normalized to the unit its
	// fallback ranges are denominated in (Celsius for temperature) before
	// crossing that boundary; everything else already travels in its
	// canonical unit (bpm, percent, breaths/min).
	vitalInputs := make(map[string]float64, len(in.Vitals))
	for metric, v := range in.Vitals {
		if metric == pipelineevents.MetricTemperature {
			vitalInputs[metric] = celsius(v)
			continue
		}
		vitalInputs[metric] = v.Value
	}

	if e.anomaly != nil && len(vitalInputs) > 0 {
		result, err := e.anomaly.ScoreVitals(ctx, in.PatientID, vitalInputs)
		if err != nil {
			degraded = true
		} else {
			anomalyScores = result.Scores
			overallRisk = result.OverallRiskScore
		}
	}

	triggered := e.evaluateRules(in.Vitals, in.Thresholds)

	overallSeverity := pipelineevents.SeverityOK
	for _, r := range triggered {
		overallSeverity = overallSeverity.Max(r.severity)
	}
	for _, as := range anomalyScores {
		overallSeverity = overallSeverity.Max(as.Severity)
	}

	rulesTriggered := make([]string, 0, len(triggered))
	for _, r := range triggered {
		rulesTriggered = append(rulesTriggered, r.ruleID)
	}

	scored.AnomalyScores = anomalyScores
	scored.OverallRiskScore = overallRisk
	scored.OverallSeverity = overallSeverity
	scored.RulesTriggered = rulesTriggered
	scored.AnomalyDegraded = degraded

	if overallSeverity == pipelineevents.SeverityOK {
		return scored, nil
	}

	condition := conditionSummary(triggered)
	alertID := newAlertID()
	alert := &pipelineevents.Alert{
		Envelope:       pipelineevents.NewEnvelope(newEventID(), in.TraceID, pipelineevents.TopicAlerts, scored.EventID),
		AlertID:        alertID,
		PatientID:      in.PatientID,
		DeviceID:       in.DeviceID,
		Severity:       overallSeverity,
		AlertType:      pipelineevents.AlertTypeVitalSignAnomaly,
		Condition:      condition,
		RulesTriggered: rulesTriggered,
		Details:        map[string]any{"overall_risk_score": overallRisk, "anomaly_degraded": degraded},
	}
	return scored, alert
}

// conditionSummary summarizes the first triggering rule's metric, observed
// value, and breached threshold.
func conditionSummary(triggered []ruleResult) string {
	if len(triggered) == 0 {
		return "anomaly-score derived severity, no threshold rule triggered"
	}
	first := triggered[0]
	return first.message
}
