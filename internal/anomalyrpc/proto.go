// Package anomalyrpc implements the Anomaly Scorer's gRPC surface:
// ScoreVitals, called synchronously by the Rules Engine for every enriched
// event.
package anomalyrpc

import "github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"

// ScoreVitalsRequest carries one patient's current measurements to score
// against their rolling baseline.
type ScoreVitalsRequest struct {
	PatientID string             `json:"patient_id"`
	Vitals    map[string]float64 `json:"vitals"`
}

// ScoreVitalsResponse is the per-metric and overall scoring result.
type ScoreVitalsResponse struct {
	Scores           map[string]pipelineevents.AnomalyScore `json:"scores"`
	OverallRiskScore float64                                `json:"overall_risk_score"`
}

const serviceName = "anomaly.v1.AnomalyScorer"

const methodScoreVitals = "/" + serviceName + "/ScoreVitals"
