package pipelineevents

// RawTelemetry is published by the Gateway to the raw topic.
type RawTelemetry struct {
	Envelope
	DeviceID     string            `json:"device_id"`
	Measurements []Measurement     `json:"measurements"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// NormalizationMetadata records what the Normalizer did to produce the
// event, for observability and for satisfying P4/P5 in tests.
type NormalizationMetadata struct {
	DroppedMetrics []string `json:"dropped_metrics,omitempty"`
	ClampedMetrics []string `json:"clamped_metrics,omitempty"`
}

// NormalizedTelemetry is published by the Normalizer to the normalized
// topic.
type NormalizedTelemetry struct {
	Envelope
	DeviceID               string                 `json:"device_id"`
	PatientID              string                 `json:"patient_id,omitempty"`
	Vitals                 map[string]Vital       `json:"vitals"`
	ValidationStatus       ValidationStatus       `json:"validation_status"`
	NormalizationMetadata  NormalizationMetadata  `json:"normalization_metadata"`
}

// EnrichmentMetadata records which registry lookups contributed to an
// enriched event.
type EnrichmentMetadata struct {
	EnrichmentSources []string `json:"enrichment_sources"`
}

// PatientProfile is the subset of Patient data attached to enriched events.
type PatientProfile struct {
	Age  int    `json:"age"`
	Sex  string `json:"sex"`
}

// Range is a generic inclusive [Min, Max] bound.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// BloodPressureThresholds groups systolic/diastolic ranges.
type BloodPressureThresholds struct {
	Systolic  Range `json:"systolic"`
	Diastolic Range `json:"diastolic"`
}

// Thresholds is the resolved (device-specific-or-patient-default)
// threshold profile attached to enriched events.
type Thresholds struct {
	HeartRate        Range                   `json:"heart_rate"`
	BloodPressure    BloodPressureThresholds `json:"blood_pressure"`
	Temperature      Range                   `json:"temperature"`
	OxygenSaturation Range                   `json:"oxygen_saturation"`
	RespiratoryRate  Range                   `json:"respiratory_rate"`
}

// EnrichedTelemetry is published by the Enricher to the enriched topic.
type EnrichedTelemetry struct {
	Envelope
	DeviceID              string                `json:"device_id"`
	PatientID             string                `json:"patient_id,omitempty"`
	Vitals                map[string]Vital      `json:"vitals"`
	ValidationStatus      ValidationStatus      `json:"validation_status"`
	NormalizationMetadata NormalizationMetadata `json:"normalization_metadata"`
	Orphan                bool                  `json:"orphan"`
	PatientProfile        *PatientProfile       `json:"patientProfile,omitempty"`
	Thresholds            *Thresholds           `json:"thresholds,omitempty"`
	EnrichmentMetadata    EnrichmentMetadata    `json:"enrichment_metadata"`
}

// AnomalyScore is the per-metric scoring result returned by the Anomaly
// Scorer and echoed on scored events.
type AnomalyScore struct {
	Score    float64  `json:"score"`
	Severity Severity `json:"severity"`
}

// ScoredTelemetry is published by the Rules Engine to the scored topic.
type ScoredTelemetry struct {
	Envelope
	DeviceID              string                  `json:"device_id"`
	PatientID             string                  `json:"patient_id,omitempty"`
	Vitals                map[string]Vital        `json:"vitals"`
	ValidationStatus      ValidationStatus        `json:"validation_status"`
	NormalizationMetadata NormalizationMetadata   `json:"normalization_metadata"`
	Orphan                bool                    `json:"orphan"`
	PatientProfile        *PatientProfile         `json:"patientProfile,omitempty"`
	Thresholds            *Thresholds             `json:"thresholds,omitempty"`
	EnrichmentMetadata    EnrichmentMetadata      `json:"enrichment_metadata"`
	AnomalyScores         map[string]AnomalyScore `json:"anomaly_scores"`
	OverallRiskScore      float64                 `json:"overall_risk_score"`
	OverallSeverity       Severity                `json:"overall_severity"`
	RulesTriggered        []string                `json:"rulesTriggered"`
	AnomalyDegraded       bool                    `json:"anomaly_degraded,omitempty"`
}

// Alert is published to the alerts topic whenever a lineage's overall
// severity is not ok.
type Alert struct {
	Envelope
	AlertID        string   `json:"alert_id"`
	PatientID      string   `json:"patient_id"`
	DeviceID       string   `json:"device_id"`
	Severity       Severity `json:"severity"`
	AlertType      string   `json:"alert_type"`
	Condition      string   `json:"condition"`
	RulesTriggered []string `json:"rulesTriggered"`
	Details        map[string]any `json:"details,omitempty"`
}

// AlertTypeVitalSignAnomaly is the only alert_type emitted by this build's
// rule set (R1-R4 and anomaly-score derived severity are all vital-sign
// conditions).
const AlertTypeVitalSignAnomaly = "vital_sign_anomaly"
