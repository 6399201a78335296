// Package pipelineevents defines the shared event envelope and the five
// topic-specific event bodies that flow through the telemetry pipeline:
// raw, normalized, enriched, scored, and alerts.
package pipelineevents

import "time"

// Topic names. These double as JetStream stream names and gRPC/HTTP-visible
// event_type values.
const (
	TopicRaw        = "raw"
	TopicNormalized = "normalized"
	TopicEnriched   = "enriched"
	TopicScored     = "scored"
	TopicAlerts     = "alerts"
)

// Schema version stamped on every envelope produced by this build.
const SchemaVersion = "1.0.0"

// Envelope carries the fields present on every pipeline event. It is
// embedded by value in each event body so that JSON encoding flattens it
// alongside the stage-specific fields.
type Envelope struct {
	EventID       string    `json:"event_id"`
	TraceID       string    `json:"trace_id"`
	EventType     string    `json:"event_type"`
	Version       string    `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	SourceEventID string    `json:"source_event_id,omitempty"`
}

// NewEnvelope returns an Envelope for eventType, copying traceID and
// sourceEventID unchanged from the caller. eventID is freshly minted by the
// caller (see internal/idgen) since uniqueness must hold per produced
// event, not per envelope construction call.
func NewEnvelope(eventID, traceID, eventType, sourceEventID string) Envelope {
	return Envelope{
		EventID:       eventID,
		TraceID:       traceID,
		EventType:     eventType,
		Version:       SchemaVersion,
		Timestamp:     time.Now().UTC(),
		SourceEventID: sourceEventID,
	}
}

// Canonical metric names.
const (
	MetricHeartRate        = "heart_rate"
	MetricOxygenSaturation = "oxygen_saturation"
	MetricTemperature      = "temperature"
	MetricRespiratoryRate  = "respiratory_rate"
)

// Canonical units. Temperature may be either; it is never converted.
const (
	UnitBPM      = "bpm"
	UnitPercent  = "percent"
	UnitCelsius  = "celsius"
	UnitFahrenheit = "fahrenheit"
	UnitBreathsPerMinute = "breaths_per_minute"
)

// Measurement is a single raw device reading, as submitted by the Gateway.
type Measurement struct {
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
}

// Vital is a normalized, canonical-unit reading attached to a patient's
// vitals map.
type Vital struct {
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationStatus describes what, if anything, the Normalizer had to do
// to a measurement before it could be accepted.
type ValidationStatus string

const (
	ValidationValid               ValidationStatus = "valid"
	ValidationClamped             ValidationStatus = "clamped"
	ValidationTimestampSubstituted ValidationStatus = "timestamp_substituted"
)

// Severity is the pipeline-wide severity ordering used by both rule
// evaluation and anomaly-score mapping.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityOK:       0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityWarning:  3,
	SeverityHigh:     4,
	SeverityCritical: 5,
}

// Max returns the higher-ranked of two severities.
func (s Severity) Max(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// Less reports whether s ranks below other.
func (s Severity) Less(other Severity) bool {
	return severityRank[s] < severityRank[other]
}
