// Package normalizer implements the Normalizer stage: it consumes raw
// telemetry, canonicalizes metric names, clamps values to physiological
// bounds, normalizes timestamps, and republishes a NormalizedTelemetry
// event. It never converts units (a Fahrenheit reading stays Fahrenheit);
// it only validates and reshapes.
package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/caretrace-health/telemetry-pipeline/internal/config"
	"github.com/caretrace-health/telemetry-pipeline/internal/idgen"
	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// metricAliases maps every accepted spelling of a metric name to its
// canonical form, grounded on the original normalizer's metric_map.
var metricAliases = map[string]string{
	"hr":                pipelineevents.MetricHeartRate,
	"heartrate":         pipelineevents.MetricHeartRate,
	"heart_rate":        pipelineevents.MetricHeartRate,
	"pulse":             pipelineevents.MetricHeartRate,
	"spo2":              pipelineevents.MetricOxygenSaturation,
	"o2sat":             pipelineevents.MetricOxygenSaturation,
	"oxygen_saturation": pipelineevents.MetricOxygenSaturation,
	"o2":                pipelineevents.MetricOxygenSaturation,
	"temp":              pipelineevents.MetricTemperature,
	"temperature":       pipelineevents.MetricTemperature,
	"body_temp":         pipelineevents.MetricTemperature,
	"rr":                pipelineevents.MetricRespiratoryRate,
	"respiratory_rate":  pipelineevents.MetricRespiratoryRate,
	"respiration":       pipelineevents.MetricRespiratoryRate,
}

func canonicalMetric(metric string) string {
	key := strings.ToLower(strings.TrimSpace(metric))
	if canonical, ok := metricAliases[key]; ok {
		return canonical
	}
	return key
}

// unixEpochCutoff is the boundary (Jan 1, 2000 UTC, in seconds) below which
// a bare numeric timestamp is assumed to be milliseconds rather than
// seconds, matching the original normalizer's heuristic.
const unixEpochCutoff = 946684800

// parseTimestamp parses raw's timestamp field, returning the resolved time
// and whether substitution (parse failure, fallback to now) occurred.
func parseTimestamp(raw any, now time.Time) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		if t, ok := parseTimestampString(v); ok {
			return t, false
		}
	case float64:
		return fromUnixFlexible(v), false
	case nil:
		// No device-reported time to parse: use now without flagging a
		// parse failure.
		return now, false
	}
	return now, true
}

func parseTimestampString(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}

	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromUnixFlexible(f), true
		}
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromUnixFlexible(float64(n)), true
	}
	return time.Time{}, false
}

func fromUnixFlexible(ts float64) time.Time {
	if ts < unixEpochCutoff {
		ts = ts / 1000.0
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Normalizer applies the normalization rules configured in
// config.NormalizerConfig to a single RawTelemetry event.
type Normalizer struct {
	hr    config.ClampBounds
	spo2  config.ClampBounds
	tempC config.ClampBounds
	log   *slog.Logger
}

// New returns a Normalizer configured with cfg's clamp bounds.
func New(cfg *config.NormalizerConfig, log *slog.Logger) *Normalizer {
	return &Normalizer{hr: cfg.HeartRate, spo2: cfg.OxygenSat, tempC: cfg.TemperatureC, log: log}
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Normalize converts a RawTelemetry event into a NormalizedTelemetry event.
func (n *Normalizer) Normalize(raw pipelineevents.RawTelemetry, now time.Time) pipelineevents.NormalizedTelemetry {
	eventTimestamp, substituted := parseTimestamp(rawTimestampValue(raw), now)

	vitals := make(map[string]pipelineevents.Vital)
	var clamped []string
	var dropped []string

	for _, m := range raw.Measurements {
		metric := canonicalMetric(m.Metric)

		switch metric {
		case pipelineevents.MetricHeartRate:
			v := clamp(m.Value, n.hr.Min, n.hr.Max)
			if v != m.Value {
				clamped = append(clamped, metric)
				n.log.Warn("heart_rate clamped", "raw_value", m.Value, "clamped_value", v)
			}
			vitals[metric] = pipelineevents.Vital{Value: v, Unit: unitOrDefault(m.Unit, pipelineevents.UnitBPM), Timestamp: eventTimestamp}

		case pipelineevents.MetricOxygenSaturation:
			v := clamp(m.Value, n.spo2.Min, n.spo2.Max)
			if v != m.Value {
				clamped = append(clamped, metric)
				n.log.Warn("oxygen_saturation clamped", "raw_value", m.Value, "clamped_value", v)
			}
			vitals[metric] = pipelineevents.Vital{Value: v, Unit: unitOrDefault(m.Unit, pipelineevents.UnitPercent), Timestamp: eventTimestamp}

		case pipelineevents.MetricTemperature:
			unit := unitOrDefault(m.Unit, pipelineevents.UnitCelsius)
			v := m.Value
			if unit == pipelineevents.UnitCelsius {
				clampedV := clamp(v, n.tempC.Min, n.tempC.Max)
				if clampedV != v {
					clamped = append(clamped, metric)
					n.log.Warn("temperature clamped", "raw_value", v, "clamped_value", clampedV)
				}
				v = clampedV
			}
			// Fahrenheit readings are never converted or clamped against the
			// Celsius bounds; they pass through unit-preserved.
			vitals[metric] = pipelineevents.Vital{Value: v, Unit: unit, Timestamp: eventTimestamp}

		case pipelineevents.MetricRespiratoryRate:
			vitals[metric] = pipelineevents.Vital{Value: m.Value, Unit: unitOrDefault(m.Unit, pipelineevents.UnitBreathsPerMinute), Timestamp: eventTimestamp}

		default:
			dropped = append(dropped, m.Metric)
			n.log.Warn("dropped unrecognized metric", "metric", m.Metric)
		}
	}

	status := pipelineevents.ValidationValid
	if substituted {
		status = pipelineevents.ValidationTimestampSubstituted
	} else if len(clamped) > 0 {
		status = pipelineevents.ValidationClamped
	}

	patientID := extractPatientID(raw)

	return pipelineevents.NormalizedTelemetry{
		Envelope:  pipelineevents.NewEnvelope(idgen.NewEventID(), raw.TraceID, pipelineevents.TopicNormalized, raw.EventID),
		DeviceID:  raw.DeviceID,
		PatientID: patientID,
		Vitals:    vitals,
		ValidationStatus: status,
		NormalizationMetadata: pipelineevents.NormalizationMetadata{
			DroppedMetrics: dropped,
			ClampedMetrics: clamped,
		},
	}
}

func unitOrDefault(unit, fallback string) string {
	if unit == "" {
		return fallback
	}
	return unit
}

// rawTimestampValue surfaces raw's metadata["timestamp"] field, if any, in
// the any-typed shape parseTimestamp expects. Gateway-produced events carry
// no top-level timestamp field (the envelope's Timestamp is always
// server-assigned); a device-reported reading time travels in metadata.
func rawTimestampValue(raw pipelineevents.RawTelemetry) any {
	if raw.Metadata == nil {
		return nil
	}
	v, ok := raw.Metadata["timestamp"]
	if !ok {
		return nil
	}
	return v
}

// extractPatientID returns the patient_id carried in raw's metadata, or ""
// when there is none; no placeholder is derived from the device. The
// Enricher resolves the authoritative patient_id from the Registry.
func extractPatientID(raw pipelineevents.RawTelemetry) string {
	if raw.Metadata != nil {
		if pid, ok := raw.Metadata["patient_id"]; ok && pid != "" {
			return pid
		}
	}
	return ""
}

// DecodeRaw unmarshals a raw-topic message payload.
func DecodeRaw(payload []byte) (pipelineevents.RawTelemetry, error) {
	var raw pipelineevents.RawTelemetry
	if err := json.Unmarshal(payload, &raw); err != nil {
		return pipelineevents.RawTelemetry{}, fmt.Errorf("normalizer: decode raw telemetry: %w", err)
	}
	return raw, nil
}
