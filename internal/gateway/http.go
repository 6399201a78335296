// Package gateway implements the ingress tier: an HTTP endpoint and a gRPC
// endpoint that both accept device measurements, validate them, optionally
// verify the device against the Registry, stamp a fresh event_id/trace_id,
// and publish the resulting raw-telemetry event onto the broker.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// Handler serves the HTTP ingest surface.
type Handler struct {
	ingest *Ingestor
	log    *slog.Logger
}

// NewHandler returns a Handler backed by ingest.
func NewHandler(ingest *Ingestor, log *slog.Logger) *Handler {
	return &Handler{ingest: ingest, log: log}
}

// telemetryMetrics is the HTTP request's metrics object; each field is a
// device-reported vital, present only when the device measured it.
type telemetryMetrics struct {
	HR   *float64 `json:"hr,omitempty"`
	SpO2 *float64 `json:"spo2,omitempty"`
	Temp *float64 `json:"temp,omitempty"`
}

// telemetryMeta is the HTTP request's optional device metadata.
type telemetryMeta struct {
	Battery  *float64 `json:"battery,omitempty"`
	Firmware string   `json:"firmware,omitempty"`
}

// telemetryRequest is the HTTP request body for POST /telemetry.
type telemetryRequest struct {
	DeviceID  string           `json:"deviceId"`
	Timestamp string           `json:"timestamp"`
	Metrics   telemetryMetrics `json:"metrics"`
	Meta      *telemetryMeta   `json:"meta,omitempty"`
}

// telemetryResponse is the HTTP response body for POST /telemetry, shared
// by both the 200-accept and 400-validation-failure cases.
type telemetryResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Routes returns the HTTP handler for the Gateway's endpoints, using Go
// 1.22's method-and-path pattern routing.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /telemetry", h.handleTelemetry)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	var req telemetryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, telemetryResponse{Success: false, Message: "malformed request body"})
		return
	}

	measurements := measurementsFromMetrics(req.Metrics)
	metadata := metadataFromMeta(req.Meta)
	if req.Timestamp != "" {
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata["timestamp"] = req.Timestamp
	}

	env, err := h.ingest.Accept(r.Context(), req.DeviceID, "", measurements, metadata)
	if err != nil {
		var verr *ValidationError
		var nferr *DeviceNotFoundError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, telemetryResponse{Success: false, Message: verr.Error()})
		case errors.As(err, &nferr):
			writeJSON(w, http.StatusBadRequest, telemetryResponse{Success: false, Message: nferr.Error()})
		default:
			h.log.Error("publish raw telemetry failed", "device_id", req.DeviceID, "error", err)
			writeJSON(w, http.StatusInternalServerError, telemetryResponse{Success: false, Message: "failed to accept telemetry"})
		}
		return
	}

	writeJSON(w, http.StatusOK, telemetryResponse{Success: true, EventID: env.EventID, Message: "accepted"})
}

// measurementsFromMetrics expands the HTTP request's {hr?, spo2?, temp?}
// object into the canonical Measurement array the shared Ingestor expects.
// Units are not carried on the wire here; hr is bpm, spo2 is percent, and
// temp is Fahrenheit, matching this surface's device fleet.
func measurementsFromMetrics(m telemetryMetrics) []pipelineevents.Measurement {
	var out []pipelineevents.Measurement
	if m.HR != nil {
		out = append(out, pipelineevents.Measurement{Metric: pipelineevents.MetricHeartRate, Value: *m.HR, Unit: pipelineevents.UnitBPM})
	}
	if m.SpO2 != nil {
		out = append(out, pipelineevents.Measurement{Metric: pipelineevents.MetricOxygenSaturation, Value: *m.SpO2, Unit: pipelineevents.UnitPercent})
	}
	if m.Temp != nil {
		out = append(out, pipelineevents.Measurement{Metric: pipelineevents.MetricTemperature, Value: *m.Temp, Unit: pipelineevents.UnitFahrenheit})
	}
	return out
}

func metadataFromMeta(meta *telemetryMeta) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, 2)
	if meta.Battery != nil {
		out["battery"] = strconv.FormatFloat(*meta.Battery, 'f', -1, 64)
	}
	if meta.Firmware != "" {
		out["firmware"] = meta.Firmware
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ValidationError indicates the request failed ingest validation; it maps
// to HTTP 400 / SendMeasurements status validation_error=2.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}
