// Package scoring implements the Anomaly Scorer's rolling-baseline z-score
// model, ported from the original anomaly service's ScoringService/
// BaselineStore (original_source/services/anomaly-service/scoring_service.py):
// a per-(patient, metric) sliding window of recent values feeds a z-score
// that is mapped piecewise onto a 0-1 anomaly score.
package scoring

import (
	"context"
	"math"
)

// BaselineStats summarizes a patient/metric's rolling window.
type BaselineStats struct {
	Mean  float64
	StdDev float64
	Count int
}

// BaselineStore persists and serves the rolling window of recent
// measurements per (patient_id, metric). Implementations must serialize
// concurrent AddMeasurement calls for the same key so that Count and the
// window's contents never diverge: RedisStore does this with WATCH/MULTI,
// MemoryStore with a per-key mutex.
type BaselineStore interface {
	// AddMeasurement appends value to patientID/metric's window, evicting
	// the oldest entry once the window exceeds its configured size.
	AddMeasurement(ctx context.Context, patientID, metric string, value float64) error
	// Stats returns the window's current mean, sample std dev (n-1), and
	// sample count. Count may be 0 if no measurements have been recorded.
	Stats(ctx context.Context, patientID, metric string) (BaselineStats, error)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}
