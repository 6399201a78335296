package scoring

import (
	"context"
	"fmt"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

// z-score bands, ported from the original anomaly service's fixed
// thresholds (scoring_service.py Z_SCORE_NORMAL/LOW/MEDIUM/HIGH).
const (
	zScoreNormal = 1.0
	zScoreLow    = 2.0
	zScoreMedium = 3.0
	zScoreHigh   = 4.0
)

// fallbackRanges are the physiological ranges used when a metric has no
// baseline yet (bootstrap band), ported 1:1 from NORMAL_RANGES.
var fallbackRanges = map[string]pipelineevents.Range{
	pipelineevents.MetricHeartRate:        {Min: 60, Max: 100},
	pipelineevents.MetricOxygenSaturation: {Min: 95, Max: 100},
	pipelineevents.MetricTemperature:      {Min: 36.1, Max: 37.2},
}

// metricWeights weight each metric's contribution to the overall risk
// score, renormalized when a metric is absent from the measurement set.
var metricWeights = map[string]float64{
	pipelineevents.MetricHeartRate:        0.35,
	pipelineevents.MetricOxygenSaturation: 0.35,
	pipelineevents.MetricTemperature:      0.30,
}

// Scorer computes per-metric anomaly scores against a rolling baseline and
// an overall weighted risk score.
type Scorer struct {
	store      BaselineStore
	minSamples int
}

// NewScorer returns a Scorer backed by store, treating a window with fewer
// than minSamples entries as "insufficient baseline data".
func NewScorer(store BaselineStore, minSamples int) *Scorer {
	return &Scorer{store: store, minSamples: minSamples}
}

// MetricScore is one metric's scoring result.
type MetricScore struct {
	Score       float64
	IsAnomaly   bool
	Explanation string
	Bootstrap   bool // true when computed from the fallback range, not a baseline
}

// ScoreMetric scores a single measurement against patientID's rolling
// baseline for metric, then records the measurement into that baseline.
func (s *Scorer) ScoreMetric(ctx context.Context, patientID, metric string, value float64) (MetricScore, error) {
	stats, err := s.store.Stats(ctx, patientID, metric)
	if err != nil {
		return MetricScore{}, fmt.Errorf("scoring: stats for %s/%s: %w", patientID, metric, err)
	}

	var result MetricScore
	if stats.Count < s.minSamples {
		result = bootstrapScore(metric, value, stats.Count)
	} else {
		result = zScore(metric, value, stats.Mean, stats.StdDev)
	}

	if err := s.store.AddMeasurement(ctx, patientID, metric, value); err != nil {
		return result, fmt.Errorf("scoring: record measurement for %s/%s: %w", patientID, metric, err)
	}
	return result, nil
}

// bootstrapScore scores a metric with no established baseline by checking
// it against a fixed physiological range, per scoring_service.py's
// insufficient-history branch.
func bootstrapScore(metric string, value float64, sampleCount int) MetricScore {
	r, ok := fallbackRanges[metric]
	if !ok {
		return MetricScore{
			Score:       0.3,
			IsAnomaly:   false,
			Explanation: fmt.Sprintf("insufficient baseline data for %s (%d samples)", metric, sampleCount),
			Bootstrap:   true,
		}
	}

	if value < r.Min || value > r.Max {
		return MetricScore{
			Score:       0.5,
			IsAnomaly:   false,
			Explanation: fmt.Sprintf("%s value %.2f is outside normal range (%.1f-%.1f), but insufficient baseline data (%d samples)", metric, value, r.Min, r.Max, sampleCount),
			Bootstrap:   true,
		}
	}
	return MetricScore{
		Score:       0.2,
		IsAnomaly:   false,
		Explanation: fmt.Sprintf("%s value %.2f is within normal range, but insufficient baseline data (%d samples)", metric, value, sampleCount),
		Bootstrap:   true,
	}
}

// zScore maps a baseline z-score onto a 0-1 anomaly score via the same
// piecewise-linear bands as scoring_service.py's score_single_vital.
func zScore(metric string, value, mean, stddev float64) MetricScore {
	if stddev == 0 {
		stddev = 0.1
	}
	z := (value - mean) / stddev
	if z < 0 {
		z = -z
	}

	var score float64
	switch {
	case z <= zScoreNormal:
		score = (z / zScoreNormal) * 0.2
	case z <= zScoreLow:
		score = 0.2 + ((z-zScoreNormal)/(zScoreLow-zScoreNormal))*0.2
	case z <= zScoreMedium:
		score = 0.4 + ((z-zScoreLow)/(zScoreMedium-zScoreLow))*0.2
	case z <= zScoreHigh:
		score = 0.6 + ((z-zScoreMedium)/(zScoreHigh-zScoreMedium))*0.2
	default:
		extra := (z - zScoreHigh) / zScoreHigh * 0.2
		if extra > 0.2 {
			extra = 0.2
		}
		score = 0.8 + extra
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	direction := "below"
	if value > mean {
		direction = "above"
	}

	return MetricScore{
		Score:     score,
		IsAnomaly: score > 0.5,
		Explanation: fmt.Sprintf(
			"%s value %.2f is %s baseline (mean=%.2f, std=%.2f, z-score=%.2f), anomaly score %.2f",
			metric, value, direction, mean, stddev, z, score,
		),
	}
}

// OverallRisk combines per-metric scores into a single risk score using
// metricWeights, renormalized to sum to 1 over the metrics actually
// present. Metrics are summed in a fixed order so the result does not
// depend on map iteration order.
func OverallRisk(scores map[string]MetricScore) float64 {
	var weightedSum, totalWeight float64
	for _, metric := range []string{pipelineevents.MetricHeartRate, pipelineevents.MetricOxygenSaturation, pipelineevents.MetricTemperature} {
		s, ok := scores[metric]
		if !ok {
			continue
		}
		w := metricWeights[metric]
		weightedSum += s.Score * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Severity maps a 0-1 anomaly score onto the pipeline's shared severity
// scale: ok/low/medium/high/critical. The Rules Engine separately
// produces "warning", which ranks between medium and high on the shared
// ordering.
func Severity(score float64) pipelineevents.Severity {
	switch {
	case score <= 0.2:
		return pipelineevents.SeverityOK
	case score <= 0.4:
		return pipelineevents.SeverityLow
	case score <= 0.6:
		return pipelineevents.SeverityMedium
	case score <= 0.8:
		return pipelineevents.SeverityHigh
	default:
		return pipelineevents.SeverityCritical
	}
}
