package scoring

import (
	"context"
	"testing"

	"github.com/caretrace-health/telemetry-pipeline/internal/pipelineevents"
)

func TestScorer_BootstrapBand_InRange(t *testing.T) {
	store := NewMemoryStore(100)
	s := NewScorer(store, 10)

	result, err := s.ScoreMetric(context.Background(), "patient-001", pipelineevents.MetricHeartRate, 75)
	if err != nil {
		t.Fatalf("ScoreMetric: %v", err)
	}
	if !result.Bootstrap {
		t.Error("expected Bootstrap = true with no samples yet")
	}
	if result.Score != 0.2 {
		t.Errorf("Score = %v, want 0.2 for in-range bootstrap", result.Score)
	}
}

func TestScorer_BootstrapBand_OutOfRange(t *testing.T) {
	store := NewMemoryStore(100)
	s := NewScorer(store, 10)

	result, err := s.ScoreMetric(context.Background(), "patient-001", pipelineevents.MetricHeartRate, 180)
	if err != nil {
		t.Fatalf("ScoreMetric: %v", err)
	}
	if result.Score != 0.5 {
		t.Errorf("Score = %v, want 0.5 for out-of-range bootstrap", result.Score)
	}
}

func TestScorer_EstablishedBaseline_DetectsAnomaly(t *testing.T) {
	store := NewMemoryStore(100)
	s := NewScorer(store, 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.ScoreMetric(ctx, "patient-001", pipelineevents.MetricHeartRate, 70); err != nil {
			t.Fatalf("seed ScoreMetric: %v", err)
		}
	}

	result, err := s.ScoreMetric(ctx, "patient-001", pipelineevents.MetricHeartRate, 220)
	if err != nil {
		t.Fatalf("ScoreMetric: %v", err)
	}
	if result.Bootstrap {
		t.Error("expected baseline to be established after 10 samples")
	}
	if !result.IsAnomaly {
		t.Errorf("expected anomaly for extreme deviation, score = %v", result.Score)
	}
}

func TestScorer_EstablishedBaseline_StableIsNormal(t *testing.T) {
	store := NewMemoryStore(100)
	s := NewScorer(store, 5)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := s.ScoreMetric(ctx, "patient-001", pipelineevents.MetricHeartRate, 70); err != nil {
			t.Fatalf("seed ScoreMetric: %v", err)
		}
	}

	result, err := s.ScoreMetric(ctx, "patient-001", pipelineevents.MetricHeartRate, 71)
	if err != nil {
		t.Fatalf("ScoreMetric: %v", err)
	}
	if result.IsAnomaly {
		t.Errorf("expected normal reading near baseline, got score %v", result.Score)
	}
}

func TestOverallRisk_RenormalizesForMissingMetrics(t *testing.T) {
	full := map[string]MetricScore{
		pipelineevents.MetricHeartRate:        {Score: 1.0},
		pipelineevents.MetricOxygenSaturation: {Score: 0.0},
		pipelineevents.MetricTemperature:      {Score: 0.0},
	}
	if got := OverallRisk(full); got != 0.35 {
		t.Errorf("OverallRisk(full) = %v, want 0.35", got)
	}

	partial := map[string]MetricScore{
		pipelineevents.MetricHeartRate: {Score: 1.0},
	}
	if got := OverallRisk(partial); got != 1.0 {
		t.Errorf("OverallRisk(partial) = %v, want 1.0 after renormalizing over present metrics", got)
	}
}

func TestOverallRisk_EmptyIsZero(t *testing.T) {
	if got := OverallRisk(nil); got != 0 {
		t.Errorf("OverallRisk(nil) = %v, want 0", got)
	}
}
