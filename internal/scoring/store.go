package scoring

import (
	"context"
	"log/slog"
)

// CacheFirstStore tries primary (Redis) first and falls back to fallback
// (in-process) whenever primary returns an error, so a Redis outage
// degrades the scorer's memory rather than failing RPCs.
type CacheFirstStore struct {
	primary  BaselineStore
	fallback *MemoryStore
	log      *slog.Logger
}

// NewCacheFirstStore returns a CacheFirstStore. primary may be nil, in
// which case every call goes straight to fallback (used when
// SCORER_CACHE_ENABLED=false or Redis was unreachable at startup).
func NewCacheFirstStore(primary BaselineStore, fallback *MemoryStore, log *slog.Logger) *CacheFirstStore {
	return &CacheFirstStore{primary: primary, fallback: fallback, log: log}
}

func (s *CacheFirstStore) AddMeasurement(ctx context.Context, patientID, metric string, value float64) error {
	if s.primary != nil {
		if err := s.primary.AddMeasurement(ctx, patientID, metric, value); err == nil {
			return nil
		} else {
			s.log.Warn("baseline store: redis unavailable, using in-process fallback", "error", err)
		}
	}
	return s.fallback.AddMeasurement(ctx, patientID, metric, value)
}

func (s *CacheFirstStore) Stats(ctx context.Context, patientID, metric string) (BaselineStats, error) {
	if s.primary != nil {
		if stats, err := s.primary.Stats(ctx, patientID, metric); err == nil {
			return stats, nil
		} else {
			s.log.Warn("baseline store: redis unavailable, using in-process fallback", "error", err)
		}
	}
	return s.fallback.Stats(ctx, patientID, metric)
}
