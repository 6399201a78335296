package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Anomaly Scorer's primary baseline store: one Redis list
// per (patient_id, metric), capped to window entries, expiring after ttl.
// Each append (push, trim-to-window, expiry refresh) runs as one WATCH/MULTI
// transaction so a concurrent writer for the same key cannot interleave a
// partial update; Stats reads the list outside that transaction.
type RedisStore struct {
	client *redis.Client
	window int
	ttl    time.Duration
}

// NewRedisStore returns a RedisStore backed by client.
func NewRedisStore(client *redis.Client, window int, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, window: window, ttl: ttl}
}

type baselineEntry struct {
	Value float64 `json:"value"`
}

func baselineKey(patientID, metric string) string {
	return "baseline:" + patientID + ":" + metric
}

// AddMeasurement appends value under a WATCH/MULTI transaction so the
// list's trim-to-window and expiry refresh happen atomically with the
// push.
func (s *RedisStore) AddMeasurement(ctx context.Context, patientID, metric string, value float64) error {
	key := baselineKey(patientID, metric)
	entry, err := json.Marshal(baselineEntry{Value: value})
	if err != nil {
		return fmt.Errorf("scoring: encode measurement: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LPush(ctx, key, entry)
			pipe.LTrim(ctx, key, 0, int64(s.window-1))
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		return err
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		return fmt.Errorf("scoring: add measurement %s: %w", key, err)
	}
	return nil
}

// Stats reads the current window for patientID/metric.
func (s *RedisStore) Stats(ctx context.Context, patientID, metric string) (BaselineStats, error) {
	key := baselineKey(patientID, metric)

	raw, err := s.client.LRange(ctx, key, 0, int64(s.window-1)).Result()
	if err != nil {
		return BaselineStats{}, fmt.Errorf("scoring: read baseline %s: %w", key, err)
	}

	values := make([]float64, 0, len(raw))
	for _, r := range raw {
		var e baselineEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		values = append(values, e.Value)
	}

	m := mean(values)
	return BaselineStats{Mean: m, StdDev: stddev(values, m), Count: len(values)}, nil
}

// Ping verifies connectivity, used at startup to decide whether to fall
// back to the in-process store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
