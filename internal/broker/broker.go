// Package broker implements the pipeline's event-bus abstraction on top of
// NATS JetStream. Each of the five pipeline topics (raw, normalized,
// enriched, scored, alerts) is a JetStream stream; partitioning by
// device_id is realized as one subject per partition within that stream,
// and a consumer group is realized as one durable JetStream pull consumer
// per partition subject, named after the group, giving Kafka-style
// partition/consumer-group/commit-offset semantics on top of
// nats-io/nats.go's JetStream API.
package broker

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Subject returns the JetStream subject for topic and partitionKey,
// spreading partitionKey across n partitions by FNV-1a hash so that every
// event for a given device lands on the same subject, preserving
// per-device order end to end.
func Subject(topic, partitionKey string, n int) string {
	if n <= 0 {
		n = 1
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(partitionKey))
	p := int(h.Sum32()) % n
	if p < 0 {
		p += n
	}
	return topic + ".p" + strconv.Itoa(p)
}

// WildcardSubject returns the subject pattern that covers every partition
// of topic, used when declaring or consuming a stream.
func WildcardSubject(topic string) string {
	return topic + ".>"
}

// EnsureStream creates the JetStream stream backing topic if it does not
// already exist, or updates its partition subject list if n has grown.
// Streams are append-only (WorkQueue retention is NOT used: multiple
// consumer groups must each see every message independently, so retention
// is Interest-based contingent on consumer acks).
func EnsureStream(ctx context.Context, js jetstream.JetStream, topic string, partitions int) (jetstream.Stream, error) {
	subjects := make([]string, 0, partitions)
	for p := 0; p < partitions; p++ {
		subjects = append(subjects, topic+".p"+strconv.Itoa(p))
	}

	cfg := jetstream.StreamConfig{
		Name:      topic,
		Subjects:  subjects,
		Retention: jetstream.InterestPolicy,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}

	stream, err := js.Stream(ctx, topic)
	if err == nil {
		if len(stream.CachedInfo().Config.Subjects) >= partitions {
			return stream, nil
		}
		stream, err = js.UpdateStream(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("broker: update stream %s: %w", topic, err)
		}
		return stream, nil
	}

	stream, err = js.CreateStream(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("broker: create stream %s: %w", topic, err)
	}
	return stream, nil
}

// Publisher is an idempotent, retrying producer for a single topic.
// acks=all is JetStream's default durability guarantee (a publish only
// returns once the stream leader has replicated and stored the message);
// idempotency against broker-side duplicate publish is provided by
// per-event Nats-Msg-Id dedup (msgID = event_id).
type Publisher struct {
	js             jetstream.JetStream
	partitions     int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewPublisher returns a Publisher backed by js.
func NewPublisher(js jetstream.JetStream, partitions, maxAttempts int, initialBackoff, maxBackoff time.Duration) *Publisher {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if initialBackoff <= 0 {
		initialBackoff = 100 * time.Millisecond
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Publisher{
		js:             js,
		partitions:     partitions,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Publish sends payload (already-encoded JSON) to topic, partitioned by
// partitionKey (the event's device_id), deduplicated by msgID (the
// event's event_id). On transient errors it retries with exponential
// backoff (initial 100ms, multiplier 2, cap 30s, up to maxAttempts tries)
// before giving up.
func (p *Publisher) Publish(ctx context.Context, topic, partitionKey, msgID string, payload []byte) error {
	subject := Subject(topic, partitionKey, p.partitions)

	backoff := p.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		_, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(msgID))
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == p.maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > p.maxBackoff {
			backoff = p.maxBackoff
		}
	}
	return fmt.Errorf("broker: publish to %s failed after %d attempts: %w", subject, p.maxAttempts, lastErr)
}
