package broker

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Consumer wraps one JetStream durable consumer bound to a single
// partition subject of a topic, giving strictly sequential, at-least-once
// delivery within that partition.
type Consumer struct {
	js       jetstream.JetStream
	topic    string
	subject  string
	group    string
	consumer jetstream.Consumer
}

// NewConsumer binds (or creates) a durable pull consumer named group on
// topic's partition subject. MaxDeliver bounds redelivery of a poison
// message before it is dropped (default 8).
func NewConsumer(ctx context.Context, js jetstream.JetStream, topic, subject, group string, maxDeliver int) (*Consumer, error) {
	if maxDeliver <= 0 {
		maxDeliver = 8
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, topic, jetstream.ConsumerConfig{
		Durable:       group + "-" + subject,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    maxDeliver,
		MaxAckPending: 1, // one in-flight message per partition, preserving per-device order
	})
	if err != nil {
		return nil, fmt.Errorf("broker: create consumer %s/%s: %w", topic, subject, err)
	}

	return &Consumer{js: js, topic: topic, subject: subject, group: group, consumer: cons}, nil
}

// Next blocks until the next message is available on this partition, or
// ctx is cancelled. The caller must Ack or Nak the returned message.
func (c *Consumer) Next(ctx context.Context) (jetstream.Msg, error) {
	for {
		msgs, err := c.consumer.Fetch(1)
		if err != nil {
			return nil, err
		}

		select {
		case msg, ok := <-msgs.Messages():
			if !ok {
				if err := msgs.Error(); err != nil {
					return nil, err
				}
				// The fetch expired with no message; fetch again.
				continue
			}
			return msg, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// DeliveryCount reports how many times msg has been delivered, used to
// detect and log poison messages approaching MaxDeliver.
func DeliveryCount(msg jetstream.Msg) int {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}
