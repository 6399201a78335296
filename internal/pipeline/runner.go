// Package pipeline implements the consumer-loop contract shared by every
// stream-processing stage (Normalizer, Enricher, Rules Engine): subscribe
// with a stable consumer-group identity, process one message at a time per
// partition, and commit (ack) the input only after every downstream
// publish the handler produced has succeeded. On handler error the
// message is not acked and is redelivered; after MaxDeliver attempts
// JetStream stops redelivering. The Runner does not detect that final
// attempt: every failure, the last one included, is logged at ERROR with
// its delivery count, and no separate "dropped" line is written.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/caretrace-health/telemetry-pipeline/internal/broker"
)

// Handler processes one message's raw payload. It must perform all of its
// downstream publishes before returning; a nil return commits the input
// offset, a non-nil return leaves it uncommitted for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Consumer is the subset of *broker.Consumer the Runner depends on, pulled
// out as an interface so tests can drive runPartition/handleOne against a
// fake without a live JetStream connection.
type Consumer interface {
	Next(ctx context.Context) (jetstream.Msg, error)
}

var _ Consumer = (*broker.Consumer)(nil)

// Runner drives one goroutine per partition Consumer, each processing its
// partition strictly sequentially.
type Runner struct {
	consumers        []Consumer
	handler          Handler
	log              *slog.Logger
	shutdownDeadline time.Duration
	nakDelay         time.Duration

	wg sync.WaitGroup
}

// NewRunner returns a Runner that fans out handler across consumers, one
// goroutine per partition.
func NewRunner(consumers []Consumer, handler Handler, log *slog.Logger, shutdownDeadline time.Duration) *Runner {
	return &Runner{
		consumers:        consumers,
		handler:          handler,
		log:              log,
		shutdownDeadline: shutdownDeadline,
		nakDelay:         time.Second,
	}
}

// Run blocks, processing messages until ctx is cancelled, then drains any
// in-flight handler call with r.shutdownDeadline before returning.
func (r *Runner) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, c := range r.consumers {
		r.wg.Add(1)
		go r.runPartition(runCtx, c)
	}

	<-ctx.Done()
	r.log.Info("shutdown signal received, draining in-flight handlers", "deadline", r.shutdownDeadline)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("drained cleanly")
		return nil
	case <-time.After(r.shutdownDeadline):
		r.log.Error("shutdown deadline exceeded, forcing exit")
		return errors.New("pipeline: shutdown deadline exceeded")
	}
}

func (r *Runner) runPartition(ctx context.Context, c Consumer) {
	defer r.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("consumer fetch error, retrying", "error", err)
			time.Sleep(r.nakDelay)
			continue
		}

		r.handleOne(ctx, msg)
	}
}

func (r *Runner) handleOne(ctx context.Context, msg jetstream.Msg) {
	deliveries := broker.DeliveryCount(msg)

	err := r.handler(ctx, msg.Data())
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			r.log.Error("ack failed", "error", ackErr)
		}
		return
	}

	r.log.Error("handler failed, message will be redelivered", "error", err, "delivery_count", deliveries)

	if nakErr := msg.NakWithDelay(r.nakDelay); nakErr != nil {
		r.log.Error("nak failed", "error", nakErr)
	}
}
