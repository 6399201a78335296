package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMsg implements jetstream.Msg against an in-memory payload, recording
// whether it was acked or naked.
type fakeMsg struct {
	data         []byte
	numDelivered uint64

	mu       sync.Mutex
	acked    bool
	naked    bool
	nakDelay time.Duration
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: m.numDelivered}, nil
}
func (m *fakeMsg) Data() []byte         { return m.data }
func (m *fakeMsg) Headers() nats.Header { return nil }
func (m *fakeMsg) Subject() string      { return "telemetry.p0" }
func (m *fakeMsg) Reply() string        { return "" }

func (m *fakeMsg) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *fakeMsg) DoubleAck(ctx context.Context) error { return m.Ack() }

func (m *fakeMsg) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	return nil
}

func (m *fakeMsg) NakWithDelay(delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	m.nakDelay = delay
	return nil
}

func (m *fakeMsg) InProgress() error                  { return nil }
func (m *fakeMsg) Term() error                        { return nil }
func (m *fakeMsg) TermWithReason(reason string) error { return nil }

func (m *fakeMsg) wasAcked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked
}

func (m *fakeMsg) wasNaked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.naked
}

func TestHandleOne_NilError_AcksNotNaks(t *testing.T) {
	r := NewRunner(nil, func(ctx context.Context, payload []byte) error { return nil }, discardLogger(), time.Second)
	msg := &fakeMsg{data: []byte(`{}`)}

	r.handleOne(context.Background(), msg)

	if !msg.wasAcked() {
		t.Errorf("expected message to be acked on nil handler error")
	}
	if msg.wasNaked() {
		t.Errorf("expected message not to be naked on nil handler error")
	}
}

func TestHandleOne_HandlerError_NaksNotAcks(t *testing.T) {
	r := NewRunner(nil, func(ctx context.Context, payload []byte) error { return errors.New("publish failed") }, discardLogger(), time.Second)
	msg := &fakeMsg{data: []byte(`{}`), numDelivered: 1}

	r.handleOne(context.Background(), msg)

	if msg.wasAcked() {
		t.Errorf("expected message not to be acked when handler returns an error")
	}
	if !msg.wasNaked() {
		t.Errorf("expected message to be naked for redelivery when handler returns an error")
	}
}

// fakeConsumer hands out a fixed sequence of payloads, one per Next call,
// then blocks until ctx is cancelled.
type fakeConsumer struct {
	payloads [][]byte
	idx      int
	mu       sync.Mutex
}

func (c *fakeConsumer) Next(ctx context.Context) (jetstream.Msg, error) {
	c.mu.Lock()
	if c.idx < len(c.payloads) {
		p := c.payloads[c.idx]
		c.idx++
		c.mu.Unlock()
		return &fakeMsg{data: p}, nil
	}
	c.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

// TestRunPartition_ProcessesOnePartitionStrictlySequentially drives one
// partition's worth of messages through runPartition and checks the
// handler observed them in the order Next produced them, one at a time,
// never overlapping -- the per-device ordering guarantee a single
// partition goroutine with a MaxAckPending of 1 is meant to provide.
func TestRunPartition_ProcessesOnePartitionStrictlySequentially(t *testing.T) {
	want := [][]byte{[]byte("evt-1"), []byte("evt-2"), []byte("evt-3")}
	consumer := &fakeConsumer{payloads: want}

	var mu sync.Mutex
	var got [][]byte
	inFlight := false

	handler := func(ctx context.Context, payload []byte) error {
		mu.Lock()
		if inFlight {
			mu.Unlock()
			t.Fatalf("handler invoked concurrently with itself")
		}
		inFlight = true
		mu.Unlock()

		got = append(got, append([]byte(nil), payload...))

		mu.Lock()
		inFlight = false
		mu.Unlock()
		return nil
	}

	r := NewRunner([]Consumer{consumer}, handler, discardLogger(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	r.wg.Add(1)
	go r.runPartition(ctx, consumer)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == len(want) {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("timed out waiting for all messages to be handled, got %d/%d", n, len(want))
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	r.wg.Wait()

	if len(got) != len(want) {
		t.Fatalf("handled %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != string(want[i]) {
			t.Errorf("message %d = %q, want %q (out of order)", i, got[i], want[i])
		}
	}
}
