package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/segmentio/kafka-go"
)

type countingWriter struct {
	written atomic.Int64
	closed  atomic.Bool
}

func (w *countingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.written.Add(int64(len(msgs)))
	return nil
}

func (w *countingWriter) Close() error {
	w.closed.Store(true)
	return nil
}

func testEnvelope(t *testing.T) orders.Envelope {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderPlaced, "test", "", "order-1", orders.OrderPlacedPayload{OrderID: "order-1"})
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestProducerWritesEveryAcceptedMessage(t *testing.T) {
	w := &countingWriter{}
	p := newProducer(w, 8)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	env := testEnvelope(t)

	var (
		accepted atomic.Int64
		wg       sync.WaitGroup
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := p.Publish(context.Background(), orders.TopicOrderPlaced, env)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrProducerClosed):
					return
				default:
					t.Errorf("unexpected publish error: %v", err)
					return
				}
			}
		}()
	}
	cancel()
	wg.Wait()
	p.WaitClosed()

	if got, want := w.written.Load(), accepted.Load(); got != want {
		t.Fatalf("accepted %d messages but wrote %d", want, got)
	}
	if !w.closed.Load() {
		t.Fatalf("writer not closed")
	}
}

func TestProducerRejectsAfterClose(t *testing.T) {
	w := &countingWriter{}
	p := newProducer(w, 4)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()
	p.WaitClosed()

	if err := p.Publish(context.Background(), orders.TopicOrderPlaced, testEnvelope(t)); !errors.Is(err, ErrProducerClosed) {
		t.Fatalf("expected ErrProducerClosed, got %v", err)
	}
	if w.written.Load() != 0 {
		t.Fatalf("nothing should have been written")
	}
}
