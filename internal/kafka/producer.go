package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/segmentio/kafka-go"
)

var ErrProducerClosed = errors.New("kafka producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from one goroutine.
// Every message Publish accepted is written before WaitClosed returns.
// It implements orders.Publisher.
type Producer struct {
	w       messageWriter
	inbox   chan kafka.Message
	done    chan struct{}
	closeCh chan struct{}

	// mu is held shared by Publish across the send and exclusively by the
	// loop when it stops accepting, so no send lands after the drain.
	mu     sync.RWMutex
	closed bool
}

var _ orders.Publisher = (*Producer)(nil)

// NewProducer builds a producer for any topic; the topic travels on each
// message.
func NewProducer(brokers []string, buf int) *Producer {
	if buf <= 0 {
		buf = 256
	}
	return newProducer(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}, buf)
}

func newProducer(w messageWriter, buf int) *Producer {
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		done:    make(chan struct{}),
		closeCh: make(chan struct{}),
	}
}

// Start runs the write loop until ctx is done, then flushes what is queued.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				close(p.done)
				p.mu.Lock()
				p.closed = true
				p.mu.Unlock()
				p.drain()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				logx.Warn().Err(err).Msg("close kafka writer")
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		logx.Error().Err(err).Str("topic", m.Topic).Str("key", string(m.Key)).Msg("kafka write failed")
	}
}

// Publish queues env on topic keyed by its correlation id.
func (p *Producer) Publish(ctx context.Context, topic string, env orders.Envelope) error {
	m, err := EncodeMessage(topic, env)
	if err != nil {
		return err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-p.done:
		return ErrProducerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitClosed blocks until the write loop flushed and exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
