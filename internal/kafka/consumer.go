package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/retry"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads a group's topics and hands messages to a fixed pool of
// workers. Every partition is pinned to one worker so its offsets are
// committed in order, and a message is committed only after its handler
// succeeded.
type Consumer struct {
	r       reader
	topics  []string
	workers int
	// Retry bounds the attempts per message. When they run out Start stops
	// with the error and the uncommitted offset is redelivered after restart.
	Retry retry.Config
}

// NewConsumer joins group on every topic in topics.
func NewConsumer(brokers []string, group string, workers int, topics ...string) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers, topics...)
}

func newConsumer(r reader, workers int, topics ...string) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:       r,
		topics:  topics,
		workers: workers,
		Retry: retry.Config{
			MaxAttempts:       5,
			InitialBackoff:    200 * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
	}
}

// Start fetches messages until ctx is done, the reader fails or a message
// cannot be handled within the retry budget.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	ctx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	lanes := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if err := c.process(ctx, h, m); err != nil && ctx.Err() == nil {
					logx.Error().Err(err).Int("worker", id).Str("topic", m.Topic).
						Int("partition", m.Partition).Int64("offset", m.Offset).Msg("stop consuming")
					stop(err)
				}
			}
		}(i, lanes[i])
	}
	defer func() {
		for _, l := range lanes {
			close(l)
		}
		wg.Wait()
	}()

	logx.Info().Strs("topics", c.topics).Int("workers", c.workers).Msg("consumer started")
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return stopCause(ctx)
			}
			return err
		}
		select {
		case lanes[lane(m, c.workers)] <- m:
		case <-ctx.Done():
			return stopCause(ctx)
		}
	}
}

func (c *Consumer) process(ctx context.Context, h Handler, m kafka.Message) error {
	_, err := retry.Do(ctx, c.Retry, "handle "+m.Topic, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h(ctx, m)
	})
	if err != nil {
		return fmt.Errorf("handle %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("commit %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}

// lane pins a topic partition to a worker.
func lane(m kafka.Message, workers int) int {
	f := fnv.New32a()
	_, _ = f.Write([]byte(m.Topic))
	return int((f.Sum32() + uint32(m.Partition)) % uint32(workers))
}

// stopCause is nil for a plain shutdown and the worker failure otherwise.
func stopCause(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return nil
	}
	return cause
}
