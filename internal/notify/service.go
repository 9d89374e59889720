// Package notify consumes order events and tells sellers and buyers about
// them.
package notify

import (
	"context"
	"fmt"

	kafkax "github.com/ariefcatur/go-plant-market/internal/kafka"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper guards against redelivered events.
type Deduper interface {
	MarkOnce(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string) error
}

type Notification struct {
	RecipientID string
	Kind        string
	OrderID     string
	Message     string
}

// Sink delivers notifications.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// LogSink writes notifications to the service log.
type LogSink struct{}

func (LogSink) Deliver(ctx context.Context, n Notification) error {
	logx.Info().
		Str("recipient_id", n.RecipientID).
		Str("kind", n.Kind).
		Str("order_id", n.OrderID).
		Msg(n.Message)
	return nil
}

type Service struct {
	Dedup Deduper
	Sink  Sink
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// Poison message; committing skips it.
		logx.Warn().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("drop undecodable message")
		return nil
	}
	n, ok, err := notificationFor(env)
	if err != nil {
		logx.Warn().Err(err).Str("event_id", env.EventID).Msg("drop malformed event")
		return nil
	}
	if !ok {
		return nil
	}

	first, err := s.Dedup.MarkOnce(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		logx.Debug().Str("event_id", env.EventID).Msg("duplicate event skipped")
		return nil
	}
	if err := s.Sink.Deliver(ctx, n); err != nil {
		if ferr := s.Dedup.Forget(ctx, env.EventID); ferr != nil {
			logx.Warn().Err(ferr).Str("event_id", env.EventID).Msg("forget dedup key")
		}
		return fmt.Errorf("deliver notification: %w", err)
	}
	return nil
}

func notificationFor(env orders.Envelope) (Notification, bool, error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := orders.DecodePayload[orders.OrderPlacedPayload](env)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			RecipientID: p.SellerID,
			Kind:        "new_sale",
			OrderID:     p.OrderID,
			Message:     fmt.Sprintf("New order %s: %d x product %s, total %s", p.OrderID, p.Quantity, p.ProductID, p.TotalPrice),
		}, true, nil
	case orders.EventOrderStatusChanged:
		p, err := orders.DecodePayload[orders.OrderStatusChangedPayload](env)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			RecipientID: p.BuyerID,
			Kind:        "status_changed",
			OrderID:     p.OrderID,
			Message:     fmt.Sprintf("Order %s is now %s", p.OrderID, p.To),
		}, true, nil
	default:
		return Notification{}, false, nil
	}
}
