package orders

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderPlacedPayload struct {
	OrderID    string `json:"order_id"`
	ProductID  string `json:"product_id"`
	SellerID   string `json:"seller_id"`
	BuyerID    string `json:"buyer_id"`
	Quantity   int    `json:"quantity"`
	TotalPrice string `json:"total_price"`
}

type OrderStatusChangedPayload struct {
	OrderID string `json:"order_id"`
	BuyerID string `json:"buyer_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	ActorID string `json:"actor_id"`
}

// NewEnvelope wraps payload into a version 1 envelope correlated by orderID.
func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

// DecodePayload unwraps the payload of env into T.
func DecodePayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
