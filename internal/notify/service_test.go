package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	kafkax "github.com/ariefcatur/go-plant-market/internal/kafka"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) MarkOnce(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type recordingSink struct {
	got  []Notification
	fail bool
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	if s.fail {
		return errors.New("smtp down")
	}
	s.got = append(s.got, n)
	return nil
}

func placedMessage(t *testing.T) kafkago.Message {
	t.Helper()
	env, err := orders.NewEnvelope(orders.EventOrderPlaced, "test", "", "order-1", orders.OrderPlacedPayload{
		OrderID: "order-1", ProductID: "p1", SellerID: "seller-1", BuyerID: "buyer-1", Quantity: 3, TotalPrice: "9.00",
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := kafkax.EncodeMessage(orders.TopicOrderPlaced, env)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestHandleOrderPlacedNotifiesSellerOnce(t *testing.T) {
	sink := &recordingSink{}
	s := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Sink: sink}
	m := placedMessage(t)

	for i := 0; i < 2; i++ {
		if err := s.HandleMessage(context.Background(), m); err != nil {
			t.Fatalf("handle #%d: %v", i, err)
		}
	}
	if len(sink.got) != 1 {
		t.Fatalf("expected one notification, got %d", len(sink.got))
	}
	if sink.got[0].RecipientID != "seller-1" || sink.got[0].Kind != "new_sale" {
		t.Fatalf("unexpected notification %+v", sink.got[0])
	}
}

func TestHandleStatusChangedNotifiesBuyer(t *testing.T) {
	sink := &recordingSink{}
	s := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Sink: sink}
	env, _ := orders.NewEnvelope(orders.EventOrderStatusChanged, "test", "", "order-1", orders.OrderStatusChangedPayload{
		OrderID: "order-1", BuyerID: "buyer-1", From: orders.StatusPending, To: orders.StatusShipped,
	})
	m, _ := kafkax.EncodeMessage(orders.TopicOrderStatusChanged, env)

	if err := s.HandleMessage(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(sink.got) != 1 || sink.got[0].RecipientID != "buyer-1" {
		t.Fatalf("unexpected notifications %+v", sink.got)
	}
}

func TestFailedDeliveryIsRetried(t *testing.T) {
	sink := &recordingSink{fail: true}
	s := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Sink: sink}
	m := placedMessage(t)

	if err := s.HandleMessage(context.Background(), m); err == nil {
		t.Fatal("expected error so the offset is not committed")
	}
	sink.fail = false
	if err := s.HandleMessage(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if len(sink.got) != 1 {
		t.Fatalf("expected redelivery to notify, got %d", len(sink.got))
	}
}

func TestUndecodableMessageIsDropped(t *testing.T) {
	s := &Service{Dedup: &memDedup{seen: map[string]bool{}}, Sink: &recordingSink{}}
	if err := s.HandleMessage(context.Background(), kafkago.Message{Value: []byte("{")}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
