package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/memstore"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/shopspring/decimal"
)

type published struct {
	topic string
	env   orders.Envelope
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, env orders.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, env: env})
	return nil
}

var (
	seller = &access.Caller{ID: "seller-1", IsSeller: true}
	rival  = &access.Caller{ID: "seller-2", IsSeller: true}
	buyer  = &access.Caller{ID: "buyer-1"}
	other  = &access.Caller{ID: "buyer-2"}
)

type fixture struct {
	svc   *orders.Service
	store *memstore.Store
	pub   *recordingPublisher
}

func newFixture(t *testing.T, public bool) *fixture {
	t.Helper()
	st := memstore.New()
	pub := &recordingPublisher{}
	return &fixture{
		svc: &orders.Service{
			Ledger:      st.Orders,
			Products:    st.Products,
			Policy:      access.Policy{PublicOrderReads: public},
			Publisher:   pub,
			ServiceName: "test",
		},
		store: st,
		pub:   pub,
	}
}

func (f *fixture) product(t *testing.T, owner *access.Caller, stock int, category catalog.Category) catalog.Product {
	t.Helper()
	p := catalog.Product{
		Name:     "Aloe",
		Price:    decimal.RequireFromString("3.30"),
		Category: category,
		Stock:    stock,
		SellerID: owner.ID,
	}
	if err := f.store.Products.Create(context.Background(), &p); err != nil {
		t.Fatal(err)
	}
	return p
}

func (f *fixture) buy(t *testing.T, caller *access.Caller, productID string, qty int) orders.Receipt {
	t.Helper()
	rc, err := f.svc.Purchase(context.Background(), caller, orders.PurchaseInput{
		ProductID: productID, Quantity: qty, ShippingAddress: "9 Root St",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	return rc
}

func TestPurchasePublishesOrderPlaced(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, seller, 5, catalog.CategoryPlants)

	rc := f.buy(t, buyer, p.ID, 3)
	if rc.Product.Stock != 2 || rc.Order.TotalPrice.StringFixed(2) != "9.90" || rc.Order.Status != orders.StatusPending {
		t.Fatalf("unexpected receipt %+v", rc)
	}
	if len(f.pub.sent) != 1 || f.pub.sent[0].topic != orders.TopicOrderPlaced {
		t.Fatalf("unexpected events %+v", f.pub.sent)
	}
	env := f.pub.sent[0].env
	if env.EventType != orders.EventOrderPlaced || env.CorrelationID != rc.Order.ID || env.Producer != "test" {
		t.Fatalf("unexpected envelope %+v", env)
	}
	payload, err := orders.DecodePayload[orders.OrderPlacedPayload](env)
	if err != nil {
		t.Fatal(err)
	}
	if payload.SellerID != seller.ID || payload.BuyerID != buyer.ID || payload.TotalPrice != "9.90" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPurchaseSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, true)
	f.pub.err = errors.New("broker down")
	p := f.product(t, seller, 1, catalog.CategoryPlants)

	rc := f.buy(t, buyer, p.ID, 1)
	if rc.Product.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", rc.Product.Stock)
	}
}

func TestPurchaseValidation(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, seller, 1, catalog.CategoryPlants)
	ctx := context.Background()

	if _, err := f.svc.Purchase(ctx, nil, orders.PurchaseInput{ProductID: p.ID, Quantity: 1, ShippingAddress: "x"}); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	_, err := f.svc.Purchase(ctx, buyer, orders.PurchaseInput{ProductID: " ", Quantity: 0, ShippingAddress: " "})
	fields := apperr.FieldsOf(err)
	for _, name := range []string{"product_id", "quantity", "shipping_address"} {
		if fields[name] == "" {
			t.Errorf("missing %s error in %v", name, fields)
		}
	}

	_, err = f.svc.Purchase(ctx, buyer, orders.PurchaseInput{ProductID: p.ID, Quantity: catalog.MaxStock + 1, ShippingAddress: "x"})
	if apperr.FieldsOf(err)["quantity"] == "" {
		t.Fatalf("expected quantity bound error, got %v", err)
	}

	_, err = f.svc.Purchase(ctx, buyer, orders.PurchaseInput{ProductID: p.ID, Quantity: 2, ShippingAddress: "x"})
	if !apperr.Is(err, apperr.InsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if len(f.pub.sent) != 0 {
		t.Fatalf("failed purchases must not publish")
	}
}

func TestSellerMayBuy(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, seller, 2, catalog.CategoryPlants)
	rc := f.buy(t, rival, p.ID, 1)
	if rc.Order.BuyerID != rival.ID {
		t.Fatalf("unexpected buyer %s", rc.Order.BuyerID)
	}
}

func TestScopedReads(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	mine := f.product(t, seller, 5, catalog.CategoryPlants)
	theirs := f.product(t, rival, 5, catalog.CategorySeeds)
	a := f.buy(t, buyer, mine.ID, 1)
	b := f.buy(t, other, theirs.ID, 1)

	count := func(caller *access.Caller, filter orders.Filter) int {
		t.Helper()
		list, err := f.svc.List(ctx, caller, filter)
		if err != nil {
			t.Fatal(err)
		}
		return len(list)
	}
	if n := count(nil, orders.Filter{}); n != 0 {
		t.Fatalf("anonymous sees %d", n)
	}
	if n := count(buyer, orders.Filter{}); n != 1 {
		t.Fatalf("buyer sees %d", n)
	}
	if n := count(seller, orders.Filter{}); n != 1 {
		t.Fatalf("seller sees %d", n)
	}
	if n := count(rival, orders.Filter{Category: string(catalog.CategoryPlants)}); n != 0 {
		t.Fatalf("rival sees %d plant sales", n)
	}

	if _, err := f.svc.Get(ctx, buyer, b.Order.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("buyer reads foreign order: %v", err)
	}
	if _, err := f.svc.Get(ctx, seller, a.Order.ID); err != nil {
		t.Fatalf("seller reads own sale: %v", err)
	}
	if _, err := f.svc.Get(ctx, nil, a.Order.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("anonymous reads order: %v", err)
	}
}

func TestPublicReadsAndFilters(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, seller, 5, catalog.CategoryPlants)
	f.buy(t, buyer, p.ID, 1)
	second := f.buy(t, other, p.ID, 1)

	list, err := f.svc.List(ctx, nil, orders.Filter{})
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d (%v)", len(list), err)
	}
	if list[0].ID != second.Order.ID {
		t.Fatalf("expected newest first")
	}
	if _, err := f.svc.List(ctx, nil, orders.Filter{Status: "Lost"}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation for unknown status, got %v", err)
	}
	shipped, err := f.svc.List(ctx, nil, orders.Filter{Status: string(orders.StatusShipped)})
	if err != nil || len(shipped) != 0 {
		t.Fatalf("expected no shipped orders, got %d (%v)", len(shipped), err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, seller, 5, catalog.CategoryPlants)
	rc := f.buy(t, buyer, p.ID, 1)
	id := rc.Order.ID

	if _, err := f.svc.UpdateStatus(ctx, buyer, id, orders.StatusProcessing); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("buyer update: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, rival, id, orders.StatusProcessing); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("rival update: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, seller, id, orders.StatusDelivered); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("skipping states: %v", err)
	}

	got, err := f.svc.UpdateStatus(ctx, seller, id, orders.StatusCancelled)
	if err != nil || got.Status != orders.StatusCancelled {
		t.Fatalf("cancel: %v %+v", err, got)
	}
	if _, err := f.svc.UpdateStatus(ctx, seller, id, orders.StatusPending); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("leaving a terminal state: %v", err)
	}

	stored, _ := f.store.Products.Get(ctx, p.ID)
	if stored.Stock != 4 {
		t.Fatalf("cancellation must not restock, stock %d", stored.Stock)
	}

	last := f.pub.sent[len(f.pub.sent)-1]
	if last.topic != orders.TopicOrderStatusChanged {
		t.Fatalf("unexpected topic %s", last.topic)
	}
	payload, err := orders.DecodePayload[orders.OrderStatusChangedPayload](last.env)
	if err != nil {
		t.Fatal(err)
	}
	if payload.BuyerID != buyer.ID || payload.From != orders.StatusPending || payload.To != orders.StatusCancelled {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestTransitions(t *testing.T) {
	cases := []struct {
		from, to orders.Status
		ok       bool
	}{
		{orders.StatusPending, orders.StatusProcessing, true},
		{orders.StatusPending, orders.StatusShipped, false},
		{orders.StatusProcessing, orders.StatusShipped, true},
		{orders.StatusShipped, orders.StatusDelivered, true},
		{orders.StatusShipped, orders.StatusCancelled, false},
		{orders.StatusDelivered, orders.StatusPending, false},
		{orders.StatusCancelled, orders.StatusProcessing, false},
	}
	for _, tc := range cases {
		if got := orders.CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}
