package orders

import (
	"context"
	"strings"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/ariefcatur/go-plant-market/internal/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-plant-market/internal/orders")

type PurchaseInput struct {
	ProductID       string
	Quantity        int
	ShippingAddress string
}

type Filter struct {
	Category string
	Status   string
}

// Receipt is a committed purchase together with the product as the
// transaction left it.
type Receipt struct {
	Order   Order
	Product catalog.Product
}

type Service struct {
	Ledger   Ledger
	Products catalog.Store
	Policy   access.Policy
	// Nil disables event publishing.
	Publisher   Publisher
	ServiceName string
}

// Purchase converts stock of one product into an order for caller.
func (s *Service) Purchase(ctx context.Context, caller *access.Caller, in PurchaseInput) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "orders.Purchase", trace.WithAttributes(
		attribute.String("product.id", in.ProductID),
		attribute.Int("order.quantity", in.Quantity),
	))
	defer span.End()
	start := time.Now()

	if _, err := s.Policy.Decide(access.OrderCreate, caller); err != nil {
		return Receipt{}, err
	}
	if err := validatePurchase(&in); err != nil {
		return Receipt{}, err
	}

	ord, product, err := s.Ledger.Purchase(ctx, PurchaseRequest{
		OrderID:         uuid.NewString(),
		ProductID:       in.ProductID,
		BuyerID:         caller.ID,
		Quantity:        in.Quantity,
		ShippingAddress: in.ShippingAddress,
	})
	metrics.ObservePurchase(purchaseResult(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperr.KindOf(err)))
		if apperr.KindOf(err) == apperr.Internal {
			logx.Error().Err(err).Str("product_id", in.ProductID).Str("buyer_id", caller.ID).Msg("purchase failed")
		}
		return Receipt{}, err
	}

	metrics.AddUnitsSold(ord.Quantity)
	span.SetAttributes(attribute.String("order.id", ord.ID))
	logx.Info().
		Str("order_id", ord.ID).
		Str("product_id", ord.ProductID).
		Str("buyer_id", ord.BuyerID).
		Int("quantity", ord.Quantity).
		Str("total_price", ord.TotalPrice.StringFixed(2)).
		Int("stock_left", product.Stock).
		Msg("purchase committed")

	s.publish(ctx, TopicOrderPlaced, EventOrderPlaced, ord.ID, OrderPlacedPayload{
		OrderID:    ord.ID,
		ProductID:  ord.ProductID,
		SellerID:   product.SellerID,
		BuyerID:    ord.BuyerID,
		Quantity:   ord.Quantity,
		TotalPrice: ord.TotalPrice.StringFixed(2),
	})
	return Receipt{Order: ord, Product: product}, nil
}

// List returns the orders caller may see, newest first.
func (s *Service) List(ctx context.Context, caller *access.Caller, f Filter) ([]Order, error) {
	scope, err := s.Policy.Decide(access.OrderRead, caller)
	if err != nil {
		return nil, err
	}
	q, ok, err := scopedQuery(scope, caller)
	if err != nil || !ok {
		return []Order{}, err
	}

	fields := map[string]string{}
	if f.Category != "" {
		if !catalog.Category(f.Category).Valid() {
			fields["category"] = "Select a valid choice."
		}
		q.Category = f.Category
	}
	if f.Status != "" {
		if !Status(f.Status).Valid() {
			fields["status"] = "Select a valid choice."
		}
		q.Status = Status(f.Status)
	}
	if err := apperr.Fields(fields); err != nil {
		return nil, err
	}
	return s.Ledger.List(ctx, q)
}

// Get returns one order when caller's read scope covers it.
func (s *Service) Get(ctx context.Context, caller *access.Caller, id string) (Order, error) {
	scope, err := s.Policy.Decide(access.OrderRead, caller)
	if err != nil {
		return Order{}, err
	}
	if scope == access.ScopeNone {
		return Order{}, apperr.New(apperr.NotFound, "order not found")
	}
	ord, err := s.Ledger.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := s.covers(ctx, scope, caller, ord); err != nil {
		return Order{}, err
	}
	return ord, nil
}

// UpdateStatus moves an order along its lifecycle. Only the seller of the
// ordered product may do so.
func (s *Service) UpdateStatus(ctx context.Context, caller *access.Caller, id string, to Status) (Order, error) {
	if _, err := s.Policy.Decide(access.OrderUpdate, caller); err != nil {
		return Order{}, err
	}
	if !to.Valid() {
		return Order{}, apperr.New(apperr.Validation, "invalid status").
			WithField("status", "Select a valid choice.")
	}

	ord, err := s.Ledger.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	p, err := s.Products.Get(ctx, ord.ProductID)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return Order{}, apperr.New(apperr.Forbidden, "You do not have permission to perform this action.")
		}
		return Order{}, err
	}
	if err := access.RequireOwner(caller, p.SellerID); err != nil {
		return Order{}, err
	}
	if !CanTransition(ord.Status, to) {
		return Order{}, apperr.Newf(apperr.Validation, "cannot move order from %s to %s", ord.Status, to).
			WithField("status", "Cannot change status from "+string(ord.Status)+" to "+string(to)+".")
	}

	from := ord.Status
	updated, err := s.Ledger.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return Order{}, err
	}

	metrics.ObserveStatusChange(string(to))
	logx.Info().Str("order_id", id).Str("from", string(from)).Str("to", string(to)).Str("actor_id", caller.ID).Msg("order status changed")
	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, id, OrderStatusChangedPayload{
		OrderID: id, BuyerID: ord.BuyerID, From: from, To: to, ActorID: caller.ID,
	})
	return updated, nil
}

func (s *Service) covers(ctx context.Context, scope access.Scope, caller *access.Caller, ord Order) error {
	notFound := apperr.New(apperr.NotFound, "order not found")
	switch scope {
	case access.ScopeAll:
		return nil
	case access.ScopePurchases:
		if ord.BuyerID == caller.CallerID() {
			return nil
		}
		return notFound
	case access.ScopeSales:
		p, err := s.Products.Get(ctx, ord.ProductID)
		if err != nil {
			if apperr.Is(err, apperr.NotFound) {
				return notFound
			}
			return err
		}
		if p.SellerID == caller.CallerID() {
			return nil
		}
		return notFound
	default:
		return notFound
	}
}

func (s *Service) publish(ctx context.Context, topic, eventType, orderID string, payload any) {
	if s.Publisher == nil {
		return
	}
	traceID := ""
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env, err := NewEnvelope(eventType, s.ServiceName, traceID, orderID, payload)
	if err == nil {
		err = s.Publisher.Publish(ctx, topic, env)
	}
	metrics.ObserveEventPublished(topic, err)
	if err != nil {
		logx.Warn().Err(err).Str("topic", topic).Str("order_id", orderID).Msg("publish event")
	}
}

func scopedQuery(scope access.Scope, caller *access.Caller) (Query, bool, error) {
	switch scope {
	case access.ScopeAll:
		return Query{All: true}, true, nil
	case access.ScopePurchases:
		return Query{BuyerID: caller.CallerID()}, true, nil
	case access.ScopeSales:
		return Query{SellerID: caller.CallerID()}, true, nil
	case access.ScopeNone:
		return Query{}, false, nil
	default:
		return Query{}, false, apperr.Newf(apperr.Internal, "unsupported order scope %q", scope)
	}
}

func validatePurchase(in *PurchaseInput) error {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)

	fields := map[string]string{}
	if in.ProductID == "" {
		fields["product_id"] = "This field is required."
	}
	switch {
	case in.Quantity < 1:
		fields["quantity"] = "Ensure this value is greater than or equal to 1."
	case in.Quantity > catalog.MaxStock:
		fields["quantity"] = "Ensure this value is less than or equal to 2147483647."
	}
	if in.ShippingAddress == "" {
		fields["shipping_address"] = "This field may not be blank."
	}
	return apperr.Fields(fields)
}

func purchaseResult(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
