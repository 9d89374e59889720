package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/shopspring/decimal"
)

// Purchase holds the product gate across the stock check, the decrement and
// the order insert.
func (s *OrderLedger) Purchase(ctx context.Context, req orders.PurchaseRequest) (orders.Order, catalog.Product, error) {
	r, err := s.lockRow(ctx, req.ProductID)
	if err != nil {
		return orders.Order{}, catalog.Product{}, err
	}
	defer r.release()

	if r.p.Stock < req.Quantity {
		return orders.Order{}, catalog.Product{}, apperr.NotEnoughStock(r.p.Stock)
	}

	total := r.p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	if err := orders.CheckTotal(total); err != nil {
		return orders.Order{}, catalog.Product{}, err
	}

	now := time.Now().UTC()
	ord := orders.Order{
		ID:              newID(req.OrderID),
		ProductID:       req.ProductID,
		BuyerID:         req.BuyerID,
		Quantity:        req.Quantity,
		TotalPrice:      total,
		Status:          orders.StatusPending,
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	if _, dup := s.orders[ord.ID]; dup {
		return orders.Order{}, catalog.Product{}, apperr.New(apperr.Conflict, "order already exists")
	}
	r.p.Stock -= req.Quantity
	r.p.UpdatedAt = now
	s.orders[ord.ID] = ord
	s.orderIDs = append(s.orderIDs, ord.ID)

	return ord, r.p, nil
}

func (s *OrderLedger) Get(ctx context.Context, id string) (orders.Order, error) {
	s.ordMu.RLock()
	defer s.ordMu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.New(apperr.NotFound, "order not found")
	}
	return o, nil
}

// List returns matching orders newest first.
func (s *OrderLedger) List(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	s.ordMu.RLock()
	snapshot := make([]orders.Order, 0, len(s.orderIDs))
	for i := len(s.orderIDs) - 1; i >= 0; i-- {
		snapshot = append(snapshot, s.orders[s.orderIDs[i]])
	}
	s.ordMu.RUnlock()

	needProduct := q.Category != "" || (!q.All && q.SellerID != "")
	cache := map[string]catalog.Product{}

	out := make([]orders.Order, 0, len(snapshot))
	for _, o := range snapshot {
		if !q.All && q.BuyerID != "" && o.BuyerID != q.BuyerID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		if needProduct {
			p, ok := cache[o.ProductID]
			if !ok {
				if p, ok = s.product(o.ProductID); !ok {
					continue
				}
				cache[o.ProductID] = p
			}
			if !q.All && q.SellerID != "" && p.SellerID != q.SellerID {
				continue
			}
			if q.Category != "" && string(p.Category) != q.Category {
				continue
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *OrderLedger) UpdateStatus(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	s.ordMu.Lock()
	defer s.ordMu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.New(apperr.NotFound, "order not found")
	}
	if o.Status != from {
		return orders.Order{}, apperr.Newf(apperr.Conflict, "order status is %s, not %s", o.Status, from)
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return o, nil
}
