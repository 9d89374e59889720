package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
)

func (s *ProductStore) Create(ctx context.Context, p *catalog.Product) error {
	p.ID = newID(p.ID)
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	s.prodMu.Lock()
	defer s.prodMu.Unlock()
	if _, dup := s.products[p.ID]; dup {
		return apperr.New(apperr.Conflict, "product already exists")
	}
	s.prodSeq++
	s.products[p.ID] = &productRow{gate: make(chan struct{}, 1), seq: s.prodSeq, p: *p}
	return nil
}

// Get returns the last committed value; it does not wait for row writers.
func (s *ProductStore) Get(ctx context.Context, id string) (catalog.Product, error) {
	p, ok := s.product(id)
	if !ok {
		return catalog.Product{}, apperr.New(apperr.NotFound, "product not found")
	}
	return p, nil
}

func (s *ProductStore) List(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	s.prodMu.RLock()
	rows := make([]*productRow, 0, len(s.products))
	for _, r := range s.products {
		rows = append(rows, r)
	}
	s.prodMu.RUnlock()
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	out := make([]catalog.Product, 0, len(rows))
	for _, r := range rows {
		p, live := r.snapshot()
		if !live || !q.Visibility.Visible(p) {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Update runs apply on the current value while holding the row gate and
// stores the result. Seller and creation time stay.
func (s *ProductStore) Update(ctx context.Context, id string, apply func(*catalog.Product) error) (catalog.Product, error) {
	r, err := s.lockRow(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	defer r.release()

	p := r.p
	if err := apply(&p); err != nil {
		return catalog.Product{}, err
	}
	p.ID = r.p.ID
	p.SellerID = r.p.SellerID
	p.CreatedAt = r.p.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
	return p, nil
}

// Delete refuses products that already have orders so the sales history
// stays intact.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	r, err := s.lockRow(ctx, id)
	if err != nil {
		return err
	}
	defer r.release()

	if s.hasOrders(id) {
		return apperr.New(apperr.Conflict, "product has recorded sales and cannot be deleted")
	}
	r.mu.Lock()
	r.deleted = true
	r.mu.Unlock()

	s.prodMu.Lock()
	delete(s.products, id)
	s.prodMu.Unlock()
	return nil
}

func (s *state) hasOrders(productID string) bool {
	s.ordMu.RLock()
	defer s.ordMu.RUnlock()
	for _, o := range s.orders {
		if o.ProductID == productID {
			return true
		}
	}
	return false
}
