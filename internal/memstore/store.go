// Package memstore keeps accounts, products and orders in process memory.
// It backs tests and STORE_DRIVER=memory development runs.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/google/uuid"
)

const defaultLockTimeout = 2 * time.Second

// Store bundles the in-memory implementations of accounts.Store,
// catalog.Store and orders.Ledger over one shared state.
type Store struct {
	Accounts *AccountStore
	Products *ProductStore
	Orders   *OrderLedger

	st *state
}

type (
	AccountStore struct{ *state }
	ProductStore struct{ *state }
	OrderLedger  struct{ *state }
)

var (
	_ accounts.Store = (*AccountStore)(nil)
	_ catalog.Store  = (*ProductStore)(nil)
	_ orders.Ledger  = (*OrderLedger)(nil)
)

// state is shared by the three views. Every product row has its own gate;
// holding it is the row lock. Writers also take the row's mu while changing
// its value so readers can snapshot without waiting on the gate.
// Lock order is gate -> row mu -> ordMu, and no code takes a gate while
// holding ordMu.
type state struct {
	lockTimeout time.Duration

	accMu      sync.RWMutex
	accounts   map[string]accounts.Account
	byUsername map[string]string

	prodMu   sync.RWMutex
	products map[string]*productRow
	prodSeq  int64

	ordMu    sync.RWMutex
	orders   map[string]orders.Order
	orderIDs []string
}

func New() *Store {
	st := &state{
		lockTimeout: defaultLockTimeout,
		accounts:    make(map[string]accounts.Account),
		byUsername:  make(map[string]string),
		products:    make(map[string]*productRow),
		orders:      make(map[string]orders.Order),
	}
	return &Store{
		Accounts: &AccountStore{st},
		Products: &ProductStore{st},
		Orders:   &OrderLedger{st},
		st:       st,
	}
}

// SetLockTimeout bounds how long a write waits for a product gate.
// Call it before the store is shared.
func (s *Store) SetLockTimeout(d time.Duration) {
	if d > 0 {
		s.st.lockTimeout = d
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

type productRow struct {
	gate chan struct{}
	seq  int64

	mu      sync.RWMutex
	deleted bool
	p       catalog.Product
}

// snapshot returns the committed value and whether the row is live.
func (r *productRow) snapshot() (catalog.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.p, !r.deleted
}

func (r *productRow) acquire(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case r.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.Busy, "product is locked by another transaction, try again")
	case <-t.C:
		return apperr.New(apperr.Busy, "product is locked by another transaction, try again")
	}
}

func (r *productRow) release() { <-r.gate }

func (s *state) row(id string) *productRow {
	s.prodMu.RLock()
	defer s.prodMu.RUnlock()
	return s.products[id]
}

// product reads a live product without taking its gate.
func (s *state) product(id string) (catalog.Product, bool) {
	r := s.row(id)
	if r == nil {
		return catalog.Product{}, false
	}
	return r.snapshot()
}

// lockRow finds and locks a live product row. The caller must release it.
func (s *state) lockRow(ctx context.Context, id string) (*productRow, error) {
	r := s.row(id)
	if r == nil {
		return nil, apperr.New(apperr.NotFound, "product not found")
	}
	if err := r.acquire(ctx, s.lockTimeout); err != nil {
		return nil, err
	}
	if r.deleted {
		r.release()
		return nil, apperr.New(apperr.NotFound, "product not found")
	}
	return r, nil
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
