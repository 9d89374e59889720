package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/shopspring/decimal"
)

// Order is a sold-product record. TotalPrice is captured at purchase time
// and never recomputed.
type Order struct {
	ID              string
	ProductID       string
	BuyerID         string
	Quantity        int
	TotalPrice      decimal.Decimal
	Status          Status
	ShippingAddress string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MaxTotal is the largest order total the ledger stores, NUMERIC(12,2).
var MaxTotal = decimal.RequireFromString("9999999999.99")

// CheckTotal rejects totals the ledger cannot store.
func CheckTotal(total decimal.Decimal) error {
	if total.GreaterThan(MaxTotal) {
		return apperr.New(apperr.Validation, "order total is too large").
			WithField("quantity", "Order total exceeds the maximum of "+MaxTotal.StringFixed(2)+".")
	}
	return nil
}

// PurchaseRequest is a validated purchase handed to a Ledger.
type PurchaseRequest struct {
	OrderID         string
	ProductID       string
	BuyerID         string
	Quantity        int
	ShippingAddress string
}

// Query is a resolved, scoped order lookup. Empty fields do not filter.
type Query struct {
	// All disables the ownership filters below.
	All      bool
	BuyerID  string
	SellerID string
	// Category filters on the ordered product's category.
	Category string
	Status   Status
}

// Ledger persists orders and runs the purchase transaction.
//
// Purchase must lock the product, check stock, decrement it and insert the
// order as one atomic unit, returning the order and the product as it was
// left. It returns apperr NotFound, InsufficientStock or Busy (lock not
// acquired in time) without mutating anything.
type Ledger interface {
	Purchase(ctx context.Context, req PurchaseRequest) (Order, catalog.Product, error)
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, q Query) ([]Order, error)
	// UpdateStatus sets the status only when the current one is from,
	// returning apperr Conflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error)
}

// Publisher announces ledger changes to other services. Events of one order
// are keyed by its id.
type Publisher interface {
	Publish(ctx context.Context, topic string, env Envelope) error
}
