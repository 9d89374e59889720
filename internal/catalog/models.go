package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryPlants         Category = "Plants"
	CategorySeeds          Category = "Seeds"
	CategoryGardeningTools Category = "Gardening Tools"
	CategoryPotsPlanters   Category = "Pots & Planters"
)

var Categories = []Category{CategoryPlants, CategorySeeds, CategoryGardeningTools, CategoryPotsPlanters}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    Category
	Image       string
	Stock       int
	SellerID    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Visibility restricts which products a query may return.
type Visibility struct {
	// InStockOnly hides products with zero stock...
	InStockOnly bool
	// ...except those owned by OwnerID when it is set.
	OwnerID string
}

// Query is a resolved, scoped product lookup.
type Query struct {
	Visibility Visibility
	Category   Category
}

// Visible reports whether p passes v.
func (v Visibility) Visible(p Product) bool {
	if !v.InStockOnly || p.Stock > 0 {
		return true
	}
	return v.OwnerID != "" && p.SellerID == v.OwnerID
}

// Store persists products. Get returns apperr NotFound when absent.
//
// Update locks the row, hands its current value to apply and writes the
// result back before releasing the lock, so concurrent purchases are never
// overwritten. An error from apply aborts the update unchanged. ID, SellerID
// and CreatedAt are kept whatever apply does.
type Store interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	Update(ctx context.Context, id string, apply func(*Product) error) (Product, error)
	Delete(ctx context.Context, id string) error
}
