package catalog

import (
	"context"
	"math"
	"strings"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/logx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxNameLen   = 200
	maxPriceAbs  = 100000000 // NUMERIC(10,2)
	priceDecimal = 2
	// MaxStock is the largest stock the INTEGER column holds.
	MaxStock = math.MaxInt32
)

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    Category
	Image       string
	Stock       int
}

// ProductPatch holds optional updates; nil fields are left alone.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *Category
	Image       *string
	Stock       *int
}

type Filter struct {
	Category string
}

type Service struct {
	Store  Store
	Policy access.Policy
}

func NewService(store Store, policy access.Policy) *Service {
	return &Service{Store: store, Policy: policy}
}

// List returns the products caller may see, newest first.
func (s *Service) List(ctx context.Context, caller *access.Caller, f Filter) ([]Product, error) {
	q, err := s.query(caller, f)
	if err != nil {
		return nil, err
	}
	return s.Store.List(ctx, q)
}

// Get applies the list scope to a single product; hidden products are
// reported as not found.
func (s *Service) Get(ctx context.Context, caller *access.Caller, id string) (Product, error) {
	q, err := s.query(caller, Filter{})
	if err != nil {
		return Product{}, err
	}
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !q.Visibility.Visible(p) {
		return Product{}, apperr.New(apperr.NotFound, "product not found")
	}
	return p, nil
}

// Create stores a new product owned by caller.
func (s *Service) Create(ctx context.Context, caller *access.Caller, in ProductInput) (Product, error) {
	if _, err := s.Policy.Decide(access.ProductWrite, caller); err != nil {
		return Product{}, err
	}

	p := Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
		Stock:       in.Stock,
		SellerID:    caller.ID,
	}
	if err := validate(p); err != nil {
		return Product{}, err
	}
	p.Price = p.Price.Round(priceDecimal)
	if err := s.Store.Create(ctx, &p); err != nil {
		return Product{}, err
	}

	logx.Info().Str("product_id", p.ID).Str("seller_id", p.SellerID).Int("stock", p.Stock).Msg("product created")
	return p, nil
}

// Update applies patch to a product owned by caller. Ownership and
// validation are checked against the locked row.
func (s *Service) Update(ctx context.Context, caller *access.Caller, id string, patch ProductPatch) (Product, error) {
	if _, err := s.Policy.Decide(access.ProductWrite, caller); err != nil {
		return Product{}, err
	}
	return s.Store.Update(ctx, id, func(p *Product) error {
		if err := access.RequireOwner(caller, p.SellerID); err != nil {
			return err
		}
		patch.apply(p)
		if err := validate(*p); err != nil {
			return err
		}
		p.Price = p.Price.Round(priceDecimal)
		return nil
	})
}

func (patch ProductPatch) apply(p *Product) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
}

// Delete removes a product owned by caller.
func (s *Service) Delete(ctx context.Context, caller *access.Caller, id string) error {
	if _, err := s.ownedProduct(ctx, caller, id); err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	logx.Info().Str("product_id", id).Str("seller_id", caller.ID).Msg("product deleted")
	return nil
}

func (s *Service) ownedProduct(ctx context.Context, caller *access.Caller, id string) (Product, error) {
	if _, err := s.Policy.Decide(access.ProductWrite, caller); err != nil {
		return Product{}, err
	}
	p, err := s.Store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := access.RequireOwner(caller, p.SellerID); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *Service) query(caller *access.Caller, f Filter) (Query, error) {
	scope, err := s.Policy.Decide(access.ProductRead, caller)
	if err != nil {
		return Query{}, err
	}

	var q Query
	switch scope {
	case access.ScopeInStock:
		q.Visibility = Visibility{InStockOnly: true}
	case access.ScopeInStockOrOwned:
		q.Visibility = Visibility{InStockOnly: true, OwnerID: caller.CallerID()}
	case access.ScopeAll:
	default:
		return Query{}, apperr.Newf(apperr.Internal, "unsupported product scope %q", scope)
	}

	if f.Category != "" {
		c := Category(f.Category)
		if !c.Valid() {
			return Query{}, apperr.New(apperr.Validation, "invalid category").
				WithField("category", "Select a valid choice. "+f.Category+" is not one of the available choices.")
		}
		q.Category = c
	}
	return q, nil
}

func validate(p Product) error {
	fields := map[string]string{}
	switch {
	case p.Name == "":
		fields["name"] = "This field may not be blank."
	case len(p.Name) > maxNameLen:
		fields["name"] = "Ensure this field has no more than 200 characters."
	}
	switch {
	case p.Price.IsNegative():
		fields["price"] = "Ensure this value is greater than or equal to 0."
	case p.Price.Abs().GreaterThanOrEqual(decimal.NewFromInt(maxPriceAbs)):
		fields["price"] = "Ensure that there are no more than 10 digits in total."
	case p.Price.Exponent() < -priceDecimal && !p.Price.Equal(p.Price.Round(priceDecimal)):
		fields["price"] = "Ensure that there are no more than 2 decimal places."
	}
	if !p.Category.Valid() {
		fields["category"] = "Select a valid choice."
	}
	switch {
	case p.Stock < 0:
		fields["stock"] = "Ensure this value is greater than or equal to 0."
	case p.Stock > MaxStock:
		fields["stock"] = "Ensure this value is less than or equal to 2147483647."
	}
	return apperr.Fields(fields)
}
