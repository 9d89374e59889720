package httpx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/shopspring/decimal"
)

type accountView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	PhoneNumber string    `json:"phone_number"`
	Address     string    `json:"address"`
	IsSeller    bool      `json:"is_seller"`
	DateJoined  time.Time `json:"date_joined"`
}

type productView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       json.Number  `json:"price"`
	Category    string       `json:"category"`
	Image       string       `json:"image"`
	Stock       int          `json:"stock"`
	Seller      *accountView `json:"seller"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type orderView struct {
	ID              string       `json:"id"`
	Product         *productView `json:"product"`
	Buyer           *accountView `json:"buyer"`
	Quantity        int          `json:"quantity"`
	TotalPrice      json.Number  `json:"total_price"`
	Status          string       `json:"status"`
	ShippingAddress string       `json:"shipping_address"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// newAccountView never carries the password hash.
func newAccountView(a accounts.Account) *accountView {
	return &accountView{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		FirstName:   a.Profile.FirstName,
		LastName:    a.Profile.LastName,
		PhoneNumber: a.Profile.PhoneNumber,
		Address:     a.Profile.Address,
		IsSeller:    a.IsSeller,
		DateJoined:  a.CreatedAt,
	}
}

// viewer builds nested views for one response, looking every referenced
// account and product up once.
type viewer struct {
	api      *API
	accounts map[string]*accountView
	products map[string]*productView
}

func (a *API) viewer() *viewer {
	return &viewer{api: a, accounts: map[string]*accountView{}, products: map[string]*productView{}}
}

func (v *viewer) account(ctx context.Context, id string) (*accountView, error) {
	if av, ok := v.accounts[id]; ok {
		return av, nil
	}
	acc, err := v.api.Accounts.Get(ctx, id)
	if err != nil && !apperr.Is(err, apperr.NotFound) {
		return nil, err
	}
	var av *accountView
	if err == nil {
		av = newAccountView(acc)
	}
	v.accounts[id] = av
	return av, nil
}

func (v *viewer) product(ctx context.Context, p catalog.Product) (*productView, error) {
	seller, err := v.account(ctx, p.SellerID)
	if err != nil {
		return nil, err
	}
	pv := &productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money(p.Price),
		Category:    string(p.Category),
		Image:       p.Image,
		Stock:       p.Stock,
		Seller:      seller,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	v.products[p.ID] = pv
	return pv, nil
}

func (v *viewer) productList(ctx context.Context, ps []catalog.Product) ([]*productView, error) {
	out := make([]*productView, 0, len(ps))
	for _, p := range ps {
		pv, err := v.product(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, nil
}

func (v *viewer) productByID(ctx context.Context, id string) (*productView, error) {
	if pv, ok := v.products[id]; ok {
		return pv, nil
	}
	p, err := v.api.Products.Get(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v.product(ctx, p)
}

// order embeds the product; pass a non-nil product to use that snapshot
// instead of loading it.
func (v *viewer) order(ctx context.Context, o orders.Order, product *catalog.Product) (*orderView, error) {
	var (
		pv  *productView
		err error
	)
	if product != nil {
		pv, err = v.product(ctx, *product)
	} else {
		pv, err = v.productByID(ctx, o.ProductID)
	}
	if err != nil {
		return nil, err
	}
	buyer, err := v.account(ctx, o.BuyerID)
	if err != nil {
		return nil, err
	}
	return &orderView{
		ID:              o.ID,
		Product:         pv,
		Buyer:           buyer,
		Quantity:        o.Quantity,
		TotalPrice:      money(o.TotalPrice),
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func (v *viewer) orderList(ctx context.Context, list []orders.Order) ([]*orderView, error) {
	out := make([]*orderView, 0, len(list))
	for _, o := range list {
		ov, err := v.order(ctx, o, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, nil
}
