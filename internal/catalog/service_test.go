package catalog_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-plant-market/internal/access"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/memstore"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	seller = &access.Caller{ID: "seller-1", IsSeller: true}
	rival  = &access.Caller{ID: "seller-2", IsSeller: true}
	buyer  = &access.Caller{ID: "buyer-1"}
)

func newService() *catalog.Service {
	return catalog.NewService(memstore.New().Products, access.Policy{})
}

func input(stock int) catalog.ProductInput {
	return catalog.ProductInput{
		Name:     "Fiddle Leaf Fig",
		Price:    decimal.RequireFromString("19.99"),
		Category: catalog.CategoryPlants,
		Stock:    stock,
	}
}

func TestCreateRequiresSeller(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.Create(ctx, nil, input(1)); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := svc.Create(ctx, buyer, input(1)); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	p, err := svc.Create(ctx, seller, input(1))
	if err != nil {
		t.Fatal(err)
	}
	if p.SellerID != seller.ID || p.ID == "" {
		t.Fatalf("unexpected product %+v", p)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newService()
	cases := []struct {
		name  string
		edit  func(*catalog.ProductInput)
		field string
	}{
		{"blank name", func(in *catalog.ProductInput) { in.Name = "  " }, "name"},
		{"negative price", func(in *catalog.ProductInput) { in.Price = decimal.NewFromInt(-1) }, "price"},
		{"too many digits", func(in *catalog.ProductInput) { in.Price = decimal.NewFromInt(100000000) }, "price"},
		{"three decimals", func(in *catalog.ProductInput) { in.Price = decimal.RequireFromString("1.005") }, "price"},
		{"unknown category", func(in *catalog.ProductInput) { in.Category = "Rocks" }, "category"},
		{"negative stock", func(in *catalog.ProductInput) { in.Stock = -1 }, "stock"},
		{"stock overflow", func(in *catalog.ProductInput) { in.Stock = catalog.MaxStock + 1 }, "stock"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := input(1)
			tc.edit(&in)
			_, err := svc.Create(context.Background(), seller, in)
			if apperr.FieldsOf(err)[tc.field] == "" {
				t.Fatalf("expected %s field error, got %v", tc.field, err)
			}
		})
	}
}

func TestListScopes(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	empty, _ := svc.Create(ctx, seller, input(0))
	full, _ := svc.Create(ctx, seller, input(2))

	ids := func(caller *access.Caller) map[string]bool {
		t.Helper()
		list, err := svc.List(ctx, caller, catalog.Filter{})
		if err != nil {
			t.Fatal(err)
		}
		out := map[string]bool{}
		for _, p := range list {
			out[p.ID] = true
		}
		return out
	}

	for name, caller := range map[string]*access.Caller{"anonymous": nil, "buyer": buyer, "rival": rival} {
		got := ids(caller)
		if got[empty.ID] || !got[full.ID] {
			t.Fatalf("%s sees %v", name, got)
		}
		if _, err := svc.Get(ctx, caller, empty.ID); !apperr.Is(err, apperr.NotFound) {
			t.Fatalf("%s get hidden product: %v", name, err)
		}
	}
	if got := ids(seller); !got[empty.ID] || !got[full.ID] {
		t.Fatalf("owner sees %v", got)
	}

	if _, err := svc.List(ctx, nil, catalog.Filter{Category: "Rocks"}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation for unknown category, got %v", err)
	}
	seeds, err := svc.List(ctx, nil, catalog.Filter{Category: string(catalog.CategorySeeds)})
	if err != nil || len(seeds) != 0 {
		t.Fatalf("expected no seeds, got %d (%v)", len(seeds), err)
	}
}

func TestUpdateAndDeleteOwnerOnly(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	p, _ := svc.Create(ctx, seller, input(1))
	stock := 7

	if _, err := svc.Update(ctx, rival, p.ID, catalog.ProductPatch{Stock: &stock}); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, rival, p.ID); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	price := decimal.RequireFromString("5")
	got, err := svc.Update(ctx, seller, p.ID, catalog.ProductPatch{Stock: &stock, Price: &price})
	if err != nil {
		t.Fatal(err)
	}
	if got.Stock != 7 || got.Price.StringFixed(2) != "5.00" || got.Name != p.Name {
		t.Fatalf("unexpected update %+v", got)
	}

	neg := -3
	if _, err := svc.Update(ctx, seller, p.ID, catalog.ProductPatch{Stock: &neg}); !apperr.Is(err, apperr.Validation) {
		t.Fatalf("expected validation, got %v", err)
	}

	if err := svc.Delete(ctx, seller, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Get(ctx, seller, p.ID); !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

// racingStore commits a purchase just before each update reaches the row.
type racingStore struct {
	catalog.Store
	orders orders.Ledger
}

func (r racingStore) Update(ctx context.Context, id string, apply func(*catalog.Product) error) (catalog.Product, error) {
	if _, _, err := r.orders.Purchase(ctx, orders.PurchaseRequest{
		ProductID:       id,
		BuyerID:         buyer.ID,
		Quantity:        1,
		ShippingAddress: "1 Moss Road",
	}); err != nil {
		return catalog.Product{}, err
	}
	return r.Store.Update(ctx, id, apply)
}

func TestUpdateKeepsStockSoldMeanwhile(t *testing.T) {
	st := memstore.New()
	svc := catalog.NewService(racingStore{Store: st.Products, orders: st.Orders}, access.Policy{})
	ctx := context.Background()

	p, err := svc.Create(ctx, seller, input(1))
	if err != nil {
		t.Fatal(err)
	}
	name := "Renamed Fig"
	price := decimal.RequireFromString("21.50")
	got, err := svc.Update(ctx, seller, p.ID, catalog.ProductPatch{Name: &name, Price: &price})
	if err != nil {
		t.Fatal(err)
	}
	if got.Stock != 0 || got.Name != name {
		t.Fatalf("update overwrote concurrent purchase: %+v", got)
	}
	stored, _ := st.Products.Get(ctx, p.ID)
	if stored.Stock != 0 {
		t.Fatalf("stored stock %d, want 0", stored.Stock)
	}
}
