package access

import (
	"testing"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
)

var (
	anon   *Caller
	buyer  = &Caller{ID: "b1"}
	seller = &Caller{ID: "s1", IsSeller: true}
)

func TestRole(t *testing.T) {
	if anon.Role() != RoleAnonymous {
		t.Fatalf("nil caller should be anonymous")
	}
	if (&Caller{}).Role() != RoleAnonymous {
		t.Fatalf("caller without id should be anonymous")
	}
	if buyer.Role() != RoleBuyer || seller.Role() != RoleSeller {
		t.Fatalf("unexpected roles")
	}
}

func TestDecisionTable(t *testing.T) {
	cases := []struct {
		name      string
		public    bool
		action    Action
		caller    *Caller
		wantScope Scope
		wantKind  apperr.Kind
	}{
		{"anon reads in-stock products", false, ProductRead, anon, ScopeInStock, ""},
		{"buyer reads in-stock products", false, ProductRead, buyer, ScopeInStock, ""},
		{"seller also sees own empty products", false, ProductRead, seller, ScopeInStockOrOwned, ""},
		{"anon cannot write products", false, ProductWrite, anon, ScopeNone, apperr.Unauthenticated},
		{"buyer cannot write products", false, ProductWrite, buyer, ScopeNone, apperr.Forbidden},
		{"seller writes own products", false, ProductWrite, seller, ScopeOwned, ""},
		{"public order reads for anon", true, OrderRead, anon, ScopeAll, ""},
		{"public order reads for buyer", true, OrderRead, buyer, ScopeAll, ""},
		{"scoped order reads for anon", false, OrderRead, anon, ScopeNone, ""},
		{"scoped order reads for buyer", false, OrderRead, buyer, ScopePurchases, ""},
		{"scoped order reads for seller", false, OrderRead, seller, ScopeSales, ""},
		{"anon cannot purchase", true, OrderCreate, anon, ScopeNone, apperr.Unauthenticated},
		{"buyer purchases", true, OrderCreate, buyer, ScopePurchases, ""},
		{"seller purchases too", true, OrderCreate, seller, ScopePurchases, ""},
		{"buyer cannot change status", true, OrderUpdate, buyer, ScopeNone, apperr.Forbidden},
		{"seller changes status of sales", true, OrderUpdate, seller, ScopeSales, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			scope, err := Policy{PublicOrderReads: c.public}.Decide(c.action, c.caller)
			if c.wantKind != "" {
				if !apperr.Is(err, c.wantKind) {
					t.Fatalf("expected %s, got %v", c.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scope != c.wantScope {
				t.Fatalf("scope = %s, want %s", scope, c.wantScope)
			}
		})
	}
}

func TestUnknownAction(t *testing.T) {
	if _, err := (Policy{}).Decide(Action("bogus"), buyer); !apperr.Is(err, apperr.Internal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestRequireOwner(t *testing.T) {
	if err := RequireOwner(seller, "s1"); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := RequireOwner(seller, "s2"); !apperr.Is(err, apperr.Forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := RequireOwner(anon, "s1"); !apperr.Is(err, apperr.Unauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}
