// Package access holds the role based access policy as an explicit decision
// table: action x role -> query scope or denial.
package access

import (
	"github.com/ariefcatur/go-plant-market/internal/apperr"
)

type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleBuyer     Role = "buyer"
	RoleSeller    Role = "seller"
)

type Action string

const (
	ProductRead  Action = "product_read"
	ProductWrite Action = "product_write"
	OrderRead    Action = "order_read"
	OrderCreate  Action = "order_create"
	OrderUpdate  Action = "order_update"
)

// Scope is the slice of records an allowed caller may see or touch.
type Scope string

const (
	// ScopeNone allows the call but matches nothing.
	ScopeNone           Scope = "none"
	ScopeAll            Scope = "all"
	ScopeInStock        Scope = "in_stock"
	ScopeInStockOrOwned Scope = "in_stock_or_owned"
	// ScopeOwned: products whose seller is the caller.
	ScopeOwned Scope = "owned"
	// ScopePurchases: orders the caller placed.
	ScopePurchases Scope = "purchases"
	// ScopeSales: orders for products the caller sells.
	ScopeSales Scope = "sales"
)

// Caller identifies who is making a request. A nil *Caller is anonymous.
type Caller struct {
	ID       string
	IsSeller bool
}

// Role derives the caller's role from its attributes.
func (c *Caller) Role() Role {
	switch {
	case c == nil || c.ID == "":
		return RoleAnonymous
	case c.IsSeller:
		return RoleSeller
	default:
		return RoleBuyer
	}
}

// CallerID is nil safe.
func (c *Caller) CallerID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

type rule struct {
	scope Scope
	deny  apperr.Kind
}

func allow(s Scope) rule { return rule{scope: s} }
func deny(k apperr.Kind) rule { return rule{deny: k} }

var baseTable = map[Action]map[Role]rule{
	ProductRead: {
		RoleAnonymous: allow(ScopeInStock),
		RoleBuyer:     allow(ScopeInStock),
		RoleSeller:    allow(ScopeInStockOrOwned),
	},
	ProductWrite: {
		RoleAnonymous: deny(apperr.Unauthenticated),
		RoleBuyer:     deny(apperr.Forbidden),
		RoleSeller:    allow(ScopeOwned),
	},
	OrderCreate: {
		RoleAnonymous: deny(apperr.Unauthenticated),
		RoleBuyer:     allow(ScopePurchases),
		RoleSeller:    allow(ScopePurchases),
	},
	OrderUpdate: {
		RoleAnonymous: deny(apperr.Unauthenticated),
		RoleBuyer:     deny(apperr.Forbidden),
		RoleSeller:    allow(ScopeSales),
	},
}

var publicOrderReads = map[Role]rule{
	RoleAnonymous: allow(ScopeAll),
	RoleBuyer:     allow(ScopeAll),
	RoleSeller:    allow(ScopeAll),
}

var scopedOrderReads = map[Role]rule{
	RoleAnonymous: allow(ScopeNone),
	RoleBuyer:     allow(ScopePurchases),
	RoleSeller:    allow(ScopeSales),
}

// Policy evaluates the decision table. PublicOrderReads selects the order
// read row: every caller sees every order, or callers see only their own
// purchases/sales and anonymous callers see nothing.
type Policy struct {
	PublicOrderReads bool
}

// Decide returns the scope for action by caller, or an Unauthenticated /
// Forbidden error when the caller may not perform it at all.
func (p Policy) Decide(action Action, caller *Caller) (Scope, error) {
	row, ok := baseTable[action]
	if action == OrderRead {
		row, ok = scopedOrderReads, true
		if p.PublicOrderReads {
			row = publicOrderReads
		}
	}
	if !ok {
		return ScopeNone, apperr.Newf(apperr.Internal, "unknown action %q", action)
	}

	role := caller.Role()
	r := row[role]
	if r.deny != "" {
		return ScopeNone, denial(r.deny, action)
	}
	return r.scope, nil
}

// RequireOwner checks a write against a specific record owner.
func RequireOwner(caller *Caller, ownerID string) error {
	if caller.CallerID() == "" {
		return apperr.New(apperr.Unauthenticated, "Authentication credentials were not provided.")
	}
	if caller.ID != ownerID {
		return apperr.New(apperr.Forbidden, "You do not have permission to perform this action.")
	}
	return nil
}

func denial(kind apperr.Kind, action Action) error {
	if kind == apperr.Unauthenticated {
		return apperr.New(kind, "Authentication credentials were not provided.")
	}
	return apperr.Newf(kind, "You do not have permission to perform this action (%s).", action)
}
