package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/ariefcatur/go-plant-market/internal/orders"
	"github.com/ariefcatur/go-plant-market/internal/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger stores sold products and runs the purchase transaction.
type Ledger struct {
	DB *pgxpool.Pool
	// LockTimeout bounds the wait for the product row lock.
	LockTimeout time.Duration
	// MaxAttempts bounds retries after serialization failures and deadlocks.
	MaxAttempts int
}

var _ orders.Ledger = (*Ledger)(nil)

const orderColumns = `o.id, o.product_id, o.buyer_id, o.quantity, o.total_price::text,
	o.status, o.shipping_address, o.created_at, o.updated_at`

type purchaseResult struct {
	order   orders.Order
	product catalog.Product
}

// Purchase locks the product row, checks and decrements stock and inserts the
// order in one transaction. Transient failures are retried from the start.
func (l *Ledger) Purchase(ctx context.Context, req orders.PurchaseRequest) (orders.Order, catalog.Product, error) {
	cfg := retry.DefaultConfig()
	if l.MaxAttempts > 0 {
		cfg.MaxAttempts = l.MaxAttempts
	}
	cfg.ShouldRetry = transient

	res, err := retry.Do(ctx, cfg, "purchase", func(ctx context.Context) (purchaseResult, error) {
		return l.purchaseTx(ctx, req)
	})
	if err != nil {
		var ex *retry.ExhaustedError
		if errors.As(err, &ex) {
			return orders.Order{}, catalog.Product{}, apperr.Wrap(err, apperr.Busy, "too many concurrent purchases, try again")
		}
		return orders.Order{}, catalog.Product{}, classify(err, "product")
	}
	return res.order, res.product, nil
}

func (l *Ledger) purchaseTx(ctx context.Context, req orders.PurchaseRequest) (purchaseResult, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return purchaseResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// SET does not take bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutOrDefault(l.LockTimeout).Milliseconds())); err != nil {
		return purchaseResult{}, err
	}

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, req.ProductID))
	if err != nil {
		return purchaseResult{}, err
	}
	if p.Stock < req.Quantity {
		return purchaseResult{}, apperr.NotEnoughStock(p.Stock)
	}
	total := p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	if err := orders.CheckTotal(total); err != nil {
		return purchaseResult{}, err
	}

	if err := tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1
		RETURNING stock, updated_at`, p.ID, req.Quantity).Scan(&p.Stock, &p.UpdatedAt); err != nil {
		return purchaseResult{}, err
	}

	ord := orders.Order{
		ID:              req.OrderID,
		ProductID:       p.ID,
		BuyerID:         req.BuyerID,
		Quantity:        req.Quantity,
		TotalPrice:      total,
		Status:          orders.StatusPending,
		ShippingAddress: req.ShippingAddress,
	}
	if err := tx.QueryRow(ctx, `
		INSERT INTO sold_products(id, product_id, buyer_id, quantity, total_price, status, shipping_address)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7)
		RETURNING created_at, updated_at`,
		ord.ID, ord.ProductID, ord.BuyerID, ord.Quantity, total.StringFixed(2), string(ord.Status), ord.ShippingAddress,
	).Scan(&ord.CreatedAt, &ord.UpdatedAt); err != nil {
		if pgCode(err) == codeUniqueViolation {
			return purchaseResult{}, apperr.Wrap(err, apperr.Conflict, "order already exists")
		}
		return purchaseResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return purchaseResult{}, err
	}
	return purchaseResult{order: ord, product: p}, nil
}

const defaultLockTimeout = 2 * time.Second

func lockTimeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultLockTimeout
	}
	return d
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.Quantity, &total,
		&status, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return orders.Order{}, fmt.Errorf("parse total %q: %w", total, err)
	}
	o.TotalPrice = d
	o.Status = orders.Status(status)
	return o, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(l.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM sold_products o WHERE o.id=$1`, id))
	if err != nil {
		return orders.Order{}, classify(err, "order")
	}
	return o, nil
}

func (l *Ledger) List(ctx context.Context, q orders.Query) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !q.All {
		if q.BuyerID != "" {
			where = append(where, "o.buyer_id = "+arg(q.BuyerID))
		}
		if q.SellerID != "" {
			where = append(where, "p.seller_id = "+arg(q.SellerID))
		}
	}
	if q.Category != "" {
		where = append(where, "p.category = "+arg(q.Category))
	}
	if q.Status != "" {
		where = append(where, "o.status = "+arg(string(q.Status)))
	}

	sql := `SELECT ` + orderColumns + ` FROM sold_products o JOIN products p ON p.id = o.product_id`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY o.created_at DESC, o.id`

	rows, err := l.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, "order")
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, classify(err, "order")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "order")
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on the status column.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, from, to orders.Status) (orders.Order, error) {
	o, err := scanOrder(l.DB.QueryRow(ctx, `
		UPDATE sold_products o SET status=$3, updated_at=now()
		WHERE o.id=$1 AND o.status=$2
		RETURNING `+orderColumns, id, string(from), string(to)))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, classify(err, "order")
	}
	if _, err := l.Get(ctx, id); err != nil {
		return orders.Order{}, err
	}
	return orders.Order{}, apperr.Newf(apperr.Conflict, "order status is no longer %s", from)
}

// Ping reports whether the database answers.
func Ping(ctx context.Context, db *pgxpool.Pool) error {
	return db.Ping(ctx)
}
