package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-plant-market/internal/apperr"
	"github.com/ariefcatur/go-plant-market/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ProductRepo struct {
	DB *pgxpool.Pool
	// LockTimeout bounds the wait for the row lock taken by Update.
	LockTimeout time.Duration
}

var _ catalog.Store = (*ProductRepo)(nil)

const productColumns = `id, name, description, price::text, category, image, stock, seller_id, created_at, updated_at`

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p     catalog.Product
		price string
		cat   string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &cat, &p.Image,
		&p.Stock, &p.SellerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	p.Price = d
	p.Category = catalog.Category(cat)
	return p, nil
}

func (r *ProductRepo) Create(ctx context.Context, p *catalog.Product) error {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, name, description, price, category, image, stock, seller_id)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), string(p.Category), p.Image, p.Stock, p.SellerID)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return classify(err, "product")
	}
	return nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if err != nil {
		return catalog.Product{}, classify(err, "product")
	}
	return p, nil
}

func (r *ProductRepo) List(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if q.Visibility.InStockOnly {
		if q.Visibility.OwnerID != "" {
			where = append(where, "(stock > 0 OR seller_id = "+arg(q.Visibility.OwnerID)+")")
		} else {
			where = append(where, "stock > 0")
		}
	}
	if q.Category != "" {
		where = append(where, "category = "+arg(string(q.Category)))
	}

	sql := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id`

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err, "product")
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, classify(err, "product")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "product")
	}
	return out, nil
}

// Update runs apply on the row locked with FOR UPDATE and writes the result
// in the same transaction.
func (r *ProductRepo) Update(ctx context.Context, id string, apply func(*catalog.Product) error) (catalog.Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return catalog.Product{}, classify(err, "product")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutOrDefault(r.LockTimeout).Milliseconds())); err != nil {
		return catalog.Product{}, classify(err, "product")
	}
	cur, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return catalog.Product{}, classify(err, "product")
	}

	p := cur
	if err := apply(&p); err != nil {
		return catalog.Product{}, err
	}
	p.ID, p.SellerID, p.CreatedAt = cur.ID, cur.SellerID, cur.CreatedAt

	if err := tx.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4::numeric, category=$5,
			image=$6, stock=$7::bigint, updated_at=now()
		WHERE id=$1
		RETURNING updated_at`,
		p.ID, p.Name, p.Description, p.Price.StringFixed(2), string(p.Category), p.Image, p.Stock,
	).Scan(&p.UpdatedAt); err != nil {
		return catalog.Product{}, classify(err, "product")
	}
	if err := tx.Commit(ctx); err != nil {
		return catalog.Product{}, classify(err, "product")
	}
	return p, nil
}

func (r *ProductRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return apperr.Wrap(err, apperr.Conflict, "product has recorded sales and cannot be deleted")
		}
		return classify(err, "product")
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "product not found")
	}
	return nil
}
