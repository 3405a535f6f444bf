// Package catalog owns product and category records. Stock and the on-sale
// flag are read here but mutated only through the inventory ledger.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopd/go-shop-orders/internal/postgres"
	"github.com/shopd/go-shop-orders/internal/shoperr"
)

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	OnSale      bool      `json:"on_sale"`
	ImageURL    string    `json:"image_url"`
	CategoryID  *int64    `json:"category_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repo struct {
	DB postgres.Querier
}

const productColumns = `id, name, description, price_cents, stock, on_sale, image_url, category_id, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock,
		&p.OnSale, &p.ImageURL, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shoperr.NotFound{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns products currently on sale.
func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	return r.listProducts(ctx, `WHERE on_sale ORDER BY name`)
}

func (r *Repo) ListProductsByCategory(ctx context.Context, categoryID int64) ([]Product, error) {
	return r.listProducts(ctx, `WHERE on_sale AND category_id=$1 ORDER BY name`, categoryID)
}

// SearchProducts matches name or description, on-sale only.
func (r *Repo) SearchProducts(ctx context.Context, keyword string) ([]Product, error) {
	return r.listProducts(ctx,
		`WHERE on_sale AND (name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%') ORDER BY name`,
		keyword)
}

func (r *Repo) listProducts(ctx context.Context, tail string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM products `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CreateProduct(ctx context.Context, p *Product) error {
	p.OnSale = p.Stock > 0
	return r.DB.QueryRow(ctx, `
		INSERT INTO products (name, description, price_cents, stock, on_sale, image_url, category_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.PriceCents, p.Stock, p.OnSale, p.ImageURL, p.CategoryID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct edits descriptive fields and price. Stock and listing state
// go through the ledger.
func (r *Repo) UpdateProduct(ctx context.Context, p *Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products
		SET name=$2, description=$3, price_cents=$4, image_url=$5, category_id=$6, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.PriceCents, p.ImageURL, p.CategoryID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "product", ID: p.ID}
	}
	return nil
}

// DeleteProduct is a soft delete: a deliberate delist, so a later stock
// release will not re-list it.
func (r *Repo) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET on_sale=false, delisted_auto=false, updated_at=now() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "product", ID: id}
	}
	return nil
}
