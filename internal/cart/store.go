// Package cart is the staging area consumed by order creation: one row per
// (user, product) with the desired quantity.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopd/go-shop-orders/internal/inventory"
	"github.com/shopd/go-shop-orders/internal/postgres"
	"github.com/shopd/go-shop-orders/internal/shoperr"
)

type Item struct {
	ID        int64
	UserID    int64
	ProductID int64
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line is an enriched cart row for display; the subtotal uses the product's
// current price, computed at read time.
type Line struct {
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	ProductImage  string    `json:"product_image"`
	PriceCents    int64     `json:"price_cents"`
	Quantity      int       `json:"quantity"`
	SubtotalCents int64     `json:"subtotal_cents"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Store struct {
	DB     postgres.Querier
	Ledger *inventory.Ledger
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{DB: tx, Ledger: s.Ledger.WithTx(tx)}
}

// Add puts qty more units of a product into the cart. The stock check is
// cumulative: existing cart quantity plus the new request must fit in the
// current stock. Stock itself is not reserved until checkout.
func (s *Store) Add(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return errors.New("quantity must be positive")
	}
	snap, err := s.Ledger.Get(ctx, productID)
	if err != nil {
		return err
	}
	if !snap.OnSale {
		return &shoperr.InvalidState{Reason: "product " + snap.Name + " is not on sale"}
	}

	var existing int
	err = s.DB.QueryRow(ctx,
		`SELECT quantity FROM cart_items WHERE user_id=$1 AND product_id=$2`,
		userID, productID).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if snap.Stock < existing+qty {
		return &shoperr.InsufficientStock{
			ProductID:   productID,
			ProductName: snap.Name,
			Stock:       snap.Stock,
			Requested:   qty,
			InCart:      existing,
		}
	}

	_, err = s.DB.Exec(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		userID, productID, qty)
	return err
}

// UpdateQuantity replaces the row's quantity. A non-positive quantity is a
// removal. Because this replaces rather than accumulates, the stock check is
// against qty alone.
func (s *Store) UpdateQuantity(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}
	snap, err := s.Ledger.Get(ctx, productID)
	if err != nil {
		return err
	}
	if snap.Stock < qty {
		return &shoperr.InsufficientStock{
			ProductID:   productID,
			ProductName: snap.Name,
			Stock:       snap.Stock,
			Requested:   qty,
		}
	}
	ct, err := s.DB.Exec(ctx,
		`UPDATE cart_items SET quantity=$3, updated_at=now() WHERE user_id=$1 AND product_id=$2`,
		userID, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "cart item", ID: productID}
	}
	return nil
}

// Remove and Clear are idempotent deletes.
func (s *Store) Remove(ctx context.Context, userID, productID int64) error {
	_, err := s.DB.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	return err
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func (s *Store) List(ctx context.Context, userID int64) ([]Line, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT ci.product_id, p.name, p.image_url, p.price_cents, ci.quantity, ci.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.ProductImage, &l.PriceCents, &l.Quantity, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.SubtotalCents = l.PriceCents * int64(l.Quantity)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Items returns the raw cart rows; checkout reads these inside its
// transaction.
func (s *Store) Items(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM cart_items WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// CheckAllInStock is a point-in-time check that every cart line still fits
// in the product's stock. It is advisory; checkout re-validates under its
// own transaction.
func (s *Store) CheckAllInStock(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := s.DB.QueryRow(ctx, `
		SELECT NOT EXISTS (
			SELECT 1 FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.user_id = $1 AND p.stock < ci.quantity
		)`, userID).Scan(&ok)
	return ok, err
}

// Count is the total quantity across the cart, used for the cart badge.
func (s *Store) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

func (s *Store) TotalCents(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(p.price_cents * ci.quantity), 0)
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1`, userID).Scan(&total)
	return total, err
}
