// Package inventory is the authoritative stock ledger. Stock only moves
// through Reserve and Release so the auto-delist bookkeeping stays
// consistent; nothing else may write products.stock.
package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shopd/go-shop-orders/internal/postgres"
	"github.com/shopd/go-shop-orders/internal/shoperr"
)

type Ledger struct {
	DB postgres.Querier
}

// WithTx returns a ledger view bound to an open transaction.
func (l *Ledger) WithTx(tx pgx.Tx) *Ledger { return &Ledger{DB: tx} }

// Snapshot is a point-in-time read of a product's sale state.
type Snapshot struct {
	ProductID  int64
	Name       string
	PriceCents int64
	Stock      int
	OnSale     bool
}

func (l *Ledger) Get(ctx context.Context, productID int64) (Snapshot, error) {
	var s Snapshot
	err := l.DB.QueryRow(ctx,
		`SELECT id, name, price_cents, stock, on_sale FROM products WHERE id=$1`,
		productID).Scan(&s.ProductID, &s.Name, &s.PriceCents, &s.Stock, &s.OnSale)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, &shoperr.NotFound{Entity: "product", ID: productID}
	}
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// CheckAvailable reports whether the product exists, is on sale and has at
// least qty units in stock. A missing product is simply unavailable.
func (l *Ledger) CheckAvailable(ctx context.Context, productID int64, qty int) (bool, error) {
	s, err := l.Get(ctx, productID)
	var nf *shoperr.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.OnSale && s.Stock >= qty, nil
}

// Reserve decrements stock by qty as a single conditional update, so two
// concurrent reservations can never both take the last unit. When the
// decrement empties the stock the product is delisted and the delist is
// recorded as automatic, which is what later allows Release to re-list it.
func (l *Ledger) Reserve(ctx context.Context, productID int64, qty int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    delisted_auto = CASE WHEN stock = $2 AND on_sale THEN true ELSE delisted_auto END,
		    on_sale = CASE WHEN stock = $2 THEN false ELSE on_sale END,
		    updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	s, err := l.Get(ctx, productID)
	if err != nil {
		return err
	}
	return &shoperr.InsufficientStock{
		ProductID:   productID,
		ProductName: s.Name,
		Stock:       s.Stock,
		Requested:   qty,
	}
}

// Release puts qty units back (order cancellation). The product is re-listed
// only when its delisting was automatic; a manual delist stays in force.
func (l *Ledger) Release(ctx context.Context, productID int64, qty int) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    on_sale = on_sale OR delisted_auto,
		    delisted_auto = false,
		    updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "product", ID: productID}
	}
	return nil
}

// SetStock is the restock boundary used by the catalog. Setting stock to
// zero delists the product under the same rule as Reserve; restocking an
// auto-delisted product puts it back on sale.
func (l *Ledger) SetStock(ctx context.Context, productID int64, qty int) error {
	if qty < 0 {
		return errors.New("stock must not be negative")
	}
	ct, err := l.DB.Exec(ctx, `
		UPDATE products
		SET stock = $2,
		    delisted_auto = CASE
		        WHEN $2 = 0 AND on_sale THEN true
		        WHEN $2 > 0 AND delisted_auto THEN false
		        ELSE delisted_auto END,
		    on_sale = CASE
		        WHEN $2 = 0 THEN false
		        WHEN $2 > 0 AND delisted_auto THEN true
		        ELSE on_sale END,
		    updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "product", ID: productID}
	}
	return nil
}

// SetOnSale is the manual listing switch. Listing requires positive stock;
// a manual delist clears delisted_auto so cancellations will not undo it.
func (l *Ledger) SetOnSale(ctx context.Context, productID int64, on bool) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE products
		SET on_sale = $2, delisted_auto = false, updated_at = now()
		WHERE id = $1 AND (NOT $2 OR stock > 0)`, productID, on)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := l.Get(ctx, productID); err != nil {
		return err
	}
	return &shoperr.InvalidState{Reason: "cannot list a product with zero stock"}
}
