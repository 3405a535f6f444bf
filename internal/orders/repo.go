package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopd/go-shop-orders/internal/postgres"
	"github.com/shopd/go-shop-orders/internal/shoperr"
)

type Repo struct {
	DB postgres.Querier
}

func (r *Repo) WithTx(tx pgx.Tx) *Repo { return &Repo{DB: tx} }

// ErrOrderNumberTaken signals a unique-constraint collision on the generated
// order number; the service retries with a fresh number.
var ErrOrderNumberTaken = errors.New("order number already taken")

const pgUniqueViolation = "23505"

func (r *Repo) UserExists(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&ok)
	return ok, err
}

// Insert persists the order header and its lines, filling o.ID and line IDs.
func (r *Repo) Insert(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders (order_number, user_id, status, total_cents, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		o.OrderNumber, o.UserID, o.Status, o.TotalCents, o.ShippingAddress, o.PaymentMethod, o.CreatedAt,
	).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrOrderNumberTaken
		}
		return err
	}

	for i := range o.Lines {
		ln := &o.Lines[i]
		ln.OrderID = o.ID
		err := r.DB.QueryRow(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			ln.OrderID, ln.ProductID, ln.ProductName, ln.Quantity, ln.UnitPriceCents, ln.SubtotalCents,
		).Scan(&ln.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `id, order_number, user_id, status, total_cents, shipping_address, payment_method, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.TotalCents,
		&o.ShippingAddress, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) Get(ctx context.Context, orderID int64) (*Order, error) {
	return r.getWhere(ctx, `WHERE id=$1`, orderID)
}

func (r *Repo) FindByNumber(ctx context.Context, number string) (*Order, error) {
	return r.getWhere(ctx, `WHERE order_number=$1`, number)
}

func (r *Repo) getWhere(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shoperr.NotFound{Entity: "order", ID: arg}
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate locks the order row for the rest of the transaction; status
// transitions use it so concurrent transitions serialize.
func (r *Repo) GetForUpdate(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &shoperr.NotFound{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) loadLines(ctx context.Context, o *Order) error {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id=$1 ORDER BY id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ln OrderLine
		if err := rows.Scan(&ln.ID, &ln.OrderID, &ln.ProductID, &ln.ProductName, &ln.Quantity, &ln.UnitPriceCents, &ln.SubtotalCents); err != nil {
			return err
		}
		o.Lines = append(o.Lines, ln)
	}
	return rows.Err()
}

func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	return r.list(ctx, `WHERE user_id=$1`, userID)
}

func (r *Repo) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return r.list(ctx, `WHERE status=$1`, status)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, ``)
}

func (r *Repo) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	byID := map[int64]int{}
	var ids []int64
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		byID[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lrows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents, subtotal_cents
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var ln OrderLine
		if err := lrows.Scan(&ln.ID, &ln.OrderID, &ln.ProductID, &ln.ProductName, &ln.Quantity, &ln.UnitPriceCents, &ln.SubtotalCents); err != nil {
			return nil, err
		}
		i := byID[ln.OrderID]
		out[i].Lines = append(out[i].Lines, ln)
	}
	return out, lrows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, orderID int64, status Status) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "order", ID: orderID}
	}
	return nil
}

// Delete removes the order and its lines (order_lines cascade on the FK).
func (r *Repo) Delete(ctx context.Context, orderID int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &shoperr.NotFound{Entity: "order", ID: orderID}
	}
	return nil
}

func (r *Repo) StatisticsByUser(ctx context.Context, userID int64) (Statistics, error) {
	var st Statistics
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status='PENDING'),
		       COUNT(*) FILTER (WHERE status='PAID'),
		       COUNT(*) FILTER (WHERE status='SHIPPED'),
		       COUNT(*) FILTER (WHERE status='DELIVERED'),
		       COUNT(*) FILTER (WHERE status='CANCELLED'),
		       COALESCE(SUM(total_cents), 0)
		FROM orders WHERE user_id=$1`, userID).
		Scan(&st.TotalOrders, &st.PendingOrders, &st.PaidOrders, &st.ShippedOrders,
			&st.DeliveredOrders, &st.CancelledOrders, &st.TotalCents)
	return st, err
}
