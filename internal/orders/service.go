package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/shopd/go-shop-orders/internal/cart"
	"github.com/shopd/go-shop-orders/internal/inventory"
	"github.com/shopd/go-shop-orders/internal/shoperr"
)

// Service orchestrates the order lifecycle: cart-to-order conversion,
// payment, cancellation and the administrative transitions. Every mutation
// runs in one transaction spanning the order repo, the cart store and the
// inventory ledger.
type Service struct {
	Pool   *pgxpool.Pool
	Repo   *Repo
	Cart   *cart.Store
	Ledger *inventory.Ledger
	Log    *zap.Logger
}

const createAttempts = 3

// CreateOrder converts the user's cart into a PENDING order: validate the
// user and cart, snapshot current prices into order lines, reserve stock,
// persist, clear the cart. All of it commits or none of it does.
func (s *Service) CreateOrder(ctx context.Context, userID int64, shippingAddress, paymentMethod string) (*Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := s.Repo.WithTx(tx)
	crt := s.Cart.WithTx(tx)
	led := s.Ledger.WithTx(tx)

	ok, err := repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &shoperr.NotFound{Entity: "user", ID: userID}
	}

	items, err := crt.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &shoperr.EmptyCart{UserID: userID}
	}

	now := time.Now().UTC()
	o := &Order{
		UserID:          userID,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for _, it := range items {
		snap, err := led.Get(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		// Reserve is the authoritative guard: the conditional decrement
		// fails cleanly when stock moved under us, and the deferred
		// rollback undoes every earlier reservation.
		if err := led.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
		sub := snap.PriceCents * int64(it.Quantity)
		o.Lines = append(o.Lines, OrderLine{
			ProductID:      it.ProductID,
			ProductName:    snap.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: snap.PriceCents,
			SubtotalCents:  sub,
		})
		o.TotalCents += sub
	}

	if err := s.insertWithRetry(ctx, tx, o, now); err != nil {
		return nil, err
	}

	if err := crt.Clear(ctx, userID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.Log.Info("order created",
		zap.String("order_number", o.OrderNumber),
		zap.Int64("user_id", userID),
		zap.Int64("total_cents", o.TotalCents),
		zap.Int("lines", len(o.Lines)))
	return o, nil
}

// insertWithRetry regenerates the order number on a unique-constraint
// collision. Each attempt runs under a savepoint so a failed insert does not
// abort the surrounding transaction.
func (s *Service) insertWithRetry(ctx context.Context, tx pgx.Tx, o *Order, now time.Time) error {
	for attempt := 1; ; attempt++ {
		o.OrderNumber = NewOrderNumber(now)
		sp, err := tx.Begin(ctx)
		if err != nil {
			return err
		}
		err = s.Repo.WithTx(sp).Insert(ctx, o)
		if err == nil {
			return sp.Commit(ctx)
		}
		_ = sp.Rollback(ctx)
		if !errors.Is(err, ErrOrderNumberTaken) {
			return err
		}
		if attempt == createAttempts {
			return fmt.Errorf("order number collision persisted after %d attempts: %w", attempt, err)
		}
		s.Log.Warn("order number collision, regenerating",
			zap.String("order_number", o.OrderNumber))
	}
}

// PayOrder moves a PENDING order to PAID. Only the owning user may pay.
func (s *Service) PayOrder(ctx context.Context, orderID, userID int64) (*Order, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	repo := s.Repo.WithTx(tx)
	o, err := repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, &shoperr.Forbidden{
			Reason: fmt.Sprintf("user %d does not own order %s", userID, o.OrderNumber),
		}
	}
	if o.Status != StatusPending {
		return nil, &shoperr.InvalidState{
			Reason: fmt.Sprintf("order %s is %s; only PENDING orders can be paid", o.OrderNumber, o.Status),
		}
	}
	if err := repo.UpdateStatus(ctx, orderID, StatusPaid); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	o.Status = StatusPaid
	o.UpdatedAt = time.Now().UTC()
	s.Log.Info("order paid", zap.String("order_number", o.OrderNumber), zap.Int64("user_id", userID))
	return o, nil
}

// UpdateStatus is the administrative transition. Cancelling a non-cancelled
// order releases every reserved line back to the ledger, which also re-lists
// products that were auto-delisted by stock exhaustion. The returned Status
// is the one the locked row held before the transition, so callers reporting
// the change never race a concurrent update.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, next Status) (*Order, Status, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	repo := s.Repo.WithTx(tx)
	led := s.Ledger.WithTx(tx)

	o, err := repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	prev := o.Status
	if !CanTransition(prev, next) {
		return nil, "", &shoperr.InvalidState{
			Reason: fmt.Sprintf("order %s cannot go from %s to %s", o.OrderNumber, prev, next),
		}
	}

	released := false
	if next == StatusCancelled {
		for _, ln := range o.Lines {
			if err := led.Release(ctx, ln.ProductID, ln.Quantity); err != nil {
				return nil, "", err
			}
		}
		released = true
	}

	if err := repo.UpdateStatus(ctx, orderID, next); err != nil {
		return nil, "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}

	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	s.Log.Info("order status changed",
		zap.String("order_number", o.OrderNumber),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
		zap.Bool("stock_released", released))
	return o, prev, nil
}

func (s *Service) CancelOrder(ctx context.Context, orderID int64) (*Order, Status, error) {
	return s.UpdateStatus(ctx, orderID, StatusCancelled)
}

// DeleteOrder hard-deletes an order. Only CANCELLED orders may be deleted;
// cancellation already returned their stock.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	repo := s.Repo.WithTx(tx)
	o, err := repo.GetForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != StatusCancelled {
		return &shoperr.InvalidState{
			Reason: fmt.Sprintf("order %s is %s; only CANCELLED orders can be deleted", o.OrderNumber, o.Status),
		}
	}
	if err := repo.Delete(ctx, orderID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.Log.Info("order deleted", zap.String("order_number", o.OrderNumber))
	return nil
}
