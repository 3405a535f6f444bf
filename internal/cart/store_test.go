package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopd/go-shop-orders/internal/cart"
	"github.com/shopd/go-shop-orders/internal/inventory"
	"github.com/shopd/go-shop-orders/internal/shoperr"
	"github.com/shopd/go-shop-orders/internal/testdb"
)

func TestAddAccumulatesWithCumulativeCheck(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	store := &cart.Store{DB: pool, Ledger: led}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, true)

	require.NoError(t, store.Add(ctx, uid, pid, 2))
	require.NoError(t, store.Add(ctx, uid, pid, 3))

	// 5 held, 5 in stock: one more must fail and name both quantities
	err := store.Add(ctx, uid, pid, 1)
	var is *shoperr.InsufficientStock
	require.True(t, errors.As(err, &is))
	assert.Equal(t, 5, is.Stock)
	assert.Equal(t, 5, is.InCart)
	assert.Equal(t, 1, is.Requested)

	lines, err := store.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddRejectsOffSaleProduct(t *testing.T) {
	pool := testdb.Pool(t)
	store := &cart.Store{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, false)

	err := store.Add(ctx, uid, pid, 1)
	var iv *shoperr.InvalidState
	assert.True(t, errors.As(err, &iv))
}

func TestUpdateQuantityReplacesAndValidates(t *testing.T) {
	pool := testdb.Pool(t)
	store := &cart.Store{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, true)

	require.NoError(t, store.Add(ctx, uid, pid, 4))

	// replacement check is against stock alone, not cumulative
	require.NoError(t, store.UpdateQuantity(ctx, uid, pid, 5))

	err := store.UpdateQuantity(ctx, uid, pid, 6)
	var is *shoperr.InsufficientStock
	require.True(t, errors.As(err, &is))
	assert.Equal(t, 0, is.InCart)

	// non-positive quantity degrades to removal
	require.NoError(t, store.UpdateQuantity(ctx, uid, pid, 0))
	lines, err := store.List(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestUpdateQuantityMissingRow(t *testing.T) {
	pool := testdb.Pool(t)
	store := &cart.Store{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, true)

	err := store.UpdateQuantity(ctx, uid, pid, 2)
	var nf *shoperr.NotFound
	assert.True(t, errors.As(err, &nf))
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	pool := testdb.Pool(t)
	store := &cart.Store{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, true)

	require.NoError(t, store.Remove(ctx, uid, pid))
	require.NoError(t, store.Clear(ctx, uid))

	require.NoError(t, store.Add(ctx, uid, pid, 1))
	require.NoError(t, store.Remove(ctx, uid, pid))
	require.NoError(t, store.Remove(ctx, uid, pid))
}

func TestListComputesSubtotals(t *testing.T) {
	pool := testdb.Pool(t)
	store := &cart.Store{DB: pool, Ledger: &inventory.Ledger{DB: pool}}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	p1 := testdb.CreateProduct(t, pool, "mug", 1000, 10, true)
	p2 := testdb.CreateProduct(t, pool, "pen", 250, 10, true)

	require.NoError(t, store.Add(ctx, uid, p1, 2))
	require.NoError(t, store.Add(ctx, uid, p2, 3))

	lines, err := store.List(ctx, uid)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(2000), lines[0].SubtotalCents)
	assert.Equal(t, int64(750), lines[1].SubtotalCents)

	total, err := store.TotalCents(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, int64(2750), total)

	n, err := store.Count(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestCheckAllInStock(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	store := &cart.Store{DB: pool, Ledger: led}
	ctx := context.Background()

	uid := testdb.CreateUser(t, pool, "alice")
	pid := testdb.CreateProduct(t, pool, "mug", 1000, 5, true)

	require.NoError(t, store.Add(ctx, uid, pid, 5))
	ok, err := store.CheckAllInStock(ctx, uid)
	require.NoError(t, err)
	assert.True(t, ok)

	// someone else buys 3 units after the cart was filled
	require.NoError(t, led.Reserve(ctx, pid, 3))
	ok, err = store.CheckAllInStock(ctx, uid)
	require.NoError(t, err)
	assert.False(t, ok)
}
