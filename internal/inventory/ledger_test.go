package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopd/go-shop-orders/internal/inventory"
	"github.com/shopd/go-shop-orders/internal/shoperr"
	"github.com/shopd/go-shop-orders/internal/testdb"
)

func TestReserveReleaseConservation(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 10, true)

	require.NoError(t, led.Reserve(ctx, pid, 3))
	require.NoError(t, led.Reserve(ctx, pid, 2))
	require.NoError(t, led.Release(ctx, pid, 2))
	require.NoError(t, led.Reserve(ctx, pid, 4))

	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 10-3-2+2-4, s.Stock)
	assert.True(t, s.OnSale)
}

func TestReserveInsufficientStock(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 2, true)

	err := led.Reserve(ctx, pid, 3)
	var is *shoperr.InsufficientStock
	require.True(t, errors.As(err, &is))
	assert.Equal(t, 2, is.Stock)
	assert.Equal(t, 3, is.Requested)
	assert.Equal(t, "widget", is.ProductName)

	// failed reserve must not move stock
	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stock)
}

func TestReserveMissingProduct(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}

	err := led.Reserve(context.Background(), 9999, 1)
	var nf *shoperr.NotFound
	assert.True(t, errors.As(err, &nf))
}

// Reserve must never oversell under contention: the conditional decrement
// re-evaluates the stock predicate after the row lock is acquired, so with
// more reservers than units exactly the available units are granted.
func TestReserveConcurrentNoOversell(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	const (
		stock     = 5
		reservers = 8
	)
	pid := testdb.CreateProduct(t, pool, "widget", 500, stock, true)

	errs := make(chan error, reservers)
	var wg sync.WaitGroup
	for i := 0; i < reservers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- led.Reserve(ctx, pid, 1)
		}()
	}
	wg.Wait()
	close(errs)

	granted, refused := 0, 0
	for err := range errs {
		if err == nil {
			granted++
			continue
		}
		var is *shoperr.InsufficientStock
		require.True(t, errors.As(err, &is), "unexpected error: %v", err)
		refused++
	}
	assert.Equal(t, stock, granted)
	assert.Equal(t, reservers-stock, refused)

	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Stock)
	assert.False(t, s.OnSale, "selling the last unit must delist")
}

func TestAutoDelistAndRelist(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 2, true)

	require.NoError(t, led.Reserve(ctx, pid, 2))
	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Stock)
	assert.False(t, s.OnSale, "reserving the last unit must delist")

	require.NoError(t, led.Release(ctx, pid, 2))
	s, err = led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stock)
	assert.True(t, s.OnSale, "release after auto-delist must re-list")
}

func TestReleaseKeepsManualDelist(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 5, true)

	require.NoError(t, led.SetOnSale(ctx, pid, false))
	require.NoError(t, led.Release(ctx, pid, 1))

	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Stock)
	assert.False(t, s.OnSale, "release must not override a manual delist")
}

func TestCheckAvailable(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	onSale := testdb.CreateProduct(t, pool, "a", 100, 5, true)
	offSale := testdb.CreateProduct(t, pool, "b", 100, 5, false)

	ok, err := led.CheckAvailable(ctx, onSale, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = led.CheckAvailable(ctx, onSale, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = led.CheckAvailable(ctx, offSale, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = led.CheckAvailable(ctx, 9999, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetStockFollowsDelistRules(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 5, true)

	require.NoError(t, led.SetStock(ctx, pid, 0))
	s, err := led.Get(ctx, pid)
	require.NoError(t, err)
	assert.False(t, s.OnSale)

	require.NoError(t, led.SetStock(ctx, pid, 7))
	s, err = led.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Stock)
	assert.True(t, s.OnSale, "restock after auto-delist must re-list")
}

func TestSetOnSaleRequiresStock(t *testing.T) {
	pool := testdb.Pool(t)
	led := &inventory.Ledger{DB: pool}
	ctx := context.Background()

	pid := testdb.CreateProduct(t, pool, "widget", 500, 0, false)

	err := led.SetOnSale(ctx, pid, true)
	var iv *shoperr.InvalidState
	assert.True(t, errors.As(err, &iv))
}
