// Package testdb provides the shared fixture for repository tests. The
// tests need a real Postgres; they skip unless TEST_POSTGRES_DSN is set.
package testdb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// Pool connects, applies the schema and truncates every table so each test
// starts clean.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	// pgx's extended protocol takes one statement per Exec
	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	_, err = pool.Exec(ctx,
		`TRUNCATE order_lines, orders, cart_items, products, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func CreateUser(t *testing.T, pool *pgxpool.Pool, username string) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, username).Scan(&id)
	require.NoError(t, err)
	return id
}

func CreateProduct(t *testing.T, pool *pgxpool.Pool, name string, priceCents int64, stock int, onSale bool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO products (name, price_cents, stock, on_sale)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		name, priceCents, stock, onSale).Scan(&id)
	require.NoError(t, err)
	return id
}
