// Package pgtest wires integration tests to a throwaway Postgres database
// named by TEST_POSTGRES_DSN. Tests skip when it is unset.
package pgtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Open connects and migrates. Packages share the database, so every test
// seeds its own customers and products instead of truncating.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, dsn, 16)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	return pool
}

func Customer(t *testing.T, pool *pgxpool.Pool, name string) (customerID, addressID string) {
	t.Helper()
	ctx := context.Background()
	addressID = uuid.NewString()
	customerID = uuid.NewString()
	_, err := pool.Exec(ctx, `INSERT INTO addresses(id, street, city) VALUES ($1, $2, 'Bandung')`, addressID, "Jl. "+name)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO customers(id, name, email, address_id) VALUES ($1, $2, $3, $4)`,
		customerID, name, name+"-"+customerID[:8]+"@example.com", addressID)
	require.NoError(t, err)
	return customerID, addressID
}

func Product(t *testing.T, pool *pgxpool.Pool, name, price string, stock int) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO products(id, name, price, stock) VALUES ($1, $2, $3, $4)`,
		id, name, decimal.RequireFromString(price), stock)
	require.NoError(t, err)
	return id
}

func Stock(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n))
	return n
}

func SetPrice(t *testing.T, pool *pgxpool.Pool, productID, price string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `UPDATE products SET price=$2 WHERE id=$1`, productID, decimal.RequireFromString(price))
	require.NoError(t, err)
}

func Count(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
