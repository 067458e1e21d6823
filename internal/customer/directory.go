package customer

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory is the read side of customer accounts that checkout needs.
type Directory struct{ DB *pgxpool.Pool }

func NewDirectory(db *pgxpool.Pool) *Directory { return &Directory{DB: db} }

// DeliveryAddress returns the customer's current address id, nil when none is set.
func (d *Directory) DeliveryAddress(ctx context.Context, q postgres.Querier, customerID string) (*string, error) {
	if _, err := uuid.Parse(customerID); err != nil {
		return nil, apperr.NotFound("customer")
	}
	var addr *string
	err := q.QueryRow(ctx, `SELECT address_id FROM customers WHERE id = $1`, customerID).Scan(&addr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("customer")
	}
	if err != nil {
		return nil, postgres.Classify(err)
	}
	return addr, nil
}
