package orders

import (
	"context"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Builder turns validated cart lines into an order and its lines.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Total sums quantity * unit price in decimal; float summation would
// misround money.
func Total(lines []LineInput) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// Materialize inserts the order in status Processing plus one order line per
// input, keeping each line's captured price.
func (b *Builder) Materialize(ctx context.Context, uow *postgres.UnitOfWork, d Draft) (Order, error) {
	if len(d.Lines) == 0 {
		return Order{}, apperr.ErrEmptyCart
	}

	o := Order{
		ID:                uuid.NewString(),
		CustomerID:        d.CustomerID,
		DeliveryAddressID: d.DeliveryAddressID,
		Total:             Total(d.Lines),
		Status:            StatusProcessing,
	}
	var idem *string
	if d.IdempotencyKey != "" {
		idem = &d.IdempotencyKey
	}

	err := uow.QueryRow(ctx, `
		INSERT INTO orders(id, customer_id, delivery_address_id, total, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		o.ID, o.CustomerID, o.DeliveryAddressID, o.Total, string(o.Status), idem,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}

	o.Items = make([]OrderLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		ol := OrderLine{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		}
		if _, err := uow.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			ol.ID, ol.OrderID, ol.ProductID, ol.Quantity, ol.UnitPrice,
		); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, ol)
	}
	return o, nil
}
