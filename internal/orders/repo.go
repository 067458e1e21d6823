package orders

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func NewRepo(db *pgxpool.Pool) *Repo { return &Repo{DB: db} }

const orderColumns = `o.id, o.customer_id, o.delivery_address_id, o.total, o.status, o.created_at, o.updated_at`

func scanOrder(row pgx.Row, extra ...any) (Order, error) {
	var o Order
	var status string
	dest := append([]any{&o.ID, &o.CustomerID, &o.DeliveryAddressID, &o.Total, &status, &o.CreatedAt, &o.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("order")
	}
	return postgres.Classify(err)
}

func (r *Repo) Get(ctx context.Context, q postgres.Querier, orderID string) (Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, apperr.NotFound("order")
	}
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, orderID))
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	return r.withItems(ctx, q, o)
}

// FindByIdempotencyKey looks up an order the customer already placed with key.
func (r *Repo) FindByIdempotencyKey(ctx context.Context, q postgres.Querier, customerID, key string) (Order, bool, error) {
	o, err := scanOrder(q.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.customer_id = $1 AND o.idempotency_key = $2`, customerID, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, postgres.Classify(err)
	}
	o, err = r.withItems(ctx, q, o)
	return o, err == nil, err
}

// GetForCustomer scopes the read to the owner; someone else's order is NotFound.
func (r *Repo) GetForCustomer(ctx context.Context, customerID, orderID string) (Order, error) {
	o, err := r.Get(ctx, r.DB, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.CustomerID != customerID {
		return Order{}, apperr.NotFound("order")
	}
	return o, nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, customerID, orderID string) (Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, apperr.NotFound("order")
	}
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.id = $1 AND o.customer_id = $2`, orderID, customerID))
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	return o, nil
}

// ListByCustomer returns the customer's orders newest first with their lines.
func (r *Repo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+` FROM orders o
		WHERE o.customer_id = $1
		ORDER BY o.created_at DESC, o.id`, customerID)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	out, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, r.DB, out)
}

// ListAll is the privileged listing, joined with customer name and email.
func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`, c.name, c.email
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		ORDER BY o.created_at DESC, o.id`)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var name, email string
		o, err := scanOrder(rows, &name, &email)
		if err != nil {
			return nil, err
		}
		o.CustomerName, o.CustomerEmail = name, email
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, uow *postgres.UnitOfWork, orderID string, st Status) (Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return Order{}, apperr.NotFound("order")
	}
	o, err := scanOrder(uow.QueryRow(ctx, `
		UPDATE orders o SET status = $2, updated_at = now()
		WHERE o.id = $1
		RETURNING `+orderColumns, orderID, string(st)))
	if err != nil {
		return Order{}, notFoundOr(err)
	}
	return r.withItems(ctx, uow, o)
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(total), 0) FROM orders WHERE status = $1),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM customers)`, string(StatusCompleted)).
		Scan(&s.CompletedSales, &s.TotalOrders, &s.TotalCustomers)
	if err != nil {
		return Stats{}, postgres.Classify(err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT p.name, SUM(ol.quantity) AS units
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		GROUP BY p.id, p.name
		ORDER BY units DESC, p.name
		LIMIT 5`)
	if err != nil {
		return Stats{}, postgres.Classify(err)
	}
	defer rows.Close()

	s.TopProducts = []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.Name, &tp.UnitsSold); err != nil {
			return Stats{}, err
		}
		s.TopProducts = append(s.TopProducts, tp)
	}
	return s, rows.Err()
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) withItems(ctx context.Context, q postgres.Querier, o Order) (Order, error) {
	out, err := r.attachItems(ctx, q, []Order{o})
	if err != nil {
		return Order{}, err
	}
	return out[0], nil
}

func (r *Repo) attachItems(ctx context.Context, q postgres.Querier, list []Order) ([]Order, error) {
	if len(list) == 0 {
		return list, nil
	}
	ids := make([]string, 0, len(list))
	for _, o := range list {
		ids = append(ids, o.ID)
	}
	rows, err := q.Query(ctx, `
		SELECT ol.id, ol.order_id, ol.product_id, p.name, ol.quantity, ol.unit_price
		FROM order_lines ol
		JOIN products p ON p.id = ol.product_id
		WHERE ol.order_id = ANY($1::uuid[])
		ORDER BY p.name, ol.id`, ids)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	byOrder := map[string][]OrderLine{}
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, err
		}
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Items = byOrder[list[i].ID]
		if list[i].Items == nil {
			list[i].Items = []OrderLine{}
		}
	}
	return list, nil
}
