package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store owns carts and cart lines. Methods taking a *postgres.UnitOfWork
// must be called inside the caller's transaction; locking reads hold their
// row locks until it ends.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const lineColumns = `l.id, l.cart_id, l.product_id, l.quantity, l.unit_price`

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.UnitPrice)
	return l, err
}

// FindOpenCart locks and returns the customer's open cart, if any.
func (s *Store) FindOpenCart(ctx context.Context, uow *postgres.UnitOfWork, customerID string) (string, bool, error) {
	var id string
	err := uow.QueryRow(ctx, `
		SELECT id FROM carts
		WHERE customer_id = $1 AND status = 'open'
		FOR UPDATE`, customerID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, postgres.Classify(err)
	}
	return id, true, nil
}

// GetOrCreateOpenCart returns the locked open cart, creating it when absent.
// Two callers racing for the same customer both land on a single row: the
// loser's insert is swallowed by the partial unique index and its second
// read waits on the winner's lock.
func (s *Store) GetOrCreateOpenCart(ctx context.Context, uow *postgres.UnitOfWork, customerID string) (string, error) {
	if id, ok, err := s.FindOpenCart(ctx, uow, customerID); err != nil || ok {
		return id, err
	}
	_, err := uow.Exec(ctx, `
		INSERT INTO carts(id, customer_id, status) VALUES ($1, $2, 'open')
		ON CONFLICT (customer_id) WHERE status = 'open' DO NOTHING`,
		uuid.NewString(), customerID)
	if err != nil {
		return "", postgres.Classify(err)
	}
	id, ok, err := s.FindOpenCart(ctx, uow, customerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("open cart for customer %s vanished after insert", customerID)
	}
	return id, nil
}

// OpenCart is the non-locking read used by getCart.
func (s *Store) OpenCart(ctx context.Context, customerID string) (*Cart, error) {
	var c Cart
	err := s.DB.QueryRow(ctx, `
		SELECT id, customer_id, status, created_at FROM carts
		WHERE customer_id = $1 AND status = 'open'`, customerID).
		Scan(&c.ID, &c.CustomerID, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, postgres.Classify(err)
	}
	return &c, nil
}

func (s *Store) LineQuantity(ctx context.Context, uow *postgres.UnitOfWork, cartID, productID string) (int, error) {
	var qty int
	err := uow.QueryRow(ctx, `SELECT quantity FROM cart_lines WHERE cart_id=$1 AND product_id=$2`, cartID, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, postgres.Classify(err)
}

// UpsertLine adds qty to an existing (cart, product) line or inserts a new
// one, refreshing the unit price either way. Stock is the caller's concern.
func (s *Store) UpsertLine(ctx context.Context, uow *postgres.UnitOfWork, cartID, productID string, qty int, unitPrice decimal.Decimal) (Line, error) {
	l, err := scanLine(uow.QueryRow(ctx, `
		INSERT INTO cart_lines AS l (id, cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, product_id) DO UPDATE
		SET quantity = l.quantity + EXCLUDED.quantity, unit_price = EXCLUDED.unit_price
		RETURNING `+lineColumns,
		uuid.NewString(), cartID, productID, qty, unitPrice))
	if err != nil {
		return Line{}, postgres.Classify(err)
	}
	return l, nil
}

// ListLines joins product display data, ordered by product name.
func (s *Store) ListLines(ctx context.Context, q postgres.Querier, cartID string) ([]ViewLine, error) {
	rows, err := q.Query(ctx, `
		SELECT `+lineColumns+`, p.name, p.image_url
		FROM cart_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.cart_id = $1
		ORDER BY p.name, l.id`, cartID)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	out := []ViewLine{}
	for rows.Next() {
		var v ViewLine
		if err := rows.Scan(&v.ID, &v.CartID, &v.ProductID, &v.Quantity, &v.UnitPrice, &v.ProductName, &v.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// LockedLines returns the cart's lines ordered by product id, the order in
// which checkout locks product rows.
func (s *Store) LockedLines(ctx context.Context, uow *postgres.UnitOfWork, cartID string) ([]Line, error) {
	rows, err := uow.Query(ctx, `
		SELECT `+lineColumns+` FROM cart_lines l
		WHERE l.cart_id = $1
		ORDER BY l.product_id
		FOR UPDATE`, cartID)
	if err != nil {
		return nil, postgres.Classify(err)
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// OwnedLine reads a line only if it sits in the given open cart of customerID.
// Anything else, including another customer's line, is NotFound.
func (s *Store) OwnedLine(ctx context.Context, uow *postgres.UnitOfWork, lineID, customerID string) (Line, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return Line{}, apperr.NotFound("cart item")
	}
	l, err := scanLine(uow.QueryRow(ctx, `
		SELECT `+lineColumns+`
		FROM cart_lines l
		JOIN carts c ON c.id = l.cart_id
		WHERE l.id = $1 AND c.customer_id = $2 AND c.status = 'open'`, lineID, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, apperr.NotFound("cart item")
	}
	if err != nil {
		return Line{}, postgres.Classify(err)
	}
	return l, nil
}

func (s *Store) UpdateLineQuantity(ctx context.Context, uow *postgres.UnitOfWork, lineID, customerID string, qty int) (Line, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return Line{}, apperr.NotFound("cart item")
	}
	l, err := scanLine(uow.QueryRow(ctx, `
		UPDATE cart_lines l SET quantity = $3
		FROM carts c
		WHERE l.id = $1 AND l.cart_id = c.id AND c.customer_id = $2 AND c.status = 'open'
		RETURNING `+lineColumns, lineID, customerID, qty))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, apperr.NotFound("cart item")
	}
	if err != nil {
		return Line{}, postgres.Classify(err)
	}
	return l, nil
}

func (s *Store) RemoveLine(ctx context.Context, uow *postgres.UnitOfWork, lineID, customerID string) (Line, error) {
	if _, err := uuid.Parse(lineID); err != nil {
		return Line{}, apperr.NotFound("cart item")
	}
	l, err := scanLine(uow.QueryRow(ctx, `
		DELETE FROM cart_lines l
		USING carts c
		WHERE l.id = $1 AND l.cart_id = c.id AND c.customer_id = $2 AND c.status = 'open'
		RETURNING `+lineColumns, lineID, customerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Line{}, apperr.NotFound("cart item")
	}
	if err != nil {
		return Line{}, postgres.Classify(err)
	}
	return l, nil
}

func (s *Store) ClearLines(ctx context.Context, uow *postgres.UnitOfWork, cartID string) error {
	_, err := uow.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID)
	return postgres.Classify(err)
}

func (s *Store) MarkCompleted(ctx context.Context, uow *postgres.UnitOfWork, cartID string) error {
	ct, err := uow.Exec(ctx, `
		UPDATE carts SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'open'`, cartID)
	if err != nil {
		return postgres.Classify(err)
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("cart %s was not open", cartID)
	}
	return nil
}
