package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Ledger owns product stock. Every mutating call takes the caller's unit of
// work; row locks taken here live until that unit of work ends.
type Ledger struct{ DB *pgxpool.Pool }

func NewLedger(db *pgxpool.Pool) *Ledger { return &Ledger{DB: db} }

const productColumns = `id, name, description, image_url, price, stock, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Lock reads the product with FOR UPDATE. A missing product is reported as
// apperr.KindUnknownProduct carrying the id the caller asked for.
func (l *Ledger) Lock(ctx context.Context, uow *postgres.UnitOfWork, productID string) (Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, apperr.UnknownProduct(productID)
	}
	p, err := scanProduct(uow.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 FOR UPDATE`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.UnknownProduct(productID)
	}
	if err != nil {
		return Product{}, postgres.Classify(err)
	}
	return p, nil
}

// ReserveStock locks the product row and checks qty against current stock.
// Exact match is allowed; only qty > stock is rejected.
func (l *Ledger) ReserveStock(ctx context.Context, uow *postgres.UnitOfWork, productID string, qty int) (decimal.Decimal, error) {
	p, err := l.Lock(ctx, uow, productID)
	if err != nil {
		return decimal.Zero, err
	}
	if qty > p.Stock {
		return decimal.Zero, apperr.InsufficientStock(productID, qty, p.Stock)
	}
	return p.Price, nil
}

// CommitDecrement applies a decrement already validated under lock. The
// stock >= qty guard keeps a negative value from ever being written.
func (l *Ledger) CommitDecrement(ctx context.Context, uow *postgres.UnitOfWork, productID string, qty int) error {
	ct, err := uow.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return postgres.Classify(err)
	}
	if ct.RowsAffected() != 1 {
		return apperr.InsufficientStock(productID, qty, 0)
	}
	return nil
}

func (l *Ledger) Get(ctx context.Context, productID string) (Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, apperr.NotFound("product")
	}
	p, err := scanProduct(l.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.NotFound("product")
	}
	return p, postgres.Classify(err)
}

func (l *Ledger) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := l.DB.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
