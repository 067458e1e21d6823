package cart

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
)

// Service exposes the customer-facing cart operations. Every mutation runs
// in its own unit of work and locks the cart row before any product row,
// the same order checkout uses.
type Service struct {
	Store  *Store
	Ledger *inventory.Ledger
	Tx     *postgres.TxRunner
}

func NewService(store *Store, ledger *inventory.Ledger, tx *postgres.TxRunner) *Service {
	return &Service{Store: store, Ledger: ledger, Tx: tx}
}

// AddItem merges qty into the customer's open cart, creating the cart on
// first use. The resulting line quantity must not exceed current stock.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, qty int) (Line, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" || qty <= 0 {
		return Line{}, apperr.Validation("product_id and quantity (> 0) are required")
	}

	var out Line
	err := s.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		cartID, err := s.Store.GetOrCreateOpenCart(ctx, uow, customerID)
		if err != nil {
			return err
		}
		p, err := s.Ledger.Lock(ctx, uow, productID)
		if err != nil {
			return err
		}
		existing, err := s.Store.LineQuantity(ctx, uow, cartID, p.ID)
		if err != nil {
			return err
		}
		if want := existing + qty; want > p.Stock {
			return apperr.InsufficientStock(p.ID, want, p.Stock)
		}
		out, err = s.Store.UpsertLine(ctx, uow, cartID, p.ID, qty, p.Price)
		return err
	})
	return out, err
}

// GetCart reads without locking; two calls with no mutation in between
// return the same lines and total.
func (s *Service) GetCart(ctx context.Context, customerID string) (View, error) {
	c, err := s.Store.OpenCart(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	if c == nil {
		return newView(nil, nil), nil
	}
	items, err := s.Store.ListLines(ctx, s.Store.DB, c.ID)
	if err != nil {
		return View{}, err
	}
	return newView(c, items), nil
}

// UpdateLine replaces the quantity of a line in the caller's open cart.
// The unit price captured at add time is kept.
func (s *Service) UpdateLine(ctx context.Context, customerID, lineID string, qty int) (Line, error) {
	if qty <= 0 {
		return Line{}, apperr.Validation("quantity must be greater than 0; use DELETE to remove the item")
	}

	var out Line
	err := s.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		if _, ok, err := s.Store.FindOpenCart(ctx, uow, customerID); err != nil {
			return err
		} else if !ok {
			return apperr.NotFound("cart item")
		}
		line, err := s.Store.OwnedLine(ctx, uow, lineID, customerID)
		if err != nil {
			return err
		}
		p, err := s.Ledger.Lock(ctx, uow, line.ProductID)
		if err != nil {
			return err
		}
		if qty > p.Stock {
			return apperr.InsufficientStock(p.ID, qty, p.Stock)
		}
		out, err = s.Store.UpdateLineQuantity(ctx, uow, lineID, customerID, qty)
		return err
	})
	return out, err
}

func (s *Service) RemoveLine(ctx context.Context, customerID, lineID string) (Line, error) {
	var out Line
	err := s.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		if _, ok, err := s.Store.FindOpenCart(ctx, uow, customerID); err != nil {
			return err
		} else if !ok {
			return apperr.NotFound("cart item")
		}
		var err error
		out, err = s.Store.RemoveLine(ctx, uow, lineID, customerID)
		return err
	})
	return out, err
}
