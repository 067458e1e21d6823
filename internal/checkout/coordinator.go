package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/cart"
	"github.com/ariefcatur/go-cart-checkout/internal/customer"
	"github.com/ariefcatur/go-cart-checkout/internal/inventory"
	"github.com/ariefcatur/go-cart-checkout/internal/metrics"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/ariefcatur/go-cart-checkout/internal/outbox"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
)

const idempotencyConstraint = "orders_customer_idempotency_key"

// MaxIdempotencyKey bounds the Idempotency-Key header.
const MaxIdempotencyKey = 128

type State int

const (
	StateStarted State = iota
	StateValidating
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStarted:
		return "started"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

type Result struct {
	Order    orders.Order
	Replayed bool
}

// Coordinator turns a customer's open cart into an order in one unit of
// work. Locks are taken cart row first, then product rows by ascending id.
type Coordinator struct {
	Tx        *postgres.TxRunner
	Carts     *cart.Store
	Ledger    *inventory.Ledger
	Builder   *orders.Builder
	Orders    *orders.Repo
	Customers *customer.Directory
	Metrics   *metrics.ServerMetrics
	Service   string
	Log       *slog.Logger
}

func (c *Coordinator) Checkout(ctx context.Context, customerID, idemKey, traceID string) (Result, error) {
	idemKey = strings.TrimSpace(idemKey)
	if len(idemKey) > MaxIdempotencyKey {
		return Result{}, apperr.Validation("Idempotency-Key is too long")
	}

	res, reached, err := c.run(ctx, customerID, idemKey, traceID)
	if err != nil && idemKey != "" && postgres.IsUniqueViolation(err, idempotencyConstraint) {
		// a concurrent request with the same key committed first
		res, err = c.replay(ctx, customerID, idemKey)
	}
	if err == nil {
		reached = StateCommitted
	}

	c.observe(customerID, res, reached, err)
	return res, err
}

// run reports the last state the attempt reached. On error that is where it
// stopped, never StateCommitted.

func (c *Coordinator) run(ctx context.Context, customerID, idemKey, traceID string) (Result, State, error) {
	var res Result
	state := StateStarted

	err := c.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		cartID, ok, err := c.Carts.FindOpenCart(ctx, uow, customerID)
		if err != nil {
			return err
		}
		if idemKey != "" {
			o, found, err := c.Orders.FindByIdempotencyKey(ctx, uow, customerID, idemKey)
			if err != nil {
				return err
			}
			if found {
				res = Result{Order: o, Replayed: true}
				return nil
			}
		}
		if !ok {
			return apperr.ErrEmptyCart
		}

		state = StateValidating
		lines, err := c.Carts.LockedLines(ctx, uow, cartID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.ErrEmptyCart
		}

		addr, err := c.Customers.DeliveryAddress(ctx, uow, customerID)
		if err != nil {
			return err
		}

		// lines come ordered by product id, which is the product lock order
		inputs := make([]orders.LineInput, 0, len(lines))
		for _, l := range lines {
			if _, err := c.Ledger.ReserveStock(ctx, uow, l.ProductID, l.Quantity); err != nil {
				return err
			}
			inputs = append(inputs, orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}

		o, err := c.Builder.Materialize(ctx, uow, orders.Draft{
			CustomerID:        customerID,
			DeliveryAddressID: addr,
			IdempotencyKey:    idemKey,
			Lines:             inputs,
		})
		if err != nil {
			return err
		}
		for _, l := range inputs {
			if err := c.Ledger.CommitDecrement(ctx, uow, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if err := c.Carts.ClearLines(ctx, uow, cartID); err != nil {
			return err
		}
		if err := c.Carts.MarkCompleted(ctx, uow, cartID); err != nil {
			return err
		}

		env, err := orders.NewEnvelope(orders.EventOrderCreated, c.Service, o.ID, traceID, orders.CreatedPayload(o))
		if err != nil {
			return err
		}
		if err := outbox.Insert(ctx, uow, env.EventID, orders.TopicOrderCreated, string(orders.PartitionKey(o.ID)), env); err != nil {
			return err
		}
		res = Result{Order: o}
		return nil
	})
	if err != nil {
		return Result{}, state, err
	}
	return res, StateCommitted, nil
}

func (c *Coordinator) replay(ctx context.Context, customerID, idemKey string) (Result, error) {
	o, found, err := c.Orders.FindByIdempotencyKey(ctx, c.Orders.DB, customerID, idemKey)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, apperr.Conflict(errors.New("idempotent checkout in flight"))
	}
	return Result{Order: o, Replayed: true}, nil
}

func (c *Coordinator) observe(customerID string, res Result, reached State, err error) {
	var outcome string
	switch {
	case err == nil && res.Replayed:
		outcome = metrics.OutcomeReplayed
	case err == nil:
		outcome = metrics.OutcomeCommitted
	case errors.Is(err, apperr.ErrEmptyCart):
		outcome = metrics.OutcomeEmptyCart
	case errors.Is(err, apperr.ErrInsufficientStock):
		outcome = metrics.OutcomeInsufficientStock
	case errors.Is(err, apperr.ErrConflict):
		outcome = metrics.OutcomeConflict
	default:
		outcome = metrics.OutcomeError
	}
	c.Metrics.ObserveCheckout(outcome)

	if c.Log == nil {
		return
	}
	if err != nil {
		c.Log.Info("checkout aborted", "customer_id", customerID, "state", StateAborted.String(),
			"reached", reached.String(), "outcome", outcome, "err", err)
		return
	}
	c.Log.Info("checkout", "customer_id", customerID, "order_id", res.Order.ID, "state", reached.String(),
		"outcome", outcome, "total", res.Order.Total.StringFixed(2))
}
