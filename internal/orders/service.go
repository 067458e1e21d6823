package orders

import (
	"context"

	"github.com/ariefcatur/go-cart-checkout/internal/outbox"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
)

// Service holds the order reads for customers and the privileged status
// change, which records an OrderStatusChanged event in the same transaction.
type Service struct {
	Repo     *Repo
	Tx       *postgres.TxRunner
	Producer string
}

func NewService(repo *Repo, tx *postgres.TxRunner, producer string) *Service {
	return &Service{Repo: repo, Tx: tx, Producer: producer}
}

func (s *Service) UpdateStatus(ctx context.Context, orderID, status, traceID string) (Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}

	var out Order
	err = s.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		o, err := s.Repo.UpdateStatus(ctx, uow, orderID, st)
		if err != nil {
			return err
		}
		env, err := NewEnvelope(EventOrderStatusChanged, s.Producer, o.ID, traceID,
			OrderStatusChangedPayload{OrderID: o.ID, CustomerID: o.CustomerID, Status: o.Status})
		if err != nil {
			return err
		}
		if err := outbox.Insert(ctx, uow, env.EventID, TopicOrderStatusChanged, string(PartitionKey(o.ID)), env); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

func (s *Service) ListMine(ctx context.Context, customerID string) ([]Order, error) {
	return s.Repo.ListByCustomer(ctx, customerID)
}

func (s *Service) GetMine(ctx context.Context, customerID, orderID string) (Order, error) {
	return s.Repo.GetForCustomer(ctx, customerID, orderID)
}

func (s *Service) StatusMine(ctx context.Context, customerID, orderID string) (Order, error) {
	return s.Repo.GetOrderStatus(ctx, customerID, orderID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.Repo.ListAll(ctx)
}

func (s *Service) Dashboard(ctx context.Context) (Stats, error) {
	return s.Repo.Stats(ctx)
}
