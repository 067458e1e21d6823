package projector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-cart-checkout/internal/kafka"
	"github.com/ariefcatur/go-cart-checkout/internal/orders"
	"github.com/ariefcatur/go-cart-checkout/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
)

// StatusCache is the part of redisx.Cache the projector writes to.
type StatusCache interface {
	MarkProcessed(ctx context.Context, service, eventID string) (bool, error)
	Forget(ctx context.Context, service, eventID string) error
	SetStatusIfNewer(ctx context.Context, st redisx.OrderStatus) error
}

// Projector keeps the order status cache in step with order events.
type Projector struct {
	Cache       StatusCache
	ServiceName string
	Log         *slog.Logger
}

// Handle dipasang sebagai handler consumer.
func (p *Projector) Handle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: log & skip biar partisi tidak macet
		p.Log.Warn("skip undecodable event", "topic", m.Topic, "offset", m.Offset, "err", err)
		return nil
	}

	var st redisx.OrderStatus
	switch env.EventType {
	case orders.EventOrderCreated:
		pl, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			p.Log.Warn("skip event", "event_id", env.EventID, "err", err)
			return nil
		}
		st = redisx.OrderStatus{OrderID: pl.OrderID, CustomerID: pl.CustomerID, Status: string(pl.Status), UpdatedAt: env.OccurredAt}
	case orders.EventOrderStatusChanged:
		pl, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			p.Log.Warn("skip event", "event_id", env.EventID, "err", err)
			return nil
		}
		st = redisx.OrderStatus{OrderID: pl.OrderID, CustomerID: pl.CustomerID, Status: string(pl.Status), UpdatedAt: env.OccurredAt}
	default:
		return nil // ignore
	}
	if st.OrderID == "" {
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := p.Cache.MarkProcessed(ctx, p.ServiceName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		return nil
	}

	// 3) update cache; kalau gagal, lepas dedup supaya redelivery diproses ulang
	if err := p.Cache.SetStatusIfNewer(ctx, st); err != nil {
		_ = p.Cache.Forget(ctx, p.ServiceName, env.EventID)
		return fmt.Errorf("cache status %s: %w", st.OrderID, err)
	}
	p.Log.Debug("order status projected", "order_id", st.OrderID, "status", st.Status, "event_id", env.EventID)
	return nil
}
