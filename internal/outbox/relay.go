package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Send(ctx context.Context, msgs ...kafka.Message) error
}

// Relay moves committed outbox rows to Kafka. Delivery is at-least-once:
// a crash between Send and commit republishes the batch, which consumers
// dedup by event_id.
// SendTimeout bounds the publish made while the batch rows are locked;
// zero means defaultSendTimeout.
type Relay struct {
	Tx          *postgres.TxRunner
	Pub         Publisher
	Batch       int
	Interval    time.Duration
	SendTimeout time.Duration
	Log         *slog.Logger
}

const defaultSendTimeout = 5 * time.Second

func (r *Relay) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.Log.Error("outbox flush", "err", err)
					}
					break
				}
				if n < r.Batch {
					break
				}
			}
		}
	}
}

// Flush publishes one batch and reports how many rows it sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	sent := 0
	err := r.Tx.WithinTx(ctx, func(ctx context.Context, uow *postgres.UnitOfWork) error {
		recs, err := FetchPending(ctx, uow, r.Batch)
		if err != nil || len(recs) == 0 {
			return err
		}
		msgs := make([]kafka.Message, 0, len(recs))
		ids := make([]int64, 0, len(recs))
		for _, rec := range recs {
			msgs = append(msgs, toMessage(rec))
			ids = append(ids, rec.ID)
		}
		timeout := r.SendTimeout
		if timeout <= 0 {
			timeout = defaultSendTimeout
		}
		sendCtx, cancel := context.WithTimeout(ctx, timeout)
		err = r.Pub.Send(sendCtx, msgs...)
		cancel()
		if err != nil {
			return err
		}
		sent = len(recs)
		return MarkSent(ctx, uow, ids)
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		r.Log.Debug("outbox flushed", "count", sent)
	}
	return sent, nil
}

func toMessage(rec Record) kafka.Message {
	var meta struct {
		EventType    string `json:"event_type"`
		EventVersion int    `json:"event_version"`
	}
	_ = json.Unmarshal(rec.Payload, &meta)
	return kafka.Message{
		Topic: rec.Topic,
		Key:   []byte(rec.Key),
		Value: rec.Payload,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "x-event-id", Value: []byte(rec.EventID)},
			{Key: "x-event-type", Value: []byte(meta.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(meta.EventVersion))},
		},
	}
}
