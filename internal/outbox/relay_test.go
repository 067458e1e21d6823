package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/logx"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres"
	"github.com/ariefcatur/go-cart-checkout/internal/postgres/pgtest"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakePublisher) Send(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakePublisher) find(eventID string) (kafka.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		for _, h := range m.Headers {
			if h.Key == "x-event-id" && string(h.Value) == eventID {
				return m, true
			}
		}
	}
	return kafka.Message{}, false
}

// blockingPublisher never finishes a send until its context ends.
type blockingPublisher struct{}

func (blockingPublisher) Send(ctx context.Context, _ ...kafka.Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestToMessageHeaders(t *testing.T) {
	t.Parallel()

	payload, _ := json.Marshal(map[string]any{"event_type": "OrderCreated", "event_version": 1})
	m := toMessage(Record{ID: 7, EventID: "e-1", Topic: "order.created", Key: "o-1", Payload: payload})

	assert.Equal(t, "order.created", m.Topic)
	assert.Equal(t, []byte("o-1"), m.Key)
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "e-1", headers["x-event-id"])
	assert.Equal(t, "OrderCreated", headers["x-event-type"])
	assert.Equal(t, "1", headers["x-event-version"])
}

func TestRelayFlush(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	eventID := uuid.NewString()
	require.NoError(t, Insert(ctx, pool, eventID, "order.created", "o-relay",
		map[string]any{"event_id": eventID, "event_type": "OrderCreated", "event_version": 1}))

	pub := &fakePublisher{err: errors.New("broker down")}
	relay := &Relay{Tx: postgres.NewTxRunner(pool, time.Second), Pub: pub, Batch: 50, Interval: time.Second, Log: logx.Discard()}

	_, err := relay.Flush(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, pgtest.Count(t, pool, `SELECT count(*) FROM outbox WHERE event_id=$1 AND sent_at IS NOT NULL`, eventID))

	pub.err = nil
	for i := 0; i < 100; i++ {
		if _, ok := pub.find(eventID); ok {
			break
		}
		_, err := relay.Flush(ctx)
		require.NoError(t, err)
	}
	m, ok := pub.find(eventID)
	require.True(t, ok)
	assert.Equal(t, "order.created", m.Topic)
	assert.Equal(t, 1, pgtest.Count(t, pool, `SELECT count(*) FROM outbox WHERE event_id=$1 AND sent_at IS NOT NULL`, eventID))
}

func TestRelayFlushBoundsSend(t *testing.T) {
	pool := pgtest.Open(t)
	ctx := context.Background()
	eventID := uuid.NewString()
	require.NoError(t, Insert(ctx, pool, eventID, "order.created", "o-stuck",
		map[string]any{"event_id": eventID, "event_type": "OrderCreated", "event_version": 1}))

	relay := &Relay{
		Tx:          postgres.NewTxRunner(pool, time.Second),
		Pub:         blockingPublisher{},
		Batch:       50,
		Interval:    time.Second,
		SendTimeout: 50 * time.Millisecond,
		Log:         logx.Discard(),
	}

	start := time.Now()
	_, err := relay.Flush(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 0, pgtest.Count(t, pool, `SELECT count(*) FROM outbox WHERE event_id=$1 AND sent_at IS NOT NULL`, eventID))
}
