package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-cart-checkout/internal/logx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapPayload(t *testing.T) {
	t.Parallel()

	type payload struct {
		OrderID string `json:"order_id"`
	}
	p, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o-1"}`))
	require.NoError(t, err)
	assert.Equal(t, "o-1", p.OrderID)

	_, err = UnwrapPayload[payload](json.RawMessage(`{`))
	assert.ErrorContains(t, err, "decode payload")
}

func TestLaneIsStablePerKey(t *testing.T) {
	t.Parallel()

	a := lane([]byte("order-1"), 8)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a, lane([]byte("order-1"), 8))
	}
	for _, k := range []string{"", "x", "order-2", "order-3"} {
		l := lane([]byte(k), 8)
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 8)
	}
}

func TestProcessRetriesSameMessage(t *testing.T) {
	t.Parallel()

	c := &Consumer{backoff: time.Millisecond, log: logx.Discard()}
	var seen []int64
	h := func(_ context.Context, m kafka.Message) error {
		seen = append(seen, m.Offset)
		if len(seen) < 3 {
			return errors.New("redis down")
		}
		return nil
	}

	ok := c.process(context.Background(), h, kafka.Message{Topic: "order.created", Offset: 41})
	assert.True(t, ok)
	assert.Equal(t, []int64{41, 41, 41}, seen)
}

func TestProcessStopsOnShutdown(t *testing.T) {
	t.Parallel()

	c := &Consumer{backoff: time.Hour, log: logx.Discard()}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("still failing")
	}

	done := make(chan bool, 1)
	go func() { done <- c.process(ctx, h, kafka.Message{Offset: 7}) }()
	select {
	case ok := <-done:
		assert.False(t, ok)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("process kept retrying after cancel")
	}
}
