package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

type OrderStatus struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Status     string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Cache wraps the Redis keys the API and the projector share. Redis is a
// shortcut only; Postgres stays the source of truth.
type Cache struct {
	RDB *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) GetStatus(ctx context.Context, orderID string) (OrderStatus, bool, error) {
	s, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return OrderStatus{}, false, nil
	}
	if err != nil {
		return OrderStatus{}, false, err
	}
	var st OrderStatus
	if err := json.Unmarshal([]byte(s), &st); err != nil {
		return OrderStatus{}, false, nil
	}
	return st, true, nil
}

// SetStatusIfNewer writes the cached status unless the cache already holds a
// later update. WATCH makes the compare-and-set atomic against other writers.
func (c *Cache) SetStatusIfNewer(ctx context.Context, st OrderStatus) error {
	key := fmt.Sprintf(KeyOrderStatus, st.OrderID)
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var old OrderStatus
			if json.Unmarshal([]byte(cur), &old) == nil && old.UpdatedAt.After(st.UpdatedAt) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, TTLStatusCache)
			return nil
		})
		return err
	}
	for i := 0; i < 3; i++ {
		err = c.RDB.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// MarkProcessed records eventID for service and reports whether this call
// was the first to do so.
func (c *Cache) MarkProcessed(ctx context.Context, service, eventID string) (bool, error) {
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

func (c *Cache) Forget(ctx context.Context, service, eventID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}

func (c *Cache) CheckoutOrderID(ctx context.Context, customerID, key string) (string, bool, error) {
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, customerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (c *Cache) RememberCheckout(ctx context.Context, customerID, key, orderID string) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, customerID, key), orderID, TTLIdempotency).Err()
}
