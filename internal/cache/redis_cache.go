package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/dispatch-engine/internal/client"
)

// ErrNoReceipt is returned when no receipt is cached for the key.
var ErrNoReceipt = errors.New("cache: no receipt")

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func receiptKey(dispatchID string, contactIndex int) string {
	return fmt.Sprintf("receipt:%s:%d", dispatchID, contactIndex)
}

func (c *RedisCache) StoreReceipt(ctx context.Context, dispatchID string, contactIndex int, r client.Receipt, sentAt time.Time) error {
	val := StoredReceipt{
		MessageID:      r.MessageID,
		ConversationID: r.ConversationID,
		SentAt:         sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, receiptKey(dispatchID, contactIndex), b, c.ttl).Err()
}

func (c *RedisCache) GetReceipt(ctx context.Context, dispatchID string, contactIndex int) (*StoredReceipt, error) {
	raw, err := c.rdb.Get(ctx, receiptKey(dispatchID, contactIndex)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReceipt
	}
	if err != nil {
		return nil, err
	}

	var val StoredReceipt
	if err := json.Unmarshal(raw, &val); err != nil {
		return nil, err
	}
	return &val, nil
}
