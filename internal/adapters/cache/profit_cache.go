package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProfitCache is a read-side cache for profit ledger balances. Entries carry
// a short TTL and are invalidated best-effort after fund-moving operations,
// so a stale read is bounded by the TTL. The ledger in Postgres stays the
// source of truth.
type ProfitCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfitCache(client *redis.Client, ttl time.Duration) *ProfitCache {
	return &ProfitCache{
		client: client,
		ttl:    ttl,
	}
}

func key(account uuid.UUID) string {
	return "profit:" + account.String()
}

// Get returns the cached balance and whether it was present.
func (c *ProfitCache) Get(ctx context.Context, account uuid.UUID) (int64, bool, error) {
	val, err := c.client.Get(ctx, key(account)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read profit cache: %w", err)
	}

	balance, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt profit cache entry for %s: %w", account, err)
	}
	return balance, true, nil
}

// Set stores the balance with the configured TTL.
func (c *ProfitCache) Set(ctx context.Context, account uuid.UUID, balance int64) error {
	return c.client.Set(ctx, key(account), strconv.FormatInt(balance, 10), c.ttl).Err()
}

// Invalidate drops the cached balances for the given accounts.
func (c *ProfitCache) Invalidate(ctx context.Context, accounts ...uuid.UUID) error {
	keys := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if account == uuid.Nil {
			continue
		}
		keys = append(keys, key(account))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
