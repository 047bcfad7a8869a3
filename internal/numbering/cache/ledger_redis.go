// Package cache keeps the quota ledger report in Redis between mutations.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"folio/internal/numbering/models"
)

const ledgerKey = "folio:numbering:ledger"

const defaultLedgerTTL = time.Minute

// RedisLedger is a Redis-backed ports.LedgerCache. The whole report lives
// under one key; any administrative mutation deletes it.
type RedisLedger struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// RedisLedgerOption configures a RedisLedger.
type RedisLedgerOption func(*RedisLedger)

// WithTTL bounds how long a cached report may be served.
func WithTTL(ttl time.Duration) RedisLedgerOption {
	return func(c *RedisLedger) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKey overrides the Redis key, mainly so tests can share an instance.
func WithKey(key string) RedisLedgerOption {
	return func(c *RedisLedger) {
		if key != "" {
			c.key = key
		}
	}
}

// NewRedisLedger constructs a ledger cache over client.
func NewRedisLedger(client redis.Cmdable, opts ...RedisLedgerOption) *RedisLedger {
	c := &RedisLedger{
		client: client,
		key:    ledgerKey,
		ttl:    defaultLedgerTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type ledgerItem struct {
	TypeID     int       `json:"type_id"`
	Year       int       `json:"year"`
	Name       string    `json:"name"`
	Capacity   int       `json:"capacity"`
	Assigned   int       `json:"assigned"`
	Available  int       `json:"available"`
	Issued     int       `json:"issued"`
	RangeCount int       `json:"range_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Get returns the cached report. A miss is (nil, false, nil).
func (c *RedisLedger) Get(ctx context.Context) ([]models.LedgerItem, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get ledger cache: %w", err)
	}

	var cached []ledgerItem
	if err := json.Unmarshal(raw, &cached); err != nil {
		// a corrupt entry is a miss; the caller rebuilds and overwrites it
		return nil, false, nil
	}
	items := make([]models.LedgerItem, 0, len(cached))
	for _, it := range cached {
		items = append(items, models.LedgerItem(it))
	}
	return items, true, nil
}

// Set stores items with the configured TTL.
func (c *RedisLedger) Set(ctx context.Context, items []models.LedgerItem) error {
	cached := make([]ledgerItem, 0, len(items))
	for _, it := range items {
		cached = append(cached, ledgerItem(it))
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("encode ledger cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set ledger cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached report.
func (c *RedisLedger) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate ledger cache: %w", err)
	}
	return nil
}
