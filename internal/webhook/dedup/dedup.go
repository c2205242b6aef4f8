// Package dedup remembers recently stored provider events in Redis so that
// hot redeliveries can be answered without opening a database transaction.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a stored event id is remembered.
	DefaultTTL = 24 * time.Hour

	keyPrefix = "leadflow:touch:seen:"
)

// Filter records event keys with SETNX and a TTL. The value is the lead id
// the event was attached to, so a cached answer can still report it.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis. A non-positive ttl uses DefaultTTL.
func NewFilter(rdb *redis.Client, ttl time.Duration) *Filter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Filter{rdb: rdb, ttl: ttl}
}

// Seen reports whether key was marked and returns the lead id stored with it.
func (f *Filter) Seen(ctx context.Context, key string) (uuid.UUID, bool, error) {
	raw, err := f.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("dedup GET: %w", err)
	}
	leadID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return leadID, true, nil
}

// Mark remembers key. An existing entry keeps its original value and TTL.
func (f *Filter) Mark(ctx context.Context, key string, leadID uuid.UUID) error {
	if err := f.rdb.SetNX(ctx, keyPrefix+key, leadID.String(), f.ttl).Err(); err != nil {
		return fmt.Errorf("dedup SETNX: %w", err)
	}
	return nil
}
