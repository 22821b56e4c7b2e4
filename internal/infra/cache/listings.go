package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"esign-examples/internal/infra/logging"
)

// Listings caches per-account template and brand listings in Redis. A nil
// *Listings is valid and never hits.
type Listings struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewListings returns a cache backed by rdb, or nil when rdb is nil.
func NewListings(rdb *redis.Client, ttl time.Duration) *Listings {
	if rdb == nil {
		return nil
	}
	return &Listings{rdb: rdb, ttl: ttl}
}

// Key builds the cache key for a listing kind ("templates", "brands") of an account.
func Key(kind, accountID string) string {
	return "listings:" + kind + ":" + accountID
}

// Get decodes the cached value for key into dst and reports whether it was found.
func (l *Listings) Get(ctx context.Context, key string, dst any) bool {
	if l == nil {
		return false
	}
	raw, err := l.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Warn("Listing cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logging.Warn("Listing cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores v under key. Failures are logged and otherwise ignored.
func (l *Listings) Set(ctx context.Context, key string, v any) {
	if l == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		logging.Warn("Listing cache encode failed", "key", key, "error", err)
		return
	}
	if err := l.rdb.Set(ctx, key, raw, l.ttl).Err(); err != nil {
		logging.Warn("Listing cache write failed", "key", key, "error", err)
	}
}
