package invoices

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryCacheKey = "invoices:summary"

// Cache is a Redis backed SummaryCache. Misses and Redis failures degrade to
// recomputation, never to an error.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache constructs a summary cache.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached summary, if any.
func (c *Cache) Get(ctx context.Context) (*DashboardSummary, bool) {
	raw, err := c.client.Get(ctx, summaryCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("summary cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var out DashboardSummary
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return &out, true
}

// Set stores the summary for the cache TTL.
func (c *Cache) Set(ctx context.Context, summary DashboardSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, summaryCacheKey, raw, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.Warn("summary cache write", slog.Any("error", err))
	}
}

// Invalidate drops the cached summary after an invoice mutation.
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, summaryCacheKey).Err(); err != nil && c.logger != nil {
		c.logger.Warn("summary cache invalidate", slog.Any("error", err))
	}
}
