package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RenderCache stores rendered receipt text in Redis. Receipts are immutable,
// so cached entries never need invalidation and expire by TTL alone.
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRenderCache constructs a render cache helper.
func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	return &RenderCache{client: client, ttl: ttl}
}

func renderKey(publicID string, width int) string {
	return fmt.Sprintf("receipt:text:%s:%d", publicID, width)
}

// Get returns the cached text for the given receipt and width, if present.
func (c *RenderCache) Get(ctx context.Context, publicID string, width int) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	text, err := c.client.Get(ctx, renderKey(publicID, width)).Result()
	if err != nil {
		return "", false
	}
	return text, true
}

// Set stores rendered text with the configured TTL. Failures are ignored; the
// cache is best effort.
func (c *RenderCache) Set(ctx context.Context, publicID string, width int, text string) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return
	}
	_ = c.client.Set(ctx, renderKey(publicID, width), text, c.ttl).Err()
}
