package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/notare-app/notare/internal/provider"
)

const keyPrefix = "notare:embed:"

// Cache decorates an EmbeddingProvider with a redis-backed vector cache.
// Query text repeats constantly in chat sessions; caching the vector avoids
// re-billing the provider for identical input. Cache failures degrade to a
// plain provider call, never to a request failure.
type Cache struct {
	inner  provider.EmbeddingProvider
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// New wraps inner with a cache. A nil client returns inner unchanged.
func New(inner provider.EmbeddingProvider, client *redis.Client, ttl time.Duration, logger *log.Logger) provider.EmbeddingProvider {
	if client == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EMBEDCACHE] ", log.LstdFlags)
	}
	return &Cache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (c *Cache) GenerateEmbedding(ctx context.Context, text string, model string) ([]float32, error) {
	key := cacheKey(text, model)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var vec []float32
		if err := json.Unmarshal(payload, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if err != redis.Nil {
		c.logger.Printf("cache get failed: %v", err)
	}

	vec, err := c.inner.GenerateEmbedding(ctx, text, model)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(vec); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Printf("cache set failed: %v", err)
		}
	}
	return vec, nil
}

func cacheKey(text, model string) string {
	sum := sha256.Sum256([]byte(model + "|" + text))
	return keyPrefix + hex.EncodeToString(sum[:])
}
