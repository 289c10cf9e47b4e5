// Package cache keeps chunk embeddings in Redis so re-indexing unchanged text
// does not call the embedding API again.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a cached embedding is kept.
const DefaultTTL = 7 * 24 * time.Hour

// Embedder generates embeddings.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Store is the subset of the Redis client used by the cache.
type Store interface {
	Get(ctx context.Context, key string) *redisv9.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redisv9.StatusCmd
}

// CachedEmbedder decorates an Embedder with a Redis read-through cache.
// Cache failures are logged and never fail an embedding request.
type CachedEmbedder struct {
	next       Embedder
	store      Store
	model      string
	dimensions int
	ttl        time.Duration
}

// NewCachedEmbedder wraps next. model and dimensions namespace keys so
// vectors of different models or sizes never mix.
func NewCachedEmbedder(next Embedder, store Store, model string, dimensions int, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedEmbedder{
		next:       next,
		store:      store,
		model:      model,
		dimensions: dimensions,
		ttl:        ttl,
	}
}

// GenerateEmbedding returns the cached vector for text or computes and stores it.
func (c *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return c.next.GenerateEmbedding(ctx, text)
	}

	key := c.key(text)
	if cached, ok, err := c.get(ctx, key); err != nil {
		log.Printf("embedding cache: get %s failed: %v", key, err)
	} else if ok {
		return cached, nil
	}

	embedding, err := c.next.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, key, embedding); err != nil {
		log.Printf("embedding cache: set %s failed: %v", key, err)
	}
	return embedding, nil
}

func (c *CachedEmbedder) get(ctx context.Context, key string) ([]float32, bool, error) {
	raw, err := c.store.Get(ctx, key).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get embedding failed: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached embedding failed: %w", err)
	}
	return embedding, true, nil
}

func (c *CachedEmbedder) set(ctx context.Context, key string, embedding []float32) error {
	payload, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding failed: %w", err)
	}
	if err := c.store.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set embedding failed: %w", err)
	}
	return nil
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%d:%s", c.model, c.dimensions, hex.EncodeToString(sum[:]))
}
