package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// WithLRUCache wraps a Backend with an in-memory LRU cache for embeddings.
// Generation and availability calls pass through untouched. A size or ttl
// of zero disables caching and returns the backend unchanged.
func WithLRUCache(next Backend, size int, ttl time.Duration, logger *slog.Logger) Backend {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedBackend{
		next:   next,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: logger,
	}
}

type cachedBackend struct {
	next   Backend
	cache  *expirable.LRU[string, []float32]
	logger *slog.Logger
}

func (c *cachedBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if cached, ok := c.cache.Get(key); ok {
		c.logger.Debug("embedding cache hit")
		return cloneVector(cached), nil
	}
	vector, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, cloneVector(vector))
	return vector, nil
}

func (c *cachedBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	allHit := true
	for i, text := range texts {
		if cached, ok := c.cache.Get(c.cacheKey(text)); ok {
			vectors[i] = cloneVector(cached)
		} else {
			allHit = false
			break
		}
	}
	if allHit && len(texts) > 0 {
		c.logger.Debug("embedding cache hit (batch)", "count", len(texts))
		return vectors, nil
	}

	// Any miss refetches the whole batch; partial backend batches would
	// break the all-or-nothing contract.
	fetched, err := c.next.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, text := range texts {
		c.cache.Add(c.cacheKey(text), cloneVector(fetched[i]))
	}
	return fetched, nil
}

func (c *cachedBackend) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return c.next.Generate(ctx, prompt, systemPrompt)
}

func (c *cachedBackend) IsAvailable(ctx context.Context) bool {
	return c.next.IsAvailable(ctx)
}

func (c *cachedBackend) ModelName() string {
	return c.next.ModelName()
}

func (c *cachedBackend) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(c.next.ModelName() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func cloneVector(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
