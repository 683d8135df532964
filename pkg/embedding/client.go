package embedding

import (
	"context"
	"sync"
	"time"

	"compliance-assistant-be/internal/pkg/logger"

	gocache "github.com/patrickmn/go-cache"
)

// Client wraps a provider with the policy the retrieval pipeline relies on:
// a failed embedding resolves to a zero vector of the configured dimension
// instead of propagating the error. Embedding is usually one leg of a
// multi-query fan-out; failing the whole pipeline for one bad leg is worse
// than a harmless non-matching vector. The degradation is logged and counted
// so callers can surface it (it silently lowers recall, not correctness).
type Client struct {
	dimension int
	factory   func() EmbeddingProvider
	log       logger.ILogger

	// Provider handle is initialized lazily on first use and cached for the
	// process lifetime.
	once     sync.Once
	provider EmbeddingProvider

	cache *gocache.Cache
}

func NewClient(dimension int, factory func() EmbeddingProvider, log logger.ILogger) *Client {
	return &Client{
		dimension: dimension,
		factory:   factory,
		log:       log,
		cache:     gocache.New(10*time.Minute, 30*time.Minute),
	}
}

func (c *Client) getProvider() EmbeddingProvider {
	c.once.Do(func() {
		c.provider = c.factory()
	})
	return c.provider
}

// Dimension returns the expected vector length; it must match the vector
// column dimension in the document store.
func (c *Client) Dimension() int {
	return c.dimension
}

// ZeroVector is the deterministic fallback for a failed embedding. It matches
// nothing above any positive similarity threshold.
func (c *Client) ZeroVector() []float32 {
	return make([]float32, c.dimension)
}

// Embed returns the embedding for text, or the zero vector with degraded=true
// when the provider fails or returns a wrong-dimension vector.
func (c *Client) Embed(ctx context.Context, text string, taskType string) (vector []float32, degraded bool) {
	cacheKey := taskType + "\x00" + text
	if cached, found := c.cache.Get(cacheKey); found {
		return cached.([]float32), false
	}

	res, err := c.getProvider().Generate(ctx, text, taskType)
	if err != nil {
		c.log.Warn("Embedding", "Embedding failed, falling back to zero vector", map[string]interface{}{
			"text_length": len(text),
			"task_type":   taskType,
			"error":       err.Error(),
		})
		return c.ZeroVector(), true
	}

	values := res.Embedding.Values
	if len(values) != c.dimension {
		c.log.Warn("Embedding", "Embedding dimension mismatch, falling back to zero vector", map[string]interface{}{
			"expected": c.dimension,
			"got":      len(values),
		})
		return c.ZeroVector(), true
	}

	c.cache.Set(cacheKey, values, gocache.DefaultExpiration)
	return values, false
}

// EmbedBatch embeds each text independently; a failed leg contributes a zero
// vector and increments the degraded count rather than failing the batch.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, taskType string) (vectors [][]float32, degradedCount int) {
	vectors = make([][]float32, len(texts))
	for i, text := range texts {
		vector, degraded := c.Embed(ctx, text, taskType)
		vectors[i] = vector
		if degraded {
			degradedCount++
		}
	}
	return vectors, degradedCount
}
