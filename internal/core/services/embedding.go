package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/logger"
	"github.com/custodia-labs/coursemind/internal/retry"
	"github.com/custodia-labs/coursemind/internal/similarity"
)

// EmbedInput is one text to embed with the metadata that prefixes it.
type EmbedInput struct {
	Text string
	Meta domain.EmbedMeta
}

// EmbeddingClient embeds enriched text through a provider, with a
// read-through cache, batching and retries.
//
// A batch is all-or-nothing: if any batch fails after retries, Embed
// returns *domain.EmbeddingProviderError and no vectors.
type EmbeddingClient struct {
	provider  driven.EmbeddingProvider
	cache     driven.Cache
	policy    retry.Policy
	batchSize int
	ttl       time.Duration
}

// EmbeddingOption configures an EmbeddingClient.
type EmbeddingOption func(*EmbeddingClient)

// WithEmbeddingCache enables the read-through cache. Nil disables it.
func WithEmbeddingCache(cache driven.Cache, ttl time.Duration) EmbeddingOption {
	return func(c *EmbeddingClient) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithBatchSize caps texts per provider call below the provider's own limit.
func WithBatchSize(n int) EmbeddingOption {
	return func(c *EmbeddingClient) { c.batchSize = n }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) EmbeddingOption {
	return func(c *EmbeddingClient) { c.policy = p }
}

// NewEmbeddingClient wraps provider.
func NewEmbeddingClient(provider driven.EmbeddingProvider, opts ...EmbeddingOption) *EmbeddingClient {
	c := &EmbeddingClient{
		provider: provider,
		policy:   retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ModelName returns the provider's model.
func (c *EmbeddingClient) ModelName() string {
	return c.provider.ModelName()
}

// Dimensions returns the provider's vector size.
func (c *EmbeddingClient) Dimensions() int {
	return c.provider.Dimensions()
}

// EmbedQuery embeds one enriched query.
func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string, meta domain.EmbedMeta) ([]float32, error) {
	vectors, err := c.Embed(ctx, []EmbedInput{{Text: text, Meta: meta}})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Embed returns one vector per input, in input order.
func (c *EmbeddingClient) Embed(ctx context.Context, inputs []EmbedInput) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}

	model := c.provider.ModelName()
	texts := make([]string, len(inputs))
	keys := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = domain.EnrichText(in.Text, in.Meta)
		keys[i] = EmbeddingCacheKey(model, texts[i])
	}

	vectors := make([][]float32, len(inputs))
	var misses []int
	for i := range inputs {
		if v := c.cached(ctx, keys[i]); v != nil {
			vectors[i] = v
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		logger.Debug("embedding: %d cache hits", len(inputs))
		return vectors, nil
	}

	size := c.effectiveBatchSize()
	fresh := make(map[int][]float32, len(misses))
	for start := 0; start < len(misses); start += size {
		end := min(start+size, len(misses))
		batch := misses[start:end]

		batchTexts := make([]string, len(batch))
		for j, idx := range batch {
			batchTexts[j] = texts[idx]
		}

		out, attempts, err := retry.Value(ctx, c.policy, "embed batch", func(ctx context.Context) ([][]float32, error) {
			got, err := c.provider.EmbedBatch(ctx, batchTexts)
			if err != nil {
				return nil, err
			}
			return got, c.validate(got, len(batchTexts))
		})
		if err != nil {
			return nil, &domain.EmbeddingProviderError{Attempts: attempts, Err: err}
		}
		for j, idx := range batch {
			fresh[idx] = out[j]
		}
	}

	for idx, v := range fresh {
		vectors[idx] = v
		c.store(ctx, keys[idx], v)
	}
	logger.Debug("embedding: %d cache hits, %d embedded", len(inputs)-len(misses), len(misses))
	return vectors, nil
}

// validate rejects results of the wrong cardinality or dimension.
func (c *EmbeddingClient) validate(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: provider returned %d embeddings for %d texts",
			domain.ErrTransientProvider, len(vectors), want)
	}
	dims := c.provider.Dimensions()
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding at %d", domain.ErrTransientProvider, i)
		}
		if dims > 0 && len(v) != dims {
			return fmt.Errorf("%w: provider returned %d-dimensional vector, expected %d",
				domain.ErrDimensionMismatch, len(v), dims)
		}
	}
	return nil
}

func (c *EmbeddingClient) effectiveBatchSize() int {
	size := c.provider.MaxBatchSize()
	if c.batchSize > 0 && (size <= 0 || c.batchSize < size) {
		size = c.batchSize
	}
	if size <= 0 {
		size = 1
	}
	return size
}

// cached returns nil on a miss. Cache errors count as misses.
func (c *EmbeddingClient) cached(ctx context.Context, key string) []float32 {
	if c.cache == nil {
		return nil
	}
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("embedding cache read failed: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	v := similarity.Decode(data)
	if dims := c.provider.Dimensions(); len(v) == 0 || (dims > 0 && len(v) != dims) {
		return nil
	}
	return v
}

func (c *EmbeddingClient) store(ctx context.Context, key string, v []float32) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, similarity.Encode(v), c.ttl); err != nil {
		logger.Warn("embedding cache write failed: %v", err)
	}
}

// EmbeddingCacheKey is embedding:<model>:<sha256 of enriched text>.
func EmbeddingCacheKey(model, enriched string) string {
	sum := sha256.Sum256([]byte(enriched))
	return "embedding:" + model + ":" + hex.EncodeToString(sum[:])
}
