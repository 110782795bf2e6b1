package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/core/ports/driving"
	"github.com/custodia-labs/coursemind/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// RetrievalService embeds a question, searches the vector index and
// attributes the hits. Results are cached per collection.
type RetrievalService struct {
	embedder *EmbeddingClient
	vectors  driven.VectorIndex
	cache    driven.Cache
	ttl      time.Duration
	defaults domain.RetrievalSettings
}

// RetrievalOption configures a RetrievalService.
type RetrievalOption func(*RetrievalService)

// WithRetrievalCache caches result lists for ttl. Nil disables caching.
func WithRetrievalCache(cache driven.Cache, ttl time.Duration) RetrievalOption {
	return func(s *RetrievalService) {
		s.cache = cache
		s.ttl = ttl
	}
}

// WithRetrievalDefaults sets TopK and MinScore used when a query omits them.
func WithRetrievalDefaults(d domain.RetrievalSettings) RetrievalOption {
	return func(s *RetrievalService) { s.defaults = d }
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(embedder *EmbeddingClient, vectors driven.VectorIndex, opts ...RetrievalOption) *RetrievalService {
	s := &RetrievalService{
		embedder: embedder,
		vectors:  vectors,
		defaults: domain.DefaultSettings().Retrieval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve returns the segments most similar to q, best first.
// No hits above the minimum score is an empty slice and nil error.
func (s *RetrievalService) Retrieve(ctx context.Context, q domain.RetrievalQuery) ([]domain.RetrievedSegment, error) {
	if q.Text == "" {
		return nil, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}
	if q.TopK < 0 {
		return nil, fmt.Errorf("%w: top_k must not be negative", domain.ErrInvalidInput)
	}

	topK := q.TopK
	if topK == 0 {
		topK = s.defaults.TopK
	}
	minScore := s.defaults.MinScore
	if q.MinScore != nil {
		minScore = *q.MinScore
	}
	meta := domain.EmbedMeta{Subject: q.Subject, Topic: q.Topic}

	key := RetrievalCacheKey(q.Scope, topK, minScore, domain.EnrichText(q.Text, meta))
	if cached, ok := s.cached(ctx, key); ok {
		logger.Debug("retrieval cache hit for %q", q.Text)
		return cached, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, q.Text, meta)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, domain.SearchQuery{
		Vector:   vector,
		Scope:    q.Scope,
		TopK:     topK,
		MinScore: minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
	}

	results := make([]domain.RetrievedSegment, len(hits))
	for i, h := range hits {
		results[i] = domain.RetrievedSegment{
			SegmentID:     h.Segment.ID,
			DocumentID:    h.Segment.DocumentID,
			CollectionID:  h.Segment.CollectionID,
			SourceName:    h.Segment.SourceName,
			PageNumber:    h.Segment.PageNumber,
			SequenceIndex: h.Segment.SequenceIndex,
			Text:          h.Segment.Text,
			Score:         h.Score,
		}
	}

	s.store(ctx, key, results)
	logger.Debug("retrieved %d segment(s) for %q", len(results), q.Text)
	return results, nil
}

// InvalidateCollection drops cached results scoped to the collection and
// unscoped results.
func (s *RetrievalService) InvalidateCollection(ctx context.Context, collectionID string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.DeletePrefix(ctx, RetrievalCachePrefix(collectionID)); err != nil {
		return fmt.Errorf("invalidate collection %s: %w", collectionID, err)
	}
	if err := s.cache.DeletePrefix(ctx, RetrievalCachePrefix("")); err != nil {
		return fmt.Errorf("invalidate unscoped results: %w", err)
	}
	return nil
}

func (s *RetrievalService) cached(ctx context.Context, key string) ([]domain.RetrievedSegment, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("retrieval cache read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	results := []domain.RetrievedSegment{}
	if err := json.Unmarshal(data, &results); err != nil {
		logger.Warn("discarding corrupt retrieval cache entry: %v", err)
		return nil, false
	}
	return results, true
}

func (s *RetrievalService) store(ctx context.Context, key string, results []domain.RetrievedSegment) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		logger.Warn("encode retrieval results: %v", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		logger.Warn("retrieval cache write failed: %v", err)
	}
}

// RetrievalCachePrefix is retrieval:<collection>: or retrieval:*: for
// queries without a collection.
func RetrievalCachePrefix(collectionID string) string {
	if collectionID == "" {
		collectionID = "*"
	}
	return "retrieval:" + collectionID + ":"
}

// RetrievalCacheKey hashes everything that affects a result list.
func RetrievalCacheKey(scope domain.Scope, topK int, minScore float64, enriched string) string {
	h := sha256.New()
	for _, part := range []string{
		scope.CollectionID,
		scope.DocumentID,
		strconv.Itoa(topK),
		strconv.FormatFloat(minScore, 'g', -1, 64),
		enriched,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return RetrievalCachePrefix(scope.CollectionID) + hex.EncodeToString(h.Sum(nil))
}
