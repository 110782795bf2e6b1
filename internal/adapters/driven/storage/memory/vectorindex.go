package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/coursemind/internal/core/domain"
	"github.com/custodia-labs/coursemind/internal/core/ports/driven"
	"github.com/custodia-labs/coursemind/internal/similarity"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex.
// Segments are kept in insertion order so equal scores rank stably.
type VectorIndex struct {
	mu        sync.RWMutex
	segments  []domain.Segment
	dimension int
}

// NewVectorIndex creates an empty in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Upsert replaces the segments of every document in the batch.
func (v *VectorIndex) Upsert(_ context.Context, segments []domain.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	dim := len(segments[0].Embedding)
	docs := make(map[string]bool)
	for _, seg := range segments {
		if len(seg.Embedding) == 0 {
			return fmt.Errorf("%w: segment %s has no embedding", domain.ErrInvalidInput, seg.ID)
		}
		if err := similarity.CheckDimension(dim, len(seg.Embedding)); err != nil {
			return err
		}
		docs[seg.DocumentID] = true
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := similarity.CheckDimension(v.dimension, dim); err != nil {
		return err
	}

	kept := v.segments[:0:0]
	for _, seg := range v.segments {
		if !docs[seg.DocumentID] {
			kept = append(kept, seg)
		}
	}
	ids := make(map[string]bool, len(kept))
	for _, seg := range kept {
		ids[seg.ID] = true
	}

	now := time.Now()
	for _, seg := range segments {
		if ids[seg.ID] {
			return fmt.Errorf("segment %s: %w", seg.ID, domain.ErrAlreadyExists)
		}
		ids[seg.ID] = true
		if seg.CreatedAt.IsZero() {
			seg.CreatedAt = now
		}
		seg.Embedding = append([]float32(nil), seg.Embedding...)
		kept = append(kept, seg)
	}

	v.segments = kept
	v.dimension = dim
	return nil
}

// Search scores the segments inside the scope and ranks them.
func (v *VectorIndex) Search(_ context.Context, q domain.SearchQuery) ([]domain.SearchHit, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.segments) == 0 {
		return []domain.SearchHit{}, nil
	}
	if err := similarity.CheckDimension(v.dimension, len(q.Vector)); err != nil {
		return nil, err
	}

	candidates := make([]domain.Segment, 0, len(v.segments))
	for i := range v.segments {
		if q.Scope.Matches(&v.segments[i]) {
			candidates = append(candidates, v.segments[i])
		}
	}
	return similarity.Rank(q.Vector, candidates, q.TopK, q.MinScore), nil
}

// DeleteDocument removes every segment of a document.
func (v *VectorIndex) DeleteDocument(_ context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	kept := v.segments[:0:0]
	for _, seg := range v.segments {
		if seg.DocumentID != documentID {
			kept = append(kept, seg)
		}
	}
	v.segments = kept
	if len(kept) == 0 {
		v.dimension = 0
	}
	return nil
}

// CountSegments returns how many segments fall inside scope.
func (v *VectorIndex) CountSegments(_ context.Context, scope domain.Scope) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	n := 0
	for i := range v.segments {
		if scope.Matches(&v.segments[i]) {
			n++
		}
	}
	return n, nil
}

// Dimension returns the stored vector dimension, or 0 when empty.
func (v *VectorIndex) Dimension(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimension, nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
