// Package segmenter splits parsed document text into overlapping
// fixed-size windows, tagging each with the page it starts on.
package segmenter

import (
	"fmt"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per segment.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of characters shared by
// consecutive segments.
const DefaultChunkOverlap = 200

// Draft is a segment before it has an ID or an embedding.
type Draft struct {
	Text          string
	SequenceIndex int
	TotalSegments int

	// Offset is the rune offset of the first character in the source text.
	Offset int

	// PageNumber is the page containing Offset, 0 if unknown.
	PageNumber int
}

// Segmenter produces overlapping windows of text.
// Sizes are counted in characters (runes), so multi-byte text is
// never split inside a character.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the characters shared by consecutive windows.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a segmenter. The overlap must be smaller than the chunk size.
func New(opts ...Option) (*Segmenter, error) {
	s := &Segmenter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.overlap >= s.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d",
			domain.ErrInvalidInput, s.overlap, s.chunkSize)
	}

	return s, nil
}

// ChunkSize returns the window size.
func (s *Segmenter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the shared characters between windows.
func (s *Segmenter) Overlap() int {
	return s.overlap
}

// Segment splits text into drafts. Each window starts chunkSize-overlap
// characters after the previous one and the last window ends at the end
// of the text. pages may be nil.
func (s *Segmenter) Segment(text string, pages []domain.PageOffset) []Draft {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	n := len(runes)
	step := s.chunkSize - s.overlap

	drafts := make([]Draft, 0, n/step+1)
	for start := 0; ; start += step {
		end := start + s.chunkSize
		if end > n {
			end = n
		}

		drafts = append(drafts, Draft{
			Text:          string(runes[start:end]),
			SequenceIndex: len(drafts),
			Offset:        start,
			PageNumber:    domain.PageAt(pages, start),
		})

		if end == n {
			break
		}
	}

	for i := range drafts {
		drafts[i].TotalSegments = len(drafts)
	}

	return drafts
}
