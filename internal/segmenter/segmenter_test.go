package segmenter

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

func mustNew(t *testing.T, opts ...Option) *Segmenter {
	t.Helper()
	s, err := New(opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// reconstruct joins the part of each draft not already covered by the previous one.
func reconstruct(drafts []Draft) string {
	var b strings.Builder
	covered := 0
	for _, d := range drafts {
		runes := []rune(d.Text)
		end := d.Offset + len(runes)
		if end > covered {
			b.WriteString(string(runes[covered-d.Offset:]))
			covered = end
		}
	}
	return b.String()
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		s := mustNew(t)
		if s.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, s.ChunkSize())
		}
		if s.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, s.Overlap())
		}
	})

	t.Run("custom values", func(t *testing.T) {
		s := mustNew(t, WithChunkSize(500), WithOverlap(100))
		if s.ChunkSize() != 500 || s.Overlap() != 100 {
			t.Errorf("expected 500/100, got %d/%d", s.ChunkSize(), s.Overlap())
		}
	})

	t.Run("overlap not smaller than chunk size", func(t *testing.T) {
		_, err := New(WithChunkSize(100), WithOverlap(100))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		s := mustNew(t, WithChunkSize(0), WithOverlap(-1))
		if s.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", s.ChunkSize())
		}
		if s.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", s.Overlap())
		}
	})
}

func TestSegment_Empty(t *testing.T) {
	s := mustNew(t)
	if drafts := s.Segment("", nil); len(drafts) != 0 {
		t.Errorf("expected 0 drafts for empty text, got %d", len(drafts))
	}
}

func TestSegment_ShorterThanChunk(t *testing.T) {
	s := mustNew(t, WithChunkSize(100), WithOverlap(20))
	text := "This is a small piece of content."

	drafts := s.Segment(text, nil)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	if drafts[0].Text != text {
		t.Errorf("expected text to match input")
	}
	if drafts[0].SequenceIndex != 0 || drafts[0].TotalSegments != 1 {
		t.Errorf("expected 0/1, got %d/%d", drafts[0].SequenceIndex, drafts[0].TotalSegments)
	}
}

func TestSegment_OverlapWindows(t *testing.T) {
	s := mustNew(t, WithChunkSize(10), WithOverlap(3))
	text := "0123456789ABCDEFGHIJ"

	drafts := s.Segment(text, nil)

	// step 7: 0-10, 7-17, 14-20
	want := []string{"0123456789", "789ABCDEFG", "EFGHIJ"}
	if len(drafts) != len(want) {
		t.Fatalf("expected %d drafts, got %d", len(want), len(drafts))
	}
	for i, w := range want {
		if drafts[i].Text != w {
			t.Errorf("draft %d: expected %q, got %q", i, w, drafts[i].Text)
		}
	}
}

func TestSegment_NoPureSuffixWindow(t *testing.T) {
	s := mustNew(t, WithChunkSize(50), WithOverlap(0))

	drafts := s.Segment(strings.Repeat("a", 100), nil)
	if len(drafts) != 2 {
		t.Errorf("expected 2 drafts, got %d", len(drafts))
	}

	s = mustNew(t, WithChunkSize(10), WithOverlap(5))
	drafts = s.Segment(strings.Repeat("b", 10), nil)
	if len(drafts) != 1 {
		t.Errorf("expected 1 draft for text of exactly chunk size, got %d", len(drafts))
	}
}

func TestSegment_Reconstructs(t *testing.T) {
	texts := []string{
		strings.Repeat("lorem ipsum dolor sit amet ", 80),
		strings.Repeat("ü∂ƒ©˙∆˚¬…æ", 37),
		strings.Repeat("x", 1000),
		strings.Repeat("y", 1001),
	}
	configs := [][2]int{{1000, 200}, {100, 20}, {37, 36}, {64, 0}}

	for _, text := range texts {
		for _, cfg := range configs {
			s := mustNew(t, WithChunkSize(cfg[0]), WithOverlap(cfg[1]))
			if utf8.RuneCountInString(text) < s.ChunkSize() {
				continue
			}
			drafts := s.Segment(text, nil)
			if got := reconstruct(drafts); got != text {
				t.Errorf("size %d overlap %d: reconstruction differs", cfg[0], cfg[1])
			}
		}
	}
}

func TestSegment_SequenceAndBounds(t *testing.T) {
	s := mustNew(t, WithChunkSize(100), WithOverlap(20))
	drafts := s.Segment(strings.Repeat("é", 950), nil)

	for i, d := range drafts {
		if d.SequenceIndex != i {
			t.Errorf("expected sequence %d, got %d", i, d.SequenceIndex)
		}
		if d.TotalSegments != len(drafts) {
			t.Errorf("expected total %d, got %d", len(drafts), d.TotalSegments)
		}
		if d.SequenceIndex >= d.TotalSegments {
			t.Errorf("sequence %d not below total %d", d.SequenceIndex, d.TotalSegments)
		}
		if n := utf8.RuneCountInString(d.Text); n > 100 {
			t.Errorf("draft %d has %d characters", i, n)
		}
		if !utf8.ValidString(d.Text) {
			t.Errorf("draft %d is not valid UTF-8", i)
		}
	}
}

func TestSegment_PageTagging(t *testing.T) {
	s := mustNew(t, WithChunkSize(10), WithOverlap(0))
	text := strings.Repeat("p", 35)
	pages := []domain.PageOffset{{Offset: 0, Page: 1}, {Offset: 15, Page: 2}, {Offset: 30, Page: 3}}

	drafts := s.Segment(text, pages)
	want := []int{1, 1, 2, 3}
	if len(drafts) != len(want) {
		t.Fatalf("expected %d drafts, got %d", len(want), len(drafts))
	}
	for i, w := range want {
		if drafts[i].PageNumber != w {
			t.Errorf("draft %d at offset %d: expected page %d, got %d", i, drafts[i].Offset, w, drafts[i].PageNumber)
		}
	}

	for _, d := range s.Segment(text, nil) {
		if d.PageNumber != 0 {
			t.Errorf("expected page 0 without a page map, got %d", d.PageNumber)
		}
	}
}
