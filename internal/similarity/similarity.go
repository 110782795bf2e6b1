// Package similarity holds the vector math shared by the in-process
// vector indexes: cosine similarity, deterministic ranking and the
// little-endian float32 blob encoding used for persisted embeddings.
package similarity

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/custodia-labs/coursemind/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero vector scores 0 against anything.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp rounding noise.
	return math.Max(-1, math.Min(1, score))
}

// Rank scores candidates against query and returns at most topK hits
// with score >= minScore, best first. Candidates must be in insertion
// order: equal scores keep that order. topK <= 0 means no limit.
func Rank(query []float32, candidates []domain.Segment, topK int, minScore float64) []domain.SearchHit {
	hits := make([]domain.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		score := Cosine(query, c.Embedding)
		if score < minScore {
			continue
		}
		hits = append(hits, domain.SearchHit{Segment: c, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// CheckDimension returns domain.ErrDimensionMismatch when a stored
// dimension exists and differs from got.
func CheckDimension(stored, got int) error {
	if stored != 0 && stored != got {
		return fmt.Errorf("%w: index holds %d-dimensional vectors, got %d",
			domain.ErrDimensionMismatch, stored, got)
	}
	return nil
}

// Encode converts a vector to a little-endian byte slice.
func Encode(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode converts a byte slice produced by Encode back to a vector.
func Decode(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}
