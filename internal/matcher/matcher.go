// Package matcher decides identity by nearest-neighbor cosine distance
// over the cached gallery.
package matcher

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
)

// DefaultThreshold is the cosine-distance cutoff below which the
// nearest gallery entry counts as a match.
const DefaultThreshold = 0.6

// Result carries the nearest entry (nil when nothing fell under the
// threshold) and the minimum distance observed. The distance is
// reported even on no-match, for threshold tuning.
type Result struct {
	Entry    *domain.GalleryEntry
	Distance float64
}

// Matched reports whether an entry fell under the threshold.
func (r Result) Matched() bool {
	return r.Entry != nil
}

// Matcher performs a linear scan over the gallery. O(N) per face, which
// is the intended ceiling at classroom-roster scale; gallery iteration
// order is the cache's rebuild order, so ties resolve to the first
// minimum deterministically.
type Matcher struct {
	threshold float64
}

func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{threshold: threshold}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Match scans the gallery for the entry nearest to the query embedding.
// An empty gallery yields {nil, +Inf}.
func (m *Matcher) Match(query []float64, gallery []domain.GalleryEntry) Result {
	best := -1
	minDistance := math.Inf(1)

	for i := range gallery {
		d := CosineDistance(query, gallery[i].Embedding)
		if d < minDistance {
			minDistance = d
			best = i
		}
	}

	if best >= 0 && minDistance < m.threshold {
		return Result{Entry: &gallery[best], Distance: minDistance}
	}
	return Result{Distance: minDistance}
}

// CosineDistance computes 1 - cosine similarity. Lower means more
// similar. Mismatched or zero vectors map to the maximum distance 2.
func CosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := floats.Dot(a, b) / (normA * normB)
	// Clamp against floating point drift
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}

	return 1 - similarity
}

// Confidence derives the user-facing percentage from a distance.
func Confidence(distance float64) float64 {
	if math.IsInf(distance, 1) {
		return 0
	}
	c := (1 - distance) * 100
	if c < 0 {
		c = 0
	}
	return math.Round(c*10) / 10
}
