// Package similarity compares themes either by embedding cosine or by
// keyword-set overlap, chosen per pair from the data each side carries.
package similarity

import (
	"math"
	"strings"
)

// Item is anything that can be compared: a theme, an insight, a query.
type Item interface {
	Vector() []float32
	Terms() []string
}

// Strategy scores two items in [0,1]. Implementations must be symmetric.
type Strategy interface {
	Name() string
	Similarity(a, b Item) float64
}

// Cosine compares embeddings. Negative cosine is treated as no similarity.
type Cosine struct{}

// Name implements Strategy.
func (Cosine) Name() string { return "cosine" }

// Similarity implements Strategy.
func (Cosine) Similarity(a, b Item) float64 {
	return CosineVectors(a.Vector(), b.Vector())
}

// Jaccard compares lower-cased keyword sets: |A ∩ B| / |A ∪ B|.
type Jaccard struct{}

// Name implements Strategy.
func (Jaccard) Name() string { return "jaccard" }

// Similarity implements Strategy.
func (Jaccard) Similarity(a, b Item) float64 {
	return JaccardTerms(a.Terms(), b.Terms())
}

// Auto uses Cosine when both items carry embeddings of the same
// dimensionality and falls back to Jaccard otherwise.
type Auto struct {
	Cosine  Cosine
	Jaccard Jaccard
}

// Name implements Strategy.
func (Auto) Name() string { return "auto" }

// Similarity implements Strategy.
func (s Auto) Similarity(a, b Item) float64 {
	return s.Pick(a, b).Similarity(a, b)
}

// Pick returns the strategy Auto applies to the pair
func (s Auto) Pick(a, b Item) Strategy {
	if Comparable(a.Vector(), b.Vector()) {
		return s.Cosine
	}
	return s.Jaccard
}

// Comparable reports whether two vectors can be compared by cosine
func Comparable(a, b []float32) bool {
	return len(a) > 0 && len(a) == len(b)
}

// CosineVectors returns cosine similarity clamped to [0,1].
// Mismatched, empty or zero vectors score 0.
func CosineVectors(a, b []float32) float64 {
	if !Comparable(a, b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) || sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// JaccardTerms returns the Jaccard index of two term lists after lower-casing.
// Two empty lists score 0.
func JaccardTerms(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// Text adapts a bare query string and optional vector into an Item
type Text struct {
	Vec   []float32
	Words []string
}

// Vector implements Item.
func (t Text) Vector() []float32 { return t.Vec }

// Terms implements Item.
func (t Text) Terms() []string { return t.Words }
