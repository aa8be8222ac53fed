// Package theme defines the engine's output units and builds candidate
// themes from corpus scores.
package theme

import (
	"strings"
	"time"
)

// Kind records which signal produced a theme
type Kind string

const (
	KindTerm   Kind = "term"
	KindPhrase Kind = "phrase"
)

// Theme is a candidate or accepted topical theme.
// Keywords is never empty and Confidence stays within [0,1].
type Theme struct {
	ID              string    `json:"id"`
	Primary         string    `json:"primary"`
	Secondary       string    `json:"secondary,omitempty"`
	UniqueModifier  string    `json:"unique_modifier,omitempty"`
	Keywords        []string  `json:"keywords"`
	Confidence      float64   `json:"confidence"`
	SourceRecordIDs []string  `json:"source_record_ids"`
	Embedding       []float32 `json:"embedding,omitempty"`
	ExtractedAt     time.Time `json:"extracted_at"`
	Kind            Kind      `json:"kind,omitempty"`
}

// Text is the string sent to the embedding provider
func (t *Theme) Text() string {
	parts := make([]string, 0, 3+len(t.Keywords))
	for _, p := range []string{t.Primary, t.Secondary, t.UniqueModifier} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, t.Keywords...)
	return strings.Join(parts, " ")
}

// Vector returns the theme embedding, nil when none was computed
func (t *Theme) Vector() []float32 {
	return t.Embedding
}

// Terms returns the theme keywords
func (t *Theme) Terms() []string {
	return t.Keywords
}

// Clone returns a deep copy, so registered themes cannot be mutated through caller slices
func (t *Theme) Clone() Theme {
	out := *t
	out.Keywords = append([]string(nil), t.Keywords...)
	out.SourceRecordIDs = append([]string(nil), t.SourceRecordIDs...)
	if t.Embedding != nil {
		out.Embedding = append([]float32(nil), t.Embedding...)
	}
	return out
}

// Cluster groups near-duplicate candidate themes. Informational only.
type Cluster struct {
	ID                string   `json:"id"`
	Centroid          Theme    `json:"centroid"`
	Themes            []Theme  `json:"themes"`
	Cohesion          float64  `json:"cohesion"`
	CommonKeywords    []string `json:"common_keywords"`
	SourceRecordCount int      `json:"source_record_count"`
}

// UniquenessScore explains a uniqueness decision
type UniquenessScore struct {
	Score                  float64  `json:"score"`
	ClosestMatch           *Theme   `json:"closest_match,omitempty"`
	ClosestMatchSimilarity float64  `json:"closest_match_similarity"`
	IsUnique               bool     `json:"is_unique"`
	Reasons                []string `json:"reasons"`
}

// Rejected is a candidate that failed the uniqueness check
type Rejected struct {
	Theme      Theme           `json:"theme"`
	Uniqueness UniquenessScore `json:"uniqueness"`
	Reason     string          `json:"reason"`
}
