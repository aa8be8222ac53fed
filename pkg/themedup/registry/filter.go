package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/themedup/pkg/themedup/similarity"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Filter defaults
const (
	DefaultThreshold = 0.70
	DefaultMaxThemes = 15
)

// Filter rejects candidates too similar to registered themes
type Filter struct {
	// Threshold is exclusive: a candidate is unique only when its closest
	// registered theme scores strictly below it.
	Threshold float64
	// MaxThemes caps accepted themes per run; 0 or less means no cap
	MaxThemes int
	Strategy  similarity.Strategy
}

// NewFilter creates a filter with default threshold, cap and Auto similarity
func NewFilter() *Filter {
	return &Filter{
		Threshold: DefaultThreshold,
		MaxThemes: DefaultMaxThemes,
		Strategy:  similarity.Auto{},
	}
}

// Outcome is the result of filtering one run's candidates.
// Uniqueness is aligned with Accepted.
type Outcome struct {
	Accepted   []theme.Theme
	Uniqueness []theme.UniquenessScore
	Rejected   []theme.Rejected
	// Truncated counts unique candidates dropped by MaxThemes
	Truncated int
}

// Score compares t against every registered theme
func (f *Filter) Score(t *theme.Theme, registered []theme.Theme) theme.UniquenessScore {
	if len(registered) == 0 {
		return theme.UniquenessScore{
			Score:    1,
			IsUnique: true,
			Reasons:  []string{"registry empty"},
		}
	}

	strategy := f.strategy()
	best := -1
	bestSim := -1.0
	for i := range registered {
		sim := strategy.Similarity(t, &registered[i])
		if sim > bestSim {
			best, bestSim = i, sim
		}
	}

	closest := registered[best].Clone()
	method := strategy.Name()
	if auto, ok := strategy.(similarity.Auto); ok {
		method = auto.Pick(t, &closest).Name()
	}

	score := theme.UniquenessScore{
		Score:                  1 - bestSim,
		ClosestMatch:           &closest,
		ClosestMatchSimilarity: bestSim,
		IsUnique:               bestSim < f.Threshold,
		Reasons: []string{
			fmt.Sprintf("closest registered theme %q at %.3f by %s", closest.Primary, bestSim, method),
		},
	}
	if score.IsUnique {
		score.Reasons = append(score.Reasons, fmt.Sprintf("below threshold %.2f", f.Threshold))
	} else {
		score.Reasons = append(score.Reasons, fmt.Sprintf("at or above threshold %.2f", f.Threshold))
	}
	return score
}

// Apply scores every candidate against reg. Unique candidates are sorted by
// confidence (ties by primary label) and truncated to MaxThemes. Apply does
// not register anything; a nil registry is empty.
func (f *Filter) Apply(candidates []theme.Theme, reg *Registry) Outcome {
	var registered []theme.Theme
	if reg != nil {
		registered = reg.Themes()
	}
	return f.apply(candidates, registered)
}

// ApplyAndRegister scores candidates and registers the accepted ones while
// holding reg's write lock, so concurrent callers never both accept the same
// theme. When registration fails the outcome is still returned with the error.
func (f *Filter) ApplyAndRegister(ctx context.Context, candidates []theme.Theme, reg *Registry) (Outcome, error) {
	if reg == nil {
		return f.Apply(candidates, nil), nil
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	out := f.apply(candidates, reg.themesLocked())
	if len(out.Accepted) == 0 {
		return out, nil
	}
	prepared, err := reg.prepare(out.Accepted)
	if err != nil {
		return out, err
	}
	out.Accepted = prepared
	return out, reg.registerLocked(ctx, prepared)
}

func (f *Filter) apply(candidates []theme.Theme, registered []theme.Theme) Outcome {

	type scored struct {
		t theme.Theme
		u theme.UniquenessScore
	}
	var unique []scored
	var out Outcome

	for i := range candidates {
		u := f.Score(&candidates[i], registered)
		if !u.IsUnique {
			out.Rejected = append(out.Rejected, theme.Rejected{
				Theme:      candidates[i],
				Uniqueness: u,
				Reason: fmt.Sprintf("duplicate of %q (similarity %.3f >= %.2f)",
					u.ClosestMatch.Primary, u.ClosestMatchSimilarity, f.Threshold),
			})
			continue
		}
		unique = append(unique, scored{t: candidates[i], u: u})
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if unique[i].t.Confidence != unique[j].t.Confidence {
			return unique[i].t.Confidence > unique[j].t.Confidence
		}
		return unique[i].t.Primary < unique[j].t.Primary
	})
	if f.MaxThemes > 0 && len(unique) > f.MaxThemes {
		out.Truncated = len(unique) - f.MaxThemes
		unique = unique[:f.MaxThemes]
	}

	for _, s := range unique {
		out.Accepted = append(out.Accepted, s.t)
		out.Uniqueness = append(out.Uniqueness, s.u)
	}
	return out
}

func (f *Filter) strategy() similarity.Strategy {
	if f.Strategy == nil {
		return similarity.Auto{}
	}
	return f.Strategy
}
