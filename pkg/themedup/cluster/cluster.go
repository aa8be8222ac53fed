// Package cluster groups near-duplicate candidate themes for reporting.
// Clustering never decides admission; the registry filter does.
package cluster

import (
	"sort"

	"github.com/cognicore/themedup/pkg/themedup/similarity"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// DefaultThreshold is the similarity a theme must exceed to join a seed
const DefaultThreshold = 0.75

// Clusterer performs greedy single-pass clustering
type Clusterer struct {
	Threshold float64
	Strategy  similarity.Strategy

	ids *theme.IDSource
}

// New creates a clusterer with the default threshold and Auto similarity
func New(ids *theme.IDSource) *Clusterer {
	if ids == nil {
		ids = theme.NewIDSource()
	}
	return &Clusterer{
		Threshold: DefaultThreshold,
		Strategy:  similarity.Auto{},
		ids:       ids,
	}
}

// Cluster seeds a group from each unassigned theme in input order and pulls in
// every later unassigned theme whose similarity to the seed exceeds Threshold.
// Singleton groups are not reported.
func (c *Clusterer) Cluster(themes []theme.Theme) []theme.Cluster {
	if len(themes) < 2 {
		return nil
	}
	strategy := c.strategy()

	assigned := make([]bool, len(themes))
	var out []theme.Cluster

	for i := range themes {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		members := []int{i}

		for j := i + 1; j < len(themes); j++ {
			if assigned[j] {
				continue
			}
			if strategy.Similarity(&themes[i], &themes[j]) > c.Threshold {
				assigned[j] = true
				members = append(members, j)
			}
		}

		if len(members) < 2 {
			continue
		}
		out = append(out, c.build(themes, members, strategy))
	}
	return out
}

func (c *Clusterer) build(themes []theme.Theme, members []int, strategy similarity.Strategy) theme.Cluster {
	group := make([]theme.Theme, len(members))
	for k, idx := range members {
		group[k] = themes[idx].Clone()
	}

	return theme.Cluster{
		ID:                c.ids.Next(),
		Centroid:          centroid(group),
		Themes:            group,
		Cohesion:          Cohesion(group, strategy),
		CommonKeywords:    CommonKeywords(group),
		SourceRecordCount: distinctSources(group),
	}
}

func (c *Clusterer) strategy() similarity.Strategy {
	if c.Strategy == nil {
		return similarity.Auto{}
	}
	return c.Strategy
}

// centroid is the highest-confidence member; the earliest wins ties
func centroid(group []theme.Theme) theme.Theme {
	best := 0
	for i := 1; i < len(group); i++ {
		if group[i].Confidence > group[best].Confidence {
			best = i
		}
	}
	return group[best].Clone()
}

// Cohesion is the mean pairwise similarity across all member pairs.
// Groups with fewer than two members have cohesion 1.
func Cohesion(group []theme.Theme, strategy similarity.Strategy) float64 {
	if len(group) < 2 {
		return 1
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			sum += strategy.Similarity(&group[i], &group[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// CommonKeywords returns keywords present in at least half of the members, sorted
func CommonKeywords(group []theme.Theme) []string {
	counts := make(map[string]int)
	for i := range group {
		seen := make(map[string]struct{}, len(group[i].Keywords))
		for _, kw := range group[i].Keywords {
			if _, ok := seen[kw]; ok {
				continue
			}
			seen[kw] = struct{}{}
			counts[kw]++
		}
	}

	out := make([]string, 0, len(counts))
	for kw, n := range counts {
		if 2*n >= len(group) {
			out = append(out, kw)
		}
	}
	sort.Strings(out)
	return out
}

func distinctSources(group []theme.Theme) int {
	seen := make(map[string]struct{})
	for i := range group {
		for _, id := range group[i].SourceRecordIDs {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}
