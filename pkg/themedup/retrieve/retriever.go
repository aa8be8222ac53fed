package retrieve

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/cognicore/themedup/internal/logging"
	"github.com/cognicore/themedup/pkg/themedup/embed"
	"github.com/cognicore/themedup/pkg/themedup/similarity"
)

// Retriever defaults
const (
	DefaultThreshold    = 0.60
	DefaultLimit        = 5
	DefaultANNThreshold = 256
)

// Retrieval modes
const (
	ModeSemantic = "semantic"
	ModeFallback = "fallback"
)

// Retriever answers topic queries over a Pool
type Retriever struct {
	// Threshold is the minimum cosine similarity a semantic match must exceed
	Threshold float64
	// Limit caps results when Retrieve is called with limit <= 0
	Limit int
	// ANNThreshold is the pool size above which candidates come from HNSW
	ANNThreshold int

	pool    *Pool
	adapter *embed.Adapter
	logger  *log.Logger
}

// New creates a retriever. A nil adapter means every query takes the fallback path.
func New(pool *Pool, adapter *embed.Adapter, logger *log.Logger) *Retriever {
	if pool == nil {
		pool = NewPool()
	}
	return &Retriever{
		Threshold:    DefaultThreshold,
		Limit:        DefaultLimit,
		ANNThreshold: DefaultANNThreshold,
		pool:         pool,
		adapter:      adapter,
		logger:       logging.OrDiscard(logger).WithPrefix("retrieve"),
	}
}

// Match is one ranked insight
type Match struct {
	Insight Insight `json:"insight"`
	// Score is cosine similarity in semantic mode and confidence in fallback mode
	Score float64 `json:"score"`
}

// Response is the outcome of one query. Reason explains a fallback.
type Response struct {
	Query   string  `json:"query"`
	Mode    string  `json:"mode"`
	Reason  string  `json:"reason,omitempty"`
	Matches []Match `json:"matches"`
}

// Ready reports whether semantic retrieval is possible
func (r *Retriever) Ready() bool {
	return r.adapter != nil && r.pool.Ready()
}

// Pool returns the underlying pool
func (r *Retriever) Pool() *Pool { return r.pool }

// Retrieve ranks the pool against query. It never fails: missing or broken
// embeddings degrade to the confidence ranking and the reason is logged.
func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) Response {
	if limit <= 0 {
		limit = r.Limit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	if r.adapter == nil {
		return r.fallback(query, limit, "embedding provider disabled")
	}
	if !r.pool.Ready() {
		return r.fallback(query, limit, "pool embeddings not ready")
	}

	vec, err := r.adapter.EmbedOne(ctx, query)
	if err != nil {
		return r.fallback(query, limit, fmt.Sprintf("query embedding failed: %v", err))
	}
	if dims := r.pool.Dims(); len(vec) != dims {
		return r.fallback(query, limit, fmt.Sprintf("query has %d dims, pool has %d", len(vec), dims))
	}

	var candidates []Insight
	if r.ANNThreshold > 0 && r.pool.Len() > r.ANNThreshold {
		candidates = r.annCandidates(vec, limit)
	}
	if candidates == nil {
		candidates = r.pool.Insights()
	}

	matches := make([]Match, 0, limit)
	for _, in := range candidates {
		sim := similarity.CosineVectors(vec, in.Embedding)
		if sim > r.Threshold {
			matches = append(matches, Match{Insight: in, Score: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Insight.ID < matches[j].Insight.ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	r.logger.Debug("semantic retrieval", "query", query, "candidates", len(candidates), "matches", len(matches))
	return Response{Query: query, Mode: ModeSemantic, Matches: matches}
}

// annCandidates over-fetches neighbors from HNSW for exact rescoring.
// A nil result tells the caller to scan the whole pool.
func (r *Retriever) annCandidates(vec []float32, limit int) (out []Insight) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("HNSW panic recovered, scanning pool", "error", rec)
			out = nil
		}
	}()

	g := r.pool.annGraph()
	if g.Len() == 0 {
		return nil
	}
	k := max(limit*4, 32)
	for _, n := range g.Search(vec, k) {
		if in, ok := r.pool.lookup(n.Key); ok {
			out = append(out, in)
		}
	}
	return out
}

// fallback ranks by confidence, newest first on ties
func (r *Retriever) fallback(query string, limit int, reason string) Response {
	r.logger.Warn("semantic retrieval unavailable, ranking by confidence", "reason", reason)

	items := r.pool.Insights()
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence > items[j].Confidence
		}
		if !items[i].ExtractedAt.Equal(items[j].ExtractedAt) {
			return items[i].ExtractedAt.After(items[j].ExtractedAt)
		}
		return items[i].ID < items[j].ID
	})
	if len(items) > limit {
		items = items[:limit]
	}

	matches := make([]Match, len(items))
	for i, in := range items {
		matches[i] = Match{Insight: in, Score: in.Confidence}
	}
	return Response{Query: query, Mode: ModeFallback, Reason: reason, Matches: matches}
}
