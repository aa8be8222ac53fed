// Package retrieve ranks previously extracted insights against a free-text
// query, semantically when the pool is embedded and by confidence otherwise.
package retrieve

import (
	"context"
	"sync"
	"time"

	"github.com/coder/hnsw"

	"github.com/cognicore/themedup/pkg/themedup/embed"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Insight is one previously extracted finding
type Insight struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Keywords    []string  `json:"keywords,omitempty"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
	Embedding   []float32 `json:"embedding,omitempty"`
}

// Vector implements similarity.Item.
func (i *Insight) Vector() []float32 { return i.Embedding }

// Terms implements similarity.Item.
func (i *Insight) Terms() []string { return i.Keywords }

// FromTheme turns an accepted theme into an insight, keeping its embedding
func FromTheme(t theme.Theme) Insight {
	return Insight{
		ID:          t.ID,
		Text:        t.Text(),
		Keywords:    append([]string(nil), t.Keywords...),
		Confidence:  t.Confidence,
		ExtractedAt: t.ExtractedAt,
		Embedding:   append([]float32(nil), t.Embedding...),
	}
}

// Pool is a set of insights keyed by ID. Safe for concurrent use.
type Pool struct {
	mu    sync.RWMutex
	items []Insight
	byID  map[string]int
	ids   *theme.IDSource

	// graph caches the ANN index; nil until built, reset on change
	graph *hnsw.Graph[string]
}

// NewPool creates a pool holding insights
func NewPool(insights ...Insight) *Pool {
	p := &Pool{
		byID: make(map[string]int),
		ids:  theme.NewIDSource(),
	}
	p.Add(insights...)
	return p
}

// Add inserts insights, replacing any with the same ID. Missing IDs are assigned.
func (p *Pool) Add(insights ...Insight) {
	if len(insights) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, in := range insights {
		if in.ID == "" {
			in.ID = p.ids.Next()
		}
		if idx, ok := p.byID[in.ID]; ok {
			p.items[idx] = in
			continue
		}
		p.byID[in.ID] = len(p.items)
		p.items = append(p.items, in)
	}
	p.graph = nil
}

// Len returns the pool size
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Insights returns a copy of the pool in insertion order
func (p *Pool) Insights() []Insight {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Insight(nil), p.items...)
}

// Ready reports whether every insight carries an embedding of one common width
func (p *Pool) Ready() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readyLocked()
}

func (p *Pool) readyLocked() bool {
	if len(p.items) == 0 {
		return false
	}
	dims := len(p.items[0].Embedding)
	if dims == 0 {
		return false
	}
	for i := range p.items {
		if len(p.items[i].Embedding) != dims {
			return false
		}
	}
	return true
}

// Dims returns the embedding width of a ready pool, 0 otherwise
func (p *Pool) Dims() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.readyLocked() {
		return 0
	}
	return len(p.items[0].Embedding)
}

// Index embeds every insight that lacks a vector. Insights whose embedding
// fails keep a nil vector, which leaves the pool not ready.
func (p *Pool) Index(ctx context.Context, a *embed.Adapter) embed.Report {
	p.mu.RLock()
	var ids, texts []string
	for i := range p.items {
		if len(p.items[i].Embedding) == 0 {
			ids = append(ids, p.items[i].ID)
			texts = append(texts, p.items[i].Text)
		}
	}
	p.mu.RUnlock()

	if len(texts) == 0 || a == nil {
		return embed.Report{Requested: len(texts), Failed: len(texts)}
	}

	results, report := a.EmbedTexts(ctx, texts)
	if report.TimedOut {
		return report
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, res := range results {
		if !res.OK() {
			continue
		}
		if idx, ok := p.byID[ids[k]]; ok && len(p.items[idx].Embedding) == 0 {
			p.items[idx].Embedding = res.Vector
		}
	}
	p.graph = nil
	return report
}

// annGraph returns the cached HNSW index, building it on first use.
// The pool must be ready.
func (p *Pool) annGraph() *hnsw.Graph[string] {
	p.mu.RLock()
	g := p.graph
	p.mu.RUnlock()
	if g != nil {
		return g
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.graph != nil {
		return p.graph
	}
	g = hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	nodes := make([]hnsw.Node[string], len(p.items))
	for i := range p.items {
		nodes[i] = hnsw.MakeNode(p.items[i].ID, p.items[i].Embedding)
	}
	g.Add(nodes...)
	p.graph = g
	return g
}

// lookup returns the insight with id under the read lock
func (p *Pool) lookup(id string) (Insight, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.byID[id]
	if !ok {
		return Insight{}, false
	}
	return p.items[idx], true
}
