// Package themedup extracts unique topical themes from short text records.
//
// One extraction pass runs analyze, score, generate, embed, cluster and
// filter in sequence. Accepted themes are registered into the caller's
// registry so later passes reject near-duplicates of anything already emitted.
package themedup

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cognicore/themedup/internal/logging"
	"github.com/cognicore/themedup/pkg/themedup/cluster"
	"github.com/cognicore/themedup/pkg/themedup/config"
	"github.com/cognicore/themedup/pkg/themedup/corpus"
	"github.com/cognicore/themedup/pkg/themedup/embed"
	"github.com/cognicore/themedup/pkg/themedup/ingest"
	"github.com/cognicore/themedup/pkg/themedup/registry"
	"github.com/cognicore/themedup/pkg/themedup/retrieve"
	"github.com/cognicore/themedup/pkg/themedup/stoplist"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Engine is the extraction facade. It holds no per-brand state; uniqueness
// lives in the Registry passed with each request.
type Engine struct {
	cfg      config.Config
	provider embed.Provider
	stops    *stoplist.Manager
	ids      *theme.IDSource
	logger   *log.Logger
	now      func() time.Time
}

// Options configures an Engine
type Options struct {
	// Config defaults to config.Default()
	Config *config.Config
	// Provider overrides the provider described by Config. Nil with no
	// configured provider means keyword-only similarity.
	Provider embed.Provider
	Stoplist *stoplist.Manager
	Logger   *log.Logger
}

// New creates an engine, rejecting invalid configuration
func New(opts Options) (*Engine, error) {
	cfg := config.Default()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		provider = cfg.Provider()
	}
	stops := opts.Stoplist
	if stops == nil {
		stops = stoplist.Default()
	}

	return &Engine{
		cfg:      cfg,
		provider: provider,
		stops:    stops,
		ids:      theme.NewIDSource(),
		logger:   logging.OrDiscard(opts.Logger),
		now:      time.Now,
	}, nil
}

// Config returns the engine's base configuration
func (e *Engine) Config() config.Config { return e.cfg }

// Request is one extraction call
type Request struct {
	Records []ingest.TextRecord
	// Registry holds previously accepted themes. Nil means a throwaway
	// empty registry: every theme is unique and nothing is retained.
	Registry *registry.Registry
	// Scope switches Registry to this scope first when set
	Scope string
	// Config overrides the engine configuration for this call
	Config *config.Config
}

// Result is the output contract of one extraction
type Result struct {
	Themes   []theme.Theme    `json:"themes"`
	Clusters []theme.Cluster  `json:"clusters"`
	Rejected []theme.Rejected `json:"rejected_themes"`
	Stats    Stats            `json:"stats"`
	Metadata Metadata         `json:"metadata"`
}

// Stats reports counts for one extraction
type Stats struct {
	DataPointsAnalyzed    int     `json:"data_points_analyzed"`
	SkippedRecords        int     `json:"skipped_records"`
	UniqueKeywords        int     `json:"unique_keywords"`
	TotalKeywords         int64   `json:"total_keywords"`
	ThemesBeforeFiltering int     `json:"themes_before_filtering"`
	ThemesAfterFiltering  int     `json:"themes_after_filtering"`
	ThemesTruncated       int     `json:"themes_truncated"`
	ClustersFound         int     `json:"clusters_found"`
	AverageConfidence     float64 `json:"average_confidence"`
	AverageUniqueness     float64 `json:"average_uniqueness"`
}

// Metadata reports timing, embedding usage and degradation
type Metadata struct {
	Scope     string        `json:"scope,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Stages    StageTimings  `json:"stages"`

	EmbeddingsEnabled bool    `json:"embeddings_enabled"`
	EmbeddingsUsed    int     `json:"embeddings_used"`
	EmbeddingsFailed  int     `json:"embeddings_failed"`
	EmbeddingTimedOut bool    `json:"embedding_timed_out"`
	EstimatedTokens   int     `json:"estimated_tokens"`
	EstimatedCost     float64 `json:"estimated_cost"`
	Model             string  `json:"model,omitempty"`

	// Degraded is set when any candidate was compared by keywords because
	// embeddings were disabled, failed or timed out.
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// StageTimings holds per-stage durations
type StageTimings struct {
	Analyze  time.Duration `json:"analyze"`
	Score    time.Duration `json:"score"`
	Generate time.Duration `json:"generate"`
	Embed    time.Duration `json:"embed"`
	Cluster  time.Duration `json:"cluster"`
	Filter   time.Duration `json:"filter"`
}

// Extract runs one extraction pass. Provider trouble only degrades the
// result. Errors are returned for invalid configuration and for failures to
// switch or persist the registry; in the latter case the result is still
// filled in.
func (e *Engine) Extract(ctx context.Context, req Request) (Result, error) {
	cfg := e.cfg
	if req.Config != nil {
		cfg = *req.Config
		if err := cfg.Validate(); err != nil {
			return Result{}, err
		}
	}

	reg := req.Registry
	if reg == nil {
		reg = registry.New(req.Scope)
	} else if req.Scope != "" && req.Scope != reg.Scope() {
		if err := reg.Switch(ctx, req.Scope); err != nil {
			return Result{}, fmt.Errorf("switch registry scope: %w", err)
		}
	}

	start := e.now()
	res := Result{
		Themes:   []theme.Theme{},
		Clusters: []theme.Cluster{},
		Rejected: []theme.Rejected{},
		Metadata: Metadata{Scope: reg.Scope(), StartedAt: start},
	}
	provider := e.providerFor(cfg)
	res.Metadata.EmbeddingsEnabled = provider != nil
	if namer, ok := provider.(embed.ModelNamer); ok {
		res.Metadata.Model = namer.ModelName()
	}

	records := make([]ingest.TextRecord, 0, len(req.Records))
	for i := range req.Records {
		if err := req.Records[i].Validate(); err != nil {
			e.logger.Warn("skipping record", "index", i, "err", err)
			res.Stats.SkippedRecords++
			continue
		}
		records = append(records, req.Records[i])
	}
	res.Stats.DataPointsAnalyzed = len(records)
	if len(records) == 0 {
		res.Metadata.Duration = time.Since(start)
		return res, nil
	}

	// analyze
	t0 := time.Now()
	tokenizer := ingest.NewTokenizer(e.stops)
	analyzer := ingest.NewAnalyzer(tokenizer)
	analyzer.StripMarkup = cfg.StripMarkup
	analyses := analyzer.Analyze(records)
	res.Metadata.Stages.Analyze = time.Since(t0)

	// score
	t0 = time.Now()
	scores := corpus.NewScorer(cfg.MinKeywordFrequency).Score(analyses)
	res.Stats.UniqueKeywords = scores.UniqueKeywords
	res.Stats.TotalKeywords = scores.TotalKeywords
	res.Metadata.Stages.Score = time.Since(t0)

	// generate
	t0 = time.Now()
	gen := theme.NewGenerator(tokenizer, e.ids)
	gen.TopTerms = cfg.TopTerms
	gen.TopPhrases = cfg.TopPhrases
	gen.RelatedTerms = cfg.RelatedTerms
	gen.MaxKeywords = cfg.MaxKeywordsPerTheme
	gen.Policy = cfg.Confidence
	gen.Now = e.now
	candidates := gen.Generate(scores, analyses)
	res.Stats.ThemesBeforeFiltering = len(candidates)
	res.Metadata.Stages.Generate = time.Since(t0)

	if len(candidates) == 0 {
		e.logger.Info("no candidate themes", "records", len(records), "unique_keywords", scores.UniqueKeywords)
		res.Metadata.Duration = time.Since(start)
		return res, nil
	}

	// embed
	t0 = time.Now()
	e.embed(ctx, cfg, provider, candidates, &res.Metadata)
	res.Metadata.Stages.Embed = time.Since(t0)

	// cluster
	t0 = time.Now()
	clusterer := cluster.New(e.ids)
	clusterer.Threshold = cfg.ClusterThreshold
	if clusters := clusterer.Cluster(candidates); clusters != nil {
		res.Clusters = clusters
	}
	res.Stats.ClustersFound = len(res.Clusters)
	res.Metadata.Stages.Cluster = time.Since(t0)

	// filter
	t0 = time.Now()
	filter := registry.NewFilter()
	filter.Threshold = cfg.UniquenessThreshold
	filter.MaxThemes = cfg.MaxThemes
	outcome, regErr := filter.ApplyAndRegister(ctx, candidates, reg)
	if regErr != nil {
		e.logger.Error("registering accepted themes", "scope", reg.Scope(), "err", regErr)
		regErr = fmt.Errorf("register accepted themes: %w", regErr)
	}
	if outcome.Accepted != nil {
		res.Themes = outcome.Accepted
	}
	if outcome.Rejected != nil {
		res.Rejected = outcome.Rejected
	}
	res.Stats.ThemesAfterFiltering = len(res.Themes)
	res.Stats.ThemesTruncated = outcome.Truncated
	res.Stats.AverageConfidence, res.Stats.AverageUniqueness = averages(outcome)
	res.Metadata.Stages.Filter = time.Since(t0)

	res.Metadata.Duration = time.Since(start)
	e.logger.Info("extraction complete",
		"scope", reg.Scope(),
		"records", res.Stats.DataPointsAnalyzed,
		"candidates", res.Stats.ThemesBeforeFiltering,
		"accepted", res.Stats.ThemesAfterFiltering,
		"rejected", len(res.Rejected),
		"clusters", res.Stats.ClustersFound,
		"degraded", res.Metadata.Degraded,
		"duration", res.Metadata.Duration.Round(time.Millisecond))
	return res, regErr
}

func (e *Engine) providerFor(cfg config.Config) embed.Provider {
	if !cfg.UseEmbeddings {
		return nil
	}
	if e.provider != nil {
		return e.provider
	}
	return cfg.Provider()
}

func (e *Engine) embed(ctx context.Context, cfg config.Config, provider embed.Provider, candidates []theme.Theme, md *Metadata) {
	if provider == nil {
		md.Degraded = true
		md.Reason = "embeddings disabled, comparing by keyword overlap"
		return
	}

	opts := cfg.AdapterOptions()
	opts.Logger = e.logger
	report := embed.NewAdapter(provider, opts).EmbedThemes(ctx, candidates)

	md.EmbeddingsUsed = report.Embedded
	md.EmbeddingsFailed = report.Failed
	md.EmbeddingTimedOut = report.TimedOut
	md.EstimatedTokens = report.EstimatedTokens
	md.EstimatedCost = report.EstimatedCost
	switch {
	case report.TimedOut:
		md.Degraded = true
		md.Reason = fmt.Sprintf("embedding timed out after %s, comparing by keyword overlap", cfg.Embedding.Timeout)
		md.EmbeddingsUsed = 0
	case report.Failed > 0:
		md.Degraded = true
		md.Reason = fmt.Sprintf("%d of %d embeddings failed", report.Failed, report.Requested)
	}
}

// Adapter returns an embedding adapter for the configured provider, nil when
// embeddings are disabled
func (e *Engine) Adapter() *embed.Adapter {
	p := e.providerFor(e.cfg)
	if p == nil {
		return nil
	}
	opts := e.cfg.AdapterOptions()
	opts.Logger = e.logger
	return embed.NewAdapter(p, opts)
}

// Retriever builds a retriever over pool using the engine's provider and
// retrieval settings
func (e *Engine) Retriever(pool *retrieve.Pool) *retrieve.Retriever {
	r := retrieve.New(pool, e.Adapter(), e.logger)
	r.Threshold = e.cfg.RetrievalThreshold
	r.Limit = e.cfg.RetrievalLimit
	return r
}

func averages(out registry.Outcome) (confidence, uniqueness float64) {
	if len(out.Accepted) == 0 {
		return 0, 0
	}
	for i := range out.Accepted {
		confidence += out.Accepted[i].Confidence
		uniqueness += out.Uniqueness[i].Score
	}
	n := float64(len(out.Accepted))
	return confidence / n, uniqueness / n
}
