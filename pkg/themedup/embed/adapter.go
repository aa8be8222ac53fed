package embed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/themedup/internal/logging"
	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Adapter defaults
const (
	DefaultBatchSize       = 50
	DefaultConcurrency     = 4
	DefaultTimeout         = 10 * time.Second
	DefaultCostPer1KTokens = 0.00002
)

// Options configures an Adapter
type Options struct {
	BatchSize       int
	Concurrency     int
	Timeout         time.Duration
	CostPer1KTokens float64
	Logger          *log.Logger
}

// Adapter dispatches theme texts to a Provider in concurrent batches
type Adapter struct {
	provider Provider
	opts     Options
	logger   *log.Logger
}

// NewAdapter wraps a provider. Zero option values take defaults.
func NewAdapter(provider Provider, opts Options) *Adapter {
	if opts.BatchSize <= 0 || opts.BatchSize > DefaultBatchSize {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CostPer1KTokens < 0 {
		opts.CostPer1KTokens = 0
	}
	return &Adapter{
		provider: provider,
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger).WithPrefix("embed"),
	}
}

// Report summarizes one embedding pass
type Report struct {
	Requested       int           `json:"requested"`
	Embedded        int           `json:"embedded"`
	Failed          int           `json:"failed"`
	TimedOut        bool          `json:"timed_out"`
	EstimatedTokens int           `json:"estimated_tokens"`
	EstimatedCost   float64       `json:"estimated_cost"`
	Dimensions      int           `json:"dimensions"`
	Duration        time.Duration `json:"duration"`
}

// Degraded reports whether any theme is left without an embedding
func (r Report) Degraded() bool {
	return r.TimedOut || r.Failed > 0
}

// EmbedThemes sets Embedding on each theme it can. Failures are logged and
// leave Embedding nil. If the deadline passes, every vector from this pass
// is dropped so the whole run compares by keywords.
func (a *Adapter) EmbedThemes(ctx context.Context, themes []theme.Theme) Report {
	texts := make([]string, len(themes))
	for i := range themes {
		texts[i] = themes[i].Text()
	}

	results, report := a.EmbedTexts(ctx, texts)
	if report.TimedOut {
		for i := range themes {
			themes[i].Embedding = nil
		}
		return report
	}
	for i, res := range results {
		if res.OK() {
			themes[i].Embedding = res.Vector
			continue
		}
		themes[i].Embedding = nil
		a.logger.Debug("theme left without embedding", "theme", themes[i].Primary, "err", res.Err)
	}
	return report
}

// EmbedTexts embeds arbitrary texts with the same batching, deadline and
// partial-failure semantics as EmbedThemes.
func (a *Adapter) EmbedTexts(ctx context.Context, texts []string) ([]Result, Report) {
	start := time.Now()
	report := Report{Requested: len(texts)}
	for _, t := range texts {
		report.EstimatedTokens += estimateTokens(t)
	}
	report.EstimatedCost = float64(report.EstimatedTokens) / 1000 * a.opts.CostPer1KTokens

	results := make([]Result, len(texts))
	if len(texts) == 0 {
		return results, report
	}
	if a.provider == nil {
		for i := range results {
			results[i].Err = internalerr.ErrProviderUnavailable
		}
		report.Failed = len(texts)
		return results, report
	}

	runCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	var mu sync.Mutex

	for lo := 0; lo < len(texts); lo += a.opts.BatchSize {
		hi := min(lo+a.opts.BatchSize, len(texts))
		g.Go(func() error {
			batch := a.embedBatch(runCtx, texts[lo:hi])
			mu.Lock()
			copy(results[lo:hi], batch)
			mu.Unlock()
			return nil // per-batch errors live in the results
		})
	}
	_ = g.Wait()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		report.TimedOut = true
		a.logger.Warn("embedding deadline exceeded, falling back to keyword similarity",
			"timeout", a.opts.Timeout, "texts", len(texts))
	}

	// vectors must share one dimensionality to be comparable
	dims := dominantDims(results)
	for i := range results {
		if !results[i].OK() {
			continue
		}
		if err := validate(results[i].Vector, dims); err != nil {
			results[i] = Result{Err: err}
		}
	}

	for _, r := range results {
		if r.OK() {
			report.Embedded++
		} else {
			report.Failed++
		}
	}
	report.Dimensions = dims
	report.Duration = time.Since(start)

	if report.Failed > 0 && !report.TimedOut {
		a.logger.Warn("partial embedding failure", "failed", report.Failed, "requested", report.Requested)
	}
	a.logger.Info("embedding pass complete",
		"requested", report.Requested,
		"embedded", report.Embedded,
		"dims", dims,
		"duration", report.Duration.Round(time.Millisecond))

	return results, report
}

// dominantDims returns the most common width among well-formed vectors.
// Ties go to the width seen first, so one stray vector cannot set the width
// for the rest of the run.
func dominantDims(results []Result) int {
	counts := make(map[int]int)
	dims, best := 0, 0
	for _, r := range results {
		if !r.OK() || validate(r.Vector, 0) != nil {
			continue
		}
		n := len(r.Vector)
		counts[n]++
		if counts[n] > best {
			dims, best = n, counts[n]
		}
	}
	return dims
}

// EmbedOne embeds a single text under the adapter deadline
func (a *Adapter) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if a.provider == nil {
		return nil, internalerr.ErrProviderUnavailable
	}
	runCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	vec, err := a.safeEmbed(runCtx, text)
	if err != nil {
		return nil, err
	}
	if err := validate(vec, 0); err != nil {
		return nil, err
	}
	return vec, nil
}

func (a *Adapter) embedBatch(ctx context.Context, texts []string) (out []Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("embedding provider panicked", "error", r)
			out = failAll(len(texts), fmt.Errorf("%w: provider panic: %v", internalerr.ErrProviderUnavailable, r))
		}
	}()

	results, err := a.provider.EmbedBatch(ctx, texts)
	if err != nil {
		a.logger.Debug("embedding batch failed", "size", len(texts), "err", err)
		return failAll(len(texts), err)
	}
	if len(results) != len(texts) {
		return failAll(len(texts), fmt.Errorf("%w: got %d results for %d inputs",
			internalerr.ErrMalformedEmbedding, len(results), len(texts)))
	}
	for i := range results {
		if results[i].Err == nil {
			if err := validate(results[i].Vector, 0); err != nil {
				results[i] = Result{Err: err}
			}
		}
	}
	return results
}

func (a *Adapter) safeEmbed(ctx context.Context, text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec, err = nil, fmt.Errorf("%w: provider panic: %v", internalerr.ErrProviderUnavailable, r)
		}
	}()
	return a.provider.Embed(ctx, text)
}

func failAll(n int, err error) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i].Err = err
	}
	return out
}

// estimateTokens approximates provider token counts at four characters per token
func estimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return (len(s) + 3) / 4
}
