package themedup

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cognicore/themedup/internal/embedtest"
	"github.com/cognicore/themedup/pkg/themedup/config"
	"github.com/cognicore/themedup/pkg/themedup/embed"
	"github.com/cognicore/themedup/pkg/themedup/ingest"
	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/registry"
	"github.com/cognicore/themedup/pkg/themedup/retrieve"
	"github.com/cognicore/themedup/pkg/themedup/store/memstore"
)

var shippingComplaints = []string{
	"Really slow shipping on my last order, it took two weeks",
	"Slow shipping again. The package showed up late",
	"I am tired of the slow shipping and the late package",
	"Why is shipping so slow? Slow shipping every single order",
	"Great product but slow shipping ruined it",
	"Slow shipping, the package arrived damaged too",
	"Customer service was kind, but slow shipping is a problem",
	"Two weeks of waiting, slow shipping is unacceptable",
	"Slow shipping made me cancel the order",
	"The slow shipping needs to be fixed before my next order",
}

func records(texts []string, replace ...string) []ingest.TextRecord {
	out := make([]ingest.TextRecord, len(texts))
	r := strings.NewReplacer(replace...)
	for i, text := range texts {
		out[i] = ingest.TextRecord{
			ID:       fmt.Sprintf("r%d", i+1),
			Content:  r.Replace(text),
			Metadata: ingest.Metadata{Sentiment: "negative", Domain: "ecommerce"},
		}
	}
	return out
}

func newEngine(t *testing.T, provider embed.Provider, mutate func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(Options{Config: &cfg, Provider: provider})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func primaries(res Result) []string {
	out := make([]string, len(res.Themes))
	for i, th := range res.Themes {
		out[i] = th.Primary
	}
	return out
}

func TestExtractSlowShipping(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	res, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Stats.DataPointsAnalyzed != 10 {
		t.Errorf("analyzed = %d, want 10", res.Stats.DataPointsAnalyzed)
	}

	found := false
	for _, th := range res.Themes {
		if strings.Contains(th.Primary, "shipping") && len(th.SourceRecordIDs) >= 8 && th.Confidence > 0.5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("no strong shipping theme in %v", primaries(res))
	}

	for _, th := range res.Themes {
		if len(th.Keywords) == 0 || len(th.SourceRecordIDs) == 0 {
			t.Errorf("theme %q missing keywords or sources", th.Primary)
		}
		if th.Confidence < 0 || th.Confidence > 1 {
			t.Errorf("theme %q confidence %f out of range", th.Primary, th.Confidence)
		}
		if th.ID == "" || th.ExtractedAt.IsZero() {
			t.Errorf("theme %q missing id or timestamp", th.Primary)
		}
	}
	if len(res.Themes) > config.Default().MaxThemes {
		t.Errorf("accepted %d themes, cap is %d", len(res.Themes), config.Default().MaxThemes)
	}
	if !res.Metadata.Degraded || res.Metadata.EmbeddingsEnabled {
		t.Error("keyword-only run should report disabled embeddings")
	}
}

func TestExtractParaphraseRejected(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, &embedtest.Concept{}, nil)
	reg := registry.New("acme")

	first, err := e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg})
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	if reg.Len() != len(first.Themes) || reg.Len() == 0 {
		t.Fatalf("registry holds %d, accepted %d", reg.Len(), len(first.Themes))
	}
	if first.Metadata.EmbeddingsUsed == 0 {
		t.Fatal("expected embeddings on the first run")
	}

	second, err := e.Extract(ctx, Request{
		Records:  records(shippingComplaints, "shipping", "delivery"),
		Registry: reg,
	})
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}

	for _, th := range second.Themes {
		if th.Primary == "slow delivery" {
			t.Fatal("paraphrased theme should not be accepted")
		}
	}
	var rejected bool
	for _, r := range second.Rejected {
		if r.Theme.Primary == "slow delivery" {
			rejected = true
			if r.Uniqueness.IsUnique {
				t.Error("rejected theme must have IsUnique=false")
			}
			if r.Uniqueness.ClosestMatch == nil {
				t.Error("rejected theme should name its closest match")
			}
		}
	}
	if !rejected {
		t.Fatalf("slow delivery not among rejected themes")
	}
}

func TestExtractRerunRejectsEverything(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, func(c *config.Config) { c.MaxThemes = 200 })
	reg := registry.New("acme")

	first, err := e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg})
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	if len(first.Themes) == 0 {
		t.Fatal("first run accepted nothing")
	}

	second, err := e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg})
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if len(second.Themes) != 0 {
		t.Errorf("second run accepted %v", primaries(second))
	}
	if len(second.Rejected) != second.Stats.ThemesBeforeFiltering {
		t.Errorf("rejected %d of %d", len(second.Rejected), second.Stats.ThemesBeforeFiltering)
	}
	if reg.Len() != len(first.Themes) {
		t.Error("registry should not grow on a fully rejected run")
	}
}

func TestExtractIdempotentOnEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, nil, nil)

	a, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(primaries(a), primaries(b)) {
		t.Errorf("runs differ:\n%v\n%v", primaries(a), primaries(b))
	}
}

func TestExtractDegradationKeepsCandidates(t *testing.T) {
	ctx := context.Background()
	wide := func(c *config.Config) { c.MaxThemes = 200 }

	with, err := newEngine(t, &embedtest.Concept{}, wide).Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatal(err)
	}
	without, err := newEngine(t, nil, wide).Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatal(err)
	}

	if with.Stats.ThemesBeforeFiltering != without.Stats.ThemesBeforeFiltering {
		t.Fatalf("candidates %d vs %d", with.Stats.ThemesBeforeFiltering, without.Stats.ThemesBeforeFiltering)
	}
	if !reflect.DeepEqual(primaries(with), primaries(without)) {
		t.Errorf("candidate sets differ:\n%v\n%v", primaries(with), primaries(without))
	}
	for i := range with.Themes {
		if with.Themes[i].Confidence != without.Themes[i].Confidence {
			t.Errorf("%q confidence differs", with.Themes[i].Primary)
		}
		if with.Themes[i].Embedding == nil || without.Themes[i].Embedding != nil {
			t.Errorf("%q embedding presence wrong", with.Themes[i].Primary)
		}
	}
}

func TestExtractProviderDownDegrades(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, &embedtest.Concept{Down: true}, nil)

	res, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatalf("provider failure must not fail extraction: %v", err)
	}
	if len(res.Themes) == 0 {
		t.Error("themes should still be extracted")
	}
	if !res.Metadata.Degraded || res.Metadata.EmbeddingsFailed != res.Stats.ThemesBeforeFiltering {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

type stalledProvider struct{}

func (stalledProvider) EmbedBatch(ctx context.Context, texts []string) ([]embed.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExtractEmbeddingTimeout(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, stalledProvider{}, func(c *config.Config) {
		c.Embedding.Timeout = 30 * time.Millisecond
	})

	res, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !res.Metadata.EmbeddingTimedOut || !res.Metadata.Degraded {
		t.Errorf("metadata = %+v", res.Metadata)
	}
	for _, th := range res.Themes {
		if th.Embedding != nil {
			t.Errorf("%q kept an embedding after timeout", th.Primary)
		}
	}
}

func TestExtractEmptyCorpus(t *testing.T) {
	e := newEngine(t, nil, nil)
	res, err := e.Extract(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Themes == nil || len(res.Themes) != 0 {
		t.Errorf("themes = %#v, want empty slice", res.Themes)
	}
	if res.Stats.DataPointsAnalyzed != 0 || res.Stats.ThemesBeforeFiltering != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestExtractNoSurvivingKeywords(t *testing.T) {
	e := newEngine(t, nil, nil)
	recs := []ingest.TextRecord{
		{ID: "a", Content: "the and of"},
		{ID: "b", Content: "unique words everywhere"},
	}
	res, err := e.Extract(context.Background(), Request{Records: recs})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Themes) != 0 || res.Stats.DataPointsAnalyzed != 2 {
		t.Errorf("themes = %v stats = %+v", primaries(res), res.Stats)
	}
}

func TestExtractSkipsRecordsWithoutID(t *testing.T) {
	e := newEngine(t, nil, nil)
	recs := records(shippingComplaints)
	recs = append(recs, ingest.TextRecord{Content: "slow shipping"})

	res, err := e.Extract(context.Background(), Request{Records: recs})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Stats.SkippedRecords != 1 || res.Stats.DataPointsAnalyzed != 10 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := config.Default()
	cfg.UniquenessThreshold = 1.5
	if _, err := New(Options{Config: &cfg}); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("New err = %v", err)
	}

	e := newEngine(t, nil, nil)
	_, err := e.Extract(context.Background(), Request{Records: records(shippingComplaints), Config: &cfg})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("Extract err = %v", err)
	}
}

func TestExtractScopeSwitchWithStore(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	reg, err := registry.Open(ctx, st, "acme")
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, nil, func(c *config.Config) { c.MaxThemes = 200 })

	if _, err := e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg}); err != nil {
		t.Fatal(err)
	}
	acme := reg.Len()

	// another brand starts from an empty registry
	res, err := e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg, Scope: "globex"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Themes) != acme || res.Metadata.Scope != "globex" {
		t.Errorf("globex accepted %d, acme had %d", len(res.Themes), acme)
	}

	// switching back reloads acme from the store
	res, err = e.Extract(ctx, Request{Records: records(shippingComplaints), Registry: reg, Scope: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Themes) != 0 {
		t.Errorf("acme rerun accepted %v", primaries(res))
	}
}

func TestEngineRetrieverOverAcceptedThemes(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, &embedtest.Concept{}, nil)

	res, err := e.Extract(ctx, Request{Records: records(shippingComplaints)})
	if err != nil {
		t.Fatal(err)
	}
	pool := retrieve.NewPool()
	for _, th := range res.Themes {
		pool.Add(retrieve.FromTheme(th))
	}
	pool.Add(retrieve.Insight{ID: "pricing", Text: "customers don't understand our pricing tiers", Confidence: 0.1})

	r := e.Retriever(pool)
	pool.Index(ctx, embed.NewAdapter(&embedtest.Concept{}, embed.Options{}))

	resp := r.Retrieve(ctx, "pricing confusion", 0)
	if resp.Mode != retrieve.ModeSemantic {
		t.Fatalf("mode = %s (%s)", resp.Mode, resp.Reason)
	}
	if len(resp.Matches) == 0 || resp.Matches[0].Insight.ID != "pricing" {
		t.Errorf("matches = %+v", resp.Matches)
	}
}
