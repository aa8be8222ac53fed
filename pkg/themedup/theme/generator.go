package theme

import (
	"math"
	"strings"
	"time"

	"github.com/cognicore/themedup/pkg/themedup/corpus"
	"github.com/cognicore/themedup/pkg/themedup/ingest"
)

// Policy weights the confidence blend. Each signal saturates independently
// at its saturation point; weights summing to at most 1 keep confidence in [0,1].
type Policy struct {
	FrequencyWeight float64 `yaml:"frequency_weight" json:"frequency_weight"`
	TFIDFWeight     float64 `yaml:"tfidf_weight" json:"tfidf_weight"`
	RelatedWeight   float64 `yaml:"related_weight" json:"related_weight"`
	SourceWeight    float64 `yaml:"source_weight" json:"source_weight"`

	FrequencySaturation float64 `yaml:"frequency_saturation" json:"frequency_saturation"`
	TFIDFSaturation     float64 `yaml:"tfidf_saturation" json:"tfidf_saturation"`
	RelatedSaturation   float64 `yaml:"related_saturation" json:"related_saturation"`
	SourceSaturation    float64 `yaml:"source_saturation" json:"source_saturation"`

	// Phrase themes score min(PhraseCap, frequency/PhraseDivisor).
	PhraseDivisor float64 `yaml:"phrase_divisor" json:"phrase_divisor"`
	PhraseCap     float64 `yaml:"phrase_cap" json:"phrase_cap"`
}

// DefaultPolicy returns the stock 0.3/0.3/0.2/0.2 blend
func DefaultPolicy() Policy {
	return Policy{
		FrequencyWeight:     0.3,
		TFIDFWeight:         0.3,
		RelatedWeight:       0.2,
		SourceWeight:        0.2,
		FrequencySaturation: 20,
		TFIDFSaturation:     10,
		RelatedSaturation:   5,
		SourceSaturation:    5,
		PhraseDivisor:       10,
		PhraseCap:           0.9,
	}
}

// TermConfidence blends the four term signals
func (p Policy) TermConfidence(freq int64, tfidf float64, related, sources int) float64 {
	c := p.FrequencyWeight*saturate(float64(freq), p.FrequencySaturation) +
		p.TFIDFWeight*saturate(tfidf, p.TFIDFSaturation) +
		p.RelatedWeight*saturate(float64(related), p.RelatedSaturation) +
		p.SourceWeight*saturate(float64(sources), p.SourceSaturation)
	return clamp01(c)
}

// PhraseConfidence scores an n-gram theme
func (p Policy) PhraseConfidence(freq int64) float64 {
	if p.PhraseDivisor <= 0 {
		return clamp01(p.PhraseCap)
	}
	return clamp01(math.Min(p.PhraseCap, float64(freq)/p.PhraseDivisor))
}

func saturate(v, at float64) float64 {
	if at <= 0 || v <= 0 {
		return 0
	}
	return math.Min(1, v/at)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Generator defaults
const (
	DefaultTopTerms     = 50
	DefaultTopPhrases   = 30
	DefaultRelatedTerms = 5
	DefaultMaxKeywords  = 10
)

// Generator turns corpus scores into candidate themes
type Generator struct {
	TopTerms     int
	TopPhrases   int
	RelatedTerms int
	MaxKeywords  int
	Policy       Policy
	// Now stamps ExtractedAt; nil means time.Now
	Now func() time.Time

	tokenizer *ingest.Tokenizer
	ids       *IDSource
}

// NewGenerator creates a generator with default limits and policy
func NewGenerator(tokenizer *ingest.Tokenizer, ids *IDSource) *Generator {
	if tokenizer == nil {
		tokenizer = ingest.NewTokenizer(nil)
	}
	if ids == nil {
		ids = NewIDSource()
	}
	return &Generator{
		TopTerms:     DefaultTopTerms,
		TopPhrases:   DefaultTopPhrases,
		RelatedTerms: DefaultRelatedTerms,
		MaxKeywords:  DefaultMaxKeywords,
		Policy:       DefaultPolicy(),
		tokenizer:    tokenizer,
		ids:          ids,
	}
}

// Generate builds term themes followed by phrase themes. The output order is
// deterministic for a given corpus; only IDs and timestamps differ between runs.
func (g *Generator) Generate(scores corpus.Scores, analyses []ingest.ContentAnalysis) []Theme {
	if len(scores.Keywords) == 0 && len(scores.Phrases) == 0 {
		return nil
	}

	now := time.Now()
	if g.Now != nil {
		now = g.Now()
	}
	var out []Theme

	terms := scores.Keywords
	if g.TopTerms >= 0 && len(terms) > g.TopTerms {
		terms = terms[:g.TopTerms]
	}
	for _, kw := range terms {
		if t, ok := g.termTheme(scores, kw, now); ok {
			out = append(out, t)
		}
	}

	phrases := scores.Phrases
	if g.TopPhrases >= 0 && len(phrases) > g.TopPhrases {
		phrases = phrases[:g.TopPhrases]
	}
	for _, ph := range phrases {
		if t, ok := g.phraseTheme(ph, analyses, now); ok {
			out = append(out, t)
		}
	}

	return out
}

func (g *Generator) termTheme(scores corpus.Scores, kw corpus.ExtractedKeyword, now time.Time) (Theme, bool) {
	sources := scores.RecordsWith(kw.Word)
	if len(sources) == 0 {
		return Theme{}, false
	}

	related := scores.Related(kw.Word, g.RelatedTerms)
	t := Theme{
		ID:              g.ids.Next(),
		Primary:         kw.Word,
		Keywords:        g.boundKeywords(append([]string{kw.Word}, related...)),
		Confidence:      g.Policy.TermConfidence(kw.Frequency, kw.TFIDF, len(related), len(sources)),
		SourceRecordIDs: sources,
		ExtractedAt:     now,
		Kind:            KindTerm,
	}
	if len(related) > 0 {
		t.Secondary = related[0]
	}
	if len(related) > 1 {
		t.UniqueModifier = related[1]
	}
	return t, true
}

func (g *Generator) phraseTheme(ph corpus.KeyPhrase, analyses []ingest.ContentAnalysis, now time.Time) (Theme, bool) {
	var sources []string
	for _, a := range analyses {
		if a.ContainsPhrase(ph.Phrase) {
			sources = append(sources, a.RecordID)
		}
	}
	if len(sources) == 0 {
		return Theme{}, false
	}

	var words []string
	for _, w := range strings.Fields(ph.Phrase) {
		if g.tokenizer.IsKeyword(w) {
			words = append(words, w)
		}
	}
	keywords := g.boundKeywords(words)
	if len(keywords) == 0 {
		return Theme{}, false
	}

	return Theme{
		ID:              g.ids.Next(),
		Primary:         ph.Phrase,
		Keywords:        keywords,
		Confidence:      g.Policy.PhraseConfidence(ph.Frequency),
		SourceRecordIDs: sources,
		ExtractedAt:     now,
		Kind:            KindPhrase,
	}, true
}

// boundKeywords dedupes while keeping order and truncates to MaxKeywords
func (g *Generator) boundKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if g.MaxKeywords > 0 && len(out) >= g.MaxKeywords {
			break
		}
	}
	return out
}
