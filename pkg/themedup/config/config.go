// Package config holds the tunable engine settings and loads them from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/themedup/pkg/themedup/cluster"
	"github.com/cognicore/themedup/pkg/themedup/corpus"
	"github.com/cognicore/themedup/pkg/themedup/embed"
	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/registry"
	"github.com/cognicore/themedup/pkg/themedup/retrieve"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Config is the full engine configuration. Every field has a default.
type Config struct {
	MinKeywordFrequency int  `yaml:"min_keyword_frequency" json:"min_keyword_frequency"`
	MaxThemes           int  `yaml:"max_themes" json:"max_themes"`
	MaxKeywordsPerTheme int  `yaml:"max_keywords_per_theme" json:"max_keywords_per_theme"`
	TopTerms            int  `yaml:"top_terms" json:"top_terms"`
	TopPhrases          int  `yaml:"top_phrases" json:"top_phrases"`
	RelatedTerms        int  `yaml:"related_terms" json:"related_terms"`
	StripMarkup         bool `yaml:"strip_markup" json:"strip_markup"`

	ClusterThreshold    float64 `yaml:"cluster_threshold" json:"cluster_threshold"`
	UniquenessThreshold float64 `yaml:"uniqueness_threshold" json:"uniqueness_threshold"`
	RetrievalThreshold  float64 `yaml:"retrieval_threshold" json:"retrieval_threshold"`
	RetrievalLimit      int     `yaml:"retrieval_limit" json:"retrieval_limit"`

	UseEmbeddings bool         `yaml:"use_embeddings" json:"use_embeddings"`
	Embedding     Embedding    `yaml:"embedding" json:"embedding"`
	Confidence    theme.Policy `yaml:"confidence" json:"confidence"`
}

// Embedding configures the provider and the batching adapter
type Embedding struct {
	Provider  string  `yaml:"provider" json:"provider"` // "openai", "ollama" or empty for none
	Endpoint  string  `yaml:"endpoint" json:"endpoint"`
	Model     string  `yaml:"model" json:"model"`
	APIKeyEnv string  `yaml:"api_key_env" json:"api_key_env"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"` // requests per second, 0 = unlimited

	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	Concurrency     int           `yaml:"concurrency" json:"concurrency"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	CostPer1KTokens float64       `yaml:"cost_per_1k_tokens" json:"cost_per_1k_tokens"`
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		MinKeywordFrequency: corpus.DefaultMinFrequency,
		MaxThemes:           registry.DefaultMaxThemes,
		MaxKeywordsPerTheme: theme.DefaultMaxKeywords,
		TopTerms:            theme.DefaultTopTerms,
		TopPhrases:          theme.DefaultTopPhrases,
		RelatedTerms:        theme.DefaultRelatedTerms,
		StripMarkup:         true,
		ClusterThreshold:    cluster.DefaultThreshold,
		UniquenessThreshold: registry.DefaultThreshold,
		RetrievalThreshold:  retrieve.DefaultThreshold,
		RetrievalLimit:      retrieve.DefaultLimit,
		UseEmbeddings:       true,
		Embedding: Embedding{
			BatchSize:       embed.DefaultBatchSize,
			Concurrency:     embed.DefaultConcurrency,
			Timeout:         embed.DefaultTimeout,
			CostPer1KTokens: embed.DefaultCostPer1KTokens,
		},
		Confidence: theme.DefaultPolicy(),
	}
}

// Validate rejects out-of-range settings. Nothing is clamped.
func (c Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	for _, u := range []struct {
		name string
		v    float64
	}{
		{"cluster_threshold", c.ClusterThreshold},
		{"uniqueness_threshold", c.UniquenessThreshold},
		{"retrieval_threshold", c.RetrievalThreshold},
		{"confidence.phrase_cap", c.Confidence.PhraseCap},
	} {
		if !(u.v >= 0 && u.v <= 1) {
			bad("%s must be within [0,1], got %v", u.name, u.v)
		}
	}

	if c.MinKeywordFrequency < 1 {
		bad("min_keyword_frequency must be at least 1, got %d", c.MinKeywordFrequency)
	}
	if c.MaxThemes < 1 {
		bad("max_themes must be at least 1, got %d", c.MaxThemes)
	}
	if c.MaxKeywordsPerTheme < 1 {
		bad("max_keywords_per_theme must be at least 1, got %d", c.MaxKeywordsPerTheme)
	}
	if c.TopTerms < 0 || c.TopPhrases < 0 || c.RelatedTerms < 0 {
		bad("top_terms, top_phrases and related_terms must not be negative")
	}
	if c.RetrievalLimit < 1 {
		bad("retrieval_limit must be at least 1, got %d", c.RetrievalLimit)
	}

	p := c.Confidence
	weights := []float64{p.FrequencyWeight, p.TFIDFWeight, p.RelatedWeight, p.SourceWeight}
	var sum float64
	for _, w := range weights {
		if !(w >= 0) {
			bad("confidence weights must not be negative")
			break
		}
		sum += w
	}
	if sum > 1+1e-9 {
		bad("confidence weights sum to %.3f, must not exceed 1", sum)
	}
	sats := []float64{p.FrequencySaturation, p.TFIDFSaturation, p.RelatedSaturation, p.SourceSaturation, p.PhraseDivisor}
	for _, s := range sats {
		if !(s > 0) || math.IsInf(s, 0) {
			bad("confidence saturation points and phrase_divisor must be positive")
			break
		}
	}

	e := c.Embedding
	switch e.Provider {
	case "", "openai", "ollama":
	default:
		bad("embedding.provider %q is not one of openai, ollama", e.Provider)
	}
	if e.BatchSize < 0 || e.BatchSize > embed.DefaultBatchSize {
		bad("embedding.batch_size must be within [0,%d], got %d", embed.DefaultBatchSize, e.BatchSize)
	}
	if e.Concurrency < 0 {
		bad("embedding.concurrency must not be negative")
	}
	if e.Timeout < 0 {
		bad("embedding.timeout must not be negative")
	}
	if e.CostPer1KTokens < 0 || e.RateLimit < 0 {
		bad("embedding.cost_per_1k_tokens and embedding.rate_limit must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", internalerr.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r over the defaults and validates the result
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AdapterOptions maps embedding settings onto embed.Options
func (c Config) AdapterOptions() embed.Options {
	return embed.Options{
		BatchSize:       c.Embedding.BatchSize,
		Concurrency:     c.Embedding.Concurrency,
		Timeout:         c.Embedding.Timeout,
		CostPer1KTokens: c.Embedding.CostPer1KTokens,
	}
}

// Provider builds the configured embedding provider, nil when none is set
// or embeddings are disabled.
func (c Config) Provider() embed.Provider {
	if !c.UseEmbeddings {
		return nil
	}
	e := c.Embedding
	switch e.Provider {
	case "openai":
		endpoint := e.Endpoint
		if endpoint == "" {
			endpoint = "https://api.openai.com/v1"
		}
		model := e.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		keyEnv := e.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		return embed.NewOpenAIProvider(endpoint, os.Getenv(keyEnv), model, e.RateLimit)
	case "ollama":
		endpoint := e.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}
		model := e.Model
		if model == "" {
			model = "nomic-embed-text"
		}
		return embed.NewOllamaProvider(endpoint, model, e.RateLimit)
	}
	return nil
}
