package ingest

import (
	"sort"
	"strings"
)

// TermCount is a token or phrase with its count inside one document
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// ContentAnalysis is the per-record output of the analyzer
type ContentAnalysis struct {
	RecordID string      `json:"record_id"`
	Keywords []TermCount `json:"keywords"`
	Phrases  []TermCount `json:"phrases"`
	// Text is the normalized content, used for phrase containment checks.
	Text     string   `json:"-"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// HasKeyword reports whether the analysis counted the keyword at least once
func (a ContentAnalysis) HasKeyword(word string) bool {
	for _, kw := range a.Keywords {
		if kw.Term == word {
			return true
		}
	}
	return false
}

// ContainsPhrase reports whether the normalized text contains phrase on word
// boundaries, so "slow ship" does not match "slow shipping".
func (a ContentAnalysis) ContainsPhrase(phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+a.Text+" ", " "+phrase+" ")
}

// Analyzer turns raw records into keyword and phrase counts
type Analyzer struct {
	tokenizer *Tokenizer
	// StripMarkup removes HTML tags before tokenizing.
	StripMarkup bool
}

// NewAnalyzer creates an analyzer using the given tokenizer
func NewAnalyzer(tokenizer *Tokenizer) *Analyzer {
	if tokenizer == nil {
		tokenizer = NewTokenizer(nil)
	}
	return &Analyzer{tokenizer: tokenizer}
}

// Tokenizer returns the analyzer's tokenizer
func (a *Analyzer) Tokenizer() *Tokenizer {
	return a.tokenizer
}

// Analyze produces one ContentAnalysis per record, in input order
func (a *Analyzer) Analyze(records []TextRecord) []ContentAnalysis {
	if len(records) == 0 {
		return nil
	}

	out := make([]ContentAnalysis, 0, len(records))
	for _, rec := range records {
		out = append(out, a.AnalyzeRecord(rec))
	}
	return out
}

// AnalyzeRecord analyzes a single record
func (a *Analyzer) AnalyzeRecord(rec TextRecord) ContentAnalysis {
	content := rec.Content
	if a.StripMarkup {
		content = StripMarkup(content)
	}

	text := a.tokenizer.Normalize(content)
	words := strings.Fields(text)

	keywords := make(map[string]int)
	for _, w := range words {
		if a.tokenizer.IsKeyword(w) {
			keywords[w]++
		}
	}

	phrases := make(map[string]int)
	for i := range words {
		if i+1 < len(words) && a.tokenizer.IsKeyword(words[i]) && a.tokenizer.IsKeyword(words[i+1]) {
			phrases[words[i]+" "+words[i+1]]++
		}
		// the middle word of a trigram may be a connector ("speed of delivery")
		if i+2 < len(words) && a.tokenizer.IsKeyword(words[i]) && a.tokenizer.IsKeyword(words[i+2]) {
			phrases[words[i]+" "+words[i+1]+" "+words[i+2]]++
		}
	}

	return ContentAnalysis{
		RecordID: rec.ID,
		Keywords: sortedCounts(keywords),
		Phrases:  sortedCounts(phrases),
		Text:     text,
		Metadata: rec.Metadata,
	}
}

func sortedCounts(m map[string]int) []TermCount {
	out := make([]TermCount, 0, len(m))
	for term, count := range m {
		out = append(out, TermCount{Term: term, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	return out
}
