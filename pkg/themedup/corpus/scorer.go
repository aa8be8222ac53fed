package corpus

import (
	"math"
	"sort"

	"github.com/cognicore/themedup/pkg/themedup/ingest"
)

// DefaultMinFrequency drops terms seen fewer times than this across the corpus.
const DefaultMinFrequency = 2

// ExtractedKeyword is a corpus-level term score
type ExtractedKeyword struct {
	Word       string  `json:"word"`
	Frequency  int64   `json:"frequency"`
	DocFreq    int64   `json:"doc_frequency"`
	TFIDF      float64 `json:"tfidf"`
	IsStopWord bool    `json:"is_stop_word"`
}

// KeyPhrase is a corpus-level n-gram frequency
type KeyPhrase struct {
	Phrase    string `json:"phrase"`
	Frequency int64  `json:"frequency"`
}

// Scores is the output of one scoring pass
type Scores struct {
	Keywords []ExtractedKeyword
	Phrases  []KeyPhrase

	// UniqueKeywords and TotalKeywords describe the corpus before frequency filtering.
	UniqueKeywords int
	TotalKeywords  int64

	terms   *Counter
	records []string
	kept    map[string]struct{}
}

// TotalDocs returns the number of analyzed documents
func (s Scores) TotalDocs() int64 {
	if s.terms == nil {
		return 0
	}
	return s.terms.TotalDocs()
}

// RecordsWith returns the IDs of records containing term, in corpus order
func (s Scores) RecordsWith(term string) []string {
	if s.terms == nil {
		return nil
	}
	docs := s.terms.Docs[term]
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, s.records[d])
	}
	return out
}

// Related returns up to k scored terms that co-occur with term,
// strongest first. Ties break alphabetically.
func (s Scores) Related(term string, k int) []string {
	if s.terms == nil || k <= 0 {
		return nil
	}

	type related struct {
		word  string
		count int64
	}
	var candidates []related
	for word := range s.kept {
		if word == term {
			continue
		}
		if n := s.terms.GetPairCount(term, word); n > 0 {
			candidates = append(candidates, related{word: word, count: n})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].word < candidates[j].word
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.word
	}
	return out
}

// Scorer aggregates per-document analyses into corpus-wide scores
type Scorer struct {
	MinFrequency int
}

// NewScorer creates a scorer with the given minimum frequency.
// Values below 1 use DefaultMinFrequency.
func NewScorer(minFrequency int) *Scorer {
	if minFrequency < 1 {
		minFrequency = DefaultMinFrequency
	}
	return &Scorer{MinFrequency: minFrequency}
}

// Score computes TF-IDF for terms and frequencies for phrases.
//
// TF-IDF(t) = frequency(t) × ln(N / df(t))
//
// A term present in every document scores 0: it is frequent but not distinctive.
func (sc *Scorer) Score(analyses []ingest.ContentAnalysis) Scores {
	if len(analyses) == 0 {
		return Scores{}
	}

	terms := NewCounter()
	phrases := NewCounter()
	records := make([]string, 0, len(analyses))

	for _, a := range analyses {
		records = append(records, a.RecordID)
		terms.AddDocument(toMap(a.Keywords))
		phrases.AddDocument(toMap(a.Phrases))
	}

	out := Scores{
		UniqueKeywords: terms.UniqueTerms(),
		TotalKeywords:  terms.TotalOccurrences(),
		terms:          terms,
		records:        records,
		kept:           make(map[string]struct{}),
	}

	n := float64(terms.TotalDocs())
	minFreq := int64(sc.MinFrequency)

	for word, freq := range terms.TF {
		if freq < minFreq {
			continue
		}
		df := terms.DF[word]
		out.Keywords = append(out.Keywords, ExtractedKeyword{
			Word:      word,
			Frequency: freq,
			DocFreq:   df,
			TFIDF:     float64(freq) * math.Log(n/float64(df)),
		})
		out.kept[word] = struct{}{}
	}
	sort.Slice(out.Keywords, func(i, j int) bool {
		a, b := out.Keywords[i], out.Keywords[j]
		if a.TFIDF != b.TFIDF {
			return a.TFIDF > b.TFIDF
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Word < b.Word
	})

	for phrase, freq := range phrases.TF {
		if freq < minFreq {
			continue
		}
		out.Phrases = append(out.Phrases, KeyPhrase{Phrase: phrase, Frequency: freq})
	}
	sort.Slice(out.Phrases, func(i, j int) bool {
		a, b := out.Phrases[i], out.Phrases[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Phrase < b.Phrase
	})

	return out
}

func toMap(counts []ingest.TermCount) map[string]int {
	m := make(map[string]int, len(counts))
	for _, c := range counts {
		m[c.Term] += c.Count
	}
	return m
}
