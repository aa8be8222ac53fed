package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/themedup/pkg/themedup/stoplist"
)

// MinKeywordLength is the shortest token (in runes) that can count as a keyword.
const MinKeywordLength = 3

// Tokenizer handles text normalization and keyword filtering
type Tokenizer struct {
	stops *stoplist.Manager
}

// NewTokenizer creates a new tokenizer backed by the given stoplist.
// A nil manager falls back to the built-in English list.
func NewTokenizer(stops *stoplist.Manager) *Tokenizer {
	if stops == nil {
		stops = stoplist.Default()
	}
	return &Tokenizer{stops: stops}
}

// Normalize lower-cases text, drops punctuation and collapses whitespace.
// "Don't ship it!" becomes "dont ship it".
func (t *Tokenizer) Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}

	return b.String()
}

// Words splits normalized text on whitespace without filtering
func (t *Tokenizer) Words(text string) []string {
	return strings.Fields(t.Normalize(text))
}

// IsKeyword reports whether a normalized word can contribute to a theme
func (t *Tokenizer) IsKeyword(word string) bool {
	if utf8.RuneCountInString(word) < MinKeywordLength {
		return false
	}
	return !t.stops.IsStop(word)
}

// Keywords returns the keyword tokens of text in order of appearance
func (t *Tokenizer) Keywords(text string) []string {
	var out []string
	for _, w := range t.Words(text) {
		if t.IsKeyword(w) {
			out = append(out, w)
		}
	}
	return out
}
