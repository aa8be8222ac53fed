package stoplist

import (
	"sort"
	"strings"
)

// English is the built-in list of common function words that never make a theme.
var English = []string{
	"the", "be", "to", "of", "and", "a", "in", "that", "have", "i",
	"it", "for", "not", "on", "with", "he", "as", "you", "do", "at",
	"this", "but", "his", "by", "from", "they", "we", "say", "her", "she",
	"or", "an", "will", "my", "one", "all", "would", "there", "their", "what",
	"so", "up", "out", "if", "about", "who", "get", "which", "go", "me",
	"when", "make", "can", "like", "time", "no", "just", "him", "know", "take",
	"into", "year", "your", "some", "could", "them", "see", "other", "than", "then",
	"now", "look", "only", "come", "its", "over", "think", "also", "back", "after",
	"use", "two", "how", "our", "work", "first", "well", "way", "even", "new",
	"want", "because", "any", "these", "give", "day", "most", "us", "is", "was",
	"are", "been", "has", "had", "were", "said", "did", "does", "very", "more",
	"much", "really", "being", "am", "should", "may", "might", "must", "shall", "here",
	"where", "why", "those", "such", "own", "same", "both", "each", "few", "again",
	"once", "too", "off", "down", "through", "while", "before", "during", "under", "between",
	"dont", "cant", "wont", "didnt", "doesnt", "isnt", "wasnt", "im", "ive", "got",
}

// Manager holds the active stop-word set
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a manager seeded with the given words
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]struct{}, len(initialStops))
	for _, s := range initialStops {
		stops[strings.ToLower(s)] = struct{}{}
	}
	return &Manager{stops: stops}
}

// Default returns a manager seeded with the English list
func Default() *Manager {
	return NewManager(English)
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	_, ok := m.stops[token]
	return ok
}

// Add adds tokens to the stoplist
func (m *Manager) Add(tokens ...string) {
	for _, t := range tokens {
		m.stops[strings.ToLower(t)] = struct{}{}
	}
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, strings.ToLower(token))
}

// All returns all stopwords, sorted
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Len returns the number of stopwords
func (m *Manager) Len() int {
	return len(m.stops)
}
