package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/themedup/pkg/themedup/store"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu     sync.RWMutex
	scopes map[string]*scopeThemes
}

type scopeThemes struct {
	order []string
	byID  map[string]theme.Theme
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{scopes: make(map[string]*scopeThemes)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveThemes implements store.Store.
func (s *Store) SaveThemes(ctx context.Context, scope string, themes []theme.Theme) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, ok := s.scopes[scope]
	if !ok {
		sc = &scopeThemes{byID: make(map[string]theme.Theme)}
		s.scopes[scope] = sc
	}
	for i := range themes {
		t := themes[i].Clone()
		if _, exists := sc.byID[t.ID]; !exists {
			sc.order = append(sc.order, t.ID)
		}
		sc.byID[t.ID] = t
	}
	return nil
}

// LoadThemes implements store.Store.
func (s *Store) LoadThemes(ctx context.Context, scope string) ([]theme.Theme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	sc, ok := s.scopes[scope]
	if !ok {
		return nil, nil
	}
	out := make([]theme.Theme, 0, len(sc.order))
	for _, id := range sc.order {
		t := sc.byID[id]
		out = append(out, t.Clone())
	}
	return out, nil
}

// ClearThemes implements store.Store.
func (s *Store) ClearThemes(ctx context.Context, scope string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, scope)
	return nil
}

// Scopes implements store.Store.
func (s *Store) Scopes(ctx context.Context) ([]store.ScopeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.ScopeInfo, 0, len(s.scopes))
	for name, sc := range s.scopes {
		if len(sc.order) == 0 {
			continue
		}
		out = append(out, store.ScopeInfo{Name: name, Themes: len(sc.order)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
