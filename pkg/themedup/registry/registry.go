// Package registry holds previously accepted themes for one scope and
// decides whether new candidates are unique against them.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/store"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Registry is the set of themes already emitted for a scope (a brand or
// session). It is owned by the caller and passed into each extraction.
// Writes are serialized; reads run concurrently. Use Filter.ApplyAndRegister
// when several extractions share one registry, so a theme is checked and
// registered under the same lock.
type Registry struct {
	mu    sync.RWMutex
	scope string
	order []string
	byID  map[string]theme.Theme

	store store.Store
	ids   *theme.IDSource
}

// New creates an empty in-memory registry
func New(scope string) *Registry {
	return &Registry{
		scope: scope,
		byID:  make(map[string]theme.Theme),
		ids:   theme.NewIDSource(),
	}
}

// Open creates a registry backed by st and loads the scope's persisted themes.
// Every later Register, Clear and Switch writes through to st.
func Open(ctx context.Context, st store.Store, scope string) (*Registry, error) {
	r := New(scope)
	if st == nil {
		return r, nil
	}
	r.store = st
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Scope returns the active scope
func (r *Registry) Scope() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scope
}

// Len returns the number of registered themes
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Themes returns copies of the registered themes in registration order
func (r *Registry) Themes() []theme.Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.themesLocked()
}

// Register adds themes, replacing any with the same ID. Themes registered by
// the surrounding application may omit the ID and keywords; an ID is
// assigned and keywords default to the words of the primary label.
func (r *Registry) Register(ctx context.Context, themes ...theme.Theme) error {
	if len(themes) == 0 {
		return nil
	}
	prepared, err := r.prepare(themes)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(ctx, prepared)
}

func (r *Registry) prepare(themes []theme.Theme) ([]theme.Theme, error) {
	prepared := make([]theme.Theme, 0, len(themes))
	for i := range themes {
		t := themes[i].Clone()
		if len(t.Keywords) == 0 {
			t.Keywords = strings.Fields(strings.ToLower(t.Primary))
		}
		if len(t.Keywords) == 0 {
			return nil, fmt.Errorf("%w: theme %q has no primary label or keywords", internalerr.ErrInvalidInput, t.ID)
		}
		if t.ID == "" {
			t.ID = r.ids.Next()
		}
		prepared = append(prepared, t)
	}
	return prepared, nil
}

// registerLocked requires r.mu held for writing. The store is written first
// so a failed save leaves memory unchanged.
func (r *Registry) registerLocked(ctx context.Context, prepared []theme.Theme) error {
	if r.store != nil {
		if err := r.store.SaveThemes(ctx, r.scope, prepared); err != nil {
			return fmt.Errorf("%w: save themes: %v", internalerr.ErrStoreUnavailable, err)
		}
	}
	for _, t := range prepared {
		if _, exists := r.byID[t.ID]; !exists {
			r.order = append(r.order, t.ID)
		}
		r.byID[t.ID] = t
	}
	return nil
}

// themesLocked requires r.mu held
func (r *Registry) themesLocked() []theme.Theme {
	out := make([]theme.Theme, 0, len(r.order))
	for _, id := range r.order {
		t := r.byID[id]
		out = append(out, t.Clone())
	}
	return out
}

// Clear removes every theme in the active scope, including persisted ones
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		if err := r.store.ClearThemes(ctx, r.scope); err != nil {
			return fmt.Errorf("%w: clear themes: %v", internalerr.ErrStoreUnavailable, err)
		}
	}
	r.reset()
	return nil
}

// Switch changes the active scope. In-memory themes of the previous scope are
// dropped; with a store attached the new scope's persisted themes are loaded
// before any reader can observe the new scope.
func (r *Registry) Switch(ctx context.Context, scope string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scope == r.scope {
		return nil
	}
	r.scope = scope
	r.reset()
	if r.store == nil {
		return nil
	}
	return r.loadLocked(ctx)
}

func (r *Registry) load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

// loadLocked requires r.mu held for writing
func (r *Registry) loadLocked(ctx context.Context) error {
	themes, err := r.store.LoadThemes(ctx, r.scope)
	if err != nil {
		return fmt.Errorf("%w: load scope %q: %v", internalerr.ErrStoreUnavailable, r.scope, err)
	}
	r.reset()
	for _, t := range themes {
		if _, exists := r.byID[t.ID]; !exists {
			r.order = append(r.order, t.ID)
		}
		r.byID[t.ID] = t
	}
	return nil
}

// reset requires r.mu held for writing
func (r *Registry) reset() {
	r.order = nil
	r.byID = make(map[string]theme.Theme)
}
