// Package store persists registered themes so uniqueness survives restarts.
package store

import (
	"context"

	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// Store is the persistence boundary for uniqueness registries.
// Themes are partitioned by scope (a brand, customer or session key).
type Store interface {
	Close() error

	// SaveThemes inserts or replaces themes by ID within scope
	SaveThemes(ctx context.Context, scope string, themes []theme.Theme) error
	// LoadThemes returns the scope's themes in first-saved order
	LoadThemes(ctx context.Context, scope string) ([]theme.Theme, error)
	// ClearThemes removes every theme in scope
	ClearThemes(ctx context.Context, scope string) error
	// Scopes lists scopes holding at least one theme, sorted
	Scopes(ctx context.Context) ([]ScopeInfo, error)
}

// ScopeInfo summarizes one stored scope
type ScopeInfo struct {
	Name   string `json:"name"`
	Themes int    `json:"themes"`
}
