package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/store"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	// one writer at a time; registry writes are small and already serialized
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS themes (
	scope TEXT NOT NULL,
	id TEXT NOT NULL,
	kind TEXT,
	primary_label TEXT NOT NULL,
	secondary_label TEXT,
	unique_modifier TEXT,
	keywords TEXT NOT NULL,
	confidence REAL NOT NULL,
	sources TEXT NOT NULL,
	embedding BLOB,
	extracted_at TEXT,
	PRIMARY KEY(scope, id)
);

CREATE INDEX IF NOT EXISTS idx_themes_scope ON themes(scope);

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (1, ?)`,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// SaveThemes upserts themes in one transaction. The row keeps its rowid on
// conflict, so load order stays first-saved order.
func (s *sqliteStore) SaveThemes(ctx context.Context, scope string, themes []theme.Theme) error {
	if len(themes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO themes (scope, id, kind, primary_label, secondary_label, unique_modifier, keywords, confidence, sources, embedding, extracted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(scope, id) DO UPDATE SET
	kind=excluded.kind,
	primary_label=excluded.primary_label,
	secondary_label=excluded.secondary_label,
	unique_modifier=excluded.unique_modifier,
	keywords=excluded.keywords,
	confidence=excluded.confidence,
	sources=excluded.sources,
	embedding=excluded.embedding,
	extracted_at=excluded.extracted_at;
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range themes {
		t := &themes[i]
		keywordsJSON, err := json.Marshal(t.Keywords)
		if err != nil {
			return err
		}
		sourcesJSON, err := json.Marshal(t.SourceRecordIDs)
		if err != nil {
			return err
		}
		var extracted string
		if !t.ExtractedAt.IsZero() {
			extracted = t.ExtractedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx,
			scope, t.ID, string(t.Kind), t.Primary, t.Secondary, t.UniqueModifier,
			string(keywordsJSON), t.Confidence, string(sourcesJSON),
			encodeVector(t.Embedding), extracted); err != nil {
			return fmt.Errorf("save theme %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// LoadThemes returns the scope's themes in insertion order
func (s *sqliteStore) LoadThemes(ctx context.Context, scope string) ([]theme.Theme, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, primary_label, secondary_label, unique_modifier, keywords, confidence, sources, embedding, extracted_at
FROM themes
WHERE scope = ?
ORDER BY rowid;
`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []theme.Theme
	for rows.Next() {
		var (
			t                         theme.Theme
			kind, secondary, modifier sql.NullString
			keywordsJSON, sourcesJSON string
			blob                      []byte
			extracted                 sql.NullString
		)
		if err := rows.Scan(&t.ID, &kind, &t.Primary, &secondary, &modifier,
			&keywordsJSON, &t.Confidence, &sourcesJSON, &blob, &extracted); err != nil {
			return nil, err
		}
		t.Kind = theme.Kind(kind.String)
		t.Secondary = secondary.String
		t.UniqueModifier = modifier.String
		if err := json.Unmarshal([]byte(keywordsJSON), &t.Keywords); err != nil {
			return nil, fmt.Errorf("theme %s keywords: %w", t.ID, err)
		}
		if err := json.Unmarshal([]byte(sourcesJSON), &t.SourceRecordIDs); err != nil {
			return nil, fmt.Errorf("theme %s sources: %w", t.ID, err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("theme %s: %w", t.ID, err)
		}
		t.Embedding = vec
		if extracted.String != "" {
			if ts, err := time.Parse(time.RFC3339Nano, extracted.String); err == nil {
				t.ExtractedAt = ts
			}
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

// ClearThemes deletes every theme in scope
func (s *sqliteStore) ClearThemes(ctx context.Context, scope string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM themes WHERE scope = ?`, scope)
	return err
}

// Scopes lists non-empty scopes with their theme counts
func (s *sqliteStore) Scopes(ctx context.Context) ([]store.ScopeInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT scope, COUNT(*)
FROM themes
GROUP BY scope
ORDER BY scope;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ScopeInfo
	for rows.Next() {
		var info store.ScopeInfo
		if err := rows.Scan(&info.Name, &info.Themes); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// encodeVector packs float32 components little-endian. Nil stays NULL.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d", internalerr.ErrMalformedEmbedding, len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}
