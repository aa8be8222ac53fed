package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cognicore/themedup/pkg/themedup/internalerr"
	"github.com/cognicore/themedup/pkg/themedup/theme"
)

func openTest(t *testing.T) (*sqliteStore, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "registry.db")
	st, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st.(*sqliteStore), dbPath
}

func TestSQLiteThemesRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := openTest(t)

	at := time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC)
	in := []theme.Theme{
		{
			ID:              "01HX",
			Primary:         "shipping",
			Secondary:       "slow",
			UniqueModifier:  "days",
			Keywords:        []string{"shipping", "slow", "days"},
			Confidence:      0.55,
			SourceRecordIDs: []string{"r1", "r2"},
			Embedding:       []float32{0.25, -1.5, 3},
			ExtractedAt:     at,
			Kind:            theme.KindTerm,
		},
		{
			ID:              "01HY",
			Primary:         "slow shipping",
			Keywords:        []string{"slow", "shipping"},
			Confidence:      0.9,
			SourceRecordIDs: []string{"r1"},
			Kind:            theme.KindPhrase,
		},
	}
	if err := st.SaveThemes(ctx, "acme", in); err != nil {
		t.Fatalf("SaveThemes: %v", err)
	}

	got, err := st.LoadThemes(ctx, "acme")
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d themes, want 2", len(got))
	}

	first := got[0]
	if first.Primary != "shipping" || first.Secondary != "slow" || first.UniqueModifier != "days" {
		t.Errorf("labels = %q/%q/%q", first.Primary, first.Secondary, first.UniqueModifier)
	}
	if !reflect.DeepEqual(first.Keywords, in[0].Keywords) {
		t.Errorf("keywords = %v", first.Keywords)
	}
	if !reflect.DeepEqual(first.Embedding, in[0].Embedding) {
		t.Errorf("embedding = %v", first.Embedding)
	}
	if !first.ExtractedAt.Equal(at) {
		t.Errorf("extracted at = %v, want %v", first.ExtractedAt, at)
	}
	if first.Kind != theme.KindTerm {
		t.Errorf("kind = %q", first.Kind)
	}
	if got[1].Embedding != nil {
		t.Error("theme saved without embedding should load without one")
	}
	if !got[1].ExtractedAt.IsZero() {
		t.Error("zero timestamp should stay zero")
	}
}

func TestSQLiteUpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	st, _ := openTest(t)

	st.SaveThemes(ctx, "acme", []theme.Theme{
		{ID: "a", Primary: "first", Keywords: []string{"first"}},
		{ID: "b", Primary: "second", Keywords: []string{"second"}},
	})
	st.SaveThemes(ctx, "acme", []theme.Theme{
		{ID: "a", Primary: "first-updated", Keywords: []string{"first"}},
	})

	got, err := st.LoadThemes(ctx, "acme")
	if err != nil {
		t.Fatalf("LoadThemes: %v", err)
	}
	if len(got) != 2 || got[0].Primary != "first-updated" || got[1].ID != "b" {
		t.Errorf("themes = %+v", got)
	}
}

func TestSQLiteScopesAndClear(t *testing.T) {
	ctx := context.Background()
	st, _ := openTest(t)

	st.SaveThemes(ctx, "beta", []theme.Theme{{ID: "1", Primary: "x", Keywords: []string{"x"}}})
	st.SaveThemes(ctx, "acme", []theme.Theme{
		{ID: "1", Primary: "x", Keywords: []string{"x"}},
		{ID: "2", Primary: "y", Keywords: []string{"y"}},
	})

	scopes, err := st.Scopes(ctx)
	if err != nil {
		t.Fatalf("Scopes: %v", err)
	}
	if len(scopes) != 2 || scopes[0].Name != "acme" || scopes[0].Themes != 2 || scopes[1].Name != "beta" {
		t.Errorf("scopes = %+v", scopes)
	}

	if err := st.ClearThemes(ctx, "acme"); err != nil {
		t.Fatalf("ClearThemes: %v", err)
	}
	if got, _ := st.LoadThemes(ctx, "acme"); len(got) != 0 {
		t.Errorf("acme still has %d themes", len(got))
	}
	if got, _ := st.LoadThemes(ctx, "beta"); len(got) != 1 {
		t.Errorf("beta has %d themes, want 1", len(got))
	}
}

func TestSQLiteReopenPersists(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "registry.db")

	st, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	st.SaveThemes(ctx, "acme", []theme.Theme{{ID: "1", Primary: "refund", Keywords: []string{"refund"}}})
	st.Close()

	st, err = OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	got, err := st.LoadThemes(ctx, "acme")
	if err != nil || len(got) != 1 || got[0].Primary != "refund" {
		t.Errorf("after reopen: %+v, %v", got, err)
	}
}

func TestSQLiteConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	st, _ := openTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			if err := st.SaveThemes(ctx, "acme", []theme.Theme{{ID: id, Primary: id, Keywords: []string{id}}}); err != nil {
				t.Errorf("SaveThemes %s: %v", id, err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := st.LoadThemes(ctx, "acme")
	if len(got) != 8 {
		t.Errorf("got %d themes, want 8", len(got))
	}
}

func TestVectorCodec(t *testing.T) {
	vec := []float32{1, -0.5, 1e-7}
	back, err := decodeVector(encodeVector(vec))
	if err != nil || !reflect.DeepEqual(back, vec) {
		t.Errorf("codec = %v, %v", back, err)
	}
	if encodeVector(nil) != nil {
		t.Error("nil vector should encode to nil")
	}
	if _, err := decodeVector([]byte{1, 2, 3}); !errors.Is(err, internalerr.ErrMalformedEmbedding) {
		t.Errorf("truncated blob err = %v", err)
	}
}
