// Package records reads text records and insights from JSONL files.
package records

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/cognicore/themedup/internal/logging"
	"github.com/cognicore/themedup/pkg/themedup/ingest"
	"github.com/cognicore/themedup/pkg/themedup/retrieve"
)

// maxLine bounds a single JSONL record
const maxLine = 4 << 20

// line is the accepted record shape. Feed exports use url/text, so
// those are read as fallbacks for id/content.
type line struct {
	ID       string          `json:"id"`
	URL      string          `json:"url"`
	Content  string          `json:"content"`
	Text     string          `json:"text"`
	Title    string          `json:"title"`
	Metadata ingest.Metadata `json:"metadata"`
}

// Open returns a reader for path, or stdin when path is "-"
func Open(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// LoadJSONL loads records from a JSONL file. Malformed lines are skipped
// with a warning; a file with no usable record is an error.
func LoadJSONL(path string, logger *log.Logger) ([]ingest.TextRecord, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	recs, err := Read(rc, logging.OrDiscard(logger).With("file", path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return recs, nil
}

// Read decodes records from r, one JSON object per line
func Read(r io.Reader, logger *log.Logger) ([]ingest.TextRecord, error) {
	logger = logging.OrDiscard(logger)
	var recs []ingest.TextRecord

	err := scanLines(r, func(n int, raw []byte) {
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			logger.Warn("skipping malformed JSON", "line", n, "err", err)
			return
		}
		rec := ingest.TextRecord{
			ID:       firstNonEmpty(l.ID, l.URL),
			Content:  firstNonEmpty(l.Content, l.Text),
			Metadata: l.Metadata,
		}
		if l.Title != "" {
			rec.Content = strings.TrimSpace(l.Title + ". " + rec.Content)
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("line-%d", n)
		}
		recs = append(recs, rec)
	})
	return recs, err
}

// LoadInsights loads a retrieval pool from a JSONL file of retrieve.Insight
func LoadInsights(path string, logger *log.Logger) ([]retrieve.Insight, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	logger = logging.OrDiscard(logger).With("file", path)
	var out []retrieve.Insight
	err = scanLines(rc, func(n int, raw []byte) {
		var in retrieve.Insight
		if err := json.Unmarshal(raw, &in); err != nil {
			logger.Warn("skipping malformed insight", "line", n, "err", err)
			return
		}
		if strings.TrimSpace(in.Text) == "" {
			logger.Warn("skipping insight without text", "line", n)
			return
		}
		out = append(out, in)
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

func scanLines(r io.Reader, fn func(n int, raw []byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		raw := []byte(strings.TrimSpace(sc.Text()))
		if len(raw) == 0 {
			continue
		}
		fn(n, raw)
	}
	return sc.Err()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
