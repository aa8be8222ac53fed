package ingest

import (
	"fmt"
	"strings"

	"github.com/cognicore/themedup/pkg/themedup/internalerr"
)

// Metadata carries optional tags supplied by the ingestion source
type Metadata struct {
	Sentiment string `json:"sentiment,omitempty"`
	Domain    string `json:"domain,omitempty"`
}

// TextRecord is one unit of input evidence. Records are never mutated by the engine.
type TextRecord struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Validate checks if the record has required fields
func (r *TextRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: record id is required", internalerr.ErrInvalidInput)
	}
	return nil
}
