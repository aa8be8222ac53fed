// Package embed obtains vector embeddings for themes and insights from an
// external provider, tolerating partial and total provider failure.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/cognicore/themedup/pkg/themedup/internalerr"
)

// Result is the per-item outcome of a batch call. Exactly one of Vector or Err is set.
type Result struct {
	Vector []float32
	Err    error
}

// OK reports whether the item produced a usable vector
func (r Result) OK() bool {
	return r.Err == nil && len(r.Vector) > 0
}

// Provider is an external embedding model.
//
// EmbedBatch returns one Result per input text, in order. A non-nil error
// means the whole call failed and no per-item results are available.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([]Result, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelNamer is implemented by providers that can report their model
type ModelNamer interface {
	ModelName() string
}

// validate checks a vector returned by a provider
func validate(vec []float32, dims int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: empty vector", internalerr.ErrMalformedEmbedding)
	}
	if dims > 0 && len(vec) != dims {
		return fmt.Errorf("%w: got %d dims, want %d", internalerr.ErrMalformedEmbedding, len(vec), dims)
	}
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite component", internalerr.ErrMalformedEmbedding)
		}
	}
	return nil
}

// resultsFromVectors maps a raw provider response onto per-item results.
// A count mismatch fails every item since the alignment cannot be trusted.
func resultsFromVectors(vectors [][]float32, n int) []Result {
	out := make([]Result, n)
	if len(vectors) != n {
		err := fmt.Errorf("%w: got %d vectors for %d inputs", internalerr.ErrMalformedEmbedding, len(vectors), n)
		for i := range out {
			out[i].Err = err
		}
		return out
	}
	for i, vec := range vectors {
		if err := validate(vec, 0); err != nil {
			out[i].Err = err
			continue
		}
		out[i].Vector = vec
	}
	return out
}
