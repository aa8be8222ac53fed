// Package embedtest provides deterministic embedding providers for tests.
package embedtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"

	"github.com/cognicore/themedup/pkg/themedup/embed"
)

// Dims is the vector width produced by Concept
const Dims = 64

// conceptWords maps synonyms onto shared axes
var conceptWords = map[string]int{
	"shipping": 0, "delivery": 0, "shipped": 0, "delivered": 0, "arrive": 0, "arrived": 0,
	"slow": 1, "late": 1, "delayed": 1, "weeks": 1, "days": 1,
	"pricing": 2, "price": 2, "prices": 2, "tiers": 2, "plans": 2, "cost": 2,
	"confusion": 3, "confusing": 3, "understand": 3, "unclear": 3, "confused": 3,
	"refund": 4, "refunds": 4, "money": 4, "return": 4,
}

const conceptAxes = 8

// Concept embeds text as a bag of concept axes. Synonyms share an axis, every
// other word hashes onto one of the remaining axes. Vectors are unit length.
type Concept struct {
	// FailOn fails any text containing this substring
	FailOn string
	// Down fails every call
	Down bool

	calls atomic.Int64
}

// Calls returns how many provider calls were made
func (c *Concept) Calls() int64 { return c.calls.Load() }

// EmbedBatch implements embed.Provider.
func (c *Concept) EmbedBatch(ctx context.Context, texts []string) ([]embed.Result, error) {
	c.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Down {
		return nil, errors.New("embedtest: provider down")
	}
	out := make([]embed.Result, len(texts))
	for i, t := range texts {
		if c.FailOn != "" && strings.Contains(t, c.FailOn) {
			out[i].Err = errors.New("embedtest: refused")
			continue
		}
		out[i].Vector = Vector(t)
	}
	return out, nil
}

// Embed implements embed.Provider.
func (c *Concept) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0].Vector, res[0].Err
}

// Vector returns the deterministic embedding of text
func Vector(text string) []float32 {
	vec := make([]float32, Dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:'\"()")
		if w == "" {
			continue
		}
		if axis, ok := conceptWords[w]; ok {
			vec[axis] += 3
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[conceptAxes+int(h.Sum32()%(Dims-conceptAxes))]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[Dims-1] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
