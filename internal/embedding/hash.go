package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

// HashProvider is a deterministic, offline embedder. It hashes word tokens
// into a fixed number of buckets and normalizes the result, so equal inputs
// always produce equal vectors and overlapping vocabularies score higher
// than disjoint ones. It stands in for a real model in tests and when no
// embedding endpoint is configured.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash embedder with the given dimensionality.
// A non-positive dimension falls back to 256.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashProvider{dimension: dimension}
}

// Embed hashes each text into a unit-length bucket-count vector.
func (p *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, p.dimension)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(tok, ".,;:!?'\"()")))
			vec[h.Sum32()%uint32(p.dimension)]++
		}
		out[i] = Normalize(vec)
	}
	return out, nil
}

// Dimension returns the configured vector dimension.
func (p *HashProvider) Dimension() int { return p.dimension }
