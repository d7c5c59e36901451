// Package embedding turns text into L2-normalized vectors.
//
// Every provider returns unit-length vectors, so cosine similarity
// downstream is a plain dot product.
package embedding

import (
	"context"
	"math"
)

// Provider generates vector embeddings from text.
type Provider interface {
	// Embed returns one unit-length vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api", "local" or "hash"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, p Provider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecs[0], nil
}

// Normalize scales vec to unit length in place and returns it.
// The zero vector is returned unchanged.
func Normalize(vec []float32) []float32 {
	var magSq float64
	for _, x := range vec {
		magSq += float64(x) * float64(x)
	}
	if magSq == 0 {
		return vec
	}
	mag := float32(math.Sqrt(magSq))
	for i := range vec {
		vec[i] /= mag
	}
	return vec
}

// Dot returns the dot product of two vectors. For unit vectors this equals
// cosine similarity. Mismatched lengths compare the shared prefix.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var total float64
	for i := 0; i < n; i++ {
		total += float64(a[i]) * float64(b[i])
	}
	return total
}
