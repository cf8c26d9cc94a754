// Package embedding produces fixed-dimension vectors for text and
// selects between a remote primary provider and a deterministic local
// fallback so ingestion never stalls on provider outages.
package embedding

import (
	"context"
	"errors"
	"math"
)

var ErrProviderUnavailable = errors.New("embedding provider unavailable")

// Provider turns text into a dense vector of a fixed dimension. The
// name tags every chunk a provider embeds so mixed-dimension vectors
// are never compared downstream.
type Provider interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// CosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector is empty, zero, or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DisplayScore clips a cosine similarity to [-1, 1] and rescales it to
// the [0, 1] range reported to callers.
func DisplayScore(cos float64) float64 {
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}
