package internal

import (
	"context"
	"math"
)

// Hit is one stage-1 candidate: a dataset ordinal with its cosine
// similarity score (0-1, higher is better).
type Hit struct {
	Ordinal int
	Score   float32
}

// VectorIndex is a top-k similarity index over unit-length vectors.
type VectorIndex interface {
	Add(ordinal int, vec []float32) error
	Build(ctx context.Context, numTrees int) error
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	Len() int
	Save(indexPath string) error
	Load(indexPath string, ordinals []int) error
	Ordinals() []int
}

// NormalizeVector scales vec to unit length in place and returns it.
// Zero vectors are returned unchanged.
func NormalizeVector(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return vec
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i, v := range vec {
		vec[i] = v * norm
	}
	return vec
}
