package internal

import "context"

// Embedder maps texts to fixed-length dense vectors. Deterministic for
// a given model identity.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// PairScorer scores (query, candidate) pairs jointly. More accurate
// and much more expensive per call than embedding similarity, so it is
// only ever run on the bounded stage-2 candidate set.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, candidates []string) ([]float32, error)
	Model() string
}
