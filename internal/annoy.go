package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

var _ VectorIndex = (*AnnoyIndex)(nil)

// AnnoyIndex is an angular-distance index over unit-length vectors.
// Items are addressed by dataset ordinal; internally they get
// contiguous local ids in insertion order, so the ordinals slice is
// the local-id -> ordinal mapping and must be persisted with the
// index file.
type AnnoyIndex struct {
	mu        sync.RWMutex
	idx       interfaces.AnnoyIndex[float32, uint32]
	dimension int
	ordinals  []int
	built     bool
}

func NewAnnoyIndex(dimension int) (*AnnoyIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("annoy index: invalid dimension %d", dimension)
	}

	idx := builder.Index[float32, uint32]().
		AngularDistance(dimension).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()

	return &AnnoyIndex{
		idx:       idx,
		dimension: dimension,
	}, nil
}

func (a *AnnoyIndex) Add(ordinal int, vec []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(vec) != a.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(vec))
	}
	if ordinal < 0 {
		return fmt.Errorf("negative ordinal %d", ordinal)
	}

	id := uint32(len(a.ordinals))
	a.idx.AddItem(id, vec)
	a.ordinals = append(a.ordinals, ordinal)
	a.built = false
	return nil
}

func (a *AnnoyIndex) Build(ctx context.Context, numTrees int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.idx.Build(numTrees, -1)
	a.built = true
	return nil
}

// Search returns up to k hits ranked by cosine similarity. Angular
// distance on unit vectors is monotone with cosine; score = 1 - dist/2
// keeps scores in [0,1].
func (a *AnnoyIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.built {
		return nil, ErrNoIndex
	}
	if len(query) != a.dimension {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(query))
	}

	if k > len(a.ordinals) {
		k = len(a.ordinals)
	}
	if k <= 0 {
		return nil, nil
	}

	searchCtx := a.idx.CreateContext()
	ids, distances := a.idx.GetNnsByVector(query, k, -1, searchCtx)

	hits := make([]Hit, 0, len(ids))
	for i, id := range ids {
		if int(id) >= len(a.ordinals) {
			continue
		}
		var score float32
		if i < len(distances) {
			score = 1.0 - distances[i]/2.0
		}
		hits = append(hits, Hit{Ordinal: a.ordinals[id], Score: score})
	}
	return hits, nil
}

func (a *AnnoyIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.ordinals)
}

func (a *AnnoyIndex) Ordinals() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]int, len(a.ordinals))
	copy(out, a.ordinals)
	return out
}

func (a *AnnoyIndex) Save(indexPath string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.idx.Save(indexPath); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Load restores the index file and its ordinal mapping. The caller
// owns the mapping (it lives in the partition manifest).
func (a *AnnoyIndex) Load(indexPath string, ordinals []int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.idx.Load(indexPath); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	a.ordinals = make([]int, len(ordinals))
	copy(a.ordinals, ordinals)
	a.built = true
	return nil
}
