package internal

import (
	"context"
	"fmt"
)

// EmbeddingStore owns the ordinal-aligned vector array for one tenant
// plus the per-platform indexes built over it. It is not safe for
// concurrent use on its own; TenantStore serializes access with its
// per-tenant lock.
type EmbeddingStore struct {
	dimension  int
	numTrees   int
	vectors    [][]float32
	partitions map[Platform]*AnnoyIndex
}

func NewEmbeddingStore(dimension, numTrees int) *EmbeddingStore {
	if numTrees <= 0 {
		numTrees = 10
	}
	return &EmbeddingStore{
		dimension:  dimension,
		numTrees:   numTrees,
		partitions: make(map[Platform]*AnnoyIndex),
	}
}

func (s *EmbeddingStore) Dimension() int { return s.dimension }
func (s *EmbeddingStore) Len() int       { return len(s.vectors) }

func (s *EmbeddingStore) Vector(ordinal int) []float32 {
	if ordinal < 0 || ordinal >= len(s.vectors) {
		return nil
	}
	return s.vectors[ordinal]
}

func (s *EmbeddingStore) Partition(p Platform) (*AnnoyIndex, bool) {
	idx, ok := s.partitions[p]
	return idx, ok
}

func (s *EmbeddingStore) Partitions() map[Platform]*AnnoyIndex {
	return s.partitions
}

// BuildAll replaces the store contents with the given vectors, grouped
// into per-platform partitions. vectors[i] must be the embedding of
// dataset row i and platforms[i] its platform value.
func (s *EmbeddingStore) BuildAll(ctx context.Context, vectors [][]float32, platforms []Platform) error {
	if len(vectors) != len(platforms) {
		return fmt.Errorf("build store: %d vectors for %d platform values: %w", len(vectors), len(platforms), ErrMisaligned)
	}

	partitions := make(map[Platform]*AnnoyIndex)
	for ordinal, vec := range vectors {
		if len(vec) != s.dimension {
			return fmt.Errorf("build store: row %d has dimension %d, want %d", ordinal, len(vec), s.dimension)
		}
		p := platforms[ordinal]
		idx, ok := partitions[p]
		if !ok {
			var err error
			idx, err = NewAnnoyIndex(s.dimension)
			if err != nil {
				return err
			}
			partitions[p] = idx
		}
		if err := idx.Add(ordinal, vec); err != nil {
			return fmt.Errorf("index row %d: %w", ordinal, err)
		}
	}
	for p, idx := range partitions {
		if err := idx.Build(ctx, s.numTrees); err != nil {
			return fmt.Errorf("build %s partition: %w", p, err)
		}
	}

	s.vectors = vectors
	s.partitions = partitions
	return nil
}

// Append adds one vector at the next ordinal and extends the matching
// platform partition. The index does not support incremental inserts
// after building, so the affected partition is rebuilt from the stored
// vectors, which is cheap next to re-embedding the whole corpus.
func (s *EmbeddingStore) Append(ctx context.Context, vec []float32, platform Platform) error {
	if len(vec) != s.dimension {
		return fmt.Errorf("append: dimension %d, want %d", len(vec), s.dimension)
	}

	ordinal := len(s.vectors)
	var ordinals []int
	if old, ok := s.partitions[platform]; ok {
		ordinals = old.Ordinals()
	}
	ordinals = append(ordinals, ordinal)

	idx, err := NewAnnoyIndex(s.dimension)
	if err != nil {
		return err
	}
	for _, o := range ordinals {
		v := vec
		if o != ordinal {
			v = s.vectors[o]
		}
		if err := idx.Add(o, v); err != nil {
			return err
		}
	}
	if err := idx.Build(ctx, s.numTrees); err != nil {
		return fmt.Errorf("rebuild %s partition: %w", platform, err)
	}

	s.vectors = append(s.vectors, vec)
	s.partitions[platform] = idx
	return nil
}

// CheckAlignment verifies the triple invariant: vector count equals
// the dataset row count, and the partitions jointly cover exactly the
// vector ordinals. A violation is a bug, not a recoverable condition.
func (s *EmbeddingStore) CheckAlignment(datasetLen int) error {
	if len(s.vectors) != datasetLen {
		return fmt.Errorf("%d vectors for %d dataset rows: %w", len(s.vectors), datasetLen, ErrMisaligned)
	}
	total := 0
	seen := make(map[int]bool, len(s.vectors))
	for p, idx := range s.partitions {
		ords := idx.Ordinals()
		if idx.Len() != len(ords) {
			return fmt.Errorf("%s partition: index holds %d items for %d ordinals: %w", p, idx.Len(), len(ords), ErrMisaligned)
		}
		for _, o := range ords {
			if o < 0 || o >= len(s.vectors) || seen[o] {
				return fmt.Errorf("%s partition: ordinal %d out of range or duplicated: %w", p, o, ErrMisaligned)
			}
			seen[o] = true
		}
		total += len(ords)
	}
	if total != len(s.vectors) {
		return fmt.Errorf("partitions cover %d of %d vectors: %w", total, len(s.vectors), ErrMisaligned)
	}
	return nil
}

// Vectors exposes the raw vector array for persistence.
func (s *EmbeddingStore) Vectors() [][]float32 { return s.vectors }
