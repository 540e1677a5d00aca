package internal

import (
	"fmt"
	"sync"
)

// Models holds the process-wide embedder and pair scorer. Loading is
// expensive; both handles are stateless and shared read-only after
// construction.
type Models struct {
	Embedder Embedder
	Scorer   PairScorer
}

func NewModels(cfg *Config) (*Models, error) {
	var embedder Embedder
	switch cfg.Embedder.Backend {
	case "", "hash":
		embedder = NewHashEmbedder(cfg.Embedder.Dimension)
	case "http":
		embedder = NewHTTPEmbedder(cfg.Embedder.BaseURL, cfg.Embedder.Model, cfg.Embedder.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedder backend: %s", cfg.Embedder.Backend)
	}

	var scorer PairScorer
	switch cfg.Scorer.Backend {
	case "", "lexical":
		scorer = NewLexicalScorer()
	case "http":
		scorer = NewHTTPPairScorer(cfg.Scorer.BaseURL, cfg.Scorer.Model)
	default:
		return nil, fmt.Errorf("unsupported scorer backend: %s", cfg.Scorer.Backend)
	}

	return &Models{Embedder: embedder, Scorer: scorer}, nil
}

var (
	modelsOnce sync.Once
	models     *Models
	modelsErr  error
)

// LoadModels initializes the shared model handles exactly once, even
// under concurrent first access. The config of the first caller wins.
func LoadModels(cfg *Config) (*Models, error) {
	modelsOnce.Do(func() {
		models, modelsErr = NewModels(cfg)
	})
	return models, modelsErr
}
