package internal

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a bag-of-words hashing embedder. It is deterministic
// and needs no model server, which makes it the default backend for
// tests and offline runs. Quality is far below a real bi-encoder.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Model() string  { return "hash-bow" }
func (e *HashEmbedder) Dimension() int { return e.dim }

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, e.dim)
		for _, w := range tokenize(t) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(w))
			idx := int(h.Sum32() % uint32(e.dim))
			vec[idx] += 1.0
		}
		out[i] = NormalizeVector(vec)
	}
	return out, nil
}

// LexicalScorer scores (query, candidate) pairs by token-set cosine
// overlap. Stand-in for a cross-encoder when no rerank server is
// configured; deterministic, so tests can assert on ranking.
type LexicalScorer struct{}

func NewLexicalScorer() *LexicalScorer { return &LexicalScorer{} }

func (s *LexicalScorer) Model() string { return "lexical-overlap" }

func (s *LexicalScorer) ScorePairs(ctx context.Context, query string, candidates []string) ([]float32, error) {
	qTokens := tokenSet(tokenize(query))
	out := make([]float32, len(candidates))
	if len(qTokens) == 0 {
		return out, nil
	}
	for i, c := range candidates {
		cTokens := tokenSet(tokenize(c))
		if len(cTokens) == 0 {
			continue
		}
		overlap := 0
		for w := range qTokens {
			if cTokens[w] {
				overlap++
			}
		}
		out[i] = float32(float64(overlap) / math.Sqrt(float64(len(qTokens))*float64(len(cTokens))))
	}
	return out, nil
}

func tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:-()[]\"'")
		if w == "" || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"if": true, "of": true, "at": true, "by": true, "for": true, "with": true,
	"to": true, "from": true, "in": true, "on": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "it": true, "its": true,
	"this": true, "that": true, "i": true, "my": true, "we": true, "you": true,
	"not": true, "no": true, "so": true, "too": true, "very": true, "can": true,
	"will": true, "just": true, "when": true, "while": true, "after": true,
}
