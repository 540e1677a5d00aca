package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPEmbedder talks to an embedding model server (Ollama-compatible
// /api/embeddings endpoint).
type HTTPEmbedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

func NewHTTPEmbedder(baseURL, model string, dimension int) *HTTPEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &HTTPEmbedder{
		baseURL:   baseURL,
		model:     model,
		dimension: dimension,
		client:    http.DefaultClient,
	}
}

func (e *HTTPEmbedder) Model() string  { return e.model }
func (e *HTTPEmbedder) Dimension() int { return e.dimension }

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	url := fmt.Sprintf("%s/api/embeddings", e.baseURL)

	for i, text := range texts {
		body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
		if err != nil {
			return nil, fmt.Errorf("marshal embed request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embedding api request: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("embedding api error (status %d): %s", resp.StatusCode, string(msg))
		}

		var er embedResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("decode embed response: %w", err)
		}
		resp.Body.Close()

		if e.dimension > 0 && len(er.Embedding) != e.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: model returned %d, configured %d", len(er.Embedding), e.dimension)
		}

		vec := make([]float32, len(er.Embedding))
		for j, v := range er.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}

	return out, nil
}

// HTTPPairScorer talks to a cross-encoder rerank server exposing a
// /rerank endpoint that scores documents against one query.
type HTTPPairScorer struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPPairScorer(baseURL, model string) *HTTPPairScorer {
	if model == "" {
		model = "cross-encoder/mmarco-mMiniLMv2-L12-H384-v1"
	}
	return &HTTPPairScorer{
		baseURL: baseURL,
		model:   model,
		client:  http.DefaultClient,
	}
}

func (s *HTTPPairScorer) Model() string { return s.model }

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
}

func (s *HTTPPairScorer) ScorePairs(ctx context.Context, query string, candidates []string) ([]float32, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Model: s.model, Query: query, Documents: candidates})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	url := fmt.Sprintf("%s/rerank", s.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank api error (status %d): %s", resp.StatusCode, string(msg))
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}
	if len(rr.Scores) != len(candidates) {
		return nil, fmt.Errorf("rerank returned %d scores for %d documents", len(rr.Scores), len(candidates))
	}

	out := make([]float32, len(rr.Scores))
	for i, v := range rr.Scores {
		out[i] = float32(v)
	}
	return out, nil
}
