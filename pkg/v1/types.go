package v1

import "time"

// Roles maps a dataset's column names onto the fields the engine
// understands. Text lists the columns embedded for retrieval, in order.
type Roles struct {
	Text        []string `json:"text"`
	Application string   `json:"application,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Version     string   `json:"version,omitempty"`
	Language    string   `json:"language,omitempty"`
	Priority    string   `json:"priority,omitempty"`
}

// BuildInfo describes the outcome of a Build call.
type BuildInfo struct {
	RecordCount       int  `json:"record_count"`
	EmbeddingsCreated bool `json:"embeddings_created"`
}

// SearchOptions narrow and shape one duplicate search.
type SearchOptions struct {
	// Columns compared against the query during re-ranking. Empty means
	// the tenant's first text column.
	Columns     []string `json:"columns,omitempty"`
	Application string   `json:"application,omitempty"`
	Platform    string   `json:"platform,omitempty"`
	Version     string   `json:"version,omitempty"`
	Language    string   `json:"language,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// Result is one ranked duplicate candidate.
type Result struct {
	Ordinal           int               `json:"ordinal"`
	FinalScore        float64           `json:"final_score"`
	RerankScore       float64           `json:"rerank_score"`
	VersionSimilarity float64           `json:"version_similarity"`
	PlatformMatch     float64           `json:"platform_match"`
	LanguageMatch     float64           `json:"language_match"`
	Fields            map[string]string `json:"fields"`
}

// Status describes a tenant's serving state.
type Status struct {
	Servable    bool           `json:"servable"`
	RecordCount int            `json:"record_count,omitempty"`
	Columns     []string       `json:"columns,omitempty"`
	Model       string         `json:"model,omitempty"`
	Dimension   int            `json:"dimension,omitempty"`
	Partitions  map[string]int `json:"partitions,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}
