package internal

import (
	"context"
	"sort"
	"strings"
)

// Fusion weights for the final candidate score. Semantic rerank
// dominates; metadata similarity breaks near-ties.
const (
	weightRerank   = 0.70
	weightVersion  = 0.15
	weightPlatform = 0.10
	weightLanguage = 0.05
)

const minQueryLength = 10

type SearchFilters struct {
	Application string
	Platform    string
	Version     string
	Language    string
}

type SearchRequest struct {
	Query string
	// SelectedColumns feed the pair scorer; columns absent from the
	// dataset are ignored. Empty means the first text column.
	SelectedColumns []string
	Filters         SearchFilters
	TopK            int
}

type SearchResult struct {
	Ordinal           int               `json:"ordinal"`
	FinalScore        float64           `json:"final_score"`
	RerankScore       float64           `json:"rerank_score"`
	VersionSimilarity float64           `json:"version_similarity"`
	PlatformMatch     float64           `json:"platform_match"`
	LanguageMatch     float64           `json:"language_match"`
	Fields            map[string]string `json:"fields"`
}

// Searcher answers duplicate queries in three stages: ANN candidate
// generation over the platform partitions, pairwise semantic
// re-ranking of the pooled candidates, and metadata-weighted fusion.
type Searcher struct {
	registry *Registry
	models   *Models
	cfg      SearchConfig
}

func NewSearcher(registry *Registry, models *Models, cfg SearchConfig) *Searcher {
	return &Searcher{registry: registry, models: models, cfg: cfg}
}

func (s *Searcher) Search(ctx context.Context, id TenantID, req SearchRequest) ([]SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength {
		return nil, NewError(KindInput, "query too short", ErrQueryTooShort)
	}
	topK := s.clampTopK(req.TopK)

	ts := s.registry.Get(id)
	ts.RLock()
	defer ts.RUnlock()

	if !ts.Servable() || ts.Meta == nil {
		return nil, NewError(KindInput, "tenant has no searchable index", ErrNoDataset)
	}
	ds := ts.Dataset
	roles := ts.Meta.Roles

	allowed, universeEmpty := s.allowedRows(ds, roles, req.Filters)
	if universeEmpty {
		return []SearchResult{}, nil
	}

	batch, err := s.models.Embedder.EmbedBatch(ctx, []string{strings.ToLower(query)})
	if err != nil || len(batch) != 1 {
		return nil, NewError(KindModel, "embed query", err)
	}
	queryVec := NormalizeVector(batch[0])

	candidates, err := s.generateCandidates(ctx, ts.Embeddings, queryVec, req.Filters, allowed)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	rerank, err := s.rerank(ctx, ds, roles, query, req.SelectedColumns, candidates)
	if err != nil {
		return nil, err
	}

	results := s.fuse(ds, roles, req.Filters, candidates, rerank)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *Searcher) clampTopK(k int) int {
	if k <= 0 {
		return s.cfg.DefaultTopK
	}
	if k > s.cfg.MaxTopK {
		return s.cfg.MaxTopK
	}
	return k
}

// allowedRows resolves the application and language filters to the set
// of ordinals eligible for ranking. A nil set means no restriction.
// universeEmpty reports that filters are active but nothing matches.
func (s *Searcher) allowedRows(ds *Dataset, roles ColumnRoles, f SearchFilters) (map[int]bool, bool) {
	app := strings.TrimSpace(f.Application)
	lang := NormalizeLanguage(f.Language)
	if app == "" && lang == "" {
		return nil, false
	}

	allowed := make(map[int]bool, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if app != "" {
			if roles.Application == "" || !strings.EqualFold(strings.TrimSpace(ds.Value(i, roles.Application)), app) {
				continue
			}
		}
		if lang != "" && ds.LanguageAt(i, roles) != lang {
			continue
		}
		allowed[i] = true
	}
	return allowed, len(allowed) == 0
}

// generateCandidates runs stage one over the platform partitions. With
// row filters active, each searched partition is ranked in full before
// filtering so matching rows deep in the ranking are never lost to an
// early cutoff; the filtered ranking is then truncated to the
// partition's quota.
func (s *Searcher) generateCandidates(ctx context.Context, store *EmbeddingStore, queryVec []float32, f SearchFilters, allowed map[int]bool) ([]Hit, error) {
	pool := s.cfg.CandidatePool
	if pool <= 0 {
		pool = 200
	}

	type target struct {
		platform Platform
		index    *AnnoyIndex
		quota    int
	}
	var targets []target

	wantPlatform := NormalizePlatform(f.Platform)
	if f.Platform != "" && wantPlatform != PlatformUnknown {
		if idx, ok := store.Partition(wantPlatform); ok {
			targets = append(targets, target{wantPlatform, idx, pool})
		}
	}
	if len(targets) == 0 {
		partitions := store.Partitions()
		if len(partitions) == 0 {
			return nil, NewError(KindIndex, "no index partitions", ErrNoIndex)
		}
		quota := pool / len(partitions)
		platforms := make([]Platform, 0, len(partitions))
		for p := range partitions {
			platforms = append(platforms, p)
		}
		sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
		for _, p := range platforms {
			targets = append(targets, target{p, partitions[p], quota})
		}
	}

	var merged []Hit
	for _, t := range targets {
		k := t.quota
		if allowed != nil {
			// Rank the whole partition, filter, then cut to quota.
			k = t.index.Len()
		}
		if k > t.index.Len() {
			k = t.index.Len()
		}
		if k == 0 {
			continue
		}
		hits, err := t.index.Search(ctx, queryVec, k)
		if err != nil {
			return nil, NewError(KindIndex, "partition search", err)
		}
		kept := 0
		for _, h := range hits {
			if allowed != nil && !allowed[h.Ordinal] {
				continue
			}
			merged = append(merged, h)
			kept++
			if kept == t.quota {
				break
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > pool {
		merged = merged[:pool]
	}
	return merged, nil
}

// rerank scores every pooled candidate against the raw query. A scorer
// failure fails the whole search rather than falling back to stage-one
// scores, which are not comparable.
func (s *Searcher) rerank(ctx context.Context, ds *Dataset, roles ColumnRoles, query string, selected []string, candidates []Hit) ([]float32, error) {
	columns := make([]string, 0, len(selected))
	for _, col := range selected {
		if ds.HasColumn(col) {
			columns = append(columns, col)
		}
	}
	if len(columns) == 0 && len(roles.Text) > 0 {
		columns = roles.Text[:1]
	}

	texts := make([]string, len(candidates))
	for i, h := range candidates {
		parts := make([]string, 0, len(columns))
		for _, col := range columns {
			if v := strings.TrimSpace(ds.Value(h.Ordinal, col)); v != "" {
				parts = append(parts, v)
			}
		}
		texts[i] = strings.Join(parts, " ")
	}

	scores, err := s.models.Scorer.ScorePairs(ctx, query, texts)
	if err != nil {
		return nil, NewError(KindModel, "score candidate pairs", err)
	}
	if len(scores) != len(candidates) {
		return nil, NewError(KindModel, "scorer returned wrong score count", nil)
	}
	return scores, nil
}

// fuse combines stage-two scores with metadata similarity and sorts
// descending. The sort is stable, so equal scores keep stage-two
// candidate order.
func (s *Searcher) fuse(ds *Dataset, roles ColumnRoles, f SearchFilters, candidates []Hit, rerank []float32) []SearchResult {
	wantPlatform := NormalizePlatform(f.Platform)
	wantLanguage := NormalizeLanguage(f.Language)

	results := make([]SearchResult, len(candidates))
	for i, h := range candidates {
		r := SearchResult{
			Ordinal:     h.Ordinal,
			RerankScore: float64(rerank[i]),
			Fields:      ds.RowFields(h.Ordinal),
		}
		if f.Version != "" && roles.Version != "" {
			r.VersionSimilarity = VersionSimilarity(f.Version, ds.Value(h.Ordinal, roles.Version))
		}
		if f.Platform != "" && wantPlatform != PlatformUnknown && ds.PlatformAt(h.Ordinal, roles) == wantPlatform {
			r.PlatformMatch = 1
		}
		if wantLanguage != "" && ds.LanguageAt(h.Ordinal, roles) == wantLanguage {
			r.LanguageMatch = 1
		}
		r.FinalScore = weightRerank*r.RerankScore +
			weightVersion*r.VersionSimilarity +
			weightPlatform*r.PlatformMatch +
			weightLanguage*r.LanguageMatch
		results[i] = r
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].FinalScore > results[j].FinalScore })
	return results
}
