package v1

import (
	"context"
	"fmt"

	"github.com/triageworks/dupfind/internal"
)

// Client provides embedded, in-process access to the duplicate search
// engine. One Client serves any number of tenants.
type Client struct {
	cfg      *internal.Config
	registry *internal.Registry
	pipeline *internal.Pipeline
	searcher *internal.Searcher
}

// New creates a Client with the given options.
//
// Each Client constructs its own model pair from its own options, so
// two Clients in one process can run different embedders or dimensions.
// This is unlike the CLI, which shares one process-wide model pair.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, opt := range opts {
		opt(cc)
	}

	cfg := internal.DefaultConfig()
	if cc.configFile != "" {
		loaded, err := internal.LoadConfig(cc.configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	applyOptions(cfg, cc)

	models, err := internal.NewModels(cfg)
	if err != nil {
		return nil, err
	}

	var remote internal.RemoteStore
	if cfg.Cache.Enabled {
		remote, err = internal.NewS3Remote(ctx, cfg.Cache.S3)
		if err != nil {
			return nil, fmt.Errorf("connect remote cache: %w", err)
		}
	}

	registry := internal.NewRegistry(cfg.ResolveDataDir(), cfg.Index.Trees)

	return &Client{
		cfg:      cfg,
		registry: registry,
		pipeline: internal.NewPipeline(registry, models, remote, cfg),
		searcher: internal.NewSearcher(registry, models, cfg.Search),
	}, nil
}

func applyOptions(cfg *internal.Config, cc *clientConfig) {
	if cc.dataDir != "" {
		cfg.DataDir = cc.dataDir
	}
	if cc.dimension > 0 {
		cfg.Embedder.Dimension = cc.dimension
	}
	if cc.trees > 0 {
		cfg.Index.Trees = cc.trees
	}
	if cc.embedderURL != "" {
		cfg.Embedder.Backend = "http"
		cfg.Embedder.BaseURL = cc.embedderURL
		cfg.Embedder.Model = cc.embedderModel
	}
	if cc.scorerURL != "" {
		cfg.Scorer.Backend = "http"
		cfg.Scorer.BaseURL = cc.scorerURL
		cfg.Scorer.Model = cc.scorerModel
	}
	if cc.candidatePool > 0 {
		cfg.Search.CandidatePool = cc.candidatePool
	}
	if cc.remoteDisabled {
		cfg.Cache.Enabled = false
	}
}

// Build embeds a CSV dataset and builds the tenant's search index. A
// complete remote artifact set is reused instead of re-embedding.
func (c *Client) Build(ctx context.Context, tenant, datasetPath string, roles Roles) (*BuildInfo, error) {
	id, err := internal.NewTenantID(tenant)
	if err != nil {
		return nil, err
	}
	ds, err := internal.LoadDatasetCSV(datasetPath)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	res, err := c.pipeline.Build(ctx, id, ds, internal.BuildOptions{
		Roles:    toColumnRoles(roles),
		UseCache: c.cfg.Cache.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return &BuildInfo{RecordCount: res.RecordCount, EmbeddingsCreated: res.EmbeddingsCreated}, nil
}

// Append embeds and indexes one new record.
func (c *Client) Append(ctx context.Context, tenant string, fields map[string]string) (int, error) {
	id, err := internal.NewTenantID(tenant)
	if err != nil {
		return 0, err
	}
	res, err := c.pipeline.Append(ctx, id, fields)
	if err != nil {
		return 0, fmt.Errorf("append: %w", err)
	}
	return res.RecordCount, nil
}

// Search runs the hybrid duplicate search for one query.
func (c *Client) Search(ctx context.Context, tenant, query string, opts SearchOptions) ([]Result, error) {
	id, err := internal.NewTenantID(tenant)
	if err != nil {
		return nil, err
	}

	results, err := c.searcher.Search(ctx, id, internal.SearchRequest{
		Query:           query,
		SelectedColumns: opts.Columns,
		TopK:            opts.TopK,
		Filters: internal.SearchFilters{
			Application: opts.Application,
			Platform:    opts.Platform,
			Version:     opts.Version,
			Language:    opts.Language,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			Ordinal:           r.Ordinal,
			FinalScore:        r.FinalScore,
			RerankScore:       r.RerankScore,
			VersionSimilarity: r.VersionSimilarity,
			PlatformMatch:     r.PlatformMatch,
			LanguageMatch:     r.LanguageMatch,
			Fields:            r.Fields,
		})
	}
	return out, nil
}

// Status reports whether the tenant can serve searches, plus its index
// shape when it can.
func (c *Client) Status(ctx context.Context, tenant string) (*Status, error) {
	id, err := internal.NewTenantID(tenant)
	if err != nil {
		return nil, err
	}

	ts := c.registry.Get(id)
	ts.RLock()
	defer ts.RUnlock()

	if !ts.Servable() {
		return &Status{Servable: false}, nil
	}

	partitions := make(map[string]int, len(ts.Embeddings.Partitions()))
	for p, idx := range ts.Embeddings.Partitions() {
		partitions[string(p)] = idx.Len()
	}
	return &Status{
		Servable:    true,
		RecordCount: ts.Meta.RecordCount,
		Columns:     ts.Meta.Columns,
		Model:       ts.Meta.Model,
		Dimension:   ts.Meta.Dimension,
		Partitions:  partitions,
		UpdatedAt:   ts.Meta.UpdatedAt,
	}, nil
}

// Delete drops the tenant from memory and removes its local artifacts.
func (c *Client) Delete(ctx context.Context, tenant string) error {
	id, err := internal.NewTenantID(tenant)
	if err != nil {
		return err
	}
	if err := c.registry.Clear(id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func toColumnRoles(r Roles) internal.ColumnRoles {
	return internal.ColumnRoles{
		Text:        r.Text,
		Application: r.Application,
		Platform:    r.Platform,
		Version:     r.Version,
		Language:    r.Language,
		Priority:    r.Priority,
	}
}
