package internal

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const embedConcurrency = 4

// Pipeline produces and refreshes a tenant's searchable artifacts:
// embed the dataset, build the partition indexes, persist the artifact
// set, mirror it remotely.
type Pipeline struct {
	registry *Registry
	models   *Models
	remote   RemoteStore // nil when the cache tier is disabled
	cfg      *Config
}

func NewPipeline(registry *Registry, models *Models, remote RemoteStore, cfg *Config) *Pipeline {
	return &Pipeline{
		registry: registry,
		models:   models,
		remote:   remote,
		cfg:      cfg,
	}
}

type BuildOptions struct {
	Roles    ColumnRoles
	UseCache bool
}

type BuildResult struct {
	RecordCount       int
	EmbeddingsCreated bool
}

// Build creates or replaces the tenant's embedding store from a
// dataset. A complete remote artifact set short-circuits generation
// entirely; the cache hit is authoritative and not revalidated against
// the given dataset (callers invalidate the remote set when source
// data changes). Any failure leaves the tenant's prior state, in
// memory and on disk, untouched.
func (p *Pipeline) Build(ctx context.Context, id TenantID, ds *Dataset, opts BuildOptions) (*BuildResult, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, NewError(KindInput, "dataset is empty", nil)
	}
	if err := opts.Roles.Validate(ds.Columns()); err != nil {
		return nil, NewError(KindInput, "invalid column roles", err)
	}

	ts := p.registry.Get(id)
	ts.Lock()
	defer ts.Unlock()

	paths := p.registry.Paths(id)

	if opts.UseCache && p.remote != nil {
		if hit, err := p.tryCacheHit(ctx, id, ts, paths); err == nil && hit != nil {
			return hit, nil
		}
	}

	texts := make([]string, ds.Len())
	platforms := make([]Platform, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		texts[i] = ds.CombinedText(i, opts.Roles.Text)
		platforms[i] = ds.PlatformAt(i, opts.Roles)
	}

	vectors, err := p.embedAll(ctx, texts)
	if err != nil {
		return nil, NewError(KindModel, "embed dataset", err)
	}

	store := NewEmbeddingStore(p.models.Embedder.Dimension(), p.cfg.Index.Trees)
	if err := store.BuildAll(ctx, vectors, platforms); err != nil {
		return nil, NewError(KindIndex, "build vector index", err)
	}

	now := time.Now().UTC()
	createdAt := now
	if ts.Meta != nil {
		createdAt = ts.Meta.CreatedAt
	}
	meta := &Metadata{
		TenantID:    id.String(),
		RecordCount: ds.Len(),
		Columns:     ds.Columns(),
		Roles:       opts.Roles,
		Model:       p.models.Embedder.Model(),
		Dimension:   p.models.Embedder.Dimension(),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	if err := SaveArtifacts(paths, ds, store, meta); err != nil {
		return nil, NewError(KindCache, "persist artifacts", err)
	}

	ts.Dataset = ds
	ts.Embeddings = store
	ts.Meta = meta
	ts.Loaded = true
	ts.EmbeddingsReady = true

	p.uploadBestEffort(ctx, id, paths)

	log.Info("built tenant index", "tenant", id, "records", ds.Len(), "model", meta.Model)
	return &BuildResult{RecordCount: ds.Len(), EmbeddingsCreated: true}, nil
}

// tryCacheHit materializes the remote artifact set locally. Returns a
// non-nil result only on a fully usable download; every failure mode
// degrades to local generation (cache-tier errors are never fatal).
func (p *Pipeline) tryCacheHit(ctx context.Context, id TenantID, ts *TenantStore, paths TenantPaths) (*BuildResult, error) {
	exists, err := p.remote.Exists(ctx, id)
	if err != nil {
		log.Warn("remote cache check failed, rebuilding locally", "tenant", id, "error", err)
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	if err := Materialize(ctx, p.remote, id, paths); err != nil {
		log.Warn("remote cache download failed, rebuilding locally", "tenant", id, "error", err)
		return nil, err
	}

	ds, store, meta, err := LoadArtifacts(paths, p.cfg.Index.Trees)
	if err != nil {
		log.Warn("cached artifacts unusable, rebuilding locally", "tenant", id, "error", err)
		return nil, err
	}

	ts.Dataset = ds
	ts.Embeddings = store
	ts.Meta = meta
	ts.Loaded = true
	ts.EmbeddingsReady = true

	log.Info("served build from remote cache", "tenant", id, "records", meta.RecordCount)
	return &BuildResult{RecordCount: meta.RecordCount, EmbeddingsCreated: false}, nil
}

// embedAll runs the embedder over texts in batches, preserving row
// order. Concurrency is bounded; each batch writes into its own slice
// segment so no ordering is lost.
func (p *Pipeline) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	batchSize := p.cfg.Embedder.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := p.models.Embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embed batch [%d:%d]: got %d vectors", start, end, len(batch))
			}
			for i, vec := range batch {
				vectors[start+i] = NormalizeVector(vec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

type AppendResult struct {
	RecordCount int
}

// Append embeds a single new record and extends the tenant's dataset,
// vector array and platform index in lockstep. Disk is the rollback
// source: if anything fails after the in-memory state was touched, the
// store is re-materialized from the still-untouched artifact set.
func (p *Pipeline) Append(ctx context.Context, id TenantID, fields map[string]string) (*AppendResult, error) {
	ts := p.registry.Get(id)
	ts.Lock()
	defer ts.Unlock()

	if !ts.Servable() || ts.Meta == nil {
		return nil, NewError(KindInput, "tenant has no index; run build first", ErrNoDataset)
	}

	roles := ts.Meta.Roles
	text := combineFields(fields, roles.Text)

	batch, err := p.models.Embedder.EmbedBatch(ctx, []string{text})
	if err != nil || len(batch) != 1 {
		if err == nil {
			err = fmt.Errorf("embedder returned %d vectors for 1 text", len(batch))
		}
		return nil, NewError(KindModel, "embed new record", err)
	}
	vec := NormalizeVector(batch[0])

	paths := p.registry.Paths(id)

	ordinal := ts.Dataset.AppendRow(fields)
	platform := ts.Dataset.PlatformAt(ordinal, roles)

	if err := ts.Embeddings.Append(ctx, vec, platform); err != nil {
		p.reloadFromDisk(ts, paths)
		return nil, NewError(KindIndex, "append to index", err)
	}
	if err := ts.Embeddings.CheckAlignment(ts.Dataset.Len()); err != nil {
		p.reloadFromDisk(ts, paths)
		return nil, NewError(KindConsistency, "alignment broken after append", err)
	}

	ts.Meta.RecordCount = ts.Dataset.Len()
	ts.Meta.UpdatedAt = time.Now().UTC()

	if err := SaveArtifacts(paths, ts.Dataset, ts.Embeddings, ts.Meta); err != nil {
		p.reloadFromDisk(ts, paths)
		return nil, NewError(KindCache, "persist appended artifacts", err)
	}

	p.uploadBestEffort(ctx, id, paths)

	log.Info("appended record", "tenant", id, "ordinal", ordinal, "platform", platform)
	return &AppendResult{RecordCount: ts.Dataset.Len()}, nil
}

// reloadFromDisk restores the in-memory store from the last installed
// artifact set after a failed mutation. Caller holds the write lock.
func (p *Pipeline) reloadFromDisk(ts *TenantStore, paths TenantPaths) {
	ds, store, meta, err := LoadArtifacts(paths, p.cfg.Index.Trees)
	if err != nil {
		log.Error("rollback reload failed; tenant marked unservable", "tenant", ts.ID, "error", err)
		ts.Loaded = false
		ts.EmbeddingsReady = false
		return
	}
	ts.Dataset = ds
	ts.Embeddings = store
	ts.Meta = meta
	ts.Loaded = true
	ts.EmbeddingsReady = true
}

func (p *Pipeline) uploadBestEffort(ctx context.Context, id TenantID, paths TenantPaths) {
	if !p.cfg.Cache.Enabled || p.remote == nil {
		return
	}
	if err := p.remote.Upload(ctx, id, paths.Dir()); err != nil {
		// Local artifacts already satisfy serving; the mirror is a
		// durability optimization.
		log.Warn("remote artifact upload failed", "tenant", id, "error", err)
	}
}

func combineFields(fields map[string]string, textColumns []string) string {
	parts := make([]string, 0, len(textColumns))
	for _, col := range textColumns {
		if v := strings.TrimSpace(fields[col]); v != "" {
			parts = append(parts, v)
		}
	}
	combined := strings.ToLower(strings.TrimSpace(strings.Join(parts, ". ")))
	if combined == "" {
		return "empty"
	}
	return combined
}
