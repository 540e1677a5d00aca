package internal

import (
	"fmt"
	log "log/slog"
	"os"
	"sync"
)

// Registry maps tenant ids to their in-memory stores. It is a second-
// level cache over the cache tier's local disk layer: an unseen tenant
// is reconstructed from its on-disk artifact set when one exists. The
// registry lock only guards the map; each TenantStore carries its own
// lock for data access.
type Registry struct {
	mu       sync.Mutex
	dataDir  string
	numTrees int
	tenants  map[TenantID]*TenantStore
}

func NewRegistry(dataDir string, numTrees int) *Registry {
	return &Registry{
		dataDir:  dataDir,
		numTrees: numTrees,
		tenants:  make(map[TenantID]*TenantStore),
	}
}

func (r *Registry) Paths(id TenantID) TenantPaths {
	return NewTenantPaths(r.dataDir, id)
}

// Get returns the tenant's store, reconstructing it from local
// artifacts on first access. Tenants with nothing on disk get a fresh
// unloaded store. The registry lock only covers the map insert; the
// disk load runs under the store's own lock so slow reconstruction of
// one tenant never blocks lookups for others.
func (r *Registry) Get(id TenantID) *TenantStore {
	r.mu.Lock()
	ts, ok := r.tenants[id]
	if !ok {
		ts = NewTenantStore(id)
		r.tenants[id] = ts
	}
	r.mu.Unlock()

	ts.loadOnce.Do(func() {
		r.reconstruct(ts)
	})
	return ts
}

func (r *Registry) reconstruct(ts *TenantStore) {
	ts.Lock()
	defer ts.Unlock()

	if ts.Loaded {
		return
	}

	paths := r.Paths(ts.ID)
	if !HasLocalMetadata(paths) {
		return
	}
	if !HasLocalDataset(paths) {
		// Metadata without its dataset snapshot is not servable.
		log.Warn("tenant metadata found without dataset", "tenant", ts.ID)
		return
	}

	ds, store, meta, err := LoadArtifacts(paths, r.numTrees)
	if err != nil {
		log.Error("reconstruct tenant from disk failed", "tenant", ts.ID, "error", err)
		return
	}

	ts.Dataset = ds
	ts.Embeddings = store
	ts.Meta = meta
	ts.Loaded = true
	ts.EmbeddingsReady = true
}

func (r *Registry) Set(id TenantID, ts *TenantStore) {
	ts.loadOnce.Do(func() {})
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[id] = ts
}

// Clear drops the tenant from memory and removes its local artifacts.
func (r *Registry) Clear(id TenantID) error {
	r.mu.Lock()
	delete(r.tenants, id)
	r.mu.Unlock()

	paths := r.Paths(id)
	if err := os.RemoveAll(paths.Dir()); err != nil {
		return fmt.Errorf("remove tenant artifacts: %w", err)
	}
	return nil
}
