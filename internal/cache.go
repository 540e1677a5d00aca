package internal

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
)

// RemoteStore mirrors a tenant's artifact set in durable remote
// storage so embeddings survive process restarts without
// recomputation. Partial transfers are failures, never partial
// success.
type RemoteStore interface {
	Exists(ctx context.Context, tenant TenantID) (bool, error)
	Download(ctx context.Context, tenant TenantID, destDir string) error
	Upload(ctx context.Context, tenant TenantID, srcDir string) error
}

// SaveArtifacts persists one complete artifact set. Everything is
// written into a staging directory first and swapped into place in one
// rename, so a failed write leaves the live set untouched.
func SaveArtifacts(paths TenantPaths, ds *Dataset, store *EmbeddingStore, meta *Metadata) error {
	if err := store.CheckAlignment(ds.Len()); err != nil {
		return err
	}

	staging := paths.Root + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := writeArtifactSet(staging, ds, store, meta); err != nil {
		return err
	}
	return installDir(staging, paths.Root)
}

func writeArtifactSet(dir string, ds *Dataset, store *EmbeddingStore, meta *Metadata) error {
	if err := ds.SaveCSV(filepath.Join(dir, DatasetFilename)); err != nil {
		return err
	}
	if err := writeVectors(filepath.Join(dir, VectorsFilename), store.Vectors()); err != nil {
		return err
	}

	partitions := make(map[string][]int, len(store.Partitions()))
	for p, idx := range store.Partitions() {
		partitions[string(p)] = idx.Ordinals()
		if err := idx.Save(filepath.Join(dir, IndexFilename(p))); err != nil {
			return fmt.Errorf("save %s index: %w", p, err)
		}
	}
	if err := writeJSON(filepath.Join(dir, PartitionsFilename), partitions); err != nil {
		return fmt.Errorf("write partition manifest: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, MetadataFilename), meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// installDir swaps a fully-written staging directory into place. The
// previous set is parked under .old until the swap has succeeded.
func installDir(staging, root string) error {
	old := root + ".old"
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear old artifacts: %w", err)
	}

	hadPrev := false
	if _, err := os.Stat(root); err == nil {
		hadPrev = true
		if err := os.Rename(root, old); err != nil {
			return fmt.Errorf("park previous artifacts: %w", err)
		}
	}

	if err := os.Rename(staging, root); err != nil {
		if hadPrev {
			if rerr := os.Rename(old, root); rerr != nil {
				log.Error("restore previous artifacts failed", "dir", root, "error", rerr)
			}
		}
		return fmt.Errorf("install artifacts: %w", err)
	}

	if hadPrev {
		if err := os.RemoveAll(old); err != nil {
			log.Warn("remove parked artifacts failed", "dir", old, "error", err)
		}
	}
	return nil
}

// LoadArtifacts reads one complete artifact set from disk and verifies
// the alignment invariant before handing the store out.
func LoadArtifacts(paths TenantPaths, numTrees int) (*Dataset, *EmbeddingStore, *Metadata, error) {
	var meta Metadata
	if err := readJSON(paths.MetadataPath(), &meta); err != nil {
		return nil, nil, nil, fmt.Errorf("read metadata: %w", err)
	}

	ds, err := LoadDatasetCSV(paths.DatasetPath())
	if err != nil {
		return nil, nil, nil, err
	}

	vectors, err := readVectors(paths.VectorsPath())
	if err != nil {
		return nil, nil, nil, err
	}

	var partitions map[string][]int
	if err := readJSON(paths.PartitionsPath(), &partitions); err != nil {
		return nil, nil, nil, fmt.Errorf("read partition manifest: %w", err)
	}

	store := NewEmbeddingStore(meta.Dimension, numTrees)
	store.vectors = vectors
	for name, ordinals := range partitions {
		idx, err := NewAnnoyIndex(meta.Dimension)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := idx.Load(paths.IndexPath(Platform(name)), ordinals); err != nil {
			return nil, nil, nil, fmt.Errorf("load %s index: %w", name, err)
		}
		store.partitions[Platform(name)] = idx
	}

	if err := store.CheckAlignment(ds.Len()); err != nil {
		return nil, nil, nil, NewError(KindConsistency, "artifact set on disk is misaligned", err)
	}
	return ds, store, &meta, nil
}

// HasLocalMetadata reports whether a metadata file exists for the
// tenant, independent of whether the rest of the set is present.
func HasLocalMetadata(paths TenantPaths) bool {
	_, err := os.Stat(paths.MetadataPath())
	return err == nil
}

// HasLocalDataset reports whether the dataset snapshot exists.
func HasLocalDataset(paths TenantPaths) bool {
	_, err := os.Stat(paths.DatasetPath())
	return err == nil
}

// Materialize fetches the tenant's artifact set from the remote mirror
// into the local layout. The download lands in staging and installs
// with the same swap as a local build, so an interrupted transfer
// never corrupts the live set.
func Materialize(ctx context.Context, remote RemoteStore, tenant TenantID, paths TenantPaths) error {
	staging := paths.Root + ".staging"
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging dir: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := remote.Download(ctx, tenant, staging); err != nil {
		return fmt.Errorf("download artifacts: %w", err)
	}
	return installDir(staging, paths.Root)
}

func writeVectors(path string, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vectors file: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(vectors); err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	return nil
}

func readVectors(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer f.Close()

	var vectors [][]float32
	if err := gob.NewDecoder(f).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}
	return vectors, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
