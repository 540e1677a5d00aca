package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeRemote keeps artifact sets in memory, keyed by tenant and
// filename. Failure flags simulate an unreachable mirror.
type fakeRemote struct {
	objects      map[TenantID]map[string][]byte
	failDownload bool
	failUpload   bool
	uploads      int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{objects: make(map[TenantID]map[string][]byte)}
}

func (r *fakeRemote) Exists(_ context.Context, tenant TenantID) (bool, error) {
	set, ok := r.objects[tenant]
	if !ok {
		return false, nil
	}
	_, ok = set[MetadataFilename]
	return ok, nil
}

func (r *fakeRemote) Download(_ context.Context, tenant TenantID, destDir string) error {
	if r.failDownload {
		return errors.New("remote unreachable")
	}
	set, ok := r.objects[tenant]
	if !ok {
		return fmt.Errorf("tenant %s not mirrored", tenant)
	}
	for name, data := range set {
		if err := os.WriteFile(filepath.Join(destDir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRemote) Upload(_ context.Context, tenant TenantID, srcDir string) error {
	if r.failUpload {
		return errors.New("remote unreachable")
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}
	set := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(srcDir, e.Name()))
		if err != nil {
			return err
		}
		set[e.Name()] = data
	}
	r.objects[tenant] = set
	r.uploads++
	return nil
}

func testArtifactSet(t *testing.T) (*Dataset, *EmbeddingStore, *Metadata) {
	t.Helper()
	ds := sampleDataset(t)
	roles := sampleRoles()

	store := NewEmbeddingStore(4, 10)
	vectors := make([][]float32, ds.Len())
	platforms := make([]Platform, ds.Len())
	base := testVectors()
	for i := 0; i < ds.Len(); i++ {
		vectors[i] = base[i]
		platforms[i] = ds.PlatformAt(i, roles)
	}
	if err := store.BuildAll(context.Background(), vectors, platforms); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	meta := &Metadata{
		TenantID:    "acme",
		RecordCount: ds.Len(),
		Columns:     ds.Columns(),
		Roles:       roles,
		Model:       "hash-bow",
		Dimension:   4,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return ds, store, meta
}

func TestSaveAndLoadArtifacts(t *testing.T) {
	ds, store, meta := testArtifactSet(t)
	paths := NewTenantPaths(t.TempDir(), "acme")

	if err := SaveArtifacts(paths, ds, store, meta); err != nil {
		t.Fatal(err)
	}

	loadedDS, loadedStore, loadedMeta, err := LoadArtifacts(paths, 10)
	if err != nil {
		t.Fatal(err)
	}
	if loadedDS.Len() != ds.Len() {
		t.Errorf("expected %d rows, got %d", ds.Len(), loadedDS.Len())
	}
	if loadedStore.Len() != store.Len() {
		t.Errorf("expected %d vectors, got %d", store.Len(), loadedStore.Len())
	}
	if loadedMeta.Model != "hash-bow" {
		t.Errorf("expected model hash-bow, got %q", loadedMeta.Model)
	}
	if len(loadedMeta.Roles.Text) != 2 {
		t.Errorf("expected 2 text roles, got %d", len(loadedMeta.Roles.Text))
	}

	android, ok := loadedStore.Partition(PlatformAndroid)
	if !ok {
		t.Fatal("expected android partition after load")
	}
	hits, err := android.Search(context.Background(), store.Vector(0), 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Ordinal != 0 {
		t.Errorf("expected ordinal 0, got %d", hits[0].Ordinal)
	}
}

func TestSaveArtifactsRejectsMisalignedStore(t *testing.T) {
	ds, store, meta := testArtifactSet(t)
	ds.AppendRow(map[string]string{"Summary": "extra row with no vector"})

	err := SaveArtifacts(NewTenantPaths(t.TempDir(), "acme"), ds, store, meta)
	if !errors.Is(err, ErrMisaligned) {
		t.Fatalf("expected ErrMisaligned, got %v", err)
	}
}

func TestSaveArtifactsReplacesAtomically(t *testing.T) {
	ds, store, meta := testArtifactSet(t)
	dataDir := t.TempDir()
	paths := NewTenantPaths(dataDir, "acme")

	if err := SaveArtifacts(paths, ds, store, meta); err != nil {
		t.Fatal(err)
	}

	ds.AppendRow(map[string]string{
		"Summary": "Push notifications silent", "Platform": "iOS", "Application": "wallet",
	})
	if err := store.Append(context.Background(), NormalizeVector([]float32{0, 0, 0, 1}), PlatformIOS); err != nil {
		t.Fatal(err)
	}
	meta.RecordCount = ds.Len()
	if err := SaveArtifacts(paths, ds, store, meta); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(paths.Root + ".staging"); !os.IsNotExist(err) {
		t.Error("expected staging dir to be cleaned up")
	}
	if _, err := os.Stat(paths.Root + ".old"); !os.IsNotExist(err) {
		t.Error("expected parked dir to be cleaned up")
	}

	_, loadedStore, loadedMeta, err := LoadArtifacts(paths, 10)
	if err != nil {
		t.Fatal(err)
	}
	if loadedMeta.RecordCount != 4 || loadedStore.Len() != 4 {
		t.Errorf("expected 4 records after replace, got meta=%d store=%d", loadedMeta.RecordCount, loadedStore.Len())
	}
}

func TestMaterializeFromRemote(t *testing.T) {
	ds, store, meta := testArtifactSet(t)
	srcPaths := NewTenantPaths(t.TempDir(), "acme")
	if err := SaveArtifacts(srcPaths, ds, store, meta); err != nil {
		t.Fatal(err)
	}

	remote := newFakeRemote()
	if err := remote.Upload(context.Background(), "acme", srcPaths.Dir()); err != nil {
		t.Fatal(err)
	}

	destPaths := NewTenantPaths(t.TempDir(), "acme")
	if err := Materialize(context.Background(), remote, "acme", destPaths); err != nil {
		t.Fatal(err)
	}

	_, loadedStore, loadedMeta, err := LoadArtifacts(destPaths, 10)
	if err != nil {
		t.Fatal(err)
	}
	if loadedMeta.RecordCount != 3 || loadedStore.Len() != 3 {
		t.Errorf("expected 3 records, got meta=%d store=%d", loadedMeta.RecordCount, loadedStore.Len())
	}
}

func TestMaterializeFailureKeepsLiveSet(t *testing.T) {
	ds, store, meta := testArtifactSet(t)
	paths := NewTenantPaths(t.TempDir(), "acme")
	if err := SaveArtifacts(paths, ds, store, meta); err != nil {
		t.Fatal(err)
	}

	remote := newFakeRemote()
	remote.failDownload = true
	if err := Materialize(context.Background(), remote, "acme", paths); err == nil {
		t.Fatal("expected download failure")
	}

	// The live set must still load after the failed transfer.
	_, _, loadedMeta, err := LoadArtifacts(paths, 10)
	if err != nil {
		t.Fatal(err)
	}
	if loadedMeta.RecordCount != 3 {
		t.Errorf("expected untouched live set with 3 records, got %d", loadedMeta.RecordCount)
	}
}
