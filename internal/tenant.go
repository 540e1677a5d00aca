package internal

import (
	"path/filepath"
	"regexp"
	"sync"
	"time"
)

var tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

type TenantID string

func NewTenantID(s string) (TenantID, error) {
	if s == "" || !tenantPattern.MatchString(s) {
		return "", ErrInvalidTenant
	}
	return TenantID(s), nil
}

func (t TenantID) String() string { return string(t) }

// Artifact filenames within a tenant directory. The four files plus
// one index file per platform form one CacheArtifactSet; they are only
// ever installed together.
const (
	DatasetFilename    = "dataset.csv"
	VectorsFilename    = "vectors.gob"
	PartitionsFilename = "partitions.json"
	MetadataFilename   = "metadata.json"
)

func IndexFilename(p Platform) string {
	return "index_" + string(p) + ".ann"
}

// TenantPaths resolves the local artifact layout for one tenant.
type TenantPaths struct {
	Root string
}

func NewTenantPaths(dataDir string, id TenantID) TenantPaths {
	return TenantPaths{Root: filepath.Join(dataDir, "tenants", id.String())}
}

func (p TenantPaths) Dir() string            { return p.Root }
func (p TenantPaths) DatasetPath() string    { return filepath.Join(p.Root, DatasetFilename) }
func (p TenantPaths) VectorsPath() string    { return filepath.Join(p.Root, VectorsFilename) }
func (p TenantPaths) PartitionsPath() string { return filepath.Join(p.Root, PartitionsFilename) }
func (p TenantPaths) MetadataPath() string   { return filepath.Join(p.Root, MetadataFilename) }
func (p TenantPaths) IndexPath(plat Platform) string {
	return filepath.Join(p.Root, IndexFilename(plat))
}

// Metadata is the small durable record describing one artifact set.
type Metadata struct {
	TenantID    string      `json:"tenant_id"`
	RecordCount int         `json:"record_count"`
	Columns     []string    `json:"columns"`
	Roles       ColumnRoles `json:"roles"`
	Model       string      `json:"model"`
	Dimension   int         `json:"dimension"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TenantStore bundles a tenant's dataset, embedding store and status
// flags. The embedded lock serializes writers (build, append) against
// readers (search) for this tenant only; cross-tenant operations never
// contend.
type TenantStore struct {
	sync.RWMutex

	ID              TenantID
	Dataset         *Dataset
	Embeddings      *EmbeddingStore
	Meta            *Metadata
	Loaded          bool
	EmbeddingsReady bool

	// loadOnce guards lazy reconstruction from disk so it runs at most
	// once per store, outside the registry map lock.
	loadOnce sync.Once
}

func NewTenantStore(id TenantID) *TenantStore {
	return &TenantStore{ID: id}
}

// Servable reports whether the tenant can answer searches.
func (t *TenantStore) Servable() bool {
	return t.Loaded && t.EmbeddingsReady && t.Dataset != nil && t.Embeddings != nil
}
