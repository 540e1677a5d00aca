package internal

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformUnknown Platform = "unknown"
)

// ColumnRoles is the declarative mapping from a tenant's schema onto
// the fields the engine understands. It is supplied once at build time
// and persisted in the tenant metadata; no runtime column-name guessing.
type ColumnRoles struct {
	Text        []string `json:"text" yaml:"text"`
	Application string   `json:"application,omitempty" yaml:"application,omitempty"`
	Platform    string   `json:"platform,omitempty" yaml:"platform,omitempty"`
	Version     string   `json:"version,omitempty" yaml:"version,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
	Priority    string   `json:"priority,omitempty" yaml:"priority,omitempty"`
}

func (r ColumnRoles) Validate(columns []string) error {
	if len(r.Text) == 0 {
		return fmt.Errorf("column roles: at least one text column required")
	}
	have := make(map[string]bool, len(columns))
	for _, c := range columns {
		have[c] = true
	}
	for _, c := range r.Text {
		if !have[c] {
			return fmt.Errorf("column roles: text column %q not in dataset", c)
		}
	}
	for _, c := range []string{r.Application, r.Platform, r.Version, r.Language, r.Priority} {
		if c != "" && !have[c] {
			return fmt.Errorf("column roles: column %q not in dataset", c)
		}
	}
	return nil
}

// Dataset is an ordered table of rows over named columns. Row order is
// identity: a record's position here must match its position in the
// embedding array and the index at all times.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

func NewDataset(columns []string, rows [][]string) (*Dataset, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("dataset: no columns")
	}
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c)
		}
		idx[c] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d cells, want %d", i, len(row), len(columns))
		}
	}
	return &Dataset{columns: columns, index: idx, rows: rows}, nil
}

func (d *Dataset) Len() int          { return len(d.rows) }
func (d *Dataset) Columns() []string { return d.columns }

func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Value returns the cell at (row, column), or "" when the column does
// not exist on this schema.
func (d *Dataset) Value(row int, column string) string {
	i, ok := d.index[column]
	if !ok || row < 0 || row >= len(d.rows) {
		return ""
	}
	return d.rows[row][i]
}

// AppendRow adds one record at the end, preserving ordinal identity.
// Cells for columns absent from fields are left empty. Returns the new
// record's ordinal.
func (d *Dataset) AppendRow(fields map[string]string) int {
	row := make([]string, len(d.columns))
	for col, v := range fields {
		if i, ok := d.index[col]; ok {
			row[i] = v
		}
	}
	d.rows = append(d.rows, row)
	return len(d.rows) - 1
}

// RowFields returns a copy of the row as a column->value map, used for
// the open extension part of search results.
func (d *Dataset) RowFields(row int) map[string]string {
	out := make(map[string]string, len(d.columns))
	if row < 0 || row >= len(d.rows) {
		return out
	}
	for i, c := range d.columns {
		out[c] = d.rows[row][i]
	}
	return out
}

// CombinedText concatenates the given text columns for a row, skipping
// empty cells, lowercased. Blank rows yield the "empty" placeholder so
// the embedder always receives a non-empty string.
func (d *Dataset) CombinedText(row int, textColumns []string) string {
	parts := make([]string, 0, len(textColumns))
	for _, col := range textColumns {
		if v := strings.TrimSpace(d.Value(row, col)); v != "" {
			parts = append(parts, v)
		}
	}
	combined := strings.ToLower(strings.TrimSpace(strings.Join(parts, ". ")))
	if combined == "" {
		return "empty"
	}
	return combined
}

func (d *Dataset) PlatformAt(row int, roles ColumnRoles) Platform {
	if roles.Platform == "" {
		return PlatformUnknown
	}
	return NormalizePlatform(d.Value(row, roles.Platform))
}

func (d *Dataset) LanguageAt(row int, roles ColumnRoles) string {
	if roles.Language == "" {
		return ""
	}
	return NormalizeLanguage(d.Value(row, roles.Language))
}

func NormalizePlatform(s string) Platform {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "android"):
		return PlatformAndroid
	case strings.Contains(s, "ios"), strings.Contains(s, "iphone"), strings.Contains(s, "ipad"):
		return PlatformIOS
	default:
		return PlatformUnknown
	}
}

var languagePattern = regexp.MustCompile(`^([a-z]{2})`)

// NormalizeLanguage extracts a 2-letter code from values like
// "en (0.75)" or "TR". Unrecognized values map to "".
func NormalizeLanguage(s string) string {
	m := languagePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return ""
	}
	return m[1]
}

// LoadDatasetCSV reads a dataset snapshot with a header row.
func LoadDatasetCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s: empty file", path)
	}

	columns := records[0]
	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]string, len(columns))
		copy(row, rec)
		rows = append(rows, row)
	}
	return NewDataset(columns, rows)
}

// SaveCSV writes the dataset snapshot with a header row.
func (d *Dataset) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset snapshot: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(d.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range d.rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush dataset snapshot: %w", err)
	}
	return nil
}
