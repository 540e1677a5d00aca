package internal

import (
	"context"
	"errors"
	"testing"
)

type searchFixture struct {
	pipeline *Pipeline
	searcher *Searcher
	registry *Registry
	tenant   TenantID
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	models, err := NewModels(cfg)
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(cfg.DataDir, cfg.Index.Trees)

	fx := &searchFixture{
		pipeline: NewPipeline(registry, models, nil, cfg),
		searcher: NewSearcher(registry, models, cfg.Search),
		registry: registry,
		tenant:   "acme",
	}

	ds := sampleDataset(t)
	if _, err := fx.pipeline.Build(context.Background(), fx.tenant, ds, BuildOptions{Roles: sampleRoles()}); err != nil {
		t.Fatal(err)
	}
	return fx
}

func TestSearchRanksDuplicateFirst(t *testing.T) {
	fx := newSearchFixture(t)

	results, err := fx.searcher.Search(context.Background(), fx.tenant, SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
		Filters:         SearchFilters{Platform: "android"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}

	top := results[0]
	if top.Fields["Summary"] != "App crashes on login" {
		t.Errorf("expected crash report first, got %q", top.Fields["Summary"])
	}
	if top.PlatformMatch != 1 {
		t.Errorf("expected platform match 1, got %v", top.PlatformMatch)
	}
	if top.RerankScore <= 0 {
		t.Errorf("expected positive rerank score, got %v", top.RerankScore)
	}

	// Platform filter restricts candidates to the android partition.
	for _, r := range results {
		if r.Fields["Platform"] != "Android" {
			t.Errorf("expected only android candidates, got %q", r.Fields["Platform"])
		}
	}

	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results not sorted at position %d", i)
		}
	}
}

func TestSearchQueryTooShort(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.Search(context.Background(), fx.tenant, SearchRequest{Query: "  crash  "})
	if !errors.Is(err, ErrQueryTooShort) {
		t.Fatalf("expected ErrQueryTooShort, got %v", err)
	}
	if KindOf(err) != KindInput {
		t.Errorf("expected input kind, got %q", KindOf(err))
	}
}

func TestSearchUnknownTenant(t *testing.T) {
	fx := newSearchFixture(t)

	_, err := fx.searcher.Search(context.Background(), "ghost", SearchRequest{Query: "login is broken and crashes"})
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset, got %v", err)
	}
}

func TestSearchEmptyFilteredUniverse(t *testing.T) {
	fx := newSearchFixture(t)

	results, err := fx.searcher.Search(context.Background(), fx.tenant, SearchRequest{
		Query:   "login is broken and crashes",
		Filters: SearchFilters{Application: "no-such-app"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d results", len(results))
	}
}

func TestSearchLanguageFilterPushdown(t *testing.T) {
	fx := newSearchFixture(t)

	// Only the german row qualifies, even though it is the worst
	// semantic match; filtering happens before candidate truncation.
	results, err := fx.searcher.Search(context.Background(), fx.tenant, SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
		Filters:         SearchFilters{Language: "de"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(results))
	}
	if results[0].Fields["Language"] != "de" {
		t.Errorf("expected german row, got %q", results[0].Fields["Language"])
	}
	if results[0].LanguageMatch != 1 {
		t.Errorf("expected language match 1, got %v", results[0].LanguageMatch)
	}
}

func TestSearchVersionSimilarityContributes(t *testing.T) {
	fx := newSearchFixture(t)

	results, err := fx.searcher.Search(context.Background(), fx.tenant, SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
		Filters:         SearchFilters{Version: "2.1.3"},
	})
	if err != nil {
		t.Fatal(err)
	}

	var crash *SearchResult
	for i := range results {
		if results[i].Fields["Summary"] == "App crashes on login" {
			crash = &results[i]
		}
	}
	if crash == nil {
		t.Fatal("expected crash report in results")
	}
	if crash.VersionSimilarity != 1.0 {
		t.Errorf("expected version similarity 1.0, got %v", crash.VersionSimilarity)
	}
	expected := weightRerank*crash.RerankScore + weightVersion*1.0
	if diff := crash.FinalScore - expected; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected fused score %v, got %v", expected, crash.FinalScore)
	}
}

func TestSearchRanksByRerankWithoutFilters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	models, err := NewModels(cfg)
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(cfg.DataDir, cfg.Index.Trees)
	pipeline := NewPipeline(registry, models, nil, cfg)
	searcher := NewSearcher(registry, models, cfg.Search)

	ds, err := NewDataset([]string{"Summary", "Platform"}, [][]string{
		{"app crashes on login", "android"},
		{"video freezes on play", "android"},
		{"cannot reset password", "android"},
	})
	if err != nil {
		t.Fatal(err)
	}
	roles := ColumnRoles{Text: []string{"Summary"}, Platform: "Platform"}
	if _, err := pipeline.Build(context.Background(), "acme", ds, BuildOptions{Roles: roles}); err != nil {
		t.Fatal(err)
	}

	results, err := searcher.Search(context.Background(), "acme", SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Fields["Summary"] != "app crashes on login" {
		t.Errorf("expected crash record first, got %q", results[0].Fields["Summary"])
	}
	// Without metadata filters the fused score is exactly the weighted
	// rerank score.
	for _, r := range results {
		expected := weightRerank * r.RerankScore
		if diff := r.FinalScore - expected; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("ordinal %d: expected score %v, got %v", r.Ordinal, expected, r.FinalScore)
		}
	}
}

func TestClampTopK(t *testing.T) {
	fx := newSearchFixture(t)

	cases := map[int]int{0: 10, -3: 10, 7: 7, 50: 50, 500: 50}
	for in, expected := range cases {
		if got := fx.searcher.clampTopK(in); got != expected {
			t.Errorf("clampTopK(%d): expected %d, got %d", in, expected, got)
		}
	}
}

func TestSearchApplicationFilterRanksFullPartition(t *testing.T) {
	// Two applications interleaved; the rare one must surface even when
	// it would fall outside a naive top-k cut.
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Search.CandidatePool = 4

	models, err := NewModels(cfg)
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(cfg.DataDir, cfg.Index.Trees)
	pipeline := NewPipeline(registry, models, nil, cfg)
	searcher := NewSearcher(registry, models, cfg.Search)

	columns := []string{"Summary", "Application", "Platform"}
	rows := [][]string{}
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{"app crashes on login screen", "wallet", "Android"})
	}
	rows = append(rows, []string{"crashes sometimes on login", "messenger", "Android"})
	ds, err := NewDataset(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	roles := ColumnRoles{Text: []string{"Summary"}, Application: "Application", Platform: "Platform"}
	if _, err := pipeline.Build(context.Background(), "acme", ds, BuildOptions{Roles: roles}); err != nil {
		t.Fatal(err)
	}

	results, err := searcher.Search(context.Background(), "acme", SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
		Filters:         SearchFilters{Application: "messenger"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the single messenger row, got %d results", len(results))
	}
	if results[0].Fields["Application"] != "messenger" {
		t.Errorf("expected messenger row, got %q", results[0].Fields["Application"])
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()

	models, err := NewModels(cfg)
	if err != nil {
		t.Fatal(err)
	}
	registry := NewRegistry(cfg.DataDir, cfg.Index.Trees)
	pipeline := NewPipeline(registry, models, nil, cfg)
	searcher := NewSearcher(registry, models, cfg.Search)

	columns := []string{"Summary", "Application", "Platform"}
	rows := [][]string{}
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{"app crashes on login screen", "wallet", "Android"})
	}
	rows = append(rows, []string{"crashes sometimes on login", "messenger", "Android"})
	ds, err := NewDataset(columns, rows)
	if err != nil {
		t.Fatal(err)
	}
	roles := ColumnRoles{Text: []string{"Summary"}, Application: "Application", Platform: "Platform"}
	if _, err := pipeline.Build(context.Background(), "acme", ds, BuildOptions{Roles: roles}); err != nil {
		t.Fatal(err)
	}

	results, err := searcher.Search(context.Background(), "acme", SearchRequest{
		Query:           "login is broken and crashes",
		SelectedColumns: []string{"Summary"},
		TopK:            5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 5 {
		t.Fatalf("expected exactly 5 results with 21 matching records, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].FinalScore > results[i-1].FinalScore {
			t.Errorf("results not sorted at %d: %f > %f", i, results[i].FinalScore, results[i-1].FinalScore)
		}
	}
}
