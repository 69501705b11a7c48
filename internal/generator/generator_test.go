package generator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/internal/store"
	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/render"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.SQLiteStore, *config.Config) {
	t.Helper()
	workDir := t.TempDir()
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Output.Dir = filepath.Join(workDir, "docs")

	s, err := store.NewSQLiteStore(filepath.Join(workDir, "apibuilder.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	p, err := New(cfg, s)
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return p, s, cfg
}

func importShop(t *testing.T, p *Pipeline) *ImportResult {
	t.Helper()
	f, err := os.Open(filepath.Join("..", "..", "testdata", "shop.har"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	res, err := p.ImportHAR(f, "")
	if err != nil {
		t.Fatalf("import har: %v", err)
	}
	return res
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := New(&config.Config{}, nil); err == nil {
		t.Fatalf("expected error for nil store")
	}
}

func TestImportHARStoresDocument(t *testing.T) {
	p, s, _ := newTestPipeline(t)
	var stages []string
	p.Progress = func(stage string) { stages = append(stages, stage) }

	res := importShop(t, p)
	if res.Version != 1 {
		t.Fatalf("expected version 1, got %d", res.Version)
	}
	d := res.Document
	if d.Title != "Shop" || d.Host != "api.shop.test" || d.Source != "har" {
		t.Fatalf("unexpected document %+v", d)
	}
	if d.ActionCount != 3 || d.LogCount != 4 {
		t.Fatalf("unexpected counts actions=%d logs=%d", d.ActionCount, d.LogCount)
	}
	if res.Filter == nil || res.Filter.Kept != 4 || res.Build == nil || res.Build.Examples != 4 {
		t.Fatalf("unexpected reports %+v %+v", res.Filter, res.Build)
	}
	if len(stages) == 0 || stages[0] != "parsing har" {
		t.Fatalf("unexpected progress %v", stages)
	}

	logs, err := s.GetLogs(d.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, l := range logs {
		if strings.Contains(l.RequestBody, `"token":"t"`) {
			t.Fatalf("stored log was not sanitized: %s", l.RequestBody)
		}
	}
}

func TestRenderUsesCache(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	res := importShop(t, p)

	first, hit, err := p.Render(res.Document.ID, 0, "apib", false)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Fatalf("first render should not hit cache")
	}
	if !strings.HasPrefix(first.Output, "FORMAT: 1A\n") {
		t.Fatalf("unexpected output %q", first.Output)
	}
	second, hit, err := p.Render(res.Document.ID, 0, "blueprint", false)
	if err != nil {
		t.Fatal(err)
	}
	if !hit || second.Output != first.Output {
		t.Fatalf("expected cached render")
	}
	if _, hit, err := p.Render(res.Document.ID, 1, "apib", true); err != nil || hit {
		t.Fatalf("noCache render: hit=%v err=%v", hit, err)
	}

	if _, _, err := p.Render(res.Document.ID, 0, "pdf", false); !errors.Is(err, render.ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
	if _, _, err := p.Render("doc_missing", 0, "apib", false); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRenderOpenAPISubFormats(t *testing.T) {
	p, _, cfg := newTestPipeline(t)
	res := importShop(t, p)

	yml, _, err := p.Render(res.Document.ID, 0, "openapi", false)
	if err != nil {
		t.Fatal(err)
	}
	if yml.Format != "openapi+yaml" || !strings.Contains(yml.Output, "openapi: 3.0.3") {
		t.Fatalf("unexpected yaml render %s %q", yml.Format, yml.Output)
	}

	cfg.Render.OpenAPIFormat = "json"
	js, hit, err := p.Render(res.Document.ID, 0, "openapi", false)
	if err != nil {
		t.Fatal(err)
	}
	if hit || js.Format != "openapi+json" || !strings.HasPrefix(js.Output, "{") {
		t.Fatalf("unexpected json render %s hit=%v", js.Format, hit)
	}
	if err := render.ValidateOpenAPI(context.Background(), []byte(js.Output)); err != nil {
		t.Fatalf("openapi output does not validate: %v", err)
	}
}

func TestGenerateWritesEveryFormat(t *testing.T) {
	p, s, cfg := newTestPipeline(t)
	res := importShop(t, p)
	id := res.Document.ID

	paths, err := p.Generate(context.Background(), id, 0, []string{"apib", "openapi", "md", "json"}, cfg.Output.Dir)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{id + ".apib", id + ".yaml", id + ".md", id + ".json"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d files, got %v", len(want), paths)
	}
	for i, path := range paths {
		if filepath.Base(path) != want[i] {
			t.Fatalf("expected %s, got %s", want[i], path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) == 0 {
			t.Fatalf("%s is empty", path)
		}
	}

	cached, err := s.GetRender(id, 1, "markdown")
	if err != nil {
		t.Fatalf("expected render cached: %v", err)
	}
	md, _ := os.ReadFile(paths[2])
	if cached.Output != string(md) {
		t.Fatalf("cached output differs from written file")
	}
	d, _ := s.GetDocument(id)
	if d.Status != "generated" {
		t.Fatalf("expected generated status, got %s", d.Status)
	}

	// the json snapshot loads back into the same tree
	snap, _ := os.ReadFile(paths[3])
	back, err := render.ParseSnapshot(snap)
	if err != nil {
		t.Fatal(err)
	}
	if back.CountActions() != 3 {
		t.Fatalf("expected 3 actions, got %d", back.CountActions())
	}
}

func TestGenerateDefaultsToConfiguredFormats(t *testing.T) {
	p, _, cfg := newTestPipeline(t)
	res := importShop(t, p)
	cfg.Output.Formats = []string{"markdown"}

	paths, err := p.Generate(context.Background(), res.Document.ID, 0, nil, cfg.Output.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || filepath.Ext(paths[0]) != ".md" {
		t.Fatalf("unexpected paths %v", paths)
	}
}

func TestGenerateUnknownFormatMarksFailed(t *testing.T) {
	p, s, cfg := newTestPipeline(t)
	res := importShop(t, p)
	if _, err := p.Generate(context.Background(), res.Document.ID, 0, []string{"pdf"}, cfg.Output.Dir); err == nil {
		t.Fatalf("expected error")
	}
	d, _ := s.GetDocument(res.Document.ID)
	if d.Status != "failed" {
		t.Fatalf("expected failed status, got %s", d.Status)
	}
}

func TestImportTreeAndRebuild(t *testing.T) {
	p, _, _ := newTestPipeline(t)

	root := doc.New().Title("Inline").Host("api.inline.test")
	a := root.Group("Ping").Action("Ping")
	if _, err := a.Get("/ping", nil); err != nil {
		t.Fatal(err)
	}
	a.ResBody(map[string]any{"ok": true})
	snap, err := render.Snapshot{}.Generate(root, doc.Options{})
	if err != nil {
		t.Fatal(err)
	}

	res, err := p.ImportTree("", []byte(snap))
	if err != nil {
		t.Fatalf("import tree: %v", err)
	}
	if res.Document.Title != "Inline" || res.Document.Source != "tree" || res.Version != 1 {
		t.Fatalf("unexpected result %+v", res.Document)
	}
	next, err := p.ImportTree(res.Document.ID, []byte(snap))
	if err != nil {
		t.Fatal(err)
	}
	if next.Version != 2 {
		t.Fatalf("expected version 2, got %d", next.Version)
	}

	bad := doc.New()
	bad.Action("no method")
	badSnap, _ := render.Snapshot{}.Generate(bad, doc.Options{})
	if _, err := p.ImportTree("", []byte(badSnap)); !errors.Is(err, ErrInvalidTree) {
		t.Fatalf("expected ErrInvalidTree, got %v", err)
	}
	if _, err := p.ImportTree("", []byte("{")); !errors.Is(err, ErrInvalidTree) {
		t.Fatalf("expected ErrInvalidTree, got %v", err)
	}

	// snapshots carry no traffic
	if _, err := p.Rebuild(res.Document.ID); !errors.Is(err, ErrNoTraffic) {
		t.Fatalf("expected ErrNoTraffic, got %v", err)
	}

	shop := importShop(t, p)
	rebuilt, err := p.Rebuild(shop.Document.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rebuilt.Version != 2 || rebuilt.Document.ActionCount != 3 {
		t.Fatalf("unexpected rebuild %+v", rebuilt)
	}
}
