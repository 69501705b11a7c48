package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/internal/filter"
	"github.com/yourorg/apibuilder/internal/har"
	"github.com/yourorg/apibuilder/internal/store"
	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/render"
	"github.com/yourorg/apibuilder/pkg/types"
)

var (
	// ErrInvalidTree is returned when an uploaded snapshot cannot be rendered.
	ErrInvalidTree = errors.New("invalid documentation tree")
	// ErrNoTraffic is returned by Rebuild for documents without stored logs,
	// such as those imported from a snapshot.
	ErrNoTraffic = errors.New("no recorded traffic")
)

// ProgressFunc reports generation progress.
type ProgressFunc func(stage string)

// Pipeline imports traffic and snapshots into the store and renders stored
// trees through the registered generators.
type Pipeline struct {
	cfg      *config.Config
	store    store.Store
	Logger   *slog.Logger
	Progress ProgressFunc
}

func New(cfg *config.Config, st store.Store) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if st == nil {
		return nil, errors.New("store is nil")
	}
	return &Pipeline{cfg: cfg, store: st}, nil
}

// ImportResult describes one stored tree version.
type ImportResult struct {
	Document *types.Document  `json:"document"`
	Version  int              `json:"version"`
	Filter   *filter.Report   `json:"filter,omitempty"`
	Build    *har.BuildReport `json:"build,omitempty"`
}

// ImportHAR parses a HAR document, filters and sanitizes its traffic, builds
// a tree from it and stores logs and tree under a new document. An empty
// title falls back to the HAR page title.
func (p *Pipeline) ImportHAR(r io.Reader, title string) (*ImportResult, error) {
	p.report("parsing har")
	hf, logs, err := har.ParseReader(r)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = hf.Title()
	}
	return p.ImportLogs("har", title, logs)
}

// ImportLogs stores already decoded traffic under a new document whose
// source is recorded as given.
func (p *Pipeline) ImportLogs(source, title string, logs []types.TrafficLog) (*ImportResult, error) {
	if title == "" {
		title = "API"
	}
	kept, frep, root, brep := p.build(title, logs)

	d, err := p.store.CreateDocument(source, title, root.Docs().Host)
	if err != nil {
		return nil, err
	}
	if err := p.store.SaveLogs(d.ID, kept); err != nil {
		return nil, err
	}
	return p.saveTree(d.ID, root, &frep, &brep)
}

// Rebuild runs the stored traffic of a document through the current filter
// rules again and stores the result as a new version.
func (p *Pipeline) Rebuild(docID string) (*ImportResult, error) {
	d, err := p.store.GetDocument(docID)
	if err != nil {
		return nil, err
	}
	logs, err := p.store.GetLogs(docID)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, fmt.Errorf("document %s: %w", docID, ErrNoTraffic)
	}
	_, frep, root, brep := p.build(d.Title, logs)
	return p.saveTree(docID, root, &frep, &brep)
}

func (p *Pipeline) build(title string, logs []types.TrafficLog) ([]types.TrafficLog, filter.Report, *doc.Group, har.BuildReport) {
	p.report("filtering logs")
	kept, frep := filter.New(p.cfg.Filter).Apply(logs)
	p.report("sanitizing logs")
	kept = filter.Sanitize(kept, p.cfg.Sanitize)

	p.report("building tree")
	root := doc.New().Title(title)
	root.SetLogger(p.Logger)
	brep := (&har.Builder{Logger: p.Logger}).Build(root, kept)
	return kept, frep, root, brep
}

// ImportTree stores a JSON snapshot. With an empty docID a new document is
// created; otherwise the snapshot becomes the next version of docID.
func (p *Pipeline) ImportTree(docID string, data []byte) (*ImportResult, error) {
	root, err := render.ParseSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTree, err)
	}
	if err := checkTree(root); err != nil {
		return nil, err
	}
	if docID == "" {
		title := root.Docs().Title
		if title == "" {
			title = "API"
		}
		d, err := p.store.CreateDocument("tree", title, root.Docs().Host)
		if err != nil {
			return nil, err
		}
		docID = d.ID
	} else if _, err := p.store.GetDocument(docID); err != nil {
		return nil, err
	}
	return p.saveTree(docID, root, nil, nil)
}

// checkTree rejects trees with actions no generator can place.
func checkTree(root *doc.Group) error {
	var err error
	root.Walk(func(g *doc.Group) {
		for _, a := range g.Actions() {
			if err != nil {
				return
			}
			if _, rerr := a.Route(); rerr != nil {
				err = fmt.Errorf("%w: %v", ErrInvalidTree, rerr)
			}
		}
	})
	return err
}

func (p *Pipeline) saveTree(docID string, root *doc.Group, frep *filter.Report, brep *har.BuildReport) (*ImportResult, error) {
	version, err := p.store.SaveTree(docID, root.Snapshot(), root.CountActions())
	if err != nil {
		return nil, err
	}
	d, err := p.store.GetDocument(docID)
	if err != nil {
		return nil, err
	}
	p.log().Info("tree stored", "document", docID, "version", version, "actions", d.ActionCount)
	return &ImportResult{Document: d, Version: version, Filter: frep, Build: brep}, nil
}

// Options returns the generator options for format, taken from the render
// config.
func (p *Pipeline) Options(format string) doc.Options {
	opts := doc.Options{
		Title:       p.cfg.Render.Title,
		ContentType: p.cfg.Render.ContentType,
		Indent:      p.cfg.IndentString(),
		Version:     p.cfg.Render.Version,
		Logger:      p.Logger,
	}
	if render.Canonical(format) == "openapi" {
		opts.Format = p.cfg.Render.OpenAPIFormat
	}
	return opts
}

// cacheKey separates the OpenAPI sub-formats in the render cache.
func (p *Pipeline) cacheKey(format string) string {
	f := render.Canonical(format)
	if f == "openapi" {
		return f + "+" + strings.ToLower(p.cfg.Render.OpenAPIFormat)
	}
	return f
}

// Render returns one format of a stored tree version; version 0 is the
// latest. Outputs are cached per version unless noCache is set. The second
// return value reports a cache hit.
func (p *Pipeline) Render(docID string, version int, format string, noCache bool) (*types.Render, bool, error) {
	gen, err := render.Lookup(format)
	if err != nil {
		return nil, false, err
	}
	tv, err := p.store.GetTree(docID, version)
	if err != nil {
		return nil, false, err
	}
	key := p.cacheKey(format)
	if !noCache {
		if cached, err := p.store.GetRender(docID, tv.Version, key); err == nil {
			return cached, true, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}
	}

	root := doc.FromSnapshot(tv.Tree)
	root.SetLogger(p.Logger)
	out, err := gen.Generate(root, p.Options(format))
	if err != nil {
		return nil, false, err
	}
	r := &types.Render{DocumentID: docID, Version: tv.Version, Format: key, Output: out}
	if err := p.store.SaveRender(r); err != nil {
		return nil, false, err
	}
	return r, false, nil
}

// Generate emits every format of a document version into outDir, one file
// per format named after the document. The written paths are returned in
// format order.
func (p *Pipeline) Generate(ctx context.Context, docID string, version int, formats []string, outDir string) ([]string, error) {
	if len(formats) == 0 {
		formats = p.cfg.Output.Formats
	}
	tv, err := p.store.GetTree(docID, version)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := p.store.UpdateDocumentStatus(docID, "generating"); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		p.report("rendering " + render.Canonical(format))
		path, err := p.emit(ctx, tv, format, outDir)
		if err != nil {
			_ = p.store.UpdateDocumentStatus(docID, "failed")
			return paths, fmt.Errorf("%s: %w", format, err)
		}
		paths = append(paths, path)
	}
	if err := p.store.UpdateDocumentStatus(docID, "generated"); err != nil {
		return paths, err
	}
	return paths, nil
}

func (p *Pipeline) emit(ctx context.Context, tv *types.TreeVersion, format, outDir string) (string, error) {
	gen, err := render.Lookup(format)
	if err != nil {
		return "", err
	}
	opts := p.Options(format)
	path := filepath.Join(outDir, tv.DocumentID+render.Extension(format, opts.Format))

	var out string
	recording := doc.GeneratorFunc(func(g *doc.Group, o doc.Options) (string, error) {
		s, err := gen.Generate(g, o)
		out = s
		return s, err
	})
	root := doc.FromSnapshot(tv.Tree)
	root.SetLogger(p.Logger)
	if err := root.Emit(path, recording, opts); err != nil {
		return "", err
	}

	key := p.cacheKey(format)
	if key == "openapi+yaml" || key == "openapi+json" {
		if err := render.ValidateOpenAPI(ctx, []byte(out)); err != nil {
			p.log().Warn("openapi output does not validate", "document", tv.DocumentID, "err", err)
		}
	}
	if err := p.store.SaveRender(&types.Render{DocumentID: tv.DocumentID, Version: tv.Version, Format: key, Output: out}); err != nil {
		return "", err
	}
	return path, nil
}

func (p *Pipeline) report(msg string) {
	if p.Progress != nil {
		p.Progress(msg)
	}
}

func (p *Pipeline) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.New(slog.DiscardHandler)
}
