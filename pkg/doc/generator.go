package doc

import (
	"log/slog"
	"os"
)

// Generator renders a documentation tree into a textual document.
// Implementations traverse the tree depth first, in insertion order, and
// unwrap captured values themselves.
type Generator interface {
	Generate(root *Group, opts Options) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(root *Group, opts Options) (string, error)

func (f GeneratorFunc) Generate(root *Group, opts Options) (string, error) {
	return f(root, opts)
}

// Options tune a generator run. Zero values select generator defaults.
type Options struct {
	// Title overrides the document title taken from the root group.
	Title string
	// ContentType is used for request and response bodies.
	ContentType string
	// Indent is the indentation of rendered JSON bodies.
	Indent string
	// Format selects a sub-format, e.g. "yaml" or "json" for OpenAPI.
	Format string
	// Version is the API version, where the format has one.
	Version string
	Logger  *slog.Logger
}

func (o Options) contentType() string {
	if o.ContentType == "" {
		return "application/json"
	}
	return o.ContentType
}

func (o Options) indent() string {
	if o.Indent == "" {
		return "    "
	}
	return o.Indent
}

// DefaultGenerator is used by Emit when no generator is given.
var DefaultGenerator Generator = Blueprint{}

// Emit renders g with gen, or DefaultGenerator when gen is nil, and writes the
// result as the whole content of path.
func (g *Group) Emit(path string, gen Generator, opts Options) error {
	if gen == nil {
		gen = DefaultGenerator
	}
	logger := opts.Logger
	if logger == nil {
		logger = g.log()
		opts.Logger = logger
	}
	out, err := gen.Generate(g, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return err
	}
	if logger != nil {
		logger.Debug("documentation emitted", "path", path, "bytes", len(out))
	}
	return nil
}
