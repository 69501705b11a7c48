package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/apibuilder/pkg/doc"
)

// ErrUnknownFormat is returned by Lookup for an unregistered format name.
var ErrUnknownFormat = errors.New("unknown output format")

var generators = map[string]doc.Generator{
	"apib":     doc.Blueprint{},
	"openapi":  OpenAPI{},
	"markdown": Markdown{},
	"json":     Snapshot{},
}

var extensions = map[string]string{
	"apib":     ".apib",
	"openapi":  ".yaml",
	"markdown": ".md",
	"json":     ".json",
}

// Lookup returns the generator registered under name. Names are case
// insensitive; "md" and "blueprint" are accepted as aliases.
func Lookup(name string) (doc.Generator, error) {
	g, ok := generators[Canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, name, strings.Join(Names(), ", "))
	}
	return g, nil
}

// Names lists the registered format names in order.
func Names() []string {
	names := make([]string, 0, len(generators))
	for n := range generators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extension returns the file extension for format, honoring the OpenAPI JSON
// sub-format.
func Extension(format, sub string) string {
	f := Canonical(format)
	if f == "openapi" && strings.EqualFold(sub, "json") {
		return ".json"
	}
	if ext, ok := extensions[f]; ok {
		return ext
	}
	return ".txt"
}

// Canonical maps a format name or alias onto its registered name. The result
// is only registered if Lookup succeeds for name.
func Canonical(name string) string {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case "", "blueprint":
		return "apib"
	case "md":
		return "markdown"
	default:
		return n
	}
}
