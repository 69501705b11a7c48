package doc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/yourorg/apibuilder/internal/pathtmpl"
	"github.com/yourorg/apibuilder/pkg/capture"
)

// ErrNoMethod is returned by generators for an action without a method.
var ErrNoMethod = errors.New("action method is not set")

// Route is the resolved location of an action.
type Route struct {
	Method string
	// Path is rooted at "/" in "{name}" form. It includes the base paths of
	// every group between the root and the action; the root base path
	// belongs to the host.
	Path        string
	PathParams  []string
	QueryParams []string
}

// Route resolves the action's method, path and parameter names.
func (a *Action) Route() (Route, error) {
	if a.docs.Method == "" {
		return Route{}, fmt.Errorf("%w: %q", ErrNoMethod, a.docs.Title)
	}
	var parts []string
	for g := a.group; g != nil && g.parent != nil; g = g.parent {
		if g.docs.BasePath != "" {
			parts = append([]string{g.docs.BasePath}, parts...)
		}
	}
	if a.docs.URL != "" {
		parts = append(parts, a.docs.URL)
	}
	tmpl, err := pathtmpl.Compile("/" + strings.Join(parts, "/"))
	if err != nil {
		return Route{}, err
	}
	return Route{
		Method:      a.docs.Method,
		Path:        tmpl.URITemplate(),
		PathParams:  tmpl.Names(),
		QueryParams: a.queryNames(),
	}, nil
}

func (a *Action) queryNames() []string {
	seen := map[string]struct{}{}
	add := func(v *capture.Value) {
		for _, k := range v.Keys() {
			seen[k] = struct{}{}
		}
	}
	for _, ex := range a.examples {
		add(ex.Query)
	}
	for g := a.group; g != nil; g = g.parent {
		add(g.queries)
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParamSample returns the first captured value for path parameter name,
// looking at the examples in order and then at group defaults, nearest
// first.
func (a *Action) ParamSample(name string) *capture.Value {
	for _, ex := range a.examples {
		if v, ok := ex.Parameters.Get(name); ok {
			return v
		}
	}
	for g := a.group; g != nil; g = g.parent {
		if v, ok := g.parameters.Get(name); ok {
			return v
		}
	}
	return nil
}

// QuerySample is ParamSample for query parameters.
func (a *Action) QuerySample(name string) *capture.Value {
	for _, ex := range a.examples {
		if v, ok := ex.Query.Get(name); ok {
			return v
		}
	}
	for g := a.group; g != nil; g = g.parent {
		if v, ok := g.queries.Get(name); ok {
			return v
		}
	}
	return nil
}

// BaseURL joins the first scheme, host and base path of g. It is empty when no
// host is set.
func (g *Group) BaseURL() string {
	if g.docs.Host == "" {
		return ""
	}
	scheme := "https"
	if len(g.docs.Schemes) > 0 {
		scheme = g.docs.Schemes[0]
	}
	u := scheme + "://" + g.docs.Host
	if g.docs.BasePath != "" {
		u += "/" + g.docs.BasePath
	}
	return u
}
