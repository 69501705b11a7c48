package doc

import (
	"log/slog"

	"github.com/yourorg/apibuilder/pkg/capture"
	"github.com/yourorg/apibuilder/pkg/types"
)

// Group is a namespace node of the documentation tree. It holds child groups
// and actions in insertion order.
type Group struct {
	parent     *Group
	depth      int
	docs       types.GroupDocs
	parameters *capture.Value
	queries    *capture.Value
	children   []*Group
	actions    []*Action
	logger     *slog.Logger
}

var root = New()

// Root returns the process-wide root group.
func Root() *Group {
	return root
}

// New returns an empty root group, independent of Root.
func New() *Group {
	return &Group{}
}

func newChild(parent *Group) *Group {
	return &Group{parent: parent, depth: parent.depth + 1}
}

func (g *Group) Title(title string) *Group {
	g.docs.Title = title
	return g
}

func (g *Group) Desc(descs ...string) *Group {
	g.docs.Descriptions = append([]string(nil), descs...)
	return g
}

func (g *Group) Scheme(schemes ...string) *Group {
	g.docs.Schemes = append([]string(nil), schemes...)
	return g
}

func (g *Group) Host(host string) *Group {
	g.docs.Host = host
	return g
}

// BasePath stores path without its leading and trailing "/" and, when params
// is non-nil, captures them as the group's default parameters.
func (g *Group) BasePath(path string, params any) *Group {
	g.docs.BasePath = trimSlashes(path)
	if params != nil {
		g.Params(params)
	}
	return g
}

func (g *Group) Val(v any, descs ...string) *capture.Value {
	return capture.Capture(v).Desc(descs...)
}

// Params captures the default parameters of the group and returns the plain
// value.
func (g *Group) Params(v any) any {
	g.ParamsCaptured(v)
	return capture.Undo(v)
}

func (g *Group) ParamsCaptured(v any) *capture.Value {
	g.parameters = capture.Capture(v)
	return g.parameters
}

// Query captures the default query of the group and returns the plain value.
func (g *Group) Query(v any) any {
	g.QueryCaptured(v)
	return capture.Undo(v)
}

func (g *Group) QueryCaptured(v any) *capture.Value {
	g.queries = capture.Capture(v)
	return g.queries
}

// Group returns the direct child titled title, creating it on first use.
func (g *Group) Group(title string) *Group {
	for _, c := range g.children {
		if c.docs.Title == title {
			return c
		}
	}
	child := newChild(g).Title(title)
	g.children = append(g.children, child)
	return child
}

// Action appends a new action. Titles are not deduplicated.
func (g *Group) Action(title string) *Action {
	a := newAction(g).Title(title)
	g.actions = append(g.actions, a)
	return a
}

func (g *Group) Is(collect func(*Group)) *Group {
	collect(g)
	return g
}

func (g *Group) IsErr(collect func(*Group) error) (*Group, error) {
	return g, collect(g)
}

// IsAsync runs collect on its own goroutine; see Action.IsAsync.
func (g *Group) IsAsync(collect func(*Group) error) *Pending[*Group] {
	return goPending(g, func() error { return collect(g) })
}

func (g *Group) Uncapture(v any) any {
	return capture.Undo(v)
}

// SetLogger sets the logger used by g and the groups below it.
func (g *Group) SetLogger(l *slog.Logger) *Group {
	g.logger = l
	return g
}

func (g *Group) log() *slog.Logger {
	for n := g; n != nil; n = n.parent {
		if n.logger != nil {
			return n.logger
		}
	}
	return nil
}

func (g *Group) Docs() types.GroupDocs {
	d := g.docs
	d.Descriptions = append([]string(nil), g.docs.Descriptions...)
	d.Schemes = append([]string(nil), g.docs.Schemes...)
	return d
}

func (g *Group) Parameters() *capture.Value { return g.parameters }
func (g *Group) Queries() *capture.Value    { return g.queries }
func (g *Group) Parent() *Group             { return g.parent }

// Depth is the distance from the root, which is 0.
func (g *Group) Depth() int { return g.depth }

func (g *Group) Children() []*Group {
	return append([]*Group(nil), g.children...)
}

func (g *Group) Actions() []*Action {
	return append([]*Action(nil), g.actions...)
}

// Walk calls fn for g and every group below it, depth first in insertion
// order.
func (g *Group) Walk(fn func(*Group)) {
	fn(g)
	for _, c := range g.children {
		c.Walk(fn)
	}
}
