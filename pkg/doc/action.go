package doc

import (
	"strings"

	"github.com/yourorg/apibuilder/internal/pathtmpl"
	"github.com/yourorg/apibuilder/pkg/capture"
	"github.com/yourorg/apibuilder/pkg/types"
)

// Action is one documented endpoint operation. Every builder call mutates the
// action and returns it so calls can be chained.
type Action struct {
	group    *Group
	docs     types.ActionDocs
	examples []*types.Example
}

func newAction(g *Group) *Action {
	return &Action{group: g, examples: []*types.Example{{}}}
}

// Method sets the HTTP method, uppercased.
func (a *Action) Method(name string) *Action {
	a.docs.Method = strings.ToUpper(name)
	return a
}

func (a *Action) Title(title string) *Action {
	a.docs.Title = title
	return a
}

func (a *Action) Desc(descs ...string) *Action {
	a.docs.Descriptions = append([]string(nil), descs...)
	return a
}

// URL stores path without its leading and trailing "/". With nil params it
// returns the trimmed template. With params it also records them via Params
// and returns the template expanded with their values.
//
// The return value therefore depends on whether params were given; callers
// that always want a concrete path must pass params.
func (a *Action) URL(path string, params any) (string, error) {
	a.docs.URL = trimSlashes(path)
	if params == nil {
		return a.docs.URL, nil
	}
	plain := a.Params(params)
	return pathtmpl.Expand(a.docs.URL, plain)
}

// Val captures v with descriptions. The result is not stored; pass it to
// Params, Query, ReqBody or ResBody, or nest it inside their values.
func (a *Action) Val(v any, descs ...string) *capture.Value {
	return capture.Capture(v).Desc(descs...)
}

// AnotherExample starts a new example. Later Params, Query, ReqBody, ResBody
// and Status calls write into it; earlier examples are left untouched.
func (a *Action) AnotherExample() *Action {
	a.examples = append(a.examples, &types.Example{})
	return a
}

func (a *Action) current() *types.Example {
	return a.examples[len(a.examples)-1]
}

// Params captures path parameters into the current example and returns the
// plain value.
func (a *Action) Params(v any) any {
	a.ParamsCaptured(v)
	return capture.Undo(v)
}

// ParamsCaptured is Params returning the captured value.
func (a *Action) ParamsCaptured(v any) *capture.Value {
	c := capture.Capture(v)
	a.current().Parameters = c
	return c
}

// Query captures query parameters into the current example and returns the
// plain value.
func (a *Action) Query(v any) any {
	a.QueryCaptured(v)
	return capture.Undo(v)
}

func (a *Action) QueryCaptured(v any) *capture.Value {
	c := capture.Capture(v)
	a.current().Query = c
	return c
}

// ReqBody captures the request body into the current example and returns the
// plain body. A non-empty desc replaces the body descriptions.
func (a *Action) ReqBody(body any, desc ...string) any {
	a.ReqBodyCaptured(body, desc...)
	return capture.Undo(body)
}

func (a *Action) ReqBodyCaptured(body any, desc ...string) *capture.Value {
	c := capture.Capture(body)
	if len(desc) > 0 && desc[0] != "" {
		c.Desc(desc...)
	}
	a.current().RequestBody = c
	return c
}

// ResBody captures the response body into the current example.
func (a *Action) ResBody(body any) *capture.Value {
	c := capture.Capture(body)
	a.current().ResponseBody = c
	return c
}

// Status records the response status code of the current example.
func (a *Action) Status(code int) *Action {
	a.current().Status = code
	return a
}

// Is runs collect with the action and returns the action.
func (a *Action) Is(collect func(*Action)) *Action {
	collect(a)
	return a
}

// IsErr runs collect, which may block (for instance on a real request), and
// returns the action along with the error collect returned.
func (a *Action) IsErr(collect func(*Action) error) (*Action, error) {
	return a, collect(a)
}

// IsAsync runs collect on its own goroutine. The returned Pending resolves to
// the action once collect returns. The tree is not locked: do not touch the
// action until the Pending is done.
func (a *Action) IsAsync(collect func(*Action) error) *Pending[*Action] {
	return goPending(a, func() error { return collect(a) })
}

// Uncapture returns the plain value behind v.
func (a *Action) Uncapture(v any) any {
	return capture.Undo(v)
}

func (a *Action) Docs() types.ActionDocs {
	d := a.docs
	d.Descriptions = append([]string(nil), a.docs.Descriptions...)
	return d
}

// Group returns the owning group.
func (a *Action) Group() *Group {
	return a.group
}

// Examples returns the examples in order. The records are shared with the
// action.
func (a *Action) Examples() []*types.Example {
	return append([]*types.Example(nil), a.examples...)
}

// Example returns example i, or nil when out of range.
func (a *Action) Example(i int) *types.Example {
	if i < 0 || i >= len(a.examples) {
		return nil
	}
	return a.examples[i]
}

// Cursor is the index of the example currently written to.
func (a *Action) Cursor() int {
	return len(a.examples) - 1
}

func trimSlashes(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.TrimSuffix(p, "/")
}
