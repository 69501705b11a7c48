package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourorg/apibuilder/pkg/capture"
	"github.com/yourorg/apibuilder/pkg/doc"
)

// Markdown renders the tree as a single Markdown page.
type Markdown struct{}

func (Markdown) Generate(root *doc.Group, opts doc.Options) (string, error) {
	d := root.Docs()
	title := opts.Title
	if title == "" {
		title = d.Title
	}
	if title == "" {
		title = "API Docs"
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "# %s\n\n", title)
	if base := root.BaseURL(); base != "" {
		fmt.Fprintf(b, "**Base URL:** `%s`\n\n", base)
	}
	for _, desc := range d.Descriptions {
		fmt.Fprintf(b, "%s\n\n", desc)
	}

	var err error
	root.Walk(func(g *doc.Group) {
		if err != nil {
			return
		}
		if g.Depth() > 0 {
			gd := g.Docs()
			fmt.Fprintf(b, "%s %s\n\n", heading(g.Depth()+1), gd.Title)
			for _, desc := range gd.Descriptions {
				fmt.Fprintf(b, "%s\n\n", desc)
			}
		}
		for _, a := range g.Actions() {
			if err = markdownAction(b, a, g.Depth()+2, opts); err != nil {
				return
			}
		}
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

func heading(level int) string {
	if level > 6 {
		level = 6
	}
	return strings.Repeat("#", level)
}

func markdownAction(b *strings.Builder, a *doc.Action, level int, opts doc.Options) error {
	route, err := a.Route()
	if err != nil {
		return err
	}
	ad := a.Docs()
	fmt.Fprintf(b, "%s %s %s\n\n", heading(level), route.Method, route.Path)
	if ad.Title != "" {
		fmt.Fprintf(b, "**Summary:** %s\n\n", ad.Title)
	}
	if len(ad.Descriptions) > 0 {
		fmt.Fprintf(b, "**Description:** %s\n\n", strings.Join(ad.Descriptions, " "))
	}
	if len(route.PathParams) > 0 {
		fmt.Fprintln(b, "**Path Parameters**")
		fmt.Fprintln(b)
		for _, name := range route.PathParams {
			b.WriteString(renderField(name, a.ParamSample(name), true, ""))
		}
		b.WriteString("\n")
	}
	if len(route.QueryParams) > 0 {
		fmt.Fprintln(b, "**Query Parameters**")
		fmt.Fprintln(b)
		for _, name := range route.QueryParams {
			b.WriteString(renderField(name, a.QuerySample(name), false, ""))
		}
		b.WriteString("\n")
	}

	n := 0
	for _, ex := range a.Examples() {
		if ex.IsEmpty() {
			continue
		}
		n++
		fmt.Fprintf(b, "**Example %d**\n\n", n)
		if ex.RequestBody != nil {
			fmt.Fprintf(b, "Request body (%s):\n\n", contentType(opts))
			if err := codeBlock(b, ex.RequestBody, opts); err != nil {
				return err
			}
		}
		if ex.ResponseBody != nil || ex.Status != 0 {
			status := ex.Status
			if status == 0 {
				status = 200
			}
			fmt.Fprintf(b, "Response %d:\n\n", status)
			if ex.ResponseBody != nil {
				if err := codeBlock(b, ex.ResponseBody, opts); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// renderField writes one list entry per value and recurses into containers
// whose elements carry descriptions.
func renderField(name string, v *capture.Value, required bool, indent string) string {
	b := &strings.Builder{}
	req := "optional"
	if required {
		req = "required"
	}
	typ := "string"
	if v != nil {
		typ = v.JSONType()
	}
	fmt.Fprintf(b, "%s- %s (%s, %s)", indent, name, typ, req)
	if d := v.Description(); d != "" {
		fmt.Fprintf(b, ": %s", d)
	}
	b.WriteString("\n")
	if v != nil && v.Kind() == capture.Mapping && v.HasNestedDescriptions() {
		for _, k := range v.Keys() {
			f, _ := v.Get(k)
			b.WriteString(renderField(k, f, false, indent+"  "))
		}
	}
	return b.String()
}

func codeBlock(b *strings.Builder, v *capture.Value, opts doc.Options) error {
	for _, d := range v.Descriptions() {
		fmt.Fprintf(b, "%s\n\n", d)
	}
	if v.HasNestedDescriptions() && v.Kind() == capture.Mapping {
		for _, k := range v.Keys() {
			f, _ := v.Get(k)
			b.WriteString(renderField(k, f, false, ""))
		}
		b.WriteString("\n")
	}
	data, err := json.MarshalIndent(v.Plain(), "", indent(opts))
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	fmt.Fprintf(b, "```json\n%s\n```\n\n", data)
	return nil
}

func contentType(opts doc.Options) string {
	if opts.ContentType != "" {
		return opts.ContentType
	}
	return "application/json"
}

func indent(opts doc.Options) string {
	if opts.Indent != "" {
		return opts.Indent
	}
	return "  "
}
