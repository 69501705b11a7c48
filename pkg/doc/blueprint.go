package doc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yourorg/apibuilder/pkg/capture"
	"github.com/yourorg/apibuilder/pkg/types"
)

// Blueprint renders the tree as an API Blueprint (format 1A) document.
//
// Groups directly below the root become "# Group" sections, deeper groups
// plain "##" headings. Each action is an "###" section with a merged
// parameter list and one request/response pair per non-empty example.
type Blueprint struct{}

func (Blueprint) Generate(root *Group, opts Options) (string, error) {
	w := &blueprintWriter{b: &strings.Builder{}, opts: opts}
	fmt.Fprintln(w.b, "FORMAT: 1A")
	if host := root.BaseURL(); host != "" {
		fmt.Fprintf(w.b, "HOST: %s\n", host)
	}
	w.b.WriteString("\n")

	title := opts.Title
	if title == "" {
		title = root.docs.Title
	}
	if title == "" {
		title = "API"
	}
	fmt.Fprintf(w.b, "# %s\n\n", title)
	w.paragraphs("", root.docs.Descriptions)

	for _, a := range root.actions {
		if err := w.action(a); err != nil {
			return "", err
		}
	}
	for _, c := range root.children {
		if err := w.group(c); err != nil {
			return "", err
		}
	}
	return w.b.String(), nil
}

type blueprintWriter struct {
	b    *strings.Builder
	opts Options
}

func (w *blueprintWriter) group(g *Group) error {
	if g.depth <= 1 {
		fmt.Fprintf(w.b, "# Group %s\n\n", g.docs.Title)
	} else {
		fmt.Fprintf(w.b, "## %s\n\n", g.docs.Title)
	}
	w.paragraphs("", g.docs.Descriptions)
	for _, a := range g.actions {
		if err := w.action(a); err != nil {
			return err
		}
	}
	for _, c := range g.children {
		if err := w.group(c); err != nil {
			return err
		}
	}
	return nil
}

func (w *blueprintWriter) action(a *Action) error {
	route, err := a.Route()
	if err != nil {
		return err
	}
	uri := route.Path
	if len(route.QueryParams) > 0 {
		uri += "{?" + strings.Join(route.QueryParams, ",") + "}"
	}
	fmt.Fprintf(w.b, "### %s [%s %s]\n\n", a.docs.Title, route.Method, uri)
	w.paragraphs("", a.docs.Descriptions)

	if len(route.PathParams)+len(route.QueryParams) > 0 {
		w.b.WriteString("+ Parameters\n")
		for _, name := range route.PathParams {
			w.parameter(name, a.ParamSample(name), true)
		}
		for _, name := range route.QueryParams {
			w.parameter(name, a.QuerySample(name), false)
		}
		w.b.WriteString("\n")
	}

	examples := make([]*types.Example, 0, len(a.examples))
	for _, ex := range a.examples {
		if !ex.IsEmpty() {
			examples = append(examples, ex)
		}
	}
	for i, ex := range examples {
		label := ""
		if len(examples) > 1 {
			label = fmt.Sprintf(" Example %d", i+1)
		}
		if ex.RequestBody != nil {
			fmt.Fprintf(w.b, "+ Request%s (%s)\n\n", label, w.opts.contentType())
			if err := w.body(ex.RequestBody); err != nil {
				return err
			}
		}
		if ex.ResponseBody == nil && ex.Status == 0 {
			continue
		}
		status := ex.Status
		if status == 0 {
			status = 200
		}
		if ex.ResponseBody == nil {
			fmt.Fprintf(w.b, "+ Response %d\n\n", status)
			continue
		}
		fmt.Fprintf(w.b, "+ Response %d (%s)\n\n", status, w.opts.contentType())
		if err := w.body(ex.ResponseBody); err != nil {
			return err
		}
	}
	return nil
}

func (w *blueprintWriter) parameter(name string, v *capture.Value, required bool) {
	req := "optional"
	if required {
		req = "required"
	}
	line := "    + " + name
	if v != nil && v.Kind() == capture.Scalar && v.Scalar() != nil {
		line += fmt.Sprintf(": `%v`", v.Scalar())
	}
	typ := "string"
	if v != nil {
		typ = msonType(v)
	}
	line += fmt.Sprintf(" (%s, %s)", typ, req)
	if d := v.Description(); d != "" {
		line += " - " + d
	}
	w.b.WriteString(line + "\n")
}

func (w *blueprintWriter) body(v *capture.Value) error {
	w.paragraphs("    ", v.Descriptions())
	if v.HasNestedDescriptions() {
		fmt.Fprintf(w.b, "    + Attributes (%s)\n", msonType(v))
		w.attributes(v, "        ")
		w.b.WriteString("\n")
	}
	data, err := json.MarshalIndent(v.Plain(), "", w.opts.indent())
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	w.b.WriteString("    + Body\n\n")
	for _, line := range strings.Split(string(data), "\n") {
		w.b.WriteString("            " + line + "\n")
	}
	w.b.WriteString("\n")
	return nil
}

func (w *blueprintWriter) attributes(v *capture.Value, indent string) {
	switch v.Kind() {
	case capture.Mapping:
		for _, k := range v.Keys() {
			f, _ := v.Get(k)
			w.member(k, f, indent)
		}
	case capture.List:
		for _, it := range v.Items() {
			w.member("", it, indent)
		}
	}
}

func (w *blueprintWriter) member(name string, v *capture.Value, indent string) {
	line := indent + "+ "
	if name != "" {
		line += name
	}
	if v.Kind() == capture.Scalar && v.Scalar() != nil {
		if name != "" {
			line += ": "
		}
		line += fmt.Sprint(v.Scalar())
	}
	line += " (" + msonType(v) + ")"
	if d := v.Description(); d != "" {
		line += " - " + d
	}
	w.b.WriteString(line + "\n")
	if v.Kind() != capture.Scalar {
		w.attributes(v, indent+"    ")
	}
}

func (w *blueprintWriter) paragraphs(indent string, lines []string) {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		fmt.Fprintf(w.b, "%s%s\n\n", indent, l)
	}
}

// msonType maps JSON type names onto MSON base types.
func msonType(v *capture.Value) string {
	switch t := v.JSONType(); t {
	case "integer":
		return "number"
	case "null":
		return "string, nullable"
	default:
		return t
	}
}
