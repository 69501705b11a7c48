package har

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/apibuilder/internal/pathtmpl"
	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/types"
)

// BuildReport summarizes one Build run.
type BuildReport struct {
	Groups   int `json:"groups"`
	Actions  int `json:"actions"`
	Examples int `json:"examples"`
	Skipped  int `json:"skipped"`
}

// Builder turns recorded traffic into a documentation tree.
type Builder struct {
	Logger *slog.Logger
}

// Build adds one group per host below root, and below that one group per
// first path segment. Every method and templated path becomes one action;
// every log becomes one example of its action. Numeric and UUID segments
// are replaced by placeholders whose values are captured as the example
// parameters. When all logs share one host, root takes it as its own.
func (b *Builder) Build(root *doc.Group, logs []types.TrafficLog) BuildReport {
	var rep BuildReport
	before := countGroups(root)

	hosts := map[string]struct{}{}
	for _, l := range logs {
		hosts[l.Host] = struct{}{}
	}
	if len(hosts) == 1 && root.Docs().Host == "" {
		for h := range hosts {
			if h != "" {
				root.Host(h)
			}
		}
	}

	actions := map[string]*doc.Action{}
	calls := map[*doc.Action]int{}
	var order []*doc.Action
	for _, l := range logs {
		tmpl, params, err := templatePath(l.Path)
		if err == nil && !doc.IsMethod(l.Method) {
			err = fmt.Errorf("%w: %s", doc.ErrUnknownMethod, l.Method)
		}
		if err != nil {
			rep.Skipped++
			b.debug("log skipped", "seq", l.Seq, "method", l.Method, "path", l.Path, "err", err)
			continue
		}

		g := resourceGroup(root, l.Host, tmpl)
		key := l.Host + " " + strings.ToUpper(l.Method) + " " + tmpl
		a, ok := actions[key]
		if ok {
			a.AnotherExample()
		} else {
			a = g.Action(strings.ToUpper(l.Method) + " /" + tmpl)
			actions[key] = a
			order = append(order, a)
			rep.Actions++
		}

		var p any
		if len(params) > 0 {
			p = params
		}
		if _, err := a.Verb(l.Method, tmpl, p); err != nil {
			// templatePath only yields expandable templates
			b.debug("expand failed", "path", l.Path, "err", err)
		}
		if q := queryValue(l.QueryParams); q != nil {
			a.Query(q)
		}
		if body := bodyValue(l.RequestBody, l.RequestBodyEncoding); body != nil {
			a.ReqBody(body)
		}
		if l.StatusCode > 0 {
			a.Status(l.StatusCode)
		}
		if body := bodyValue(l.ResponseBody, ""); body != nil {
			a.ResBody(body)
		}
		n := l.CallCount
		if n < 1 {
			n = 1
		}
		calls[a] += n
		rep.Examples++
	}

	for _, a := range order {
		if n := calls[a]; n == 1 {
			a.Desc("Observed in 1 recorded call.")
		} else {
			a.Desc(fmt.Sprintf("Observed in %d recorded calls.", n))
		}
	}
	rep.Groups = countGroups(root) - before
	if b.Logger != nil {
		b.Logger.Info("tree built", "groups", rep.Groups, "actions", rep.Actions, "examples", rep.Examples, "skipped", rep.Skipped)
	}
	return rep
}

func (b *Builder) debug(msg string, args ...any) {
	if b.Logger != nil {
		b.Logger.Debug(msg, args...)
	}
}

func countGroups(root *doc.Group) int {
	n := 0
	root.Walk(func(*doc.Group) { n++ })
	return n
}

func resourceGroup(root *doc.Group, host, tmpl string) *doc.Group {
	title := host
	if title == "" {
		title = "API"
	}
	g := root.Group(title)
	if host != "" {
		g.Host(host)
	}
	first, _, _ := strings.Cut(tmpl, "/")
	if first == "" || strings.HasPrefix(first, ":") {
		return g
	}
	return g.Group(first)
}

var nonIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// templatePath replaces identifier segments of p with placeholders. The
// template is returned without leading and trailing slashes.
func templatePath(p string) (string, map[string]any, error) {
	if strings.ContainsAny(p, ":{}") {
		return "", nil, fmt.Errorf("path %q contains template characters", p)
	}
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "", nil, nil
	}
	segs := strings.Split(trimmed, "/")
	params := map[string]any{}
	for i, seg := range segs {
		v, ok := identifier(seg)
		if !ok {
			continue
		}
		name := paramName(segs, i, params)
		params[name] = v
		segs[i] = ":" + name
	}
	tmpl := strings.Join(segs, "/")
	if _, err := pathtmpl.Expand(tmpl, params); err != nil {
		return "", nil, err
	}
	return tmpl, params, nil
}

// identifier reports whether seg looks like a resource id and returns its
// captured value: an int64 for numbers, the string itself for UUIDs.
func identifier(seg string) (any, bool) {
	if seg == "" {
		return nil, false
	}
	if n, err := strconv.ParseInt(seg, 10, 64); err == nil && strings.Trim(seg, "0123456789") == "" {
		return n, true
	}
	if len(seg) == 36 {
		if _, err := uuid.Parse(seg); err == nil {
			return seg, true
		}
	}
	return nil, false
}

// paramName derives a placeholder name from the preceding segment, so
// "orders/42" yields "order_id".
func paramName(segs []string, i int, taken map[string]any) string {
	base := "id"
	if i > 0 && !strings.HasPrefix(segs[i-1], ":") {
		prev := strings.Trim(nonIdent.ReplaceAllString(segs[i-1], "_"), "_")
		prev = strings.TrimSuffix(prev, "s")
		if prev != "" {
			if prev[0] >= '0' && prev[0] <= '9' {
				prev = "_" + prev
			}
			base = strings.ToLower(prev) + "_id"
		}
	}
	name := base
	for n := 2; ; n++ {
		if _, ok := taken[name]; !ok {
			return name
		}
		name = base + strconv.Itoa(n)
	}
}

func queryValue(q map[string][]string) any {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]any, len(q))
	for k, vs := range q {
		if len(vs) == 1 {
			out[k] = vs[0]
		} else {
			out[k] = append([]string(nil), vs...)
		}
	}
	return out
}

// bodyValue decodes JSON bodies; other text is kept as a string. Empty and
// omitted bodies yield nil.
func bodyValue(body, encoding string) any {
	if encoding == "omitted" || strings.TrimSpace(body) == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	return integers(v)
}

// integers turns whole JSON numbers into int64 so they document as integers.
func integers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, e := range val {
			val[k] = integers(e)
		}
	case []any:
		for i, e := range val {
			val[i] = integers(e)
		}
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}
	}
	return v
}
