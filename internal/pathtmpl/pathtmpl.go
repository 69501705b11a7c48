// Package pathtmpl compiles URL path templates and expands them with
// parameter values. Placeholders are written ":name", ":name(regexp)" or
// "{name}"; expansion is delegated to gorilla/mux reverse routing so
// values are checked against the placeholder pattern.
package pathtmpl

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
)

// ErrParams is returned when the parameters are not a string-keyed mapping.
var ErrParams = errors.New("path parameters must be a mapping with string keys")

var (
	colonVar = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)(?:\(([^)]*)\))?`)
	braceVar = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::[^}]*)?\}`)
)

// Template is a compiled path template.
type Template struct {
	raw   string
	path  string // mux form, always rooted
	names []string
	route *mux.Route
}

// Compile parses tmpl. Leading and trailing slashes are preserved on
// expansion.
func Compile(tmpl string) (*Template, error) {
	path := colonVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := colonVar.FindStringSubmatch(m)
		if sub[2] != "" {
			return "{" + sub[1] + ":" + sub[2] + "}"
		}
		return "{" + sub[1] + "}"
	})
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	route := mux.NewRouter().NewRoute().Path(path)
	if err := route.GetError(); err != nil {
		return nil, fmt.Errorf("compile path %q: %w", tmpl, err)
	}
	t := &Template{raw: tmpl, path: path, route: route}
	for _, m := range braceVar.FindAllStringSubmatch(path, -1) {
		t.names = append(t.names, m[1])
	}
	return t, nil
}

// Names lists the placeholders in template order.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

// URITemplate returns the template in RFC 6570 "{name}" form, rooted at "/".
func (t *Template) URITemplate() string {
	return braceVar.ReplaceAllString(t.path, "{$1}")
}

// Expand substitutes params, a map with string keys, into the template.
// Values are path-escaped, so "/" and "?" stay inside their segment. Keys
// without a placeholder are ignored; a missing, nil or non-matching value is
// an error.
func (t *Template) Expand(params any) (string, error) {
	pairs, err := pairsOf(params)
	if err != nil {
		return "", err
	}
	u, err := t.route.URLPath(pairs...)
	if err != nil {
		return "", fmt.Errorf("expand path %q: %w", t.raw, err)
	}
	out := u.Path
	if !strings.HasPrefix(t.raw, "/") {
		out = strings.TrimPrefix(out, "/")
	}
	return out, nil
}

// Expand compiles tmpl and expands it in one step.
func Expand(tmpl string, params any) (string, error) {
	t, err := Compile(tmpl)
	if err != nil {
		return "", err
	}
	return t.Expand(params)
}

func pairsOf(params any) ([]string, error) {
	if params == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(params)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, ErrParams
	}
	pairs := make([]string, 0, rv.Len()*2)
	iter := rv.MapRange()
	for iter.Next() {
		v := iter.Value().Interface()
		if v == nil {
			continue
		}
		pairs = append(pairs, iter.Key().String(), url.PathEscape(fmt.Sprint(v)))
	}
	return pairs, nil
}
