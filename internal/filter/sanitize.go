package filter

import (
	"encoding/json"
	"strings"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/pkg/types"
)

// SanitizeConfig is an alias of config.SanitizeConfig.
type SanitizeConfig = config.SanitizeConfig

// Sanitize redacts sensitive headers, query params and JSON body fields.
// Both bodies are redacted since either may end up in a rendered example.
func Sanitize(logs []types.TrafficLog, cfg SanitizeConfig) []types.TrafficLog {
	r := redactor{
		headers:     toLowerSet(cfg.Headers),
		fields:      toLowerSet(cfg.BodyFields),
		replacement: cfg.Replacement,
	}
	out := make([]types.TrafficLog, len(logs))
	for i, l := range logs {
		out[i] = l
		out[i].RequestHeaders = r.headerMap(l.RequestHeaders)
		out[i].ResponseHeaders = r.headerMap(l.ResponseHeaders)
		out[i].QueryParams = r.queryParams(l.QueryParams)
		out[i].RequestBody = r.body(l.RequestBody)
		out[i].ResponseBody = r.body(l.ResponseBody)
	}
	return out
}

type redactor struct {
	headers     map[string]struct{}
	fields      map[string]struct{}
	replacement string
}

func toLowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func (r redactor) sensitive(set map[string]struct{}, key string) bool {
	_, ok := set[strings.ToLower(key)]
	return ok
}

func (r redactor) headerMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if r.sensitive(r.headers, k) {
			v = r.replacement
		}
		out[k] = v
	}
	return out
}

func (r redactor) queryParams(in map[string][]string) map[string][]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string][]string, len(in))
	for k, vs := range in {
		cpy := append([]string(nil), vs...)
		if r.sensitive(r.fields, k) {
			for i := range cpy {
				cpy[i] = r.replacement
			}
		}
		out[k] = cpy
	}
	return out
}

// body leaves anything that is not JSON untouched.
func (r redactor) body(body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	out, err := json.Marshal(r.value(v))
	if err != nil {
		return body
	}
	return string(out)
}

func (r redactor) value(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, v2 := range val {
			if r.sensitive(r.fields, k) {
				val[k] = r.replacement
				continue
			}
			val[k] = r.value(v2)
		}
		return val
	case []any:
		for i := range val {
			val[i] = r.value(val[i])
		}
		return val
	default:
		return val
	}
}
