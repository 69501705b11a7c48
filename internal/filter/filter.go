package filter

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/pkg/types"
)

// FilterConfig is an alias of config.FilterConfig.
type FilterConfig = config.FilterConfig

// Reason names why a log was dropped.
type Reason string

const (
	ReasonPreflight   Reason = "preflight"
	ReasonExtension   Reason = "extension"
	ReasonContentType Reason = "content_type"
	ReasonPath        Reason = "path"
	ReasonRetry       Reason = "retry"
	ReasonDuplicate   Reason = "duplicate"
)

// Report counts the logs Apply kept and dropped.
type Report struct {
	Input   int            `json:"input"`
	Kept    int            `json:"kept"`
	Dropped map[Reason]int `json:"dropped"`
}

// Rules is a FilterConfig with its lists normalized once.
type Rules struct {
	extensions   map[string]struct{}
	contentTypes []string
	paths        []string
}

func New(cfg FilterConfig) *Rules {
	r := &Rules{extensions: toLowerSet(cfg.IgnoreExtensions)}
	for _, ct := range cfg.IgnoreContentTypes {
		if ct = strings.ToLower(strings.TrimSpace(ct)); ct != "" {
			r.contentTypes = append(r.contentTypes, ct)
		}
	}
	for _, p := range cfg.IgnorePaths {
		if p = strings.TrimSpace(p); p != "" {
			r.paths = append(r.paths, p)
		}
	}
	return r
}

// Apply filters and merges traffic logs based on config rules.
func Apply(logs []types.TrafficLog, cfg FilterConfig) []types.TrafficLog {
	out, _ := New(cfg).Apply(logs)
	return out
}

// Apply drops preflight requests, static assets and retried 5xx calls, then
// merges identical calls into one log with a summed CallCount. Two calls are
// identical when method, path, query and request body all match, so every
// kept log is a distinct example of its endpoint.
func (r *Rules) Apply(logs []types.TrafficLog) ([]types.TrafficLog, Report) {
	rep := Report{Input: len(logs), Dropped: map[Reason]int{}}
	filtered := make([]types.TrafficLog, 0, len(logs))
	for _, l := range logs {
		if reason, drop := r.drop(l); drop {
			rep.Dropped[reason]++
			continue
		}
		filtered = append(filtered, l)
	}

	filtered = removeConsecutive5xx(filtered, &rep)
	filtered = mergeIdentical(filtered, &rep)
	rep.Kept = len(filtered)
	return filtered, rep
}

func (r *Rules) drop(l types.TrafficLog) (Reason, bool) {
	switch {
	case strings.EqualFold(l.Method, "OPTIONS"):
		return ReasonPreflight, true
	case r.hasIgnoredExtension(l.Path):
		return ReasonExtension, true
	case r.matchesContentType(l.ResponseContentType):
		return ReasonContentType, true
	case r.hasIgnoredPath(l.Path):
		return ReasonPath, true
	}
	return "", false
}

func (r *Rules) hasIgnoredExtension(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	_, ok := r.extensions[ext]
	return ok
}

func (r *Rules) hasIgnoredPath(p string) bool {
	for _, pref := range r.paths {
		if strings.HasPrefix(p, pref) {
			return true
		}
	}
	return false
}

func (r *Rules) matchesContentType(ct string) bool {
	if strings.TrimSpace(ct) == "" {
		return false
	}
	base := strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	for _, p := range r.contentTypes {
		if strings.HasSuffix(p, "/*") {
			if strings.HasPrefix(base, strings.TrimSuffix(p, "*")) {
				return true
			}
			continue
		}
		if base == p {
			return true
		}
	}
	return false
}

func removeConsecutive5xx(logs []types.TrafficLog, rep *Report) []types.TrafficLog {
	out := make([]types.TrafficLog, 0, len(logs))
	var prevKey string
	var prevWas5xx bool
	for _, l := range logs {
		key := callKey(l)
		if prevWas5xx && key == prevKey && is5xx(l.StatusCode) {
			rep.Dropped[ReasonRetry]++
			continue
		}
		out = append(out, l)
		prevKey = key
		prevWas5xx = is5xx(l.StatusCode)
	}
	return out
}

func mergeIdentical(logs []types.TrafficLog, rep *Report) []types.TrafficLog {
	out := make([]types.TrafficLog, 0, len(logs))
	index := make(map[string]int, len(logs))
	for _, l := range logs {
		key := callKey(l)
		if idx, ok := index[key]; ok {
			count := l.CallCount
			if count == 0 {
				count = 1
			}
			out[idx].CallCount += count
			rep.Dropped[ReasonDuplicate]++
			continue
		}
		if l.CallCount == 0 {
			l.CallCount = 1
		}
		index[key] = len(out)
		out = append(out, l)
	}
	return out
}

func is5xx(code int) bool {
	return code >= 500 && code <= 599
}

func callKey(l types.TrafficLog) string {
	return strings.ToUpper(l.Method) + " " + l.Host + l.Path + "?" + canonicalQuery(l.QueryParams) + "\n" + strings.TrimSpace(l.RequestBody)
}

func canonicalQuery(params map[string][]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := url.Values{}
	for _, k := range keys {
		values := append([]string(nil), params[k]...)
		sort.Strings(values)
		for _, v := range values {
			vals.Add(k, v)
		}
	}
	return vals.Encode()
}
