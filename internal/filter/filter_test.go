package filter

import (
	"testing"

	"github.com/yourorg/apibuilder/pkg/types"
)

func TestApplyFiltersBasic(t *testing.T) {
	cfg := FilterConfig{
		IgnoreExtensions:   []string{".js", ".CSS", ".png"},
		IgnoreContentTypes: []string{"text/html", "image/*"},
		IgnorePaths:        []string{"/static/", "/assets/", "/favicon"},
	}
	logs := []types.TrafficLog{
		{Method: "OPTIONS", Path: "/api/ping", StatusCode: 204},
		{Method: "GET", Path: "/lib/app.js", ResponseContentType: "application/javascript", StatusCode: 200},
		{Method: "GET", Path: "/index", ResponseContentType: "text/html; charset=utf-8", StatusCode: 200},
		{Method: "GET", Path: "/assets/logo", ResponseContentType: "application/octet-stream", StatusCode: 200},
		{Method: "GET", Path: "/theme/site.css", StatusCode: 200},
		{Method: "GET", Path: "/api/avatar", ResponseContentType: "image/png", StatusCode: 200},
		{Method: "GET", Path: "/api/data", ResponseContentType: "application/json", StatusCode: 200},
	}

	out, rep := New(cfg).Apply(logs)
	if len(out) != 1 {
		t.Fatalf("expected 1 log, got %d", len(out))
	}
	if out[0].Path != "/api/data" {
		t.Fatalf("expected /api/data, got %s", out[0].Path)
	}
	if rep.Input != 7 || rep.Kept != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	want := map[Reason]int{ReasonPreflight: 1, ReasonExtension: 2, ReasonContentType: 2, ReasonPath: 1}
	for reason, n := range want {
		if rep.Dropped[reason] != n {
			t.Fatalf("expected %d %s drops, got %d", n, reason, rep.Dropped[reason])
		}
	}
}

func TestApplyMergeIdenticalRequests(t *testing.T) {
	cfg := FilterConfig{}
	logs := []types.TrafficLog{
		{Method: "GET", Path: "/api/users", QueryParams: map[string][]string{"id": {"1"}}, StatusCode: 200},
		{Method: "GET", Path: "/api/users", QueryParams: map[string][]string{"id": {"1"}}, StatusCode: 200},
		{Method: "GET", Path: "/api/users", QueryParams: map[string][]string{"id": {"2"}}, StatusCode: 200},
		{Method: "POST", Path: "/api/users", QueryParams: map[string][]string{"id": {"1"}}, StatusCode: 201},
	}

	out := Apply(logs, cfg)
	if len(out) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(out))
	}
	var merged *types.TrafficLog
	for i := range out {
		if out[i].Method == "GET" && out[i].Path == "/api/users" && len(out[i].QueryParams["id"]) == 1 && out[i].QueryParams["id"][0] == "1" {
			merged = &out[i]
		}
	}
	if merged == nil {
		t.Fatalf("expected merged GET /api/users?id=1")
	}
	if merged.CallCount != 2 {
		t.Fatalf("expected CallCount 2, got %d", merged.CallCount)
	}
}

func TestApplyKeepsDistinctBodies(t *testing.T) {
	logs := []types.TrafficLog{
		{Method: "POST", Host: "api.test", Path: "/orders", RequestBody: `{"sku":"A"}`, StatusCode: 201},
		{Method: "POST", Host: "api.test", Path: "/orders", RequestBody: `{"sku":"B"}`, StatusCode: 201},
		{Method: "POST", Host: "api.test", Path: "/orders", RequestBody: `{"sku":"A"}`, StatusCode: 201},
		{Method: "POST", Host: "other.test", Path: "/orders", RequestBody: `{"sku":"A"}`, StatusCode: 201},
	}
	out, rep := New(FilterConfig{}).Apply(logs)
	if len(out) != 3 {
		t.Fatalf("expected 3 distinct calls, got %d", len(out))
	}
	if out[0].CallCount != 2 {
		t.Fatalf("expected first call counted twice, got %d", out[0].CallCount)
	}
	if rep.Dropped[ReasonDuplicate] != 1 {
		t.Fatalf("expected one duplicate, got %d", rep.Dropped[ReasonDuplicate])
	}
}

func TestApplyRemoveConsecutive5xxRetries(t *testing.T) {
	cfg := FilterConfig{}
	logs := []types.TrafficLog{
		{Method: "GET", Path: "/api/retry", StatusCode: 500},
		{Method: "GET", Path: "/api/retry", StatusCode: 502},
		{Method: "GET", Path: "/api/retry", StatusCode: 503},
	}

	out, rep := New(cfg).Apply(logs)
	if len(out) != 1 {
		t.Fatalf("expected 1 log after 5xx dedup, got %d", len(out))
	}
	if out[0].CallCount != 1 {
		t.Fatalf("expected CallCount 1 after dedup, got %d", out[0].CallCount)
	}
	if out[0].StatusCode != 500 {
		t.Fatalf("expected to keep first 5xx, got %d", out[0].StatusCode)
	}
	if rep.Dropped[ReasonRetry] != 2 {
		t.Fatalf("expected 2 retries dropped, got %d", rep.Dropped[ReasonRetry])
	}
}
