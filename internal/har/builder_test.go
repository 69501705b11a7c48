package har

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yourorg/apibuilder/internal/config"
	"github.com/yourorg/apibuilder/internal/filter"
	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/types"
)

func TestTemplatePath(t *testing.T) {
	cases := []struct {
		in     string
		tmpl   string
		params map[string]any
	}{
		{"/", "", nil},
		{"/orders", "orders", map[string]any{}},
		{"/orders/42/", "orders/:order_id", map[string]any{"order_id": int64(42)}},
		{"/orders/42/lines/7", "orders/:order_id/lines/:line_id", map[string]any{"order_id": int64(42), "line_id": int64(7)}},
		{"/a/1/2", "a/:a_id/:id", map[string]any{"a_id": int64(1), "id": int64(2)}},
		{"/users/3f2504e0-4f89-41d3-9a0c-0305e82c3301", "users/:user_id", map[string]any{"user_id": "3f2504e0-4f89-41d3-9a0c-0305e82c3301"}},
		{"/v2/items", "v2/items", map[string]any{}},
		{"/x/-1", "x/-1", map[string]any{}},
	}
	for _, c := range cases {
		tmpl, params, err := templatePath(c.in)
		if err != nil {
			t.Fatalf("%s: %v", c.in, err)
		}
		if tmpl != c.tmpl {
			t.Fatalf("%s: expected template %q, got %q", c.in, c.tmpl, tmpl)
		}
		if len(c.params) == 0 && len(params) == 0 {
			continue
		}
		if !reflect.DeepEqual(params, c.params) {
			t.Fatalf("%s: unexpected params %v", c.in, params)
		}
	}
	if _, _, err := templatePath("/a/{b}"); err == nil {
		t.Fatalf("expected error for template characters")
	}
}

func TestBuild(t *testing.T) {
	logs := []types.TrafficLog{
		{Seq: 1, Method: "GET", Host: "api.shop.test", Path: "/orders/42", StatusCode: 200, ResponseBody: `{"id":42,"total":9.5}`, CallCount: 2},
		{Seq: 2, Method: "GET", Host: "api.shop.test", Path: "/orders/43", StatusCode: 200, ResponseBody: `{"id":43}`},
		{Seq: 3, Method: "POST", Host: "api.shop.test", Path: "/orders", RequestBody: `{"sku":"A-1"}`, StatusCode: 201},
		{Seq: 4, Method: "FETCH", Host: "api.shop.test", Path: "/orders", StatusCode: 200},
		{Seq: 5, Method: "GET", Host: "api.shop.test", Path: "/", StatusCode: 204},
	}
	root := doc.New().Title("Shop")
	rep := (&Builder{}).Build(root, logs)

	if rep.Actions != 3 || rep.Examples != 4 || rep.Skipped != 1 || rep.Groups != 2 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if root.Docs().Host != "api.shop.test" {
		t.Fatalf("expected root host, got %q", root.Docs().Host)
	}
	host := root.Children()[0]
	if host.Docs().Title != "api.shop.test" || len(host.Actions()) != 1 {
		t.Fatalf("unexpected host group %+v", host.Docs())
	}
	orders := host.Children()[0]
	if orders.Docs().Title != "orders" || len(orders.Actions()) != 2 {
		t.Fatalf("unexpected orders group")
	}

	get := orders.Actions()[0]
	if get.Docs().URL != "orders/:order_id" || get.Docs().Method != "GET" {
		t.Fatalf("unexpected action docs %+v", get.Docs())
	}
	if len(get.Examples()) != 2 {
		t.Fatalf("expected one example per call, got %d", len(get.Examples()))
	}
	if got := get.Example(1).Parameters.Plain(); !reflect.DeepEqual(got, map[string]any{"order_id": int64(43)}) {
		t.Fatalf("unexpected params %v", got)
	}
	if got := get.Example(0).ResponseBody.Plain(); !reflect.DeepEqual(got, map[string]any{"id": int64(42), "total": 9.5}) {
		t.Fatalf("unexpected response %v", got)
	}
	if d := get.Docs().Descriptions; len(d) != 1 || d[0] != "Observed in 3 recorded calls." {
		t.Fatalf("unexpected description %v", d)
	}

	post := orders.Actions()[1]
	if post.Example(0).Status != 201 || post.Example(0).RequestBody == nil {
		t.Fatalf("unexpected post example %+v", post.Example(0))
	}

	if _, err := (doc.Blueprint{}).Generate(root, doc.Options{}); err != nil {
		t.Fatalf("generated tree should render: %v", err)
	}
}

func TestImportPipeline(t *testing.T) {
	logs, err := Parse(filepath.Join("..", "..", "testdata", "shop.har"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{}
	cfg.SetDefaults()
	kept, frep := filter.New(cfg.Filter).Apply(logs)
	kept = filter.Sanitize(kept, cfg.Sanitize)
	if frep.Kept != 4 {
		t.Fatalf("expected 4 logs after filtering, got %d", frep.Kept)
	}

	root := doc.New().Title("Shop")
	rep := (&Builder{}).Build(root, kept)
	if rep.Actions != 3 || rep.Examples != 4 {
		t.Fatalf("unexpected report %+v", rep)
	}

	out, err := doc.Blueprint{}.Generate(root, doc.Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"HOST: https://api.shop.test\n",
		"# Group api.shop.test\n",
		"## orders\n",
		"[GET /orders/{order_id}]",
		"[GET /users/{user_id}/orders{?page}]",
		"\"token\": \"***REDACTED***\"",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}
