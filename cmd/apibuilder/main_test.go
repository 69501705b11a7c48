package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestImportGenerateList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	t.Setenv("APIBUILDER_STORE_PATH", filepath.Join(dir, "data.db"))
	t.Setenv("APIBUILDER_OUTPUT_DIR", filepath.Join(dir, "docs"))

	if out := run(t, cfgPath, "init"); !strings.Contains(out, "created "+cfgPath) {
		t.Fatalf("unexpected init output %q", out)
	}

	out := run(t, cfgPath, "import", "--har", filepath.Join("..", "..", "testdata", "shop.har"))
	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "document" {
		t.Fatalf("unexpected import output %q", out)
	}
	id := fields[1]

	out = run(t, cfgPath, "generate", "--doc", id, "--format", "apib,md")
	if !strings.Contains(out, id+".apib") || !strings.Contains(out, id+".md") {
		t.Fatalf("unexpected generate output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "docs", id+".apib")); err != nil {
		t.Fatalf("blueprint not written: %v", err)
	}

	if out := run(t, cfgPath, "list"); !strings.Contains(out, id) {
		t.Fatalf("list does not show %s: %q", id, out)
	}
	if out := run(t, cfgPath, "render", "--doc", id, "--format", "openapi"); !strings.Contains(out, "openapi: 3.0.3") {
		t.Fatalf("unexpected render output %q", out)
	}
	if out := run(t, cfgPath, "delete", "--doc", id); !strings.Contains(out, "deleted "+id) {
		t.Fatalf("unexpected delete output %q", out)
	}
}

func TestImportRequiresOneSource(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APIBUILDER_STORE_PATH", filepath.Join(dir, "data.db"))
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.yaml"), "import"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --har or --tree")
	}
}
