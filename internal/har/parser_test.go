package har

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseNormalHAR(t *testing.T) {
	logs, err := Parse(filepath.Join("..", "..", "testdata", "sample.har"))
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Seq != 1 || logs[1].Seq != 2 {
		t.Fatalf("seq not assigned")
	}
	if logs[0].Method != "POST" || logs[0].Path != "/login" {
		t.Fatalf("expected logs ordered by start time, got %s %s first", logs[0].Method, logs[0].Path)
	}
	if logs[1].Method != "GET" || logs[1].Host != "api.shop.test" {
		t.Fatalf("expected uppercased method and host, got %s %s", logs[1].Method, logs[1].Host)
	}
	if len(logs[1].QueryParams["id"]) != 2 {
		t.Fatalf("expected multi-value query params")
	}
}

func TestParseReaderReturnsTitle(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "testdata", "sample.har"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	hf, logs, err := ParseReader(f)
	if err != nil {
		t.Fatal(err)
	}
	if hf.Title() != "Shop checkout" {
		t.Fatalf("unexpected title %q", hf.Title())
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
}

func TestParseReaderErrors(t *testing.T) {
	if _, _, err := ParseReader(strings.NewReader("{")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected decode error, got %v", err)
	}
	bad := `{"log":{"entries":[{"startedDateTime":"yesterday","request":{"method":"GET","url":"https://a.test/"}}]}}`
	if _, _, err := ParseReader(strings.NewReader(bad)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected timestamp error, got %v", err)
	}
}

func TestParseBase64Body(t *testing.T) {
	logs, err := Parse(filepath.Join("..", "..", "testdata", "base64-body.har"))
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log")
	}
	if logs[0].RequestBodyEncoding != "omitted" {
		t.Fatalf("expected omitted for binary body, got %s", logs[0].RequestBodyEncoding)
	}
	if logs[0].ResponseBody != "{\"ok\":true}" {
		t.Fatalf("unexpected decoded response body: %s", logs[0].ResponseBody)
	}
}

func TestParseEmptyHAR(t *testing.T) {
	logs, err := Parse(filepath.Join("..", "..", "testdata", "empty.har"))
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected empty logs")
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse(filepath.Join("..", "..", "testdata", "not-exist.har"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
