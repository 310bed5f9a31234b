package relevance

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	content := `{"q":"cloud mssp","gold":["v-1","v-2"]}

{"q":"endpoint protection","gold":["v-3"]}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	queries, err := LoadQueries(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}
	if queries[0].Q != "cloud mssp" || len(queries[0].Gold) != 2 {
		t.Fatalf("unexpected first query: %+v", queries[0])
	}
}

func TestLoadQueries_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	os.WriteFile(path, []byte("{\"q\":\"ok\",\"gold\":[]}\nnot json\n"), 0o644)

	if _, err := LoadQueries(path); err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestLoadQueries_MissingFile(t *testing.T) {
	if _, err := LoadQueries(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
