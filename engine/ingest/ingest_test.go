package ingest

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/vendexa/vendex/engine/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadVendors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vendors.json")
	content := `[{"vendor_id":"v-1","name":"Acme"},{"vendor_id":"v-2","name":"Globex"}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	vendors, err := LoadVendors(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(vendors) != 2 {
		t.Fatalf("expected 2 vendors, got %d", len(vendors))
	}
	if vendors[1]["name"] != "Globex" {
		t.Fatalf("unexpected vendor: %v", vendors[1])
	}
}

func TestLoadVendors_MissingFile(t *testing.T) {
	if _, err := LoadVendors(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadVendors_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o644)
	if _, err := LoadVendors(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProcess_SkipsEmptyText(t *testing.T) {
	vendors := []domain.Vendor{
		{"vendor_id": "v-1", "name": "Acme"},
		{"vendor_id": ""}, // flattens to nothing
		{"vendor_id": "v-3", "name": "Globex"},
	}

	texts, metas := Process(vendors, testLogger())
	if len(texts) != 2 || len(metas) != 2 {
		t.Fatalf("expected 2 kept, got %d texts %d metas", len(texts), len(metas))
	}
	if metas[0]["vendor_id"] != "v-1" || metas[1]["vendor_id"] != "v-3" {
		t.Fatalf("metadata misaligned: %v", metas)
	}
}

func TestProcess_Empty(t *testing.T) {
	texts, metas := Process(nil, testLogger())
	if len(texts) != 0 || len(metas) != 0 {
		t.Fatalf("expected empty output, got %d/%d", len(texts), len(metas))
	}
}
