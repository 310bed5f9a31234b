package blob

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_UnconfiguredIsDisabled(t *testing.T) {
	s := New("", "", "", "", "indexes", false, testLogger())
	if s.Enabled() {
		t.Fatal("store without endpoint must be disabled")
	}

	ctx := context.Background()
	if s.UploadIndex(ctx, "vendors", "a", "b") {
		t.Fatal("upload on disabled store must report false")
	}
	if s.DownloadIndex(ctx, "vendors", "a", "b") {
		t.Fatal("download on disabled store must report false")
	}
	if s.IndexExists(ctx, "vendors") {
		t.Fatal("exists on disabled store must report false")
	}
}

func TestNew_MissingBucketIsDisabled(t *testing.T) {
	s := New("minio.local:9000", "key", "secret", "", "indexes", false, testLogger())
	if s.Enabled() {
		t.Fatal("store without bucket must be disabled")
	}
}

func TestKeys(t *testing.T) {
	s := New("", "", "", "", "backups/prod", false, testLogger())
	indexKey, metaKey := s.keys("vendors")
	if indexKey != "backups/prod/vendors/index.vec" {
		t.Fatalf("index key %q", indexKey)
	}
	if metaKey != "backups/prod/vendors/meta.json" {
		t.Fatalf("meta key %q", metaKey)
	}
}
