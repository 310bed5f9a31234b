// Package ingest turns a raw vendor catalogue into the (search text,
// metadata) pairs consumed by the index build. Records that flatten to an
// empty search text are skipped, not fatal.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/vendexa/vendex/engine/domain"
)

// LoadVendors reads a JSON array of vendor records from path.
func LoadVendors(path string) ([]domain.Vendor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", path, err)
	}
	var vendors []domain.Vendor
	if err := json.Unmarshal(data, &vendors); err != nil {
		return nil, fmt.Errorf("ingest: parse %s: %w", path, err)
	}
	return vendors, nil
}

// Process converts vendors into parallel slices of search texts and metadata
// entries. Vendors producing an empty search text are dropped with a warning;
// the two returned slices always have equal length.
func Process(vendors []domain.Vendor, log *slog.Logger) ([]string, []domain.Metadata) {
	if log == nil {
		log = slog.Default()
	}

	texts := make([]string, 0, len(vendors))
	metas := make([]domain.Metadata, 0, len(vendors))

	for _, v := range vendors {
		text := FlattenText(v)
		if text == "" {
			log.Warn("ingest: skipping vendor with empty search text", "vendor_id", stringField(v, "vendor_id"))
			continue
		}
		texts = append(texts, text)
		metas = append(metas, ExtractMetadata(v))
	}

	log.Info("ingest: processed vendors", "total", len(vendors), "indexed", len(texts))
	return texts, metas
}
