package ingest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vendexa/vendex/engine/domain"
)

// FlattenText builds the searchable text for a vendor by concatenating every
// non-empty scalar field, joining list values by spaces and recursing into
// nested records depth-first. Map keys are visited in sorted order so the
// flattened text is deterministic across runs.
func FlattenText(v domain.Vendor) string {
	var parts []string
	collectText(map[string]any(v), &parts)
	return strings.Join(parts, " ")
}

func collectText(value any, parts *[]string) {
	switch t := value.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			*parts = append(*parts, s)
		}
	case float64:
		*parts = append(*parts, trimFloat(t))
	case bool:
		*parts = append(*parts, fmt.Sprintf("%t", t))
	case []any:
		for _, item := range t {
			collectText(item, parts)
		}
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectText(t[k], parts)
		}
	}
}

// metadataKeys maps flat metadata names to their location in the vendor
// record. Nested locations use a path through intermediate objects.
var metadataKeys = []struct {
	name string
	path []string
}{
	{"vendor_id", []string{"vendor_id"}},
	{"name", []string{"name"}},
	{"type", []string{"type"}},
	{"listed", []string{"corporate", "listed"}},
	{"deployment", []string{"delivery", "deployment"}},
}

// ExtractMetadata builds the flat metadata entry retained for display and
// filtering. Absent fields are simply omitted.
func ExtractMetadata(v domain.Vendor) domain.Metadata {
	meta := domain.Metadata{}
	for _, mk := range metadataKeys {
		if s, ok := lookupString(map[string]any(v), mk.path); ok {
			meta[mk.name] = s
		}
	}
	return meta
}

func lookupString(obj map[string]any, path []string) (string, bool) {
	cur := any(obj)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	switch t := cur.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return trimFloat(t), true
	case bool:
		return fmt.Sprintf("%t", t), true
	}
	return "", false
}

func stringField(v domain.Vendor, key string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return "unknown"
}

// trimFloat renders a JSON number without a trailing ".000000" when it is
// integral, matching how the source catalogue writes years and counts.
func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
