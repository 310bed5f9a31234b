// Package domain defines the core types and error taxonomy shared across the
// Vendex retrieval engine. It is imported by every other engine package and
// depends on none of them.
package domain

// Vendor is a raw catalogue record as read from vendors.json. Records are
// free-form: no schema is guaranteed beyond being a JSON object.
type Vendor map[string]any

// Metadata is the flat, stringified record retained per indexed vector for
// display and filtering. It corresponds 1:1, by position, with a vector in
// the index.
type Metadata map[string]string

// SearchResult is a single ranked hit returned by a query.
type SearchResult struct {
	VendorID string   `json:"vendor_id"`
	Name     string   `json:"name"`
	Score    float32  `json:"score"`
	Meta     Metadata `json:"meta"`
}

// EvalQuery is one labeled evaluation case: a query string plus the gold set
// of relevant vendor IDs.
type EvalQuery struct {
	Q    string   `json:"q"`
	Gold []string `json:"gold"`
}
