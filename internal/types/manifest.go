package types

import "strings"

// ManifestCode is a single barcode value as it appeared on the manifest,
// trimmed, original casing preserved.
type ManifestCode string

// Key returns the case-folded form used for matching and deduplication.
func (c ManifestCode) Key() string {
	return strings.ToLower(string(c))
}

// ShipmentManifest is the expected-item list parsed from a manifest file.
// Codes are unique by folded key and keep first-seen order. A manifest is
// never empty: parsing that yields zero codes reports an error instead of
// producing one.
type ShipmentManifest struct {
	// Source is the directory the manifest file was discovered in
	Source string
	// Codes are the expected barcode values in first-seen order
	Codes []ManifestCode
}

// Len returns the number of expected codes.
func (m *ShipmentManifest) Len() int {
	return len(m.Codes)
}
