package manifest

import (
	"strings"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// MethodExact is the only matching strategy: case-insensitive exact equality.
const MethodExact = "exact"

// Match is a successful lookup against the manifest.
type Match struct {
	// Code is the canonical manifest entry that matched
	Code types.ManifestCode
	// Confidence is 0-100; exact matching always reports 100
	Confidence int
	// Method names the matching strategy that produced the match
	Method string
}

// Matcher answers whether a decoded string belongs to one manifest.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	codes []types.ManifestCode
	byKey map[string]types.ManifestCode
}

// NewMatcher builds the lookup table for one manifest.
func NewMatcher(m *types.ShipmentManifest) *Matcher {
	byKey := make(map[string]types.ManifestCode, len(m.Codes))
	for _, c := range m.Codes {
		byKey[c.Key()] = c
	}
	return &Matcher{codes: m.Codes, byKey: byKey}
}

// Match reports whether candidate equals a manifest code, ignoring case and
// surrounding whitespace. There is no fuzzy, prefix, or substring matching.
func (mt *Matcher) Match(candidate string) (Match, bool) {
	key := strings.ToLower(strings.TrimSpace(candidate))
	if key == "" {
		return Match{}, false
	}
	code, ok := mt.byKey[key]
	if !ok {
		return Match{}, false
	}
	return Match{Code: code, Confidence: 100, Method: MethodExact}, true
}

// Expected returns the number of codes on the manifest.
func (mt *Matcher) Expected() int {
	return len(mt.codes)
}

// Codes returns the manifest codes in manifest order.
func (mt *Matcher) Codes() []types.ManifestCode {
	return mt.codes
}
