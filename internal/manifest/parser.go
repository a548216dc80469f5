// Package manifest parses shipment manifest files and matches decoded
// barcodes against them.
package manifest

import (
	"errors"
	"strings"
	"unicode"

	"github.com/neyoyoyminoy/palletPortal/internal/types"
)

// ErrNoCodes is returned when manifest content yields no usable barcodes.
// Callers must treat this as "no manifest found", never arm a session with
// an empty expected set.
var ErrNoCodes = errors.New("manifest: no barcodes found")

// Parse extracts the expected-code list from raw manifest file content.
// Tokens are separated by any run of whitespace or commas. Duplicates are
// collapsed case-insensitively, keeping the first occurrence and the
// first-seen order. A leading UTF-8 BOM is ignored.
func Parse(raw string) (*types.ShipmentManifest, error) {
	raw = strings.TrimPrefix(raw, "\uFEFF")

	tokens := strings.FieldsFunc(raw, isSeparator)
	seen := make(map[string]struct{}, len(tokens))
	codes := make([]types.ManifestCode, 0, len(tokens))
	for _, tok := range tokens {
		code := types.ManifestCode(strings.TrimSpace(tok))
		if code == "" {
			continue
		}
		if _, dup := seen[code.Key()]; dup {
			continue
		}
		seen[code.Key()] = struct{}{}
		codes = append(codes, code)
	}

	if len(codes) == 0 {
		return nil, ErrNoCodes
	}
	return &types.ShipmentManifest{Codes: codes}, nil
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}
