package reconcile

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/veloria/catalogsync/internal/domain"
)

// skuPattern is the only accepted SKU shape: uppercase segments joined by
// hyphens, e.g. TERRA-ONYX-6ML.
var skuPattern = regexp.MustCompile(`^[A-Z]+(-[A-Z0-9]+)+$`)

// ValidSKU reports whether a SKU matches the required shape.
func ValidSKU(sku string) bool {
	return skuPattern.MatchString(sku)
}

// GenerateSKU derives the canonical SKU for one size of a product. The
// derivation is a pure function of collection, display name and size code;
// running it twice on the same inputs always yields the same SKU.
func GenerateSKU(group domain.CollectionGroup, displayName, sizeCode string) string {
	segments := []string{strings.ToUpper(string(group))}
	segments = append(segments, nameSegments(displayName)...)
	segments = append(segments, strings.ToUpper(sizeCode))
	return strings.Join(segments, "-")
}

// GenerateSKUSet derives the full SKU set in size-table order.
func GenerateSKUSet(group domain.CollectionGroup, displayName string, sizeCodes []string) []string {
	skus := make([]string, 0, len(sizeCodes))
	for _, code := range sizeCodes {
		skus = append(skus, GenerateSKU(group, displayName, code))
	}
	return skus
}

// nameSegments splits a normalized display name into uppercase SKU
// segments. Diacritics are already folded by normalisation, so each segment
// is plain A-Z0-9.
func nameSegments(displayName string) []string {
	normalized := NormalizeName(displayName)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	segments := make([]string, 0, len(fields))
	for _, field := range fields {
		segments = append(segments, strings.ToUpper(field))
	}
	return segments
}
