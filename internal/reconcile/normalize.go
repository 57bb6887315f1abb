package reconcile

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer strips combining marks so accented and unaccented
// spellings of the same name compare equal.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName reduces a display name to its matching form: diacritics
// folded, lowercased, punctuation outside the allow-list dropped, whitespace
// collapsed. Normalisation is the single definition of name equality; every
// matching rule goes through it.
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '&' || r == '\'' || r == '-':
			// Kept verbatim: "Fleur d'Oranger" and "Noir & Or" are
			// distinct names from their stripped forms.
			b.WriteRune(r)
			space = false
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
			}
			space = true
		default:
			// Other punctuation separates nothing.
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// nameKey scopes a normalized name to its collection group so duplicate
// detection and name matching never cross territories.
func nameKey(group, name string) string {
	return group + "/" + NormalizeName(name)
}
