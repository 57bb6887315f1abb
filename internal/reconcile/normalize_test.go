package reconcile

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims and lowercases", in: "  Onyx  ", want: "onyx"},
		{name: "collapses whitespace", in: "Bois   de\tSantal", want: "bois de santal"},
		{name: "folds diacritics", in: "Crème Brûlée", want: "creme brulee"},
		{name: "keeps apostrophe", in: "Fleur d'Oranger", want: "fleur d'oranger"},
		{name: "keeps ampersand", in: "NOIR & OR", want: "noir & or"},
		{name: "keeps hyphen", in: "Demi-Sec", want: "demi-sec"},
		{name: "drops other punctuation", in: "Onyx (2024 ed.)", want: "onyx 2024 ed"},
		{name: "empty", in: "", want: ""},
		{name: "punctuation only", in: "!!!", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeName(tc.in); got != tc.want {
				t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{"Crème Brûlée", "  Fleur   d'Oranger ", "Onyx (Limited)"}
	for _, in := range inputs {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Fatalf("normalisation not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
