// Package runid issues identifiers for reconciliation runs. ULIDs sort
// lexically by creation time, so run artifacts listed by name appear in
// chronological order.
package runid

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh run identifier.
func New() string {
	return ulid.Make().String()
}

// Valid reports whether s parses as a run identifier.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(strings.ToUpper(s))
	return err == nil
}
