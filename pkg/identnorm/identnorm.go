// Package identnorm normalizes externally sourced identifiers before comparison.
//
// Consultant and client identifiers arrive from spreadsheets and manual entry
// with inconsistent punctuation and casing ("12.345.678-k", "12345678K").
// Both sides of every comparison must go through Normalize.
package identnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds accents, drops everything that is not a letter or digit and uppercases the rest.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Equal reports whether a and b name the same identifier. Two identifiers that
// normalize to the empty string are never equal.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
