// Package normalize canonicalizes event titles so that the same real event
// entered by different people compares equal.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Title returns the comparison key of s: NFKC, case folded, with
// punctuation, symbols and whitespace removed.
func Title(s string) string {
	s = norm.NFKC.String(s)
	s = folder.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Equal reports whether a and b normalize to the same non-empty key.
func Equal(a, b string) bool {
	ka := Title(a)
	return ka != "" && ka == Title(b)
}
