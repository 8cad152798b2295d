// Package slug turns URL slugs from a watch-history page into catalog titles.
package slug

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// yearSuffix matches a run of exactly four digits at the end of a slug.
	yearSuffix = regexp.MustCompile(`(^|[^0-9])[0-9]{4}$`)

	// trailingRoman matches a final token made only of I, V and X that
	// follows at least one other token.
	trailingRoman = regexp.MustCompile(`^(.*\S\s+)([IVXivx]+)$`)
)

// Normalize maps a slug such as "rocky-ii-1979" to the display title
// "Rocky II". It is pure and deterministic. Catalog titles are compared
// against the result by exact match.
//
// Known limitations: alphanumeric words are cased per letter run, so
// "se7en" becomes "Se7En", and any final word spelled only with I, V and X
// is upper-cased whether or not it is a numeral.
func Normalize(raw string) string {
	s := stripYear(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.ReplaceAll(s, "-", " "))
	s = titleCase(s)
	if m := trailingRoman.FindStringSubmatch(s); m != nil {
		s = m[1] + strings.ToUpper(m[2])
	}
	return s
}

// stripYear drops a trailing four-digit year and the hyphen before it.
// A slug that is nothing but a year ("1917") is kept as is.
func stripYear(s string) string {
	loc := yearSuffix.FindStringIndex(s)
	if loc == nil {
		return s
	}
	head := s[:len(s)-4]
	if strings.Trim(head, "- ") == "" {
		return s
	}
	return strings.TrimRight(head, "-")
}

// titleCase upper-cases a letter that starts the string or follows a
// non-letter and lower-cases every other letter.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToTitle(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
