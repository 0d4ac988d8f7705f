package form

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s, strips accents and collapses whitespace so that
// "  renault " and "RENAULT" or "Citroën" and "CITROEN" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

// canonical returns the catalog spelling of value, or value unchanged when
// the catalog has no match.
func canonical(value string, options []string) string {
	key := fold(value)
	if key == "" {
		return value
	}
	for _, opt := range options {
		if fold(opt) == key {
			return opt
		}
	}
	return value
}
