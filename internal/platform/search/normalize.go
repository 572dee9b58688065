// Package search builds the SQL used by list/search endpoints: filter
// clauses, soft-delete scoping and trigram-based fuzzy name matching.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s for matching: accents are stripped, letters lower-cased,
// punctuation dropped and runs of whitespace collapsed. "  José  MARÍA-Pérez"
// becomes "jose maria perez".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			space = true
		}
	}
	return b.String()
}

// NormalizeDocument keeps only the digits of an identity document number, so
// "30.123.456" and "30123456" compare equal.
func NormalizeDocument(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SearchName is the value stored in the search_name column of people.
func SearchName(first, last string) string {
	return Normalize(first + " " + last)
}

var titler = cases.Title(language.Spanish)

// TitleName tidies a person name for display: "GARCÍA  lópez" -> "García López".
func TitleName(s string) string {
	return titler.String(strings.Join(strings.Fields(s), " "))
}
