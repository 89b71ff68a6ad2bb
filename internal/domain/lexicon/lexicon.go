// Package lexicon tokenizes and stems free text and detects denial language.
package lexicon

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// denialRoots are stems whose presence in a title marks the report as a denial.
var denialRoots = map[string]struct{}{
	"no": {}, "not": {}, "noth": {}, "fake": {}, "fals": {}, "clear": {},
	"clean": {}, "safe": {}, "normal": {}, "hoax": {}, "lie": {}, "wrong": {},
}

// Tokenize lower-cases s and splits it into runs of letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Stem returns the Porter2 stem of a lower-cased word. Stop words are stemmed
// too so that "no" and "not" survive as denial roots.
func Stem(word string) string {
	return english.Stem(strings.ToLower(word), false)
}

// StemAll stems every word and drops empty results.
func StemAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if s := Stem(w); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StemSet returns the distinct stems of words.
func StemSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, s := range StemAll(words) {
		set[s] = struct{}{}
	}
	return set
}

// SharesStem reports whether any word in a stems to a member of b's stems.
func SharesStem(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := StemSet(b)
	for _, s := range StemAll(a) {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// Denial returns the first denial root found among the stemmed title tokens.
func Denial(title string) (string, bool) {
	for _, s := range StemAll(Tokenize(title)) {
		if _, ok := denialRoots[s]; ok {
			return s, true
		}
	}
	return "", false
}
