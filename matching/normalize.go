package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalise lowercases text, strips diacritics, replaces punctuation with
// spaces and collapses whitespace so that variant spellings of the same
// name compare equal. It is the shared normalization used by every lookup
// key in the system.
func Normalise(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = foldDiacritics(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// foldDiacritics decomposes the text and drops combining marks, so that
// "Protección" folds to "Proteccion".
func foldDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return folded
}

// NormaliseWhitespace collapses runs of whitespace (including tabs and
// newlines) into single spaces without touching case or punctuation.
func NormaliseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
