package matching

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketed  = regexp.MustCompile(`[\(\[].*?[\)\]]`)
	qualifiers = regexp.MustCompile(`(?is)\b(from|feat|ft|vs|remix|mix|version)\b.*`)
	nonWord    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]+`)
	spaces     = regexp.MustCompile(`[\s\p{Z}]+`)
)

// Normalize reduces a title or artist string to a comparable form.
//
// The text is lowercased first so qualifiers are matched on the same runes a second
// pass would see. Bracketed spans and stray parentheses are removed, everything from
// the first featuring/remix style qualifier onwards is dropped, punctuation becomes
// whitespace, and the result is whitespace-collapsed, trimmed and NFC-composed.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = strings.ToLower(norm.NFC.String(text))
	text = bracketed.ReplaceAllString(text, "")
	text = strings.NewReplacer("(", "", ")", "").Replace(text)
	text = qualifiers.ReplaceAllString(text, "")
	text = nonWord.ReplaceAllString(text, " ")
	text = spaces.ReplaceAllString(text, " ")
	return norm.NFC.String(strings.TrimSpace(text))
}

// Words is a set of normalized tokens.
type Words map[string]struct{}

// NormalizedWords returns the token set of Normalize(text).
func NormalizedWords(text string) Words {
	fields := strings.Fields(Normalize(text))
	words := make(Words, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	return words
}

// Overlap counts the tokens present in both sets.
func (w Words) Overlap(other Words) int {
	small, large := w, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for word := range small {
		if _, ok := large[word]; ok {
			n++
		}
	}
	return n
}
