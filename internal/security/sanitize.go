package security

import (
	"strings"
	"unicode"
)

// Sanitize normalises raw user text: NUL and other non-whitespace control
// characters are removed, every whitespace run (newlines included) becomes a
// single space, and the result is trimmed. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case r == 0 || unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, raw)
	return strings.Join(strings.Fields(cleaned), " ")
}
