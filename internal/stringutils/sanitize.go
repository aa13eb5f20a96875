package stringutils

import (
	"strings"
	"unicode"
)

// Sanitize drops NUL, C0 and C1 control characters and anything unprintable
// from s, keeping tabs and line breaks. Invalid UTF-8 becomes U+FFFD.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t', r == '\n', r == '\r':
			return r
		case unicode.IsControl(r):
			return -1
		case unicode.IsPrint(r), unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, s)
}

// SanitizeLine sanitizes s and collapses every run of whitespace into a
// single space, for values that must stay on one line.
func SanitizeLine(s string) string {
	return strings.Join(strings.Fields(Sanitize(s)), " ")
}
