// Package pack provides package sinks for compiled scans: a datapack
// directory tree, an in-memory store, and zstd archive export.
package pack

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName turns a free-form title into a datapack-safe identifier:
// accents are stripped, letters lowercased, and any other run of characters
// collapsed to a single underscore.
func NormalizeName(title string) string {
	var sb strings.Builder
	underscore := false
	for _, r := range norm.NFKD.String(title) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			sb.WriteRune(unicode.ToLower(r))
			underscore = false
		case r == '.' || r == '-':
			sb.WriteRune(r)
			underscore = false
		default:
			if !underscore && sb.Len() > 0 {
				sb.WriteByte('_')
				underscore = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "_")
}
