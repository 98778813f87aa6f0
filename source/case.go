package source

import (
	"strings"
	"unicode"
)

// toSnake lower-cases names and joins words with underscores so that "Game", "game"
// and "game-v2" style namespaces map to a single tag. Any other punctuation becomes
// a separator.
func toSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	sep := false
	separate := func() {
		if !sep && b.Len() > 0 {
			b.WriteByte('_')
			sep = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					separate()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			sep = false
		case unicode.IsLower(r), unicode.IsDigit(r):
			b.WriteRune(r)
			sep = false
		default:
			separate()
		}
	}

	return strings.Trim(b.String(), "_")
}
