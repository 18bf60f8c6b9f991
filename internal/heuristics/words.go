// internal/heuristics/words.go
package heuristics

import (
	"strings"
	"unicode"
)

// Words splits s into lower-case words, that is runs of letters and digits.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// HasKeyword reports whether s contains one of keywords as a whole word, a
// trailing plural "s" allowed. Keywords in scripts written without spaces
// match anywhere in s.
func HasKeyword(s string, keywords []string) bool {
	var words []string
	for _, k := range keywords {
		if unspaced(k) {
			if strings.Contains(s, k) {
				return true
			}
			continue
		}
		if words == nil {
			words = Words(s)
		}
		for _, w := range words {
			if w == k || w == k+"s" {
				return true
			}
		}
	}
	return false
}

func unspaced(k string) bool {
	for _, r := range k {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
