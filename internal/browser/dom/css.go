// internal/browser/dom/css.go
package dom

import (
	"strings"
)

// QuoteAttrValue renders a value as a double-quoted CSS string.
func QuoteAttrValue(v string) string {
	var sb strings.Builder
	sb.Grow(len(v) + 2)
	sb.WriteByte('"')
	for _, r := range v {
		switch r {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case '\n':
			sb.WriteString(`\a `)
		case '\r', '\f':
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// IsPlainIdent reports whether s can be written as a CSS identifier without
// escaping (so "#"+s or "."+s is a valid selector).
func IsPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r >= 0x80:
		case r == '-':
			if i == 0 && len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
				return false
			}
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return s != "-"
}
