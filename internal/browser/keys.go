// internal/browser/keys.go
package browser

import (
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
}

// keyText maps a key name to the string chromedp.KeyEvent expects.
func keyText(key string) string {
	if k, ok := namedKeys[key]; ok {
		return k
	}
	return key
}

// cdpModifiers splits a modifier bitmask into CDP modifiers.
func cdpModifiers(m schemas.KeyModifier) []input.Modifier {
	var out []input.Modifier
	for _, pair := range []struct {
		bit schemas.KeyModifier
		mod input.Modifier
	}{
		{schemas.ModAlt, input.ModifierAlt},
		{schemas.ModCtrl, input.ModifierCtrl},
		{schemas.ModMeta, input.ModifierMeta},
		{schemas.ModShift, input.ModifierShift},
	} {
		if m&pair.bit != 0 {
			out = append(out, pair.mod)
		}
	}
	return out
}
