// internal/persist/derive.go
package persist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

var (
	// ErrDerivationFailed means no selector unique to the element exists within
	// the derivation limits. The element stays usable, it just cannot be remembered.
	ErrDerivationFailed = errors.New("persist: no unique selector could be derived")
	// ErrPersistFailed means the configuration store rejected the write.
	ErrPersistFailed = errors.New("persist: saving custom selectors failed")
)

// attributePriority lists the attributes tried first, most stable first.
var attributePriority = []string{
	"data-testid",
	"data-test",
	"data-qa",
	"aria-label",
	"id",
	"name",
	"placeholder",
}

const (
	maxUsefulClasses   = 3
	maxStructuralDepth = 4
)

// DeriveSelector builds a CSS selector that selects exactly el within doc.
// Strategies, in order: a stable attribute, up to three classes, then a
// structural nth-of-type path of at most four levels.
func DeriveSelector(doc *dom.Document, el *dom.Element) (string, error) {
	if doc == nil || el == nil || el.Tag() == "" {
		return "", fmt.Errorf("%w: no element", ErrDerivationFailed)
	}
	tag := el.Tag()

	for _, attr := range attributePriority {
		value, ok := el.Attr(attr)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		sel := tag + "[" + attr + "=" + dom.QuoteAttrValue(value) + "]"
		if attr == "id" && dom.IsPlainIdent(value) {
			sel = "#" + value
		}
		if selects(doc, sel, el) {
			return sel, nil
		}
	}

	if classes := usefulClasses(el); len(classes) > 0 {
		sel := tag + "." + strings.Join(classes, ".")
		if selects(doc, sel, el) {
			return sel, nil
		}
	}

	var path []string
	cur := el
	for depth := 0; depth < maxStructuralDepth && cur != nil; depth++ {
		step := fmt.Sprintf("%s:nth-of-type(%d)", cur.Tag(), cur.NthOfType())
		path = append([]string{step}, path...)
		sel := strings.Join(path, " > ")
		if selects(doc, sel, el) {
			return sel, nil
		}
		cur = cur.Parent()
	}

	return "", fmt.Errorf("%w: %s", ErrDerivationFailed, el.Describe())
}

// IsUniqueSelector reports whether selector matches exactly one element of
// the document's light DOM.
func IsUniqueSelector(doc *dom.Document, selector string) bool {
	found, err := doc.QueryAll(selector)
	return err == nil && len(found) == 1
}

// selects reports whether selector is unique in doc and its one match is el.
func selects(doc *dom.Document, selector string, el *dom.Element) bool {
	if !IsUniqueSelector(doc, selector) {
		return false
	}
	found, err := doc.Query(selector)
	return err == nil && found.Is(el)
}

// usefulClasses returns up to three classes usable in a selector, skipping
// our own injected classes and anything that would need escaping.
func usefulClasses(el *dom.Element) []string {
	var out []string
	for _, cls := range el.Classes() {
		if strings.HasPrefix(cls, validator.OwnPrefix) || !dom.IsPlainIdent(cls) {
			continue
		}
		out = append(out, cls)
		if len(out) == maxUsefulClasses {
			break
		}
	}
	return out
}
