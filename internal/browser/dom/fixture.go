// internal/browser/dom/fixture.go
package dom

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/chatpilot/internal/browser/shadowdom"
)

// Fixture attributes. They describe state a static document cannot express and
// are stripped from the tree so they never leak into selector derivation.
const (
	attrRect     = "data-rect"     // "x,y,width,height"
	attrViewport = "data-viewport" // "width,height" on <html>
	attrValue    = "data-value"
	attrDetached = "data-detached"
	attrDisabled = "data-disabled-prop"
)

// DefaultViewport is used when a fixture does not declare one.
var DefaultViewport = Rect{Width: 1280, Height: 800}

// ParseHTML builds a Document from markup. Geometry is taken from data-rect,
// computed style from the inline style attribute, and declarative
// <template shadowrootmode> elements become open shadow roots.
func ParseHTML(markup string) (*Document, error) {
	return ParseReader(strings.NewReader(markup))
}

// ParseReader is ParseHTML over a reader.
func ParseReader(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: failed to parse html: %w", err)
	}
	doc := newDocument(root)
	doc.Viewport = DefaultViewport

	fb := &fixtureBuilder{doc: doc, shadow: &shadowdom.Engine{}}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		fb.walk(c, nil, defaultStyle)
	}
	if htmlEl := doc.Root(); htmlEl != nil {
		if vp, ok := popAttr(htmlEl.node, attrViewport); ok {
			if nums, err := parseFloats(vp, 2); err == nil {
				doc.Viewport = Rect{Width: nums[0], Height: nums[1]}
			}
		}
	}
	if title, _ := doc.Query("title"); title != nil {
		doc.Title = title.Text()
	}
	return doc, nil
}

// MustParseHTML panics on malformed markup. Intended for tests and fixtures.
func MustParseHTML(markup string) *Document {
	doc, err := ParseHTML(markup)
	if err != nil {
		panic(err)
	}
	return doc
}

type fixtureBuilder struct {
	doc     *Document
	shadow  *shadowdom.Engine
	nextRef int64
}

// walk adopts n and its subtree. inherited carries the parent's computed
// style: a display:none ancestor collapses the box of every descendant and
// visibility is inherited unless overridden.
func (fb *fixtureBuilder) walk(n *html.Node, scope *ShadowRoot, inherited Style) {
	if n.Type != html.ElementNode {
		return
	}
	fb.nextRef++
	el := fb.doc.adopt(n, scope, fb.nextRef)

	if raw, ok := popAttr(n, attrRect); ok {
		if nums, err := parseFloats(raw, 4); err == nil {
			el.Rect = Rect{X: nums[0], Y: nums[1], Width: nums[2], Height: nums[3]}
		}
	}
	if raw, ok := popAttr(n, attrValue); ok {
		el.value, el.hasValue = raw, true
	}
	if _, ok := popAttr(n, attrDetached); ok {
		el.connected = false
	}
	if _, ok := popAttr(n, attrDisabled); ok {
		el.disabled = true
	}
	el.Style.Visibility = inherited.Visibility
	if style, ok := el.Attr("style"); ok {
		el.Style = parseInlineStyle(style, el.Style)
	}
	if inherited.Display == "none" {
		el.Rect = Rect{}
		el.Style.Display = "none"
	}

	if fb.shadow.DetectShadowHost(n) {
		if root := fb.shadow.InstantiateShadowRoot(n); root != nil {
			sr := fb.doc.attachShadow(el, root)
			for c := root.FirstChild; c != nil; c = c.NextSibling {
				fb.walk(c, sr, el.Style)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fb.walk(c, scope, el.Style)
	}
}

func popAttr(n *html.Node, key string) (string, bool) {
	for i, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return a.Val, true
		}
	}
	return "", false
}

func parseFloats(raw string, want int) ([]float64, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d numbers, got %d", want, len(parts))
	}
	out := make([]float64, want)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// parseInlineStyle reads the properties the validators care about.
func parseInlineStyle(style string, base Style) Style {
	s := base
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		switch prop {
		case "display":
			s.Display = val
		case "visibility":
			s.Visibility = val
		case "opacity":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				s.Opacity = f
			}
		case "cursor":
			s.Cursor = val
		}
	}
	return s
}
