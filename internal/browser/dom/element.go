// internal/browser/dom/element.go
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Rect is an element's bounding client rect in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64   { return r.X + r.Width }
func (r Rect) Bottom() float64  { return r.Y + r.Height }
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }
func (r Rect) Area() float64    { return r.Width * r.Height }

// Style is the subset of the computed style the resolution core reads.
type Style struct {
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
	Cursor     string  `json:"cursor,omitempty"`
}

// defaultStyle is what an element without style information resolves to.
var defaultStyle = Style{Display: "block", Visibility: "visible", Opacity: 1}

// Element is one element of a Document. Its state is frozen at snapshot time;
// fresh state always requires a fresh snapshot.
type Element struct {
	// Ref is the stable identity of the element in the live page. It survives
	// re-renders that keep the node and is unique within a Document.
	Ref   int64
	Rect  Rect
	Style Style

	value        string
	hasValue     bool
	disabled     bool
	clickHandler bool
	connected    bool
	index        int

	node   *html.Node
	doc    *Document
	shadow *ShadowRoot
	// scope is the shadow root the element lives in, nil for the light DOM.
	scope *ShadowRoot
}

// ShadowRoot is an open shadow tree attached to a host element.
type ShadowRoot struct {
	host *Element
	root *html.Node
}

// Host returns the element the shadow root is attached to.
func (s *ShadowRoot) Host() *Element { return s.host }

// Node exposes the underlying root node.
func (s *ShadowRoot) Node() *html.Node { return s.root }

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	if e == nil || e.node == nil {
		return ""
	}
	return strings.ToLower(e.node.Data)
}

// Node exposes the underlying parse-tree node.
func (e *Element) Node() *html.Node { return e.node }

// Document returns the document the element belongs to.
func (e *Element) Document() *Document { return e.doc }

// Attr returns an attribute value (case-insensitive key) and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.node == nil {
		return "", false
	}
	for _, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns an attribute value or the fallback when absent.
func (e *Element) AttrOr(name, fallback string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return fallback
}

// Attrs returns the attributes in source order.
func (e *Element) Attrs() []html.Attribute {
	if e == nil || e.node == nil {
		return nil
	}
	return e.node.Attr
}

// ID returns the id attribute.
func (e *Element) ID() string { return e.AttrOr("id", "") }

// Classes returns the class list.
func (e *Element) Classes() []string {
	return strings.Fields(e.AttrOr("class", ""))
}

// Text returns the element's text content with whitespace collapsed.
func (e *Element) Text() string {
	if e == nil || e.node == nil {
		return ""
	}
	var sb strings.Builder
	collectText(e.node, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collectText(n *html.Node, sb *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if c.Data == "script" || c.Data == "style" {
				continue
			}
			collectText(c, sb)
		}
	}
}

// Value returns the editor content: the live value for form controls when the
// snapshot captured one, otherwise the text content.
func (e *Element) Value() string {
	if e == nil {
		return ""
	}
	if e.hasValue {
		return e.value
	}
	if e.Tag() == "input" {
		return e.AttrOr("value", "")
	}
	return e.Text()
}

// Disabled reports the disabled property or aria-disabled="true".
func (e *Element) Disabled() bool {
	if e == nil {
		return false
	}
	if e.disabled {
		return true
	}
	if _, ok := e.Attr("disabled"); ok {
		return true
	}
	return strings.EqualFold(e.AttrOr("aria-disabled", ""), "true")
}

// HasClickHandler reports an inline click handler (or one detected by the collector).
func (e *Element) HasClickHandler() bool {
	if e == nil {
		return false
	}
	if e.clickHandler {
		return true
	}
	_, ok := e.Attr("onclick")
	return ok
}

// Index is the element's position in document order (shadow trees included).
func (e *Element) Index() int { return e.index }

// Connected mirrors Node.isConnected at snapshot time.
func (e *Element) Connected() bool { return e != nil && e.connected }

// ContentEditable reports contenteditable="true" (or the empty-string form).
func (e *Element) ContentEditable() bool {
	v, ok := e.Attr("contenteditable")
	if !ok {
		return false
	}
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "" || v == "true" || v == "plaintext-only"
}

// ShadowRoot returns the open shadow root hosted by this element, if any.
func (e *Element) ShadowRoot() *ShadowRoot {
	if e == nil {
		return nil
	}
	return e.shadow
}

// Scope returns the shadow root containing the element, nil for the light DOM.
func (e *Element) Scope() *ShadowRoot {
	if e == nil {
		return nil
	}
	return e.scope
}

// Parent returns the parent element within the same tree (parentElement semantics).
func (e *Element) Parent() *Element {
	if e == nil || e.node == nil {
		return nil
	}
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return e.doc.elements[p]
		}
		return nil
	}
	return nil
}

// ComposedParent is Parent, but it steps from a shadow root's top level to its host.
func (e *Element) ComposedParent() *Element {
	if p := e.Parent(); p != nil {
		return p
	}
	if e != nil && e.scope != nil {
		return e.scope.host
	}
	return nil
}

// Children returns the direct element children.
func (e *Element) Children() []*Element {
	if e == nil || e.node == nil {
		return nil
	}
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if child, ok := e.doc.elements[c]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Contains reports whether other is e or a descendant of e in the same tree.
func (e *Element) Contains(other *Element) bool {
	if e == nil || other == nil {
		return false
	}
	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// ComposedContains is Contains, following shadow hosts upward.
func (e *Element) ComposedContains(other *Element) bool {
	for cur := other; cur != nil; {
		if e.Contains(cur) {
			return true
		}
		if cur.scope == nil {
			return false
		}
		cur = cur.scope.host
	}
	return false
}

// NthOfType returns the 1-based position among siblings sharing the tag name.
func (e *Element) NthOfType() int {
	if e == nil || e.node == nil {
		return 0
	}
	n := 1
	for prev := e.node.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.EqualFold(prev.Data, e.node.Data) {
			n++
		}
	}
	return n
}

// Find returns the descendants of e matching a CSS selector.
func (e *Element) Find(selector string) []*Element {
	if e == nil {
		return nil
	}
	found, err := e.doc.queryFrom(e.node, selector)
	if err != nil {
		return nil
	}
	return found
}

// Is reports whether two handles refer to the same live element.
func (e *Element) Is(other *Element) bool {
	if e == nil || other == nil {
		return false
	}
	if e.Ref != 0 && other.Ref != 0 {
		return e.Ref == other.Ref
	}
	return e.node == other.node
}

// Describe renders a short human readable form, used in logs.
func (e *Element) Describe() string {
	if e == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString("<")
	sb.WriteString(e.Tag())
	if id := e.ID(); id != "" {
		sb.WriteString(" #" + id)
	}
	if cls := e.Classes(); len(cls) > 0 {
		if len(cls) > 2 {
			cls = cls[:2]
		}
		sb.WriteString(" ." + strings.Join(cls, "."))
	}
	sb.WriteString(">")
	return sb.String()
}
