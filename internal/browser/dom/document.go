// internal/browser/dom/document.go
package dom

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// XPathPrefix marks selector entries that are XPath expressions rather than CSS.
const XPathPrefix = "xpath:"

var (
	// ErrInvalidSelector is returned for selectors that do not compile.
	ErrInvalidSelector = errors.New("dom: invalid selector")
	// ErrStaleElement is returned when a reference no longer resolves to a live element.
	ErrStaleElement = errors.New("dom: stale element reference")
)

// compiled selectors are cached process wide; lookups run on every tick.
var selectorCache sync.Map // map[string]cascadia.Selector

// Compile parses a CSS selector (group) with caching.
func Compile(selector string) (cascadia.Selector, error) {
	if cached, ok := selectorCache.Load(selector); ok {
		return cached.(cascadia.Selector), nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
	}
	selectorCache.Store(selector, sel)
	return sel, nil
}

// Document is a snapshot of a page's DOM, including open shadow roots.
type Document struct {
	URL      string
	Title    string
	Viewport Rect

	root     *html.Node
	gq       *goquery.Document
	elements map[*html.Node]*Element
	byRef    map[int64]*Element
	ordered  []*Element
	shadows  []*ShadowRoot
}

func newDocument(root *html.Node) *Document {
	return &Document{
		root:     root,
		gq:       goquery.NewDocumentFromNode(root),
		elements: make(map[*html.Node]*Element),
		byRef:    make(map[int64]*Element),
	}
}

// adopt registers an element node with the document.
func (d *Document) adopt(n *html.Node, scope *ShadowRoot, ref int64) *Element {
	el := &Element{
		Ref:       ref,
		Style:     defaultStyle,
		connected: true,
		index:     len(d.ordered),
		node:      n,
		doc:       d,
		scope:     scope,
	}
	d.elements[n] = el
	if ref != 0 {
		d.byRef[ref] = el
	}
	d.ordered = append(d.ordered, el)
	return el
}

// attachShadow attaches a shadow tree rooted at root to host.
func (d *Document) attachShadow(host *Element, root *html.Node) *ShadowRoot {
	sr := &ShadowRoot{host: host, root: root}
	host.shadow = sr
	d.shadows = append(d.shadows, sr)
	return sr
}

// Root returns the document element (<html>).
func (d *Document) Root() *Element {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.elements[c]
		}
	}
	return nil
}

// Body returns <body>, or nil.
func (d *Document) Body() *Element {
	el, _ := d.Query("body")
	return el
}

// ByRef resolves a live reference within this snapshot.
func (d *Document) ByRef(ref int64) *Element {
	return d.byRef[ref]
}

// SetValue overrides the captured value of the referenced element. Simulated
// pages use it to reflect text typed since the markup was written.
func (d *Document) SetValue(ref int64, v string) bool {
	el := d.byRef[ref]
	if el == nil {
		return false
	}
	el.value, el.hasValue = v, true
	return true
}

// Lookup resolves the element for a parse-tree node.
func (d *Document) Lookup(n *html.Node) *Element {
	return d.elements[n]
}

// All returns every element, light DOM and shadow trees, in document order.
func (d *Document) All() []*Element {
	return d.ordered
}

// ShadowRoots returns every open shadow root in the snapshot.
func (d *Document) ShadowRoots() []*ShadowRoot {
	return d.shadows
}

// Children returns the top-level elements of a shadow root.
func (s *ShadowRoot) Children() []*Element {
	var out []*Element
	for c := s.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if el, ok := s.host.doc.elements[c]; ok {
			out = append(out, el)
		}
	}
	return out
}

// QueryAll mirrors document.querySelectorAll: light DOM only, document order.
func (d *Document) QueryAll(selector string) ([]*Element, error) {
	return d.queryFrom(d.root, selector)
}

// Query returns the first match, or nil.
func (d *Document) Query(selector string) (*Element, error) {
	all, err := d.QueryAll(selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

// Count returns the number of light DOM matches; invalid selectors count zero.
func (d *Document) Count(selector string) int {
	if strings.HasPrefix(selector, XPathPrefix) {
		all, err := d.QueryAll(selector)
		if err != nil {
			return 0
		}
		return len(all)
	}
	sel, err := Compile(selector)
	if err != nil {
		return 0
	}
	return d.gq.FindMatcher(sel).Length()
}

// QueryAllDeep matches in the light DOM and, recursively, in every shadow root.
func (d *Document) QueryAllDeep(selector string) ([]*Element, error) {
	out, err := d.QueryAll(selector)
	if err != nil {
		return nil, err
	}
	for _, sr := range d.shadows {
		found, err := d.queryFrom(sr.root, selector)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

// Matches reports whether el matches a CSS selector.
func (d *Document) Matches(el *Element, selector string) bool {
	if el == nil {
		return false
	}
	sel, err := Compile(selector)
	if err != nil {
		return false
	}
	return sel.Match(el.node)
}

// queryFrom runs a selector against the descendants of top.
func (d *Document) queryFrom(top *html.Node, selector string) ([]*Element, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, fmt.Errorf("%w: empty selector", ErrInvalidSelector)
	}

	var nodes []*html.Node
	if expr, ok := strings.CutPrefix(selector, XPathPrefix); ok {
		found, err := htmlquery.QueryAll(top, strings.TrimSpace(expr))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, selector, err)
		}
		nodes = found
	} else {
		sel, err := Compile(selector)
		if err != nil {
			return nil, err
		}
		nodes = goquery.NewDocumentFromNode(top).FindMatcher(sel).Nodes
	}

	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		if el, ok := d.elements[n]; ok {
			out = append(out, el)
		}
	}
	return out, nil
}
