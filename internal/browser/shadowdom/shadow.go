// Package shadowdom turns declarative shadow DOM markup
// (<template shadowrootmode="open">) into detached shadow trees, so static
// page captures resolve the same way as live pages with attached shadow roots.
package shadowdom

import (
	"strings"

	"golang.org/x/net/html"
)

// RootData labels the synthetic node that roots an instantiated shadow tree.
const RootData = "shadow-root-boundary"

// Engine instantiates declarative shadow roots.
type Engine struct{}

// DetectShadowHost reports whether node has a direct <template shadowrootmode> child.
func (e *Engine) DetectShadowHost(node *html.Node) bool {
	return findShadowTemplate(node) != nil
}

// InstantiateShadowRoot detaches the declarative template from host and returns
// a new root node holding a deep copy of the template content. Nested
// declarative templates are left in place; they are instantiated when the
// returned tree is walked.
func (e *Engine) InstantiateShadowRoot(host *html.Node) *html.Node {
	tmpl := findShadowTemplate(host)
	if tmpl == nil {
		return nil
	}
	root := &html.Node{Type: html.DocumentNode, Data: RootData}
	for c := tmpl.FirstChild; c != nil; c = c.NextSibling {
		root.AppendChild(cloneNode(c))
	}
	host.RemoveChild(tmpl)
	return root
}

func findShadowTemplate(node *html.Node) *html.Node {
	if node == nil || node.Type != html.ElementNode {
		return nil
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && strings.EqualFold(c.Data, "template") {
			mode := strings.ToLower(getAttr(c, "shadowrootmode"))
			if mode == "open" || mode == "closed" {
				return c
			}
		}
	}
	return nil
}

// getAttr is a case-insensitive attribute lookup.
func getAttr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// cloneNode deep copies a node and its subtree, detached from any parent.
func cloneNode(n *html.Node) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]html.Attribute, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		clone.AppendChild(cloneNode(c))
	}
	return clone
}
