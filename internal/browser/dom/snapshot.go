// internal/browser/dom/snapshot.go
package dom

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PageSnapshot is the wire format produced by the in-page collector script.
type PageSnapshot struct {
	URL       string        `json:"url"`
	Title     string        `json:"title"`
	Viewport  Rect          `json:"viewport"`
	Root      *NodeSnapshot `json:"root"`
	Truncated bool          `json:"truncated,omitempty"`
}

// NodeSnapshot is one node of the collected tree. Text nodes carry only Text.
type NodeSnapshot struct {
	Ref       int64           `json:"ref,omitempty"`
	Tag       string          `json:"tag,omitempty"`
	Text      string          `json:"text,omitempty"`
	Attrs     [][2]string     `json:"attrs,omitempty"`
	Rect      Rect            `json:"rect"`
	Style     *Style          `json:"style,omitempty"`
	Value     *string         `json:"value,omitempty"`
	Disabled  bool            `json:"disabled,omitempty"`
	Click     bool            `json:"click,omitempty"`
	Children  []*NodeSnapshot `json:"children,omitempty"`
	Shadow    []*NodeSnapshot `json:"shadow,omitempty"`
	HasShadow bool            `json:"hasShadow,omitempty"`
}

// DecodeSnapshot parses collector output.
func DecodeSnapshot(raw []byte) (*PageSnapshot, error) {
	var snap PageSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("dom: failed to decode snapshot: %w", err)
	}
	if snap.Root == nil {
		return nil, fmt.Errorf("dom: snapshot has no root element")
	}
	return &snap, nil
}

// FromSnapshot builds a Document from collector output.
func FromSnapshot(snap *PageSnapshot) (*Document, error) {
	if snap == nil || snap.Root == nil {
		return nil, fmt.Errorf("dom: empty snapshot")
	}
	root := &html.Node{Type: html.DocumentNode}
	doc := newDocument(root)
	doc.URL = snap.URL
	doc.Title = snap.Title
	doc.Viewport = snap.Viewport

	b := &snapshotBuilder{doc: doc}
	b.build(root, snap.Root, nil)
	return doc, nil
}

type snapshotBuilder struct {
	doc *Document
}

func (b *snapshotBuilder) build(parent *html.Node, s *NodeSnapshot, scope *ShadowRoot) {
	if s.Tag == "" {
		if s.Text != "" {
			parent.AppendChild(&html.Node{Type: html.TextNode, Data: s.Text})
		}
		return
	}

	tag := strings.ToLower(s.Tag)
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for _, kv := range s.Attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: strings.ToLower(kv[0]), Val: kv[1]})
	}
	parent.AppendChild(n)

	el := b.doc.adopt(n, scope, s.Ref)
	el.Rect = s.Rect
	if s.Style != nil {
		el.Style = *s.Style
	}
	if s.Value != nil {
		el.value, el.hasValue = *s.Value, true
	}
	el.disabled = s.Disabled
	el.clickHandler = s.Click

	if len(s.Shadow) > 0 || s.HasShadow {
		shadowRoot := &html.Node{Type: html.DocumentNode, Data: shadowRootData}
		sr := b.doc.attachShadow(el, shadowRoot)
		for _, child := range s.Shadow {
			b.build(shadowRoot, child, sr)
		}
	}
	for _, child := range s.Children {
		b.build(n, child, scope)
	}
}

// shadowRootData labels synthetic shadow root nodes.
const shadowRootData = "shadow-root-boundary"
