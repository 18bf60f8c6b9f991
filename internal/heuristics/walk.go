// internal/heuristics/walk.go
package heuristics

import "github.com/xkilldash9x/chatpilot/internal/browser/dom"

// WalkDeep visits root and every element below it in document order,
// descending into open shadow roots before light children. Depth is unbounded;
// each element is visited at most once. Returning false from visit stops the walk.
func WalkDeep(root *dom.Element, visit func(*dom.Element) bool) {
	if root == nil {
		return
	}
	seen := make(map[*dom.Element]struct{})
	walkDeep(root, seen, visit)
}

func walkDeep(el *dom.Element, seen map[*dom.Element]struct{}, visit func(*dom.Element) bool) bool {
	if _, ok := seen[el]; ok {
		return true
	}
	seen[el] = struct{}{}
	if !visit(el) {
		return false
	}
	if sr := el.ShadowRoot(); sr != nil {
		for _, child := range sr.Children() {
			if !walkDeep(child, seen, visit) {
				return false
			}
		}
	}
	for _, child := range el.Children() {
		if !walkDeep(child, seen, visit) {
			return false
		}
	}
	return true
}

// CollectDeep returns every element of doc, shadow trees included, that
// satisfies keep.
func CollectDeep(doc *dom.Document, keep func(*dom.Element) bool) []*dom.Element {
	var out []*dom.Element
	WalkDeep(doc.Root(), func(el *dom.Element) bool {
		if keep(el) {
			out = append(out, el)
		}
		return true
	})
	return out
}

// resolveIn maps an element from any snapshot onto doc by reference.
func resolveIn(doc *dom.Document, el *dom.Element) *dom.Element {
	if el == nil || doc == nil {
		return nil
	}
	if el.Document() == doc {
		return el
	}
	if el.Ref == 0 {
		return nil
	}
	return doc.ByRef(el.Ref)
}
