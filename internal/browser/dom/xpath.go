// internal/browser/dom/xpath.go
package dom

import (
	"fmt"
	"strings"
)

// XPathOf generates an XPath expression for an element, anchored on the
// nearest ancestor with an id. Shadow-tree elements are addressed relative to
// their shadow root, which XPath cannot cross, so the result is only
// diagnostic for them.
func XPathOf(el *Element) string {
	if el == nil {
		return ""
	}

	var path []string
	// Traverse up the tree from the element to the root.
	for cur := el; cur != nil; cur = cur.Parent() {
		tag := cur.Tag()
		if tag == "" {
			continue
		}

		// If an element has an ID, use it as the base and stop traversal.
		if id := cur.ID(); id != "" && !strings.Contains(id, "'") {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, cur.NthOfType()))
	}

	if len(path) == 0 {
		return "/"
	}

	// Reverse the path to go from root (or ID base) to the node.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}
