// internal/autosend/stop.go
package autosend

import (
	"context"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// clusterDepth is how many ancestors above the editor form its action cluster.
const clusterDepth = 3

var stopKeywords = []string{"stop", "停止", "detener", "arrêter", "interrompre"}

// IsStopLike reports whether an element's label or text marks it as a
// "stop generating" control.
func IsStopLike(el *dom.Element) bool {
	if el == nil {
		return false
	}
	text := strings.Join([]string{
		el.AttrOr("aria-label", ""),
		el.AttrOr("title", ""),
		el.AttrOr("data-testid", ""),
		el.Text(),
	}, " ")
	return heuristics.HasKeyword(text, stopKeywords)
}

// IsBusy is the default busy check: a stop-like label or aria-busy.
func IsBusy(el *dom.Element) bool {
	if el == nil {
		return false
	}
	return IsStopLike(el) || strings.EqualFold(el.AttrOr("aria-busy", ""), "true")
}

// IsEnabled is the default enabled check.
func IsEnabled(el *dom.Element) bool {
	return el != nil && el.Connected() && !el.Disabled()
}

// FindStopIn scans the action cluster around editor for a visible, enabled,
// stop-like control. When editor is nil the composer is located
// heuristically, first its editor and then its send button. Only a page
// without any composer is scanned as a whole.
func FindStopIn(doc *dom.Document, editor *dom.Element) *dom.Element {
	if doc == nil {
		return nil
	}
	anchor := editor
	if anchor == nil {
		anchor = composerAnchor(doc)
	}
	root := doc.Body()
	if anchor != nil {
		root = cluster(anchor)
	}

	var found *dom.Element
	heuristics.WalkDeep(root, func(el *dom.Element) bool {
		if !validator.IsClickable(el) || !validator.IsVisible(el, 1, 1) || el.Disabled() || !IsStopLike(el) {
			return true
		}
		found = el
		return false
	})
	return found
}

func composerAnchor(doc *dom.Document) *dom.Element {
	ctx := context.Background()
	if ed := (heuristics.Base{}).DetectEditor(ctx, doc, heuristics.Hint{}); ed != nil {
		return ed
	}
	return heuristics.Base{}.DetectSendButton(ctx, doc, heuristics.Hint{})
}

// cluster returns the ancestor clusterDepth levels above el, stopping early
// at the top of the tree.
func cluster(el *dom.Element) *dom.Element {
	root := el
	for i := 0; i < clusterDepth; i++ {
		p := root.ComposedParent()
		if p == nil {
			break
		}
		root = p
	}
	return root
}

// live reports whether a stop control is still rendered and usable.
func live(el *dom.Element) bool {
	return el != nil && el.Connected() && !el.Disabled() && validator.IsVisible(el, 1, 1)
}
