// internal/heuristics/deepseek.go
package heuristics

import (
	"context"
	"math"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// DeepSeek knows the chat.deepseek.com composer: a plain textarea and an icon
// only div[role=button] to its lower right, next to text toggles that must
// never be picked.
type DeepSeek struct{}

var (
	deepSeekPlaceholders = []string{"deepseek", "发送消息", "message"}
	deepSeekClassHints   = []string{"ds-icon-button", "ds-button--primary", "_7436101", "f6d670", "bf38813a"}
	deepSeekToggleTexts  = []string{"deepthink", "search", "深度思考", "联网搜索", "r1"}
)

// Proximity decays with distance from the editor's bottom right corner.
const (
	deepSeekVerticalWeight   = 12.0
	deepSeekHorizontalWeight = 8.0
	deepSeekDecay            = 120.0
	deepSeekMinScore         = 6.0
)

func (DeepSeek) DetectEditor(_ context.Context, doc *dom.Document, hint Hint) *dom.Element {
	var (
		best      *dom.Element
		bestScore = 0
	)
	for _, el := range CollectDeep(doc, func(el *dom.Element) bool { return el.Tag() == "textarea" }) {
		if !validator.IsCandidateVisible(el) || validator.IsOwnElement(el, hint.OwnContainerID) {
			continue
		}
		score := 1
		if el.ID() == "chat-input" {
			score += 20
		}
		if containsAny(strings.ToLower(el.AttrOr("placeholder", "")), deepSeekPlaceholders) {
			score += 10
		}
		if el.Disabled() {
			score -= 5
		}
		if score > bestScore || (score == bestScore && best != nil && el.Rect.Y > best.Rect.Y) {
			best, bestScore = el, score
		}
	}
	return best
}

func (d DeepSeek) DetectSendButton(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element {
	editor := resolveIn(doc, hint.Editor)
	if editor == nil {
		editor = d.DetectEditor(ctx, doc, hint)
	}

	var (
		best      *dom.Element
		bestScore = deepSeekMinScore
	)
	for _, el := range CollectDeep(doc, validator.IsClickable) {
		if !validator.IsCandidateVisible(el) || validator.IsOwnElement(el, hint.OwnContainerID) {
			continue
		}
		if score := d.score(el, editor); score > bestScore {
			best, bestScore = el, score
		}
	}
	return best
}

func (DeepSeek) score(el, editor *dom.Element) float64 {
	text := strings.ToLower(el.Text())
	labels := labelText(el)
	if containsAny(text, deepSeekToggleTexts) || HasKeyword(labels, negativeKeywords) {
		return math.Inf(-1)
	}

	score := 0.0
	class := strings.ToLower(el.AttrOr("class", ""))
	if containsAny(class, deepSeekClassHints) {
		score += 6
	}
	if containsAny(labels, sendKeywords) {
		score += 10
	}
	if text == "" && len(el.Find("svg")) > 0 {
		score += 4
	}
	if el.Disabled() {
		score += 1
	}

	if editor != nil && !editor.Is(el) {
		r, e := el.Rect, editor.Rect
		// Vertical: the button sits level with or just below the editor's bottom edge.
		dy := math.Abs(r.CenterY() - e.Bottom())
		if r.CenterY() >= e.Y && r.CenterY() <= e.Bottom() {
			dy = math.Min(dy, e.Bottom()-r.CenterY())
		}
		score += deepSeekVerticalWeight * math.Exp(-dy/deepSeekDecay)
		// Horizontal: aligned with the editor's right edge.
		if r.X >= e.CenterX() {
			dx := math.Abs(e.Right() - r.Right())
			score += deepSeekHorizontalWeight * math.Exp(-dx/deepSeekDecay)
		} else {
			score -= 4
		}
	}
	return score
}
