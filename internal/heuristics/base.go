// internal/heuristics/base.go
package heuristics

import (
	"context"
	"sort"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// Send button scoring weights.
const (
	scoreSendKeyword  = 10
	scoreExactText    = 5
	scoreHasIcon      = 5
	scoreInEditorBand = 3
	scoreRightOfEdit  = 2
	scoreBelowRight   = 2
	scoreDisabled     = 1
	scoreNegative     = -50
)

var (
	sendKeywords     = []string{"send", "submit", "发送", "enviar", "envoyer", "senden", "invia"}
	exactSendTexts   = []string{"send", "submit"}
	negativeKeywords = []string{
		"stop", "cancel", "attach", "attachment", "upload", "mic", "microphone",
		"voice", "dictate", "dictation", "group",
	}
)

// Base is the generic strategy used for sites without domain knowledge.
type Base struct{}

// DetectEditor returns the lowest visible textarea or contenteditable region,
// shadow trees included.
func (Base) DetectEditor(_ context.Context, doc *dom.Document, hint Hint) *dom.Element {
	candidates := CollectDeep(doc, func(el *dom.Element) bool {
		if el.Tag() != "textarea" && !el.ContentEditable() {
			return false
		}
		return validator.IsCandidateVisible(el) && !validator.IsOwnElement(el, hint.OwnContainerID)
	})
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rect.Y > candidates[j].Rect.Y
	})
	return candidates[0]
}

// DetectSendButton scores every visible clickable element and returns the best
// one with a positive score.
func (b Base) DetectSendButton(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element {
	editor := resolveIn(doc, hint.Editor)
	if editor == nil {
		editor = b.DetectEditor(ctx, doc, hint)
	}

	var (
		best      *dom.Element
		bestScore = 0
	)
	for _, el := range CollectDeep(doc, validator.IsClickable) {
		if !validator.IsCandidateVisible(el) || validator.IsOwnElement(el, hint.OwnContainerID) {
			continue
		}
		if score := scoreSendButton(el, editor); score > bestScore {
			best, bestScore = el, score
		}
	}
	return best
}

func scoreSendButton(el, editor *dom.Element) int {
	labels := labelText(el)
	text := strings.ToLower(el.Text())

	score := 0
	if containsAny(labels, sendKeywords) {
		score += scoreSendKeyword
	}
	for _, exact := range exactSendTexts {
		if text == exact {
			score += scoreExactText
			break
		}
	}
	if len(el.Find("svg")) > 0 {
		score += scoreHasIcon
	}
	if editor != nil && !editor.Is(el) {
		score += proximityScore(el.Rect, editor.Rect)
	}
	if el.Disabled() {
		score += scoreDisabled
	}
	if HasKeyword(labels, negativeKeywords) || HasKeyword(text, negativeKeywords) {
		score += scoreNegative
	}
	return score
}

func proximityScore(btn, editor dom.Rect) int {
	score := 0
	if cy := btn.CenterY(); cy >= editor.Y && cy <= editor.Bottom() {
		score += scoreInEditorBand
	}
	if btn.X >= editor.CenterX() {
		score += scoreRightOfEdit
		if btn.Y >= editor.CenterY() {
			score += scoreBelowRight
		}
	}
	return score
}

// labelText joins the accessible labels of an element, lower-cased.
func labelText(el *dom.Element) string {
	parts := []string{
		el.AttrOr("aria-label", ""),
		el.AttrOr("title", ""),
		el.AttrOr("data-testid", ""),
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
