// internal/validator/validator.go
package validator

import (
	"strconv"
	"strings"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

// Minimum box sizes, in CSS pixels.
const (
	MinCandidateWidth  = 10
	MinCandidateHeight = 10
	MinContainerWidth  = 60
	MinContainerHeight = 20
)

// OwnPrefix marks ids, classes and data attributes of everything chatpilot
// injects into a page.
const OwnPrefix = "chatpilot-"

// IsVisible reports whether el has a box of at least minW x minH and a computed
// style that renders it.
func IsVisible(el *dom.Element, minW, minH float64) bool {
	if el == nil {
		return false
	}
	r := el.Rect
	if r.Width <= 0 || r.Height <= 0 || r.Width < minW || r.Height < minH {
		return false
	}
	s := el.Style
	if s.Display == "none" || s.Visibility == "hidden" || s.Visibility == "collapse" {
		return false
	}
	return s.Opacity != 0
}

// IsCandidateVisible applies the heuristic candidate threshold.
func IsCandidateVisible(el *dom.Element) bool {
	return IsVisible(el, MinCandidateWidth, MinCandidateHeight)
}

// IsUsableForInjection reports whether el can host injected controls: visible
// at container size, still connected, and not part of our own injected subtree.
func IsUsableForInjection(el *dom.Element, ownContainerID string) bool {
	if !IsVisible(el, MinContainerWidth, MinContainerHeight) || !el.Connected() {
		return false
	}
	return !IsOwnElement(el, ownContainerID)
}

// IsOwnElement reports whether el or any of its composed ancestors was
// injected by chatpilot.
func IsOwnElement(el *dom.Element, ownContainerID string) bool {
	for cur := el; cur != nil; cur = cur.ComposedParent() {
		id := cur.ID()
		if id != "" && (id == ownContainerID || strings.HasPrefix(id, OwnPrefix)) {
			return true
		}
		for _, cls := range cur.Classes() {
			if strings.HasPrefix(cls, OwnPrefix) {
				return true
			}
		}
		if _, ok := cur.Attr("data-chatpilot"); ok {
			return true
		}
	}
	return false
}

var interactiveTags = map[string]bool{
	"button":   true,
	"input":    true,
	"textarea": true,
	"select":   true,
}

var interactiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"menuitem": true,
	"tab":      true,
	"textbox":  true,
}

// IsClickable reports whether el behaves like a button: a button element, an
// element with a click handler, or role="button".
func IsClickable(el *dom.Element) bool {
	if el == nil {
		return false
	}
	if el.Tag() == "button" || el.HasClickHandler() {
		return true
	}
	return strings.EqualFold(el.AttrOr("role", ""), "button")
}

// IsInteractive reports whether el is visible and is something a user can act
// on: a form control, a link, an ARIA widget, an editable region or an
// element with a click handler.
func IsInteractive(el *dom.Element) bool {
	if !IsCandidateVisible(el) {
		return false
	}
	if IsClickable(el) {
		return true
	}
	tag := el.Tag()
	switch {
	case interactiveTags[tag]:
		return true
	case tag == "a":
		_, ok := el.Attr("href")
		return ok
	case interactiveRoles[strings.ToLower(el.AttrOr("role", ""))]:
		return true
	case el.ContentEditable():
		return true
	case el.Style.Cursor == "pointer":
		return true
	}
	if ti, ok := el.Attr("tabindex"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && n >= 0 {
			return true
		}
	}
	return false
}

// IsEditable reports whether el accepts typed text.
func IsEditable(el *dom.Element) bool {
	if el == nil || el.Disabled() {
		return false
	}
	if _, ro := el.Attr("readonly"); ro {
		return false
	}
	switch el.Tag() {
	case "textarea":
		return true
	case "input":
		switch strings.ToLower(el.AttrOr("type", "text")) {
		case "text", "search", "":
			return true
		}
		return false
	}
	return el.ContentEditable()
}
