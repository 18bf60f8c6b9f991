// internal/sites/adapters.go
package sites

import (
	"strings"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/autosend"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// Adapter is the per-site glue: how text goes into the editor and how the
// auto-send engine recognizes the site's busy and stop states.
type Adapter struct {
	Site schemas.Site
	// RichInsert is used for contenteditable editors. Form controls always
	// take InsertValue.
	RichInsert schemas.InsertStrategy
	// StopSelectors are the site's known stop-generating controls, tried
	// before the generic scan.
	StopSelectors []string
	// IsBusy and IsEnabled override the generic checks when set.
	IsBusy    func(el *dom.Element) bool
	IsEnabled func(el *dom.Element) bool
}

// StrategyFor picks the insertion strategy for a resolved editor.
func (a Adapter) StrategyFor(editor *dom.Element) schemas.InsertStrategy {
	switch editor.Tag() {
	case "textarea", "input":
		return schemas.InsertValue
	}
	if a.RichInsert == "" {
		return schemas.InsertContentEditable
	}
	return a.RichInsert
}

// FindStop returns the first live stop control matching the site's
// selectors, falling back to the generic scan around editor.
func (a Adapter) FindStop(doc *dom.Document, editor *dom.Element) *dom.Element {
	for _, sel := range a.StopSelectors {
		found, err := doc.QueryAllDeep(sel)
		if err != nil {
			continue
		}
		for _, el := range found {
			if validator.IsVisible(el, 1, 1) && !el.Disabled() {
				return el
			}
		}
	}
	return autosend.FindStopIn(doc, editor)
}

func hasClassFragment(el *dom.Element, fragment string) bool {
	for _, c := range el.Classes() {
		if strings.Contains(c, fragment) {
			return true
		}
	}
	return false
}

var adapters = map[schemas.Site]Adapter{
	schemas.SiteChatGPT: {
		Site:       schemas.SiteChatGPT,
		RichInsert: schemas.InsertContentEditable,
		StopSelectors: []string{
			`button[data-testid="stop-button"]`,
			`button[aria-label="Stop streaming"]`,
		},
	},
	schemas.SiteClaude: {
		Site:       schemas.SiteClaude,
		RichInsert: schemas.InsertContentEditable,
		StopSelectors: []string{
			`button[aria-label="Stop response"]`,
			`button[aria-label="Stop Response"]`,
		},
	},
	schemas.SiteCopilot: {
		Site:       schemas.SiteCopilot,
		RichInsert: schemas.InsertKeystrokes,
		StopSelectors: []string{
			`button[data-testid="stop-button"]`,
			`button[aria-label="Stop responding"]`,
		},
	},
	// DeepSeek keeps one node for send and stop and swaps only its icon and
	// classes, so busy state is read from the node itself.
	schemas.SiteDeepSeek: {
		Site:       schemas.SiteDeepSeek,
		RichInsert: schemas.InsertKeystrokes,
		IsBusy: func(el *dom.Element) bool {
			if autosend.IsBusy(el) {
				return true
			}
			return len(el.Find("svg rect")) > 0 || hasClassFragment(el, "stop")
		},
		IsEnabled: func(el *dom.Element) bool {
			return autosend.IsEnabled(el) && !hasClassFragment(el, "disabled")
		},
	},
	// AI Studio renders a Run button that stays in the DOM disabled until
	// the prompt is non-empty, and turns into Stop while running.
	schemas.SiteAIStudio: {
		Site:       schemas.SiteAIStudio,
		RichInsert: schemas.InsertKeystrokes,
		IsEnabled: func(el *dom.Element) bool {
			return autosend.IsEnabled(el) && !hasClassFragment(el, "disabled")
		},
	},
	schemas.SiteGrok: {
		Site:       schemas.SiteGrok,
		RichInsert: schemas.InsertContentEditable,
		StopSelectors: []string{
			`button[aria-label="Stop model response"]`,
		},
	},
	schemas.SiteGemini: {
		Site:       schemas.SiteGemini,
		RichInsert: schemas.InsertContentEditable,
		StopSelectors: []string{
			`button.send-button.stop`,
			`button[aria-label="Stop response"]`,
		},
	},
	schemas.SitePerplexity: {
		Site:       schemas.SitePerplexity,
		RichInsert: schemas.InsertKeystrokes,
		StopSelectors: []string{
			`button[aria-label="Stop"]`,
			`button[data-testid="stop-generating-response-button"]`,
		},
	},
}

// For returns the adapter of a site. Unknown sites get a generic adapter.
func For(site schemas.Site) Adapter {
	if a, ok := adapters[site]; ok {
		return a
	}
	return Adapter{Site: site, RichInsert: schemas.InsertContentEditable}
}
