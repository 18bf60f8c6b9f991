// internal/selectors/defaults.go
package selectors

import "github.com/xkilldash9x/chatpilot/api/schemas"

// DefaultButtonsContainerID is where the toolbar is mounted unless a site overrides it.
const DefaultButtonsContainerID = "chatpilot-buttons"

// builtin holds the hard-coded selector floor of every supported site.
var builtin = map[schemas.Site]schemas.SelectorSet{
	schemas.SiteChatGPT: {
		Containers: []string{
			`form:has(#prompt-textarea)`,
			`div[data-type="unified-composer"]`,
			`form.w-full`,
		},
		Editors: []string{
			`#prompt-textarea`,
			`div.ProseMirror[contenteditable="true"]`,
			`textarea[data-id="root"]`,
		},
		SendButtons: []string{
			`button[data-testid="send-button"]`,
			`button#composer-submit-button`,
			`button[aria-label="Send prompt"]`,
		},
		ButtonsContainerID: "chatpilot-chatgpt-buttons",
		ThreadRoot:         `main div[role="presentation"]`,
	},
	schemas.SiteClaude: {
		Containers: []string{
			`fieldset:has(div.ProseMirror)`,
			`div[data-testid="chat-input-grid-container"]`,
		},
		Editors: []string{
			`div.ProseMirror[contenteditable="true"]`,
			`div[aria-label="Write your prompt to Claude"]`,
		},
		SendButtons: []string{
			`button[aria-label="Send message"]`,
			`button[aria-label="Send Message"]`,
			`fieldset button[type="submit"]`,
		},
		ButtonsContainerID: "chatpilot-claude-buttons",
		ThreadRoot:         `div[data-testid="conversation-turns"]`,
	},
	schemas.SiteCopilot: {
		Containers: []string{
			`div[data-testid="composer"]`,
			`form:has(textarea#userInput)`,
		},
		Editors: []string{
			`textarea#userInput`,
			`textarea[data-testid="composer-input"]`,
		},
		SendButtons: []string{
			`button[data-testid="submit-button"]`,
			`button[aria-label="Submit message"]`,
		},
		ButtonsContainerID: "chatpilot-copilot-buttons",
	},
	schemas.SiteDeepSeek: {
		Containers: []string{
			`div:has(> textarea#chat-input)`,
			`div._24fad49`,
		},
		Editors: []string{
			`textarea#chat-input`,
			`textarea[placeholder*="DeepSeek"]`,
		},
		SendButtons: []string{
			`div[role="button"].ds-button--primary`,
			`div._7436101[role="button"]`,
		},
		ButtonsContainerID: "chatpilot-deepseek-buttons",
	},
	schemas.SiteAIStudio: {
		Containers: []string{
			`ms-prompt-input-wrapper`,
			`footer:has(textarea)`,
		},
		Editors: []string{
			`ms-autosize-textarea textarea`,
			`textarea[aria-label="Type something or tab to choose an example prompt"]`,
			`textarea.textarea`,
		},
		SendButtons: []string{
			`run-button button`,
			`button[aria-label="Run"]`,
		},
		ButtonsContainerID: "chatpilot-aistudio-buttons",
	},
	schemas.SiteGrok: {
		Containers: []string{
			`form:has(textarea)`,
			`div.query-bar`,
		},
		Editors: []string{
			`textarea[aria-label="Ask Grok anything"]`,
			`div.tiptap.ProseMirror[contenteditable="true"]`,
			`form textarea`,
		},
		SendButtons: []string{
			`button[type="submit"][aria-label="Submit"]`,
			`form button[type="submit"]`,
		},
		ButtonsContainerID: "chatpilot-grok-buttons",
	},
	schemas.SiteGemini: {
		Containers: []string{
			`input-area-v2`,
			`div.input-area-container`,
		},
		Editors: []string{
			`rich-textarea div.ql-editor[contenteditable="true"]`,
			`div.ql-editor.textarea`,
		},
		SendButtons: []string{
			`button.send-button`,
			`button[aria-label="Send message"]`,
		},
		ButtonsContainerID: "chatpilot-gemini-buttons",
	},
	schemas.SitePerplexity: {
		Containers: []string{
			`form:has(#ask-input)`,
			`div:has(> textarea[placeholder*="Ask"])`,
		},
		Editors: []string{
			`#ask-input`,
			`textarea[placeholder*="Ask"]`,
			`div[contenteditable="true"][role="textbox"]`,
		},
		SendButtons: []string{
			`button[data-testid="submit-button"]`,
			`button[aria-label="Submit"]`,
		},
		ButtonsContainerID: "chatpilot-perplexity-buttons",
	},
}

// Defaults returns a copy of the built-in selectors for a site. Unknown sites
// get an empty set carrying the generic toolbar id.
func Defaults(site schemas.Site) schemas.SelectorSet {
	set, ok := builtin[site]
	if !ok {
		return schemas.SelectorSet{ButtonsContainerID: DefaultButtonsContainerID}
	}
	return set.Clone()
}
