package schemas

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// -- Target Types --

// TargetType identifies which kind of element is being resolved.
type TargetType string

const (
	TargetEditor     TargetType = "editor"
	TargetSendButton TargetType = "sendButton"
	// TargetContainer is only used for bookkeeping by the container heuristics.
	TargetContainer TargetType = "container"
)

// Label returns a human readable name used in notifications.
func (t TargetType) Label() string {
	switch t {
	case TargetEditor:
		return "text editor"
	case TargetSendButton:
		return "send button"
	case TargetContainer:
		return "button container"
	default:
		return string(t)
	}
}

// -- Sites --

// Site identifies a supported AI chat web application.
type Site string

const (
	SiteChatGPT    Site = "chatgpt"
	SiteClaude     Site = "claude"
	SiteCopilot    Site = "copilot"
	SiteDeepSeek   Site = "deepseek"
	SiteAIStudio   Site = "aistudio"
	SiteGrok       Site = "grok"
	SiteGemini     Site = "gemini"
	SitePerplexity Site = "perplexity"
)

// AllSites lists every supported site in a stable order.
var AllSites = []Site{
	SiteChatGPT, SiteClaude, SiteCopilot, SiteDeepSeek,
	SiteAIStudio, SiteGrok, SiteGemini, SitePerplexity,
}

// siteHosts maps host suffixes to the site they belong to.
var siteHosts = map[string]Site{
	"chatgpt.com":           SiteChatGPT,
	"chat.openai.com":       SiteChatGPT,
	"claude.ai":             SiteClaude,
	"copilot.microsoft.com": SiteCopilot,
	"chat.deepseek.com":     SiteDeepSeek,
	"aistudio.google.com":   SiteAIStudio,
	"grok.com":              SiteGrok,
	"x.com":                 SiteGrok,
	"gemini.google.com":     SiteGemini,
	"www.perplexity.ai":     SitePerplexity,
	"perplexity.ai":         SitePerplexity,
}

// ParseSite validates a site name.
func ParseSite(s string) (Site, error) {
	candidate := Site(strings.ToLower(strings.TrimSpace(s)))
	for _, site := range AllSites {
		if site == candidate {
			return site, nil
		}
	}
	return "", fmt.Errorf("unknown site %q", s)
}

// SiteForURL detects the site from a page URL by host suffix.
func SiteForURL(raw string) (Site, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	for suffix, site := range siteHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return site, nil
		}
	}
	return "", fmt.Errorf("no supported site for host %q", host)
}

// -- Selector Sets --

// SelectorSet holds the ordered selector lists for one site. Lists are tried
// in order; the first DOM match wins. Entries prefixed with "xpath:" are
// evaluated as XPath expressions.
type SelectorSet struct {
	Containers         []string `json:"containers" yaml:"containers"`
	Editors            []string `json:"editors" yaml:"editors"`
	SendButtons        []string `json:"sendButtons" yaml:"send_buttons"`
	ButtonsContainerID string   `json:"buttonsContainerId" yaml:"buttons_container_id"`
	ThreadRoot         string   `json:"threadRoot,omitempty" yaml:"thread_root,omitempty"`
}

// Selectors returns the list for a target type.
func (s SelectorSet) Selectors(t TargetType) []string {
	switch t {
	case TargetEditor:
		return s.Editors
	case TargetSendButton:
		return s.SendButtons
	case TargetContainer:
		return s.Containers
	default:
		return nil
	}
}

// WithSelectors returns a copy of the set with the list for t replaced.
func (s SelectorSet) WithSelectors(t TargetType, list []string) SelectorSet {
	out := s.Clone()
	switch t {
	case TargetEditor:
		out.Editors = list
	case TargetSendButton:
		out.SendButtons = list
	case TargetContainer:
		out.Containers = list
	}
	return out
}

// Clone deep copies the set.
func (s SelectorSet) Clone() SelectorSet {
	return SelectorSet{
		Containers:         append([]string(nil), s.Containers...),
		Editors:            append([]string(nil), s.Editors...),
		SendButtons:        append([]string(nil), s.SendButtons...),
		ButtonsContainerID: s.ButtonsContainerID,
		ThreadRoot:         s.ThreadRoot,
	}
}

// IsEmpty reports whether the set carries no selectors at all.
func (s SelectorSet) IsEmpty() bool {
	return len(s.Containers) == 0 && len(s.Editors) == 0 && len(s.SendButtons) == 0 &&
		s.ButtonsContainerID == "" && s.ThreadRoot == ""
}

// -- Heuristic Settings --

// HeuristicSettings toggles heuristic recovery per target type.
type HeuristicSettings struct {
	EnableEditorHeuristics     bool `json:"enableEditorHeuristics" mapstructure:"enable_editor_heuristics"`
	EnableSendButtonHeuristics bool `json:"enableSendButtonHeuristics" mapstructure:"enable_send_button_heuristics"`
}

// Enabled reports whether heuristics may run for t.
func (h HeuristicSettings) Enabled(t TargetType) bool {
	switch t {
	case TargetEditor:
		return h.EnableEditorHeuristics
	case TargetSendButton:
		return h.EnableSendButtonHeuristics
	default:
		return true
	}
}

// -- Notifications --

// ToastKind is the visual category of a notification.
type ToastKind string

const (
	ToastInfo    ToastKind = "info"
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"
)

// ToastOptions carries optional notification settings. An action button is
// shown when both ActionLabel and OnAction are set.
type ToastOptions struct {
	ActionLabel string
	OnAction    func()
	Duration    time.Duration
}

// -- Text insertion --

// InsertStrategy selects how text is written into an editor.
type InsertStrategy string

const (
	// InsertValue assigns the value property and fires input events (textarea/input).
	InsertValue InsertStrategy = "value"
	// InsertContentEditable inserts through a selection range (rich editors).
	InsertContentEditable InsertStrategy = "contenteditable"
	// InsertKeystrokes types the text key by key.
	InsertKeystrokes InsertStrategy = "keystrokes"
)

// -- Auto Send --

// SendStatus is the terminal (or pending) status of an auto-send session.
type SendStatus string

const (
	StatusPending       SendStatus = "pending"
	StatusSent          SendStatus = "sent"
	StatusBlockedByStop SendStatus = "blocked_by_stop"
	StatusNotFound      SendStatus = "not_found"
	StatusFailed        SendStatus = "failed"
	// StatusAborted marks a session superseded by a newer one or cancelled by its caller.
	StatusAborted SendStatus = "aborted"
)

// Terminal reports whether the status ends a session.
func (s SendStatus) Terminal() bool {
	return s != StatusPending && s != ""
}

// SendResult describes how an auto-send session ended.
type SendResult struct {
	SessionID string     `json:"sessionId"`
	Status    SendStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Attempts  int        `json:"attempts"`
	Clicked   bool       `json:"clicked"`
}

// Prompt is a unit of text to dispatch into a chat editor.
type Prompt struct {
	Name     string `json:"name" mapstructure:"name"`
	Text     string `json:"text" mapstructure:"text"`
	AutoSend bool   `json:"autoSend" mapstructure:"auto_send"`
}
