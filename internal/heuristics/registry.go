// internal/heuristics/registry.go
package heuristics

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

// Hint carries what the caller already knows about the page.
type Hint struct {
	// Editor is the most recently resolved editor, used for geometric scoring
	// of send button candidates. It may come from an older snapshot; it is
	// re-resolved by reference.
	Editor *dom.Element
	// OwnContainerID is the id of our injected toolbar, excluded from results.
	OwnContainerID string
}

// Strategy guesses an editor or send button when configured selectors fail.
// Implementations return nil when nothing plausible is found.
type Strategy interface {
	DetectEditor(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element
	DetectSendButton(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element
}

// Detect dispatches to the strategy method for t.
func Detect(ctx context.Context, s Strategy, t schemas.TargetType, doc *dom.Document, hint Hint) *dom.Element {
	switch t {
	case schemas.TargetEditor:
		return s.DetectEditor(ctx, doc, hint)
	case schemas.TargetSendButton:
		return s.DetectSendButton(ctx, doc, hint)
	default:
		return nil
	}
}

// Registry maps sites to strategies, falling back to the base strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[schemas.Site]Strategy
	base       Strategy
	logger     *zap.Logger
}

// NewRegistry creates an empty registry whose fallback is Base.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		strategies: make(map[schemas.Site]Strategy),
		base:       Base{},
		logger:     logger.Named("heuristics"),
	}
}

// NewDefaultRegistry creates a registry with every built-in site strategy registered.
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(schemas.SiteDeepSeek, DeepSeek{})
	return r
}

// Register adds or replaces the strategy of a site.
func (r *Registry) Register(site schemas.Site, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[site] = s
}

// Resolve returns the strategy of a site, or the base strategy. The result
// never panics: failures inside a strategy are logged and reported as nil.
func (r *Registry) Resolve(site schemas.Site) Strategy {
	r.mu.RLock()
	s, ok := r.strategies[site]
	r.mu.RUnlock()
	name := string(site)
	if !ok {
		s, name = r.base, "base"
	}
	return guarded{inner: s, name: name, logger: r.logger}
}

// guarded turns panics and cancelled contexts into "not found".
type guarded struct {
	inner  Strategy
	name   string
	logger *zap.Logger
}

func (g guarded) DetectEditor(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element {
	return g.run(ctx, "editor", doc, func() *dom.Element { return g.inner.DetectEditor(ctx, doc, hint) })
}

func (g guarded) DetectSendButton(ctx context.Context, doc *dom.Document, hint Hint) *dom.Element {
	return g.run(ctx, "sendButton", doc, func() *dom.Element { return g.inner.DetectSendButton(ctx, doc, hint) })
}

func (g guarded) run(ctx context.Context, target string, doc *dom.Document, detect func() *dom.Element) (found *dom.Element) {
	if doc == nil || ctx.Err() != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("Heuristic strategy panicked.",
				zap.String("strategy", g.name),
				zap.String("target", target),
				zap.String("panic", fmt.Sprint(r)))
			found = nil
		}
	}()
	found = detect()
	if ctx.Err() != nil {
		return nil
	}
	return found
}
