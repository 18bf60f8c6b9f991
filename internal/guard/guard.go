// internal/guard/guard.go
package guard

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/detector"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
)

// Guard is the only way site code looks up the editor and send button. A
// direct selector hit resets the failure count of its target type; a miss is
// reported to the detector, whose heuristic recovery result is returned.
type Guard struct {
	site     schemas.Site
	page     schemas.Page
	catalog  *selectors.Catalog
	detector *detector.Registry
	logger   *zap.Logger

	mu     sync.Mutex
	editor *dom.Element
}

// New creates a guard for one page.
func New(site schemas.Site, page schemas.Page, catalog *selectors.Catalog, det *detector.Registry, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		site:     site,
		page:     page,
		catalog:  catalog,
		detector: det,
		logger:   logger.Named("guard").With(zap.String("site", string(site))),
	}
}

var _ heuristics.Anchors = (*Guard)(nil)

// Site returns the site the guard resolves selectors for.
func (g *Guard) Site() schemas.Site { return g.site }

// FindEditor resolves the text editor.
func (g *Guard) FindEditor(ctx context.Context) *dom.Element {
	return g.Find(ctx, schemas.TargetEditor)
}

// FindSendButton resolves the send button.
func (g *Guard) FindSendButton(ctx context.Context) *dom.Element {
	return g.Find(ctx, schemas.TargetSendButton)
}

// Find takes a fresh snapshot and resolves t in it. A snapshot failure is
// not a lookup failure: it yields nil without touching detection state.
func (g *Guard) Find(ctx context.Context, t schemas.TargetType) *dom.Element {
	doc, err := g.page.Snapshot(ctx)
	if err != nil {
		g.logger.Debug("Snapshot failed.", zap.String("target", string(t)), zap.Error(err))
		return nil
	}
	return g.FindIn(ctx, doc, t)
}

// FindIn resolves t against an existing snapshot.
func (g *Guard) FindIn(ctx context.Context, doc *dom.Document, t schemas.TargetType) *dom.Element {
	set := g.catalog.Set(g.site)
	list := set.Selectors(t)

	if el, sel := g.firstMatch(doc, list); el != nil {
		g.detector.ReportRecovery(t)
		g.remember(t, el)
		g.logger.Debug("Selector matched.", zap.String("target", string(t)), zap.String("selector", sel))
		return el
	}

	el := g.detector.ReportFailure(ctx, t, detector.FailureContext{
		Site:      g.site,
		Page:      g.page,
		Doc:       doc,
		Hint:      heuristics.Hint{Editor: g.lastEditor(), OwnContainerID: set.ButtonsContainerID},
		Selectors: list,
	})
	if el != nil {
		g.remember(t, el)
	}
	return el
}

func (g *Guard) firstMatch(doc *dom.Document, list []string) (*dom.Element, string) {
	for _, sel := range list {
		el, err := doc.Query(sel)
		if err != nil {
			g.logger.Debug("Skipping invalid selector.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if el != nil {
			return el, sel
		}
	}
	return nil, ""
}

func (g *Guard) remember(t schemas.TargetType, el *dom.Element) {
	if t != schemas.TargetEditor {
		return
	}
	g.mu.Lock()
	g.editor = el
	g.mu.Unlock()
}

func (g *Guard) lastEditor() *dom.Element {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.editor
}

// Forget drops the remembered editor. Call it when the page navigates.
func (g *Guard) Forget() {
	g.mu.Lock()
	g.editor = nil
	g.mu.Unlock()
}
