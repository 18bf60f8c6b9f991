// internal/heuristics/container.go
package heuristics

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// Container scoring weights.
const (
	scoreHasEditor     = 28
	scoreHasSend       = 18
	scoreHasBoth       = 10
	scoreKeyword       = 8
	scoreSourceWeight  = 10
	scoreBottomMax     = 8
	scoreSizeGood      = 6
	scoreSizeHuge      = -12
	maxAncestorLevels  = 8
	maxBottomBlocks    = 12
	weightLCA          = 3.0
	weightPattern      = 1.0
	weightInputWrapper = 0.6
	weightBottomBlock  = 0.3
)

var (
	composerPatterns = []string{
		`form:has(textarea)`,
		`form:has([contenteditable="true"])`,
		`[class*="composer"]`,
		`[data-testid*="composer"]`,
		`[class*="prompt"]`,
		`[class*="input-area"]`,
		`[class*="chat-input"]`,
		`footer`,
	}
	containerKeywords = []string{"composer", "prompt", "footer", "toolbar", "chat", "message", "input"}
	containerTags     = map[string]bool{
		"div": true, "form": true, "section": true, "main": true, "article": true,
		"footer": true, "fieldset": true, "aside": true,
	}
	structuralBonus = map[string]float64{"form": 6, "section": 4, "main": 4, "article": 4}
	bottomBlockTags = map[string]bool{"div": true, "footer": true}
	fallbackTags    = []string{"main", "section", "form", "article"}
)

// Anchors locates the editor and send button the container should wrap.
// Selector Guard satisfies it.
type Anchors interface {
	FindEditor(ctx context.Context) *dom.Element
	FindSendButton(ctx context.Context) *dom.Element
}

// ContainerSource tells which stage of the cascade produced a container.
type ContainerSource string

const (
	SourceSelector  ContainerSource = "selector"
	SourceRetry     ContainerSource = "retry"
	SourceHeuristic ContainerSource = "heuristic"
	SourceFallback  ContainerSource = "fallback"
	SourceBody      ContainerSource = "body"
)

// ContainerRequest describes one container recovery.
type ContainerRequest struct {
	Doc            *dom.Document
	Defaults       []string
	Failed         []string
	OwnContainerID string
	// Anchors is optional; without it the base strategy supplies anchors.
	Anchors Anchors
	// Refresh is optional and returns a newer snapshot for the retry stage.
	Refresh func(ctx context.Context) (*dom.Document, error)
}

// ContainerResult is the chosen injection point.
type ContainerResult struct {
	Element  *dom.Element
	Source   ContainerSource
	Selector string
	Score    float64
}

// ContainerResolver recovers the injection container when its selectors vanish.
type ContainerResolver struct {
	logger *zap.Logger
}

// NewContainerResolver creates a resolver.
func NewContainerResolver(logger *zap.Logger) *ContainerResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContainerResolver{logger: logger.Named("container")}
}

// Resolve runs the cascade. It always returns an element unless the document
// has no body.
func (r *ContainerResolver) Resolve(ctx context.Context, req ContainerRequest) ContainerResult {
	doc := req.Doc
	failed := make(map[string]bool, len(req.Failed))
	for _, s := range req.Failed {
		failed[s] = true
	}

	var untried []string
	for _, s := range req.Defaults {
		if !failed[s] {
			untried = append(untried, s)
		}
	}
	if el, sel := firstUsable(doc, untried, req.OwnContainerID); el != nil {
		return ContainerResult{Element: el, Source: SourceSelector, Selector: sel}
	}

	if req.Refresh != nil {
		if fresh, err := req.Refresh(ctx); err == nil && fresh != nil {
			doc = fresh
		} else if err != nil {
			r.logger.Debug("Refresh before retry failed.", zap.Error(err))
		}
	}
	retry := append(append([]string(nil), req.Failed...), req.Defaults...)
	if el, sel := firstUsable(doc, retry, req.OwnContainerID); el != nil {
		return ContainerResult{Element: el, Source: SourceRetry, Selector: sel}
	}

	editor, send := r.locateAnchors(ctx, doc, req)
	if best, score := r.bestCandidate(doc, editor, send, req.OwnContainerID); best != nil {
		r.logger.Debug("Container recovered heuristically.",
			zap.String("element", best.Describe()), zap.Float64("score", score))
		return ContainerResult{Element: best, Source: SourceHeuristic, Score: score}
	}

	for _, tag := range fallbackTags {
		if el, _ := firstUsable(doc, []string{tag}, req.OwnContainerID); el != nil {
			return ContainerResult{Element: el, Source: SourceFallback, Selector: tag}
		}
	}
	return ContainerResult{Element: doc.Body(), Source: SourceBody, Selector: "body"}
}

func firstUsable(doc *dom.Document, selectors []string, ownID string) (*dom.Element, string) {
	for _, sel := range selectors {
		found, err := doc.QueryAll(sel)
		if err != nil {
			continue
		}
		for _, el := range found {
			if validator.IsUsableForInjection(el, ownID) {
				return el, sel
			}
		}
	}
	return nil, ""
}

// locateAnchors finds the editor and send button concurrently.
func (r *ContainerResolver) locateAnchors(ctx context.Context, doc *dom.Document, req ContainerRequest) (editor, send *dom.Element) {
	hint := Hint{OwnContainerID: req.OwnContainerID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if req.Anchors != nil {
			editor = resolveIn(doc, req.Anchors.FindEditor(gctx))
		}
		if editor == nil {
			editor = Base{}.DetectEditor(gctx, doc, hint)
		}
		return nil
	})
	g.Go(func() error {
		if req.Anchors != nil {
			send = resolveIn(doc, req.Anchors.FindSendButton(gctx))
		}
		if send == nil {
			send = Base{}.DetectSendButton(gctx, doc, hint)
		}
		return nil
	})
	_ = g.Wait()
	return editor, send
}

func (r *ContainerResolver) bestCandidate(doc *dom.Document, editor, send *dom.Element, ownID string) (*dom.Element, float64) {
	weights := make(map[*dom.Element]float64)
	add := func(el *dom.Element, w float64) {
		if el == nil {
			return
		}
		if w > weights[el] {
			weights[el] = w
		}
	}

	for _, pattern := range composerPatterns {
		found, _ := doc.QueryAllDeep(pattern)
		for _, el := range found {
			add(el, weightPattern)
		}
	}
	for _, anchor := range []*dom.Element{editor, send} {
		level := 0
		for p := anchor.ComposedParent(); p != nil && level < maxAncestorLevels; p = p.ComposedParent() {
			level++
			add(p, math.Max(0.2, 1.2-0.15*float64(level)))
		}
	}
	if editor != nil && send != nil {
		add(lowestCommonAncestor(editor, send), weightLCA)
	}
	inputs := CollectDeep(doc, func(el *dom.Element) bool {
		tag := el.Tag()
		return tag == "textarea" || tag == "input" || el.ContentEditable()
	})
	for _, in := range inputs {
		if p := in.ComposedParent(); p != nil {
			add(p, weightInputWrapper)
			add(p.ComposedParent(), weightInputWrapper*0.8)
		}
	}
	for _, el := range bottomBlocks(doc, ownID) {
		add(el, weightBottomBlock)
	}

	type scored struct {
		el    *dom.Element
		score float64
	}
	var ranked []scored
	for el, w := range weights {
		if !containerTags[el.Tag()] || !validator.IsUsableForInjection(el, ownID) {
			continue
		}
		ranked = append(ranked, scored{el, scoreContainer(doc, el, editor, send) + w*scoreSourceWeight})
	}
	if len(ranked) == 0 {
		return nil, 0
	}
	// Highest score wins; ties go to the element later in document order (deeper).
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].el.Index() > ranked[j].el.Index()
	})
	return ranked[0].el, ranked[0].score
}

func scoreContainer(doc *dom.Document, el, editor, send *dom.Element) float64 {
	score := 0.0
	hasEditor := editor != nil && el.ComposedContains(editor)
	hasSend := send != nil && el.ComposedContains(send)
	if hasEditor {
		score += scoreHasEditor
	}
	if hasSend {
		score += scoreHasSend
	}
	if hasEditor && hasSend {
		score += scoreHasBoth
	}

	vp := doc.Viewport
	if vpArea := vp.Area(); vpArea > 0 {
		ratio := el.Rect.Area() / vpArea
		switch {
		case ratio > 0.8:
			score += scoreSizeHuge
		case el.Rect.Width >= 200 && el.Rect.Height >= 40 && ratio <= 0.5:
			score += scoreSizeGood
		}
	}
	if vp.Height > 0 {
		dist := math.Abs(vp.Height - el.Rect.Bottom())
		score += scoreBottomMax * math.Max(0, 1-dist/vp.Height)
	}

	ident := strings.ToLower(el.ID() + " " + el.AttrOr("class", "") + " " + el.AttrOr("data-testid", ""))
	if containsAny(ident, containerKeywords) {
		score += scoreKeyword
	}
	score += structuralBonus[el.Tag()]
	return score
}

// lowestCommonAncestor returns the deepest element composed-containing both a and b.
func lowestCommonAncestor(a, b *dom.Element) *dom.Element {
	for p := a; p != nil; p = p.ComposedParent() {
		if p.ComposedContains(b) {
			return p
		}
	}
	return nil
}

// bottomBlocks returns visible generic blocks nearest the viewport bottom.
func bottomBlocks(doc *dom.Document, ownID string) []*dom.Element {
	blocks := CollectDeep(doc, func(el *dom.Element) bool {
		return bottomBlockTags[el.Tag()] && validator.IsUsableForInjection(el, ownID)
	})
	sort.SliceStable(blocks, func(i, j int) bool {
		return math.Abs(doc.Viewport.Height-blocks[i].Rect.Bottom()) <
			math.Abs(doc.Viewport.Height-blocks[j].Rect.Bottom())
	})
	if len(blocks) > maxBottomBlocks {
		blocks = blocks[:maxBottomBlocks]
	}
	return blocks
}
