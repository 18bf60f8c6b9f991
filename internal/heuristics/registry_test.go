package heuristics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

type panicStrategy struct{}

func (panicStrategy) DetectEditor(context.Context, *dom.Document, Hint) *dom.Element {
	panic("selector engine exploded")
}

func (panicStrategy) DetectSendButton(_ context.Context, doc *dom.Document, _ Hint) *dom.Element {
	var m map[string]int
	m["boom"]++ // nil map write
	return doc.Body()
}

type fixedStrategy struct{ el *dom.Element }

func (f fixedStrategy) DetectEditor(context.Context, *dom.Document, Hint) *dom.Element { return f.el }
func (f fixedStrategy) DetectSendButton(context.Context, *dom.Document, Hint) *dom.Element {
	return f.el
}

func TestRegistry_ResolveFallsBackToBase(t *testing.T) {
	r := NewRegistry(nil)
	s := r.Resolve(schemas.SiteClaude)
	g, ok := s.(guarded)
	require.True(t, ok)
	assert.Equal(t, "base", g.name)
	assert.IsType(t, Base{}, g.inner)
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	doc := dom.MustParseHTML(`<body><textarea data-rect="0,0,100,40"></textarea></body>`)
	body := doc.Body()

	r := NewRegistry(nil)
	r.Register(schemas.SiteGrok, fixedStrategy{el: body})

	got := r.Resolve(schemas.SiteGrok).DetectEditor(context.Background(), doc, Hint{})
	assert.Same(t, body, got)

	def := NewDefaultRegistry(nil)
	g := def.Resolve(schemas.SiteDeepSeek).(guarded)
	assert.IsType(t, DeepSeek{}, g.inner)
}

func TestRegistry_StrategiesNeverPanic(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(zap.New(core))
	r.Register(schemas.SiteCopilot, panicStrategy{})
	doc := dom.MustParseHTML(`<body></body>`)

	s := r.Resolve(schemas.SiteCopilot)
	assert.NotPanics(t, func() {
		assert.Nil(t, s.DetectEditor(context.Background(), doc, Hint{}))
		assert.Nil(t, s.DetectSendButton(context.Background(), doc, Hint{}))
	})
	assert.Equal(t, 2, logs.FilterMessage("Heuristic strategy panicked.").Len())
}

func TestRegistry_CancelledContextAndNilDocument(t *testing.T) {
	doc := dom.MustParseHTML(`<body></body>`)
	r := NewRegistry(nil)
	r.Register(schemas.SiteGemini, fixedStrategy{el: doc.Body()})
	s := r.Resolve(schemas.SiteGemini)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, s.DetectEditor(ctx, doc, Hint{}))
	assert.Nil(t, s.DetectEditor(context.Background(), nil, Hint{}))
}

func TestDetectDispatch(t *testing.T) {
	doc := dom.MustParseHTML(`<body></body>`)
	s := fixedStrategy{el: doc.Body()}
	ctx := context.Background()
	assert.NotNil(t, Detect(ctx, s, schemas.TargetEditor, doc, Hint{}))
	assert.NotNil(t, Detect(ctx, s, schemas.TargetSendButton, doc, Hint{}))
	assert.Nil(t, Detect(ctx, s, schemas.TargetContainer, doc, Hint{}))
}
