package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/detector"
	"github.com/xkilldash9x/chatpilot/internal/injector"
	"github.com/xkilldash9x/chatpilot/internal/mocks"
	"github.com/xkilldash9x/chatpilot/internal/notify"
)

const claudePage = `<html data-viewport="1280,900"><body data-rect="0,0,1280,900">
	<fieldset data-rect="100,680,1000,180">
		<div class="ProseMirror" contenteditable="true" data-rect="110,690,900,80"></div>
		<button aria-label="Send message" data-rect="1020,760,40,40"><svg></svg></button>
	</fieldset>
</body></html>`

type scriptPage struct {
	*mocks.FakePage
}

func (scriptPage) ExecuteScript(_ context.Context, _ string, res any) error {
	if ok, is := res.(*bool); is {
		*ok = true
	}
	return nil
}
func (scriptPage) ExposeFunction(context.Context, string, any) error { return nil }
func (scriptPage) OnNavigate(func(string))                           {}

// navPage is a scriptPage that lets the test fire navigations.
type navPage struct {
	scriptPage
	mu       sync.Mutex
	handlers []func(string)
}

func (p *navPage) OnNavigate(fn func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

func (p *navPage) navigate(url string) {
	p.mu.Lock()
	handlers := append([]func(string){}, p.handlers...)
	p.mu.Unlock()
	for _, h := range handlers {
		h(url)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.StoreCfg.Path = filepath.Join(t.TempDir(), "selectors.json")
	cfg.ButtonsCfg = []schemas.Prompt{{Name: "Hi", Text: "Hello"}}
	return cfg
}

func emptyRepo() *mocks.MockSelectorRepository {
	repo := new(mocks.MockSelectorRepository)
	repo.On("GetCustomSelectors", mock.Anything, schemas.SiteClaude).Return(nil, nil)
	return repo
}

func TestNewComponents_WiresDispatcher(t *testing.T) {
	page := mocks.NewFakePage(claudePage)
	rec := &notify.Recorder{}
	repo := emptyRepo()

	c, err := NewComponents(context.Background(), testConfig(t), page, schemas.SiteClaude, nil,
		WithRepository(repo), WithNotifier(rec),
		WithClock(clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.Injector, "a page without script support gets no toolbar")
	assert.Same(t, rec, c.Notifier)

	res, err := c.Dispatcher.Dispatch(context.Background(), schemas.Prompt{Name: "x", Text: "Hello Claude"})
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	require.Len(t, page.Insertions(), 1)
	assert.Equal(t, "Hello Claude", page.Insertions()[0].Text)
	repo.AssertExpectations(t)
}

func TestNewComponents_AppliesCustomOverlay(t *testing.T) {
	repo := new(mocks.MockSelectorRepository)
	repo.On("GetCustomSelectors", mock.Anything, schemas.SiteClaude).
		Return(&schemas.SelectorSet{Editors: []string{"#custom-editor"}}, nil)

	c, err := NewComponents(context.Background(), testConfig(t), mocks.NewFakePage(claudePage), schemas.SiteClaude, nil,
		WithRepository(repo), WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	editors := c.Catalog.Selectors(schemas.SiteClaude, schemas.TargetEditor)
	require.NotEmpty(t, editors)
	assert.Equal(t, "#custom-editor", editors[0])
}

func TestNewComponents_OverlayLoadFailureIsNotFatal(t *testing.T) {
	repo := new(mocks.MockSelectorRepository)
	repo.On("GetCustomSelectors", mock.Anything, schemas.SiteClaude).Return(nil, errors.New("db down"))

	c, err := NewComponents(context.Background(), testConfig(t), mocks.NewFakePage(claudePage), schemas.SiteClaude, nil,
		WithRepository(repo), WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	assert.NotEmpty(t, c.Catalog.Selectors(schemas.SiteClaude, schemas.TargetEditor), "defaults remain")
}

func TestNewComponents_OpensConfiguredStore(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewComponents(context.Background(), cfg, mocks.NewFakePage(claudePage), schemas.SiteClaude, nil,
		WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	require.NotNil(t, c.Repo)
	c.Shutdown(context.Background())

	cfg.StoreCfg.Driver = "carrier-pigeon"
	_, err = NewComponents(context.Background(), cfg, mocks.NewFakePage(claudePage), schemas.SiteClaude, nil)
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestNewComponents_ScriptablePageGetsInjector(t *testing.T) {
	page := scriptPage{mocks.NewFakePage(claudePage)}
	c, err := NewComponents(context.Background(), testConfig(t), page, schemas.SiteClaude, nil,
		WithRepository(emptyRepo()), WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	require.NotNil(t, c.Injector)
	m, err := c.Injector.Mount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "chatpilot-claude-buttons", m.ToolbarID)
}

func TestNewComponents_SettingsUpdatesReachDetector(t *testing.T) {
	updates := make(chan schemas.HeuristicSettings, 1)
	c, err := NewComponents(context.Background(), testConfig(t), mocks.NewFakePage(claudePage), schemas.SiteClaude, nil,
		WithRepository(emptyRepo()), WithNotifier(notify.Nop{}), WithSettings(updates))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	require.True(t, c.Detector.Settings().EnableEditorHeuristics)
	updates <- schemas.HeuristicSettings{EnableEditorHeuristics: false, EnableSendButtonHeuristics: true}
	assert.Eventually(t, func() bool {
		return !c.Detector.Settings().EnableEditorHeuristics
	}, time.Second, 5*time.Millisecond)
}

func TestNewComponents_ReadsOnlyTheConfigItNeeds(t *testing.T) {
	defaults := config.NewDefaultConfig()
	cfg := new(mocks.MockConfig)
	cfg.On("Detector").Return(defaults.Detector())
	cfg.On("AutoSend").Return(defaults.AutoSend())
	cfg.On("Buttons").Return(nil)

	page := scriptPage{mocks.NewFakePage(claudePage)}
	c, err := NewComponents(context.Background(), cfg, page, schemas.SiteClaude, nil,
		WithRepository(emptyRepo()), WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	cfg.AssertExpectations(t)
	cfg.AssertNotCalled(t, "Store")
	cfg.AssertNotCalled(t, "Notify")

	_, err = c.Injector.Mount(context.Background())
	assert.ErrorIs(t, err, injector.ErrNoPrompts)
}

func TestNewComponents_RouteChangeResetsPageState(t *testing.T) {
	cfg := testConfig(t)
	cfg.DetectorCfg.FailureThreshold = 3
	page := &navPage{scriptPage: scriptPage{mocks.NewFakePage(claudePage)}}
	fake := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	c, err := NewComponents(context.Background(), cfg, page, schemas.SiteClaude, nil,
		WithRepository(emptyRepo()), WithNotifier(notify.Nop{}), WithClock(fake))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = c.Injector.Start(ctx)
	require.NoError(t, err)

	assert.Nil(t, c.Detector.ReportFailure(ctx, schemas.TargetEditor, detector.FailureContext{Site: schemas.SiteClaude}))
	require.Equal(t, 1, c.Detector.State(schemas.TargetEditor).Failures)

	page.navigate("https://claude.ai/new")

	assert.Zero(t, c.Detector.State(schemas.TargetEditor).Failures, "detection state does not survive a route change")
	m, ok := c.Injector.Mounted()
	require.True(t, ok, "toolbar is remounted after the route change")
	assert.Equal(t, "chatpilot-claude-buttons", m.ToolbarID)
	assert.NotEmpty(t, fake.Sleeps())
}
