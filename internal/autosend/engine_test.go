package autosend_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/autosend"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const idlePage = `<html data-viewport="1200,900"><body>
	<form class="composer" data-rect="100,700,1000,150">
		<textarea id="editor" data-rect="110,710,900,80"></textarea>
		<button data-testid="send-button" aria-label="Send" data-rect="1020,740,40,40">&gt;</button>
	</form>
</body></html>`

const streamingPage = `<html data-viewport="1200,900"><body>
	<form class="composer" data-rect="100,700,1000,150">
		<textarea id="editor" data-rect="110,710,900,80"></textarea>
		<button data-testid="send-button" aria-label="Send" disabled data-rect="1020,740,40,40">&gt;</button>
		<button id="stop" aria-label="Stop generating" data-rect="1070,740,40,40">[]</button>
	</form>
</body></html>`

const disabledPage = `<html data-viewport="1200,900"><body>
	<form class="composer" data-rect="100,700,1000,150">
		<textarea id="editor" data-rect="110,710,900,80"></textarea>
		<button data-testid="send-button" aria-label="Send" disabled data-rect="1020,740,40,40">&gt;</button>
	</form>
</body></html>`

func testDefaults() config.AutoSendConfig {
	return config.AutoSendConfig{
		Interval:          100 * time.Millisecond,
		MaxAttempts:       10,
		StopPollInterval:  300 * time.Millisecond,
		StopCeiling:       5 * time.Minute,
		PostStopInterval:  150 * time.Millisecond,
		PostStopAttempts:  25,
		LateFallbackAfter: 15,
	}
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newEngine(t *testing.T, page *mocks.FakePage) (*autosend.Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	return autosend.NewEngine(page, nil, testDefaults(), zaptest.NewLogger(t), autosend.WithClock(clk)), clk
}

func sendButton(_ context.Context, doc *dom.Document) *dom.Element {
	el, _ := doc.Query(`button[data-testid="send-button"]`)
	return el
}

func countSleeps(clk *clock.Fake, d time.Duration) int {
	n := 0
	for _, s := range clk.Sleeps() {
		if s == d {
			n++
		}
	}
	return n
}

func TestRun_SendsOnFirstTick(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, _ := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{FindButton: sendButton})

	assert.Equal(t, schemas.StatusSent, res.Status)
	assert.True(t, res.Clicked)
	assert.Zero(t, res.Attempts)
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, page.Clicks(), 1)
}

func TestRun_DefaultHooksUseFinder(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	finder := &stubFinder{}
	engine := autosend.NewEngine(page, finder, testDefaults(), zaptest.NewLogger(t),
		autosend.WithClock(clock.NewFake(epoch)))

	res := engine.Run(context.Background(), autosend.Config{})

	assert.Equal(t, schemas.StatusSent, res.Status)
	assert.Equal(t, int32(1), finder.calls.Load())
	require.Len(t, page.Clicks(), 1)
}

type stubFinder struct{ calls atomic.Int32 }

func (f *stubFinder) FindIn(ctx context.Context, doc *dom.Document, tt schemas.TargetType) *dom.Element {
	f.calls.Add(1)
	if tt != schemas.TargetSendButton {
		return nil
	}
	return sendButton(ctx, doc)
}

func TestRun_NotFoundAfterExactlyMaxAttempts(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, clk := newEngine(t, page)

	var lookups atomic.Int32
	res := engine.Run(context.Background(), autosend.Config{
		Interval:    10 * time.Millisecond,
		MaxAttempts: 3,
		FindButton: func(context.Context, *dom.Document) *dom.Element {
			lookups.Add(1)
			return nil
		},
	})

	assert.Equal(t, schemas.StatusNotFound, res.Status)
	assert.Equal(t, autosend.ReasonNotFound, res.Reason)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), lookups.Load())
	assert.Equal(t, 30*time.Millisecond, clk.Now().Sub(epoch))
	assert.Empty(t, page.Clicks())
}

func TestRun_DisabledButtonFails(t *testing.T) {
	page := mocks.NewFakePage(disabledPage)
	engine, _ := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{MaxAttempts: 4, FindButton: sendButton})

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Equal(t, autosend.ReasonDisabled, res.Reason)
	assert.Equal(t, 4, res.Attempts)
	assert.Empty(t, page.Clicks())
}

func TestRun_ValidationFailureConsumesAttempts(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, _ := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{
		MaxAttempts:        2,
		FindButton:         sendButton,
		PreClickValidation: func(context.Context, *dom.Document) bool { return false },
	})

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Equal(t, autosend.ReasonValidation, res.Reason)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, page.Clicks())
}

func TestRun_StopControlWaitsThenSendsOnce(t *testing.T) {
	// The stop control is visible for five ticks, then generation ends.
	page := mocks.NewFakePage(streamingPage, streamingPage, streamingPage, streamingPage, streamingPage, idlePage)
	engine, clk := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{MaxAttempts: 2, FindButton: sendButton})

	assert.Equal(t, schemas.StatusSent, res.Status)
	assert.Zero(t, res.Attempts, "watching a stop control never consumes an attempt")
	assert.Len(t, page.Clicks(), 1)
	assert.Equal(t, 6, page.SnapshotCount())
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond,
		300 * time.Millisecond, 300 * time.Millisecond,
	}, clk.Sleeps())
}

func TestRun_SendButtonTurnedStopButton(t *testing.T) {
	busy := `<html data-viewport="1200,900"><body><form data-rect="100,700,1000,150">
		<textarea id="editor" data-rect="110,710,900,80"></textarea>
		<button data-testid="send-button" aria-label="Stop streaming" data-rect="1020,740,40,40">[]</button>
	</form></body></html>`
	page := mocks.NewFakePage(busy, busy, idlePage)
	engine, _ := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{FindButton: sendButton})

	assert.Equal(t, schemas.StatusSent, res.Status)
	assert.Zero(t, res.Attempts)
	assert.Len(t, page.Clicks(), 1)
}

func TestRun_StopControlNeverClears(t *testing.T) {
	page := mocks.NewFakePage(streamingPage)
	engine, clk := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{
		FindButton:  sendButton,
		StopCeiling: 3 * time.Second,
	})

	assert.Equal(t, schemas.StatusBlockedByStop, res.Status)
	assert.Equal(t, autosend.ReasonTimeout, res.Reason)
	assert.Empty(t, page.Clicks())
	assert.Equal(t, 10, countSleeps(clk, 300*time.Millisecond))
}

func TestRun_PostStopLateFallback(t *testing.T) {
	page := mocks.NewFakePage(streamingPage, idlePage)
	engine, clk := newEngine(t, page)

	var validations atomic.Int32
	res := engine.Run(context.Background(), autosend.Config{
		FindButton: sendButton,
		PreClickValidation: func(context.Context, *dom.Document) bool {
			validations.Add(1)
			return false
		},
	})

	assert.Equal(t, schemas.StatusSent, res.Status)
	assert.Len(t, page.Clicks(), 1)
	assert.Equal(t, 15, countSleeps(clk, 150*time.Millisecond), "late fallback starts at the 15th post-stop attempt")
	assert.Equal(t, int32(16), validations.Load())
}

func TestRun_PostStopGivesUp(t *testing.T) {
	page := mocks.NewFakePage(streamingPage, disabledPage)
	engine, clk := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{FindButton: sendButton})

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Equal(t, "after stop: "+autosend.ReasonDisabled, res.Reason)
	assert.Equal(t, 25, countSleeps(clk, 150*time.Millisecond))
	assert.Empty(t, page.Clicks())
}

func TestRun_PostStopButtonVanished(t *testing.T) {
	page := mocks.NewFakePage(streamingPage, `<html><body><p>gone</p></body></html>`)
	engine, _ := newEngine(t, page)

	res := engine.Run(context.Background(), autosend.Config{FindButton: sendButton})

	assert.Equal(t, schemas.StatusNotFound, res.Status)
	assert.Equal(t, "after stop: "+autosend.ReasonNotFound, res.Reason)
}

func TestRun_NewSessionSupersedesActiveOne(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, _ := newEngine(t, page)

	started := make(chan struct{})
	var once sync.Once
	first := make(chan schemas.SendResult, 1)
	go func() {
		first <- engine.Run(context.Background(), autosend.Config{
			MaxAttempts: 1000,
			FindButton: func(ctx context.Context, _ *dom.Document) *dom.Element {
				once.Do(func() { close(started) })
				<-ctx.Done()
				return nil
			},
		})
	}()
	<-started

	second := engine.Run(context.Background(), autosend.Config{FindButton: sendButton})
	prev := <-first

	assert.Equal(t, schemas.StatusAborted, prev.Status)
	assert.Equal(t, autosend.ReasonSuperseded, prev.Reason)
	assert.Equal(t, schemas.StatusSent, second.Status)
	assert.NotEqual(t, prev.SessionID, second.SessionID)
	assert.Len(t, page.Clicks(), 1, "only the surviving session clicks")
}

func TestRun_CallerCancellation(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, clk := newEngine(t, page)

	ctx, cancel := context.WithCancel(context.Background())
	clk.OnSleep(func(now time.Time) {
		if now.Sub(epoch) >= 300*time.Millisecond {
			cancel()
		}
	})

	res := engine.Run(ctx, autosend.Config{
		FindButton: func(context.Context, *dom.Document) *dom.Element { return nil },
	})

	assert.Equal(t, schemas.StatusAborted, res.Status)
	assert.Equal(t, autosend.ReasonCancelled, res.Reason)
	assert.Equal(t, 2, res.Attempts)
}

func TestEngine_Cancel(t *testing.T) {
	page := mocks.NewFakePage(idlePage)
	engine, _ := newEngine(t, page)
	engine.Cancel() // no active session

	started := make(chan struct{})
	var once sync.Once
	done := make(chan schemas.SendResult, 1)
	go func() {
		done <- engine.Run(context.Background(), autosend.Config{
			FindButton: func(ctx context.Context, _ *dom.Document) *dom.Element {
				once.Do(func() { close(started) })
				<-ctx.Done()
				return nil
			},
		})
	}()
	<-started
	engine.Cancel()

	res := <-done
	assert.Equal(t, schemas.StatusAborted, res.Status)
	assert.Equal(t, autosend.ReasonCancelled, res.Reason)
}

func TestStopHelpers(t *testing.T) {
	doc := dom.MustParseHTML(streamingPage)
	stop, _ := doc.Query("#stop")
	send, _ := doc.Query(`button[data-testid="send-button"]`)
	editor, _ := doc.Query("#editor")

	assert.True(t, autosend.IsStopLike(stop))
	assert.False(t, autosend.IsStopLike(send))
	assert.True(t, autosend.IsBusy(stop))
	assert.False(t, autosend.IsEnabled(send))
	assert.True(t, autosend.IsEnabled(stop))
	assert.True(t, autosend.FindStopIn(doc, editor).Is(stop))
	assert.True(t, autosend.FindStopIn(doc, nil).Is(stop))

	busy := dom.MustParseHTML(`<body><div role="button" aria-busy="true" data-rect="0,0,10,10">x</div></body>`)
	el, _ := busy.Query("div")
	assert.True(t, autosend.IsBusy(el))
	assert.Nil(t, autosend.FindStopIn(busy, nil), "aria-busy alone is not a stop control")

	outside := dom.MustParseHTML(`<html data-viewport="1200,900"><body>
		<header><button aria-label="Stop sharing" data-rect="0,0,40,40">x</button></header>
		<section><div><div><div><textarea id="editor" data-rect="0,700,500,80"></textarea></div></div></div></section>
	</body></html>`)
	ed, _ := outside.Query("#editor")
	assert.Nil(t, autosend.FindStopIn(outside, ed), "the scan is scoped to the editor's action cluster")
	assert.Nil(t, autosend.FindStopIn(outside, nil), "an unknown editor is located before scanning")
}

func TestFindStopIn_AnchorsOnSendButtonWithoutEditor(t *testing.T) {
	doc := dom.MustParseHTML(`<html data-viewport="1200,900"><body>
		<header><button aria-label="Stop sharing" data-rect="0,0,40,40">x</button></header>
		<main><div><div><div class="actions">
			<button id="send" aria-label="Send" disabled data-rect="1020,740,40,40">&gt;</button>
			<button id="stop" aria-label="Stop generating" data-rect="1070,740,40,40">[]</button>
		</div></div></div></main>
	</body></html>`)

	got := autosend.FindStopIn(doc, nil)
	require.NotNil(t, got)
	assert.Equal(t, "stop", got.ID())
}

func TestIsStopLike_WholeWords(t *testing.T) {
	doc := dom.MustParseHTML(`<body>
		<button id="watch" aria-label="Stopwatch">x</button>
		<button id="testid" data-testid="stop-button">x</button>
		<button id="zh" aria-label="停止生成">x</button>
	</body>`)
	watch, _ := doc.Query("#watch")
	testid, _ := doc.Query("#testid")
	zh, _ := doc.Query("#zh")

	assert.False(t, autosend.IsStopLike(watch))
	assert.True(t, autosend.IsStopLike(testid))
	assert.True(t, autosend.IsStopLike(zh))
}
