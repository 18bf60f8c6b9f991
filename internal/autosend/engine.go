// internal/autosend/engine.go
package autosend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
)

// Reasons attached to terminal results.
const (
	ReasonNotFound   = "send button not found"
	ReasonDisabled   = "send button stayed disabled"
	ReasonValidation = "pre-click validation failed"
	ReasonClick      = "click failed"
	ReasonTimeout    = "timeout"
	ReasonCancelled  = "cancelled"
	ReasonSuperseded = "superseded"
)

// Config is one auto-send request. Zero timings fall back to the engine
// defaults; nil hooks fall back to the generic implementations.
type Config struct {
	Interval          time.Duration
	MaxAttempts       int
	StopPollInterval  time.Duration
	StopCeiling       time.Duration
	PostStopInterval  time.Duration
	PostStopAttempts  int
	LateFallbackAfter int

	// Editor, when known, scopes the default stop scan to its action cluster.
	Editor *dom.Element

	FindButton         func(ctx context.Context, doc *dom.Document) *dom.Element
	FindStopButton     func(ctx context.Context, doc *dom.Document) *dom.Element
	IsEnabled          func(el *dom.Element) bool
	IsBusy             func(el *dom.Element) bool
	PreClickValidation func(ctx context.Context, doc *dom.Document) bool
	ClickAction        func(ctx context.Context, el *dom.Element) error
}

// ButtonFinder resolves targets against a snapshot. The selector guard
// implements it.
type ButtonFinder interface {
	FindIn(ctx context.Context, doc *dom.Document, t schemas.TargetType) *dom.Element
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine runs auto-send sessions against one page. At most one session is
// active: starting a new one cancels the previous session and waits for it
// to end before the first tick.
type Engine struct {
	page     schemas.Page
	finder   ButtonFinder
	defaults config.AutoSendConfig
	clock    clock.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	active *session
}

type session struct {
	id         string
	cancel     context.CancelFunc
	done       chan struct{}
	superseded bool
}

// NewEngine creates an engine. finder may be nil, in which case the send
// button is located by the base heuristic.
func NewEngine(page schemas.Page, finder ButtonFinder, defaults config.AutoSendConfig, logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		page:     page,
		finder:   finder,
		defaults: defaults,
		clock:    clock.Real{},
		logger:   logger.Named("autosend"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one session to a terminal status.
func (e *Engine) Run(ctx context.Context, cfg Config) schemas.SendResult {
	cfg = e.resolve(cfg)
	sctx, cancel := context.WithCancel(ctx)
	s := &session{id: uuid.NewString(), cancel: cancel, done: make(chan struct{})}

	e.mu.Lock()
	prev := e.active
	e.active = s
	if prev != nil {
		prev.superseded = true
	}
	e.mu.Unlock()
	if prev != nil {
		prev.cancel()
		<-prev.done
	}

	defer func() {
		cancel()
		e.mu.Lock()
		if e.active == s {
			e.active = nil
		}
		e.mu.Unlock()
		close(s.done)
	}()

	log := e.logger.With(zap.String("session", s.id))
	log.Debug("Auto-send session started.", zap.Int("maxAttempts", cfg.MaxAttempts), zap.Duration("interval", cfg.Interval))

	r := &run{engine: e, cfg: cfg, log: log, res: schemas.SendResult{SessionID: s.id, Status: schemas.StatusPending}}
	res := r.poll(sctx)
	if res.Status == schemas.StatusAborted {
		e.mu.Lock()
		if s.superseded {
			res.Reason = ReasonSuperseded
		}
		e.mu.Unlock()
	}
	log.Info("Auto-send session finished.",
		zap.String("status", string(res.Status)),
		zap.String("reason", res.Reason),
		zap.Int("attempts", res.Attempts))
	return res
}

// Cancel aborts the active session, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	s := e.active
	e.mu.Unlock()
	if s != nil {
		s.cancel()
		<-s.done
	}
}

// resolve fills zero fields from the engine defaults and nil hooks with the
// generic implementations.
func (e *Engine) resolve(cfg Config) Config {
	d := e.defaults
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.StopPollInterval <= 0 {
		cfg.StopPollInterval = d.StopPollInterval
	}
	if cfg.StopCeiling <= 0 {
		cfg.StopCeiling = d.StopCeiling
	}
	if cfg.PostStopInterval <= 0 {
		cfg.PostStopInterval = d.PostStopInterval
	}
	if cfg.PostStopAttempts <= 0 {
		cfg.PostStopAttempts = d.PostStopAttempts
	}
	if cfg.LateFallbackAfter <= 0 {
		cfg.LateFallbackAfter = d.LateFallbackAfter
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	if cfg.FindButton == nil {
		cfg.FindButton = func(ctx context.Context, doc *dom.Document) *dom.Element {
			if e.finder != nil {
				return e.finder.FindIn(ctx, doc, schemas.TargetSendButton)
			}
			return heuristics.Base{}.DetectSendButton(ctx, doc, heuristics.Hint{Editor: cfg.Editor})
		}
	}
	if cfg.FindStopButton == nil {
		editor := cfg.Editor
		cfg.FindStopButton = func(_ context.Context, doc *dom.Document) *dom.Element {
			var scoped *dom.Element
			if editor != nil {
				scoped = doc.ByRef(editor.Ref)
			}
			return FindStopIn(doc, scoped)
		}
	}
	if cfg.IsEnabled == nil {
		cfg.IsEnabled = IsEnabled
	}
	if cfg.IsBusy == nil {
		cfg.IsBusy = IsBusy
	}
	if cfg.PreClickValidation == nil {
		cfg.PreClickValidation = func(context.Context, *dom.Document) bool { return true }
	}
	if cfg.ClickAction == nil {
		cfg.ClickAction = func(ctx context.Context, el *dom.Element) error {
			return e.page.Click(ctx, el.Ref)
		}
	}
	return cfg
}

// run is the state of one session.
type run struct {
	engine *Engine
	cfg    Config
	log    *zap.Logger
	res    schemas.SendResult
}

func (r *run) finish(status schemas.SendStatus, reason string) schemas.SendResult {
	r.res.Status = status
	r.res.Reason = reason
	return r.res
}

func (r *run) aborted() schemas.SendResult {
	return r.finish(schemas.StatusAborted, ReasonCancelled)
}

func (r *run) snapshot(ctx context.Context) *dom.Document {
	doc, err := r.engine.page.Snapshot(ctx)
	if err != nil {
		r.log.Debug("Snapshot failed.", zap.Error(err))
		return nil
	}
	return doc
}

// poll is the Polling state. A tick showing a stop control hands over to
// the StopWatch without consuming an attempt.
func (r *run) poll(ctx context.Context) schemas.SendResult {
	for {
		if err := r.engine.clock.Sleep(ctx, r.cfg.Interval); err != nil {
			return r.aborted()
		}
		doc := r.snapshot(ctx)

		var btn *dom.Element
		if doc != nil {
			if stop := r.cfg.FindStopButton(ctx, doc); live(stop) {
				r.log.Debug("Stop control present, watching it.", zap.String("stop", stop.Describe()))
				return r.stopWatch(ctx, stop)
			}
			btn = r.cfg.FindButton(ctx, doc)
		}
		if ctx.Err() != nil {
			return r.aborted()
		}

		var reason string
		switch {
		case btn == nil:
			reason = ReasonNotFound
		case r.cfg.IsBusy(btn):
			r.log.Debug("Send button is busy, watching it.")
			return r.stopWatch(ctx, btn)
		case !r.cfg.IsEnabled(btn):
			reason = ReasonDisabled
		case !r.cfg.PreClickValidation(ctx, doc):
			reason = ReasonValidation
		default:
			if err := r.cfg.ClickAction(ctx, btn); err != nil {
				r.log.Debug("Click failed.", zap.Error(err))
				reason = ReasonClick
				break
			}
			r.res.Clicked = true
			return r.finish(schemas.StatusSent, "")
		}

		r.res.Attempts++
		if r.res.Attempts >= r.cfg.MaxAttempts {
			if reason == ReasonNotFound {
				return r.finish(schemas.StatusNotFound, reason)
			}
			return r.finish(schemas.StatusFailed, reason)
		}
	}
}

// stopWatch waits for the captured stop control, or a re-queried one, to go
// inactive, then tries to send immediately and falls back to the post-stop
// poller.
func (r *run) stopWatch(ctx context.Context, captured *dom.Element) schemas.SendResult {
	deadline := r.engine.clock.Now().Add(r.cfg.StopCeiling)
	var doc *dom.Document
	for {
		if err := r.engine.clock.Sleep(ctx, r.cfg.StopPollInterval); err != nil {
			return r.aborted()
		}
		if doc = r.snapshot(ctx); doc != nil && !r.stillBusy(ctx, doc, captured) {
			break
		}
		if !r.engine.clock.Now().Before(deadline) {
			r.log.Warn("Stop control never cleared.", zap.Duration("ceiling", r.cfg.StopCeiling))
			return r.finish(schemas.StatusBlockedByStop, ReasonTimeout)
		}
	}

	r.log.Debug("Stop control cleared, sending.")
	if ok, _ := r.trySend(ctx, doc, false); ok {
		return r.finish(schemas.StatusSent, "")
	}
	if ctx.Err() != nil {
		return r.aborted()
	}
	return r.postStop(ctx)
}

// stillBusy checks the captured control, which may be a send button that
// swapped into a stop button, and a freshly queried stop control.
func (r *run) stillBusy(ctx context.Context, doc *dom.Document, captured *dom.Element) bool {
	if cur := doc.ByRef(captured.Ref); live(cur) && r.cfg.IsBusy(cur) {
		return true
	}
	return live(r.cfg.FindStopButton(ctx, doc))
}

// postStop retries for a short, bounded window after the stop control
// cleared. From LateFallbackAfter on, an enabled button is clicked even if
// validation keeps failing.
func (r *run) postStop(ctx context.Context) schemas.SendResult {
	last := ReasonNotFound
	for i := 1; i <= r.cfg.PostStopAttempts; i++ {
		if err := r.engine.clock.Sleep(ctx, r.cfg.PostStopInterval); err != nil {
			return r.aborted()
		}
		doc := r.snapshot(ctx)
		if doc == nil {
			continue
		}
		ok, reason := r.trySend(ctx, doc, i >= r.cfg.LateFallbackAfter)
		if ok {
			return r.finish(schemas.StatusSent, "")
		}
		last = reason
	}
	if ctx.Err() != nil {
		return r.aborted()
	}
	status := schemas.StatusFailed
	if last == ReasonNotFound {
		status = schemas.StatusNotFound
	}
	return r.finish(status, fmt.Sprintf("after stop: %s", last))
}

// trySend clicks the send button if it is present, idle, enabled and
// validated. With late set, validation failures are ignored.
func (r *run) trySend(ctx context.Context, doc *dom.Document, late bool) (bool, string) {
	btn := r.cfg.FindButton(ctx, doc)
	switch {
	case btn == nil:
		return false, ReasonNotFound
	case r.cfg.IsBusy(btn), !r.cfg.IsEnabled(btn):
		return false, ReasonDisabled
	}
	if !r.cfg.PreClickValidation(ctx, doc) {
		if !late {
			return false, ReasonValidation
		}
		r.log.Warn("Validation keeps failing, sending anyway.")
	}
	if err := r.cfg.ClickAction(ctx, btn); err != nil {
		r.log.Debug("Click failed.", zap.Error(err))
		return false, ReasonClick
	}
	r.res.Clicked = true
	return true, ""
}
