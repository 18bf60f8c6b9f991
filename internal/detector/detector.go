// internal/detector/detector.go
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/notify"
	"github.com/xkilldash9x/chatpilot/internal/persist"
)

// DetectionState is the failure bookkeeping of one target type.
type DetectionState struct {
	Failures int
	// LastFailure is when the last failure that started (or short-circuited)
	// a recovery was reported. The cooldown is measured from it.
	LastFailure time.Time
	Recovering  bool
}

// RecoveryOffer is the last selector offered for saving for a target type.
type RecoveryOffer struct {
	Selector string
	Site     schemas.Site
	At       time.Time
}

// FailureContext describes a failed lookup.
type FailureContext struct {
	Site schemas.Site
	// Page provides a fresh snapshot once the settle delay has passed. Optional.
	Page schemas.Page
	// Doc is the snapshot the lookup failed on, used when Page is nil or
	// cannot be snapshotted.
	Doc  *dom.Document
	Hint heuristics.Hint
	// Selectors that were tried, for logging.
	Selectors []string
}

// SelectorSaver persists a recovered selector.
type SelectorSaver interface {
	SaveFromElement(ctx context.Context, req persist.SaveRequest) persist.SaveResult
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithSaver enables the "Save selector" action on success toasts.
func WithSaver(s SelectorSaver) Option {
	return func(r *Registry) { r.saver = s }
}

// Registry tracks lookup failures per target type and runs heuristic
// recovery. One Registry serves one page session; all state changes go
// through its methods.
type Registry struct {
	cfg        config.DetectorConfig
	strategies *heuristics.Registry
	notifier   schemas.Notifier
	saver      SelectorSaver
	clock      clock.Clock
	logger     *zap.Logger

	group singleflight.Group

	mu       sync.Mutex
	states   map[schemas.TargetType]*DetectionState
	offers   map[schemas.TargetType]RecoveryOffer
	settings schemas.HeuristicSettings
	base     context.Context
	cancel   context.CancelFunc
}

// New creates a registry. A nil notifier drops toasts.
func New(cfg config.DetectorConfig, strategies *heuristics.Registry, notifier schemas.Notifier, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if strategies == nil {
		strategies = heuristics.NewDefaultRegistry(logger)
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	r := &Registry{
		cfg:        cfg,
		strategies: strategies,
		notifier:   notifier,
		clock:      clock.Real{},
		logger:     logger.Named("detector"),
		states:     make(map[schemas.TargetType]*DetectionState),
		offers:     make(map[schemas.TargetType]RecoveryOffer),
		settings:   cfg.Heuristics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.base, r.cancel = context.WithCancel(context.Background())
	return r
}

func (r *Registry) stateLocked(t schemas.TargetType) *DetectionState {
	st, ok := r.states[t]
	if !ok {
		st = &DetectionState{}
		r.states[t] = st
	}
	return st
}

// State returns a copy of the state of t.
func (r *Registry) State(t schemas.TargetType) DetectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.stateLocked(t)
}

// LastOffer returns the last selector offered for t.
func (r *Registry) LastOffer(t schemas.TargetType) (RecoveryOffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[t]
	return o, ok
}

// Settings returns the current heuristic toggles.
func (r *Registry) Settings() schemas.HeuristicSettings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// UpdateSettings replaces the heuristic toggles. Later recoveries see the new values.
func (r *Registry) UpdateSettings(s schemas.HeuristicSettings) {
	r.mu.Lock()
	r.settings = s
	r.mu.Unlock()
	r.logger.Info("Heuristic settings updated.",
		zap.Bool("editor", s.EnableEditorHeuristics),
		zap.Bool("sendButton", s.EnableSendButtonHeuristics))
}

// WatchSettings applies updates until ctx ends or updates is closed.
func (r *Registry) WatchSettings(ctx context.Context, updates <-chan schemas.HeuristicSettings) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			r.UpdateSettings(s)
		}
	}
}

// ReportRecovery records a successful direct lookup of t.
func (r *Registry) ReportRecovery(t schemas.TargetType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(t)
	st.Failures = 0
	st.Recovering = false
}

// ReportFailure records a failed lookup of t and, unless debounced, runs
// heuristic recovery. Callers arriving while a recovery of t is in flight
// wait for it and share its result. The returned element belongs to the
// snapshot recovery ran on; nil means nothing was found or the failure was
// debounced.
func (r *Registry) ReportFailure(ctx context.Context, t schemas.TargetType, fc FailureContext) *dom.Element {
	r.mu.Lock()
	st := r.stateLocked(t)
	st.Failures++
	now := r.clock.Now()

	if st.Recovering {
		// The recovery clears the flag under this lock before it returns, so
		// the in-flight call is still registered and DoChan joins it.
		ch := r.group.DoChan(string(t), func() (any, error) { return (*dom.Element)(nil), nil })
		r.mu.Unlock()
		r.logger.Debug("Joining in-flight recovery.", zap.String("target", string(t)))
		return await(ctx, ch)
	}
	if !st.LastFailure.IsZero() && now.Sub(st.LastFailure) < r.cfg.Cooldown {
		failures := st.Failures
		r.mu.Unlock()
		r.logger.Debug("Failure debounced.", zap.String("target", string(t)), zap.Int("failures", failures))
		return nil
	}
	if st.Failures < r.cfg.FailureThreshold {
		r.mu.Unlock()
		return nil
	}

	st.Recovering = true
	st.LastFailure = now
	base := r.base
	ch := r.group.DoChan(string(t), func() (any, error) {
		return r.runRecovery(base, st, t, fc), nil
	})
	r.mu.Unlock()
	return await(ctx, ch)
}

func await(ctx context.Context, ch <-chan singleflight.Result) *dom.Element {
	select {
	case res := <-ch:
		el, _ := res.Val.(*dom.Element)
		return el
	case <-ctx.Done():
		return nil
	}
}

// runRecovery works on st directly so that a recovery outliving a Teardown
// never touches the fresh state.
func (r *Registry) runRecovery(ctx context.Context, st *DetectionState, t schemas.TargetType, fc FailureContext) (found *dom.Element) {
	log := r.logger.With(zap.String("site", string(fc.Site)), zap.String("target", string(t)))
	defer func() {
		if p := recover(); p != nil {
			log.Error("Recovery panicked.", zap.Any("panic", p))
			found = nil
		}
		r.mu.Lock()
		st.Recovering = false
		r.mu.Unlock()
	}()

	label := t.Label()
	if !r.Settings().Enabled(t) {
		log.Info("Heuristics disabled, skipping recovery.", zap.Strings("selectors", fc.Selectors))
		r.notifier.Toast(ctx, fmt.Sprintf("Could not find the %s. Auto-detect is off.", label), schemas.ToastWarning, nil)
		return nil
	}

	log.Info("Starting heuristic recovery.", zap.Strings("selectors", fc.Selectors))
	r.notifier.Toast(ctx, fmt.Sprintf("Could not find the %s, trying to find it...", label), schemas.ToastInfo, nil)
	if err := r.clock.Sleep(ctx, r.cfg.SettleDelay); err != nil {
		log.Debug("Recovery cancelled during settle delay.", zap.Error(err))
		return nil
	}

	doc := fc.Doc
	if fc.Page != nil {
		fresh, err := fc.Page.Snapshot(ctx)
		if err != nil {
			log.Debug("Fresh snapshot failed, using the failed lookup's snapshot.", zap.Error(err))
		} else {
			doc = fresh
		}
	}

	var el *dom.Element
	if doc != nil {
		el = heuristics.Detect(ctx, r.strategies.Resolve(fc.Site), t, doc, fc.Hint)
	}
	if ctx.Err() != nil {
		return nil
	}
	if el == nil {
		log.Warn("Heuristic recovery found nothing.")
		r.notifier.Toast(ctx, fmt.Sprintf("Could not find the %s on this page. Please report this site.", label), schemas.ToastError, nil)
		return nil
	}

	r.mu.Lock()
	st.Failures = 0
	r.mu.Unlock()
	log.Info("Element recovered heuristically.", zap.String("element", el.Describe()))
	r.offer(ctx, t, fc.Site, doc, el)
	return el
}

// offer announces the recovered element and, unless the same selector was
// offered within the offer window, attaches a "Save selector" action.
func (r *Registry) offer(ctx context.Context, t schemas.TargetType, site schemas.Site, doc *dom.Document, el *dom.Element) {
	message := fmt.Sprintf("Found the %s.", t.Label())

	selector, err := persist.DeriveSelector(doc, el)
	if err != nil {
		r.logger.Info("Recovered element cannot be remembered.", zap.Error(err))
		r.notifier.Toast(ctx, message, schemas.ToastSuccess, nil)
		return
	}

	now := r.clock.Now()
	r.mu.Lock()
	last, seen := r.offers[t]
	suppressed := seen && last.Selector == selector && last.Site == site && now.Sub(last.At) < r.cfg.OfferWindow
	if !suppressed {
		r.offers[t] = RecoveryOffer{Selector: selector, Site: site, At: now}
	}
	r.mu.Unlock()

	if suppressed || r.saver == nil {
		r.notifier.Toast(ctx, message, schemas.ToastSuccess, nil)
		return
	}
	r.notifier.Toast(ctx, message+" Save it for next time?", schemas.ToastSuccess, &schemas.ToastOptions{
		ActionLabel: "Save selector",
		OnAction:    func() { r.SaveOffer(r.baseContext(), t) },
	})
}

// SaveOffer persists the last selector offered for t.
func (r *Registry) SaveOffer(ctx context.Context, t schemas.TargetType) persist.SaveResult {
	o, ok := r.LastOffer(t)
	if !ok || r.saver == nil {
		return persist.SaveResult{Reason: "nothing_offered"}
	}
	res := r.saver.SaveFromElement(ctx, persist.SaveRequest{Site: o.Site, Type: t, SelectorOverride: o.Selector})
	if res.OK {
		r.notifier.Toast(ctx, fmt.Sprintf("Saved the %s selector.", t.Label()), schemas.ToastSuccess, nil)
	} else {
		r.notifier.Toast(ctx, fmt.Sprintf("Could not save the %s selector (%s).", t.Label(), res.Reason), schemas.ToastError, nil)
	}
	return res
}

func (r *Registry) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base
}

// Teardown cancels in-flight recoveries and forgets all state. Call it when
// the page navigates.
func (r *Registry) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
	r.base, r.cancel = context.WithCancel(context.Background())
	for t := range r.states {
		r.group.Forget(string(t))
	}
	r.states = make(map[schemas.TargetType]*DetectionState)
	r.offers = make(map[schemas.TargetType]RecoveryOffer)
	r.logger.Debug("Detection state torn down.")
}

// Close cancels in-flight recoveries.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
}
