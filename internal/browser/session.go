// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("browser: session closed")

// Session is one attached tab. It implements schemas.Page over CDP.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	onClose func(id string)

	mu           sync.Mutex
	closed       bool
	bindings     map[string]*binding
	navHandlers  []func(url string)
	mainFrame    cdp.FrameID
	lastURL      string
	toastActions map[string]func()
	toastBound   bool
}

var _ schemas.Page = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func(string)) *Session {
	id := uuid.NewString()
	return &Session{
		id:           id,
		ctx:          ctx,
		cancel:       cancel,
		cfg:          cfg,
		logger:       logger.With(zap.String("session_id", id)),
		onClose:      onClose,
		bindings:     make(map[string]*binding),
		toastActions: make(map[string]func()),
	}
}

// initialize attaches to the target and starts the event listener.
func (s *Session) initialize() error {
	// The first Run on a tab context creates or attaches the target; it must
	// use the session context so the tab lives as long as the session.
	if err := chromedp.Run(s.ctx); err != nil {
		return fmt.Errorf("failed to attach to tab: %w", err)
	}
	chromedp.ListenTarget(s.ctx, s.dispatch)
	if err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		if tree != nil && tree.Frame != nil {
			s.mu.Lock()
			s.mainFrame, s.lastURL = tree.Frame.ID, tree.Frame.URL
			s.mu.Unlock()
		}
		return nil
	})); err != nil {
		s.logger.Debug("Could not read the frame tree.", zap.Error(err))
	}
	return nil
}

// dispatch runs on chromedp's event goroutine and must not block.
func (s *Session) dispatch(ev any) {
	switch e := ev.(type) {
	case *runtime.EventBindingCalled:
		s.mu.Lock()
		b := s.bindings[e.Name]
		s.mu.Unlock()
		if b == nil {
			return
		}
		go func() {
			if err := b.invoke(e.Payload); err != nil {
				s.logger.Warn("Exposed function call failed.", zap.Error(err))
			}
		}()
	case *page.EventFrameNavigated:
		if e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		s.mainFrame = e.Frame.ID
		s.mu.Unlock()
		s.navigated(e.Frame.URL, false)
	case *page.EventNavigatedWithinDocument:
		// History API route changes in single page apps.
		s.mu.Lock()
		main := s.mainFrame
		s.mu.Unlock()
		if main != "" && e.FrameID != main {
			return
		}
		s.navigated(e.URL, true)
	}
}

// navigated runs the navigation handlers. Same-document changes that only
// move the fragment are not route changes and are skipped.
func (s *Session) navigated(url string, sameDocument bool) {
	s.mu.Lock()
	prev := s.lastURL
	s.lastURL = url
	if sameDocument && stripFragment(prev) == stripFragment(url) {
		s.mu.Unlock()
		return
	}
	handlers := append([]func(string){}, s.navHandlers...)
	s.mu.Unlock()

	s.logger.Debug("Main frame navigated.", zap.String("url", url), zap.Bool("same_document", sameDocument))
	for _, h := range handlers {
		go h(url)
	}
}

func stripFragment(url string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		return url[:i]
	}
	return url
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Context returns the session context, which carries the chromedp target.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if s.cfg.ActionTimeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.cfg.ActionTimeout)
		defer cancelTimeout()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.runActions(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// URL returns the current location of the tab.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.runActions(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Snapshot captures the live DOM through the in-page collector.
func (s *Session) Snapshot(ctx context.Context) (*dom.Document, error) {
	var raw string
	if err := s.runActions(ctx, chromedp.Evaluate(call("snapshot"), &raw)); err != nil {
		return nil, fmt.Errorf("snapshot failed: %w", err)
	}
	snap, err := dom.DecodeSnapshot([]byte(raw))
	if err != nil {
		return nil, err
	}
	if snap.Truncated {
		s.logger.Warn("Snapshot truncated, page is very large.")
	}
	return dom.FromSnapshot(snap)
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Click scrolls the element into view and clicks its center with a real
// mouse event.
func (s *Session) Click(ctx context.Context, ref int64) error {
	var pt *point
	if err := s.runActions(ctx, chromedp.Evaluate(call("center", ref), &pt)); err != nil {
		return fmt.Errorf("click %d: %w", ref, err)
	}
	if pt == nil {
		return fmt.Errorf("click %d: %w", ref, dom.ErrStaleElement)
	}
	return s.runActions(ctx, chromedp.MouseClickXY(pt.X, pt.Y))
}

// Focus focuses the referenced element.
func (s *Session) Focus(ctx context.Context, ref int64) error {
	return s.evalOK(ctx, "focus", call("focus", ref), ref)
}

func (s *Session) evalOK(ctx context.Context, op, script string, ref int64) error {
	var ok bool
	if err := s.runActions(ctx, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("%s %d: %w", op, ref, err)
	}
	if !ok {
		return fmt.Errorf("%s %d: %w", op, ref, dom.ErrStaleElement)
	}
	return nil
}

// InsertText writes text into the referenced editor.
func (s *Session) InsertText(ctx context.Context, ref int64, text string, strategy schemas.InsertStrategy) error {
	switch strategy {
	case schemas.InsertValue, "":
		return s.evalOK(ctx, "set value", call("setValue", ref, text), ref)
	case schemas.InsertContentEditable:
		if err := s.evalOK(ctx, "select", call("selectContents", ref), ref); err != nil {
			return err
		}
		return s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
			return input.InsertText(text).Do(c)
		}))
	case schemas.InsertKeystrokes:
		if err := s.Focus(ctx, ref); err != nil {
			return err
		}
		return s.runActions(ctx, chromedp.KeyEvent(text))
	default:
		return fmt.Errorf("unknown insert strategy %q", strategy)
	}
}

// PressKey focuses the element and dispatches one key press.
func (s *Session) PressKey(ctx context.Context, ref int64, key schemas.KeyEventData) error {
	if err := s.Focus(ctx, ref); err != nil {
		return err
	}
	return s.runActions(ctx, chromedp.KeyEvent(keyText(key.Key), chromedp.KeyModifiers(cdpModifiers(key.Modifiers)...)))
}

// ExecuteScript evaluates script in the page; res may be nil.
func (s *Session) ExecuteScript(ctx context.Context, script string, res any) error {
	return s.runActions(ctx, chromedp.Evaluate(script, res))
}

// InjectScriptPersistently runs script on every new document of the tab.
func (s *Session) InjectScriptPersistently(ctx context.Context, script string) error {
	var id page.ScriptIdentifier
	err := s.runActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		id, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not inject persistent script: %w", err)
	}
	s.logger.Debug("Injected persistent script.", zap.String("scriptID", string(id)))
	return nil
}

// ExposeFunction makes fn callable from the page as window[name](jsonArgs),
// where jsonArgs is a JSON array of positional arguments. Bindings survive
// navigations.
func (s *Session) ExposeFunction(ctx context.Context, name string, fn any) error {
	b, err := newBinding(name, fn, s.logger)
	if err != nil {
		return err
	}
	if err := s.runActions(ctx, runtime.AddBinding(name)); err != nil {
		return fmt.Errorf("failed to add binding %q: %w", name, err)
	}
	s.mu.Lock()
	s.bindings[name] = b
	s.mu.Unlock()
	return nil
}

// OnNavigate registers fn to run after every main frame navigation, including
// History API route changes.
func (s *Session) OnNavigate(fn func(url string)) {
	s.mu.Lock()
	s.navHandlers = append(s.navHandlers, fn)
	s.mu.Unlock()
}

// Close detaches from the tab.
func (s *Session) Close(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.cancel()
	if s.onClose != nil {
		s.onClose(s.id)
	}
	return nil
}
