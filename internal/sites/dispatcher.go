// internal/sites/dispatcher.go
package sites

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/autosend"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/guard"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// ErrEditorNotFound is returned when neither selectors nor heuristics
// produced an editor. The user has already been notified by the detector.
var ErrEditorNotFound = errors.New("sites: editor not found")

// ErrEditorNotEditable is returned when the resolved editor is disabled,
// read-only or not a text field.
var ErrEditorNotEditable = errors.New("sites: editor does not accept text")

// validationPrefix bounds how much of the inserted text must be visible in
// the editor before a send is attempted.
const validationPrefix = 48

// Result describes one dispatched prompt.
type Result struct {
	Inserted bool
	Strategy schemas.InsertStrategy
	// Send is set when auto-send ran.
	Send *schemas.SendResult
}

// Dispatcher inserts prompts into one page and optionally sends them.
type Dispatcher struct {
	adapter  Adapter
	page     schemas.Page
	guard    *guard.Guard
	engine   *autosend.Engine
	notifier schemas.Notifier
	logger   *zap.Logger
}

// NewDispatcher wires a dispatcher for the guard's site.
func NewDispatcher(page schemas.Page, g *guard.Guard, engine *autosend.Engine, notifier schemas.Notifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		adapter:  For(g.Site()),
		page:     page,
		guard:    g,
		engine:   engine,
		notifier: notifier,
		logger:   logger.Named("dispatch").With(zap.String("site", string(g.Site()))),
	}
}

// Dispatch resolves the editor, inserts p.Text and, when p.AutoSend is set,
// runs an auto-send session with the site's overrides.
func (d *Dispatcher) Dispatch(ctx context.Context, p schemas.Prompt) (Result, error) {
	var res Result
	editor := d.guard.FindEditor(ctx)
	if editor == nil {
		return res, ErrEditorNotFound
	}
	if !validator.IsEditable(editor) {
		d.notify(ctx, "The prompt box is not accepting input right now.", schemas.ToastWarning)
		return res, fmt.Errorf("%w: %s", ErrEditorNotEditable, editor.Describe())
	}

	if err := d.page.Focus(ctx, editor.Ref); err != nil {
		return res, fmt.Errorf("focus editor: %w", err)
	}
	res.Strategy = d.adapter.StrategyFor(editor)
	if err := d.page.InsertText(ctx, editor.Ref, p.Text, res.Strategy); err != nil {
		return res, fmt.Errorf("insert text: %w", err)
	}
	res.Inserted = true
	d.logger.Info("Prompt inserted.",
		zap.String("prompt", p.Name),
		zap.String("strategy", string(res.Strategy)),
		zap.Int("chars", utf8.RuneCountInString(p.Text)))

	if !p.AutoSend || d.engine == nil {
		return res, nil
	}
	sent := d.engine.Run(ctx, d.SendConfig(editor, p.Text))
	res.Send = &sent
	switch sent.Status {
	case schemas.StatusNotFound, schemas.StatusFailed, schemas.StatusBlockedByStop:
		d.notify(ctx, fmt.Sprintf("Auto-send did not complete (%s).", sent.Reason), schemas.ToastWarning)
	}
	return res, nil
}

// SendConfig builds the auto-send hooks for the site.
func (d *Dispatcher) SendConfig(editor *dom.Element, text string) autosend.Config {
	ref := editor.Ref
	cfg := autosend.Config{
		Editor: editor,
		FindButton: func(ctx context.Context, doc *dom.Document) *dom.Element {
			return d.guard.FindIn(ctx, doc, schemas.TargetSendButton)
		},
		FindStopButton: func(_ context.Context, doc *dom.Document) *dom.Element {
			return d.adapter.FindStop(doc, doc.ByRef(ref))
		},
		IsBusy:    d.adapter.IsBusy,
		IsEnabled: d.adapter.IsEnabled,
		PreClickValidation: func(_ context.Context, doc *dom.Document) bool {
			return ContentMatches(doc.ByRef(ref).Value(), text)
		},
	}
	return cfg
}

func (d *Dispatcher) notify(ctx context.Context, msg string, kind schemas.ToastKind) {
	if d.notifier != nil {
		d.notifier.Toast(ctx, msg, kind, nil)
	}
}

// ContentMatches reports whether the editor content shows the inserted
// text: the whitespace-normalized leading part of want must appear in got.
func ContentMatches(got, want string) bool {
	w := normalizeSpace(want)
	if w == "" {
		return true
	}
	if utf8.RuneCountInString(w) > validationPrefix {
		w = string([]rune(w)[:validationPrefix])
	}
	return strings.Contains(normalizeSpace(got), w)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
