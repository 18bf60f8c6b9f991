// internal/browser/toast.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

const (
	toastBinding         = "__chatpilotToastAction"
	defaultToastDuration = 4 * time.Second
	actionToastDuration  = 10 * time.Second
)

type toastParams struct {
	Message  string `json:"message"`
	Kind     string `json:"kind"`
	Label    string `json:"label,omitempty"`
	ActionID string `json:"actionId,omitempty"`
	Binding  string `json:"binding"`
	Millis   int64  `json:"ms"`
}

const toastJS = `((p) => {
  let host = document.getElementById('chatpilot-toasts');
  if (!host) {
    host = document.createElement('div');
    host.id = 'chatpilot-toasts';
    host.style.cssText = 'position:fixed;right:16px;bottom:16px;z-index:2147483647;display:flex;flex-direction:column;gap:8px;';
    document.body.appendChild(host);
  }
  const t = document.createElement('div');
  t.className = 'chatpilot-toast chatpilot-toast-' + p.kind;
  t.setAttribute('role', p.kind === 'error' ? 'alert' : 'status');
  t.style.cssText = 'padding:8px 12px;border-radius:6px;background:#222;color:#fff;font:13px sans-serif;';
  const span = document.createElement('span');
  span.textContent = p.message;
  t.appendChild(span);
  if (p.actionId) {
    const b = document.createElement('button');
    b.textContent = p.label;
    b.style.cssText = 'margin-left:8px;';
    b.onclick = () => { window[p.binding](JSON.stringify([p.actionId])); t.remove(); };
    t.appendChild(b);
  }
  host.appendChild(t);
  setTimeout(() => t.remove(), p.ms);
  return true;
})(%s)`

// ShowToast renders a toast in the page. An action button, when requested,
// calls back into OnAction through a runtime binding.
func (s *Session) ShowToast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) error {
	p := toastParams{Message: message, Kind: string(kind), Binding: toastBinding, Millis: defaultToastDuration.Milliseconds()}
	if opts != nil && opts.Duration > 0 {
		p.Millis = opts.Duration.Milliseconds()
	}

	if opts != nil && opts.ActionLabel != "" && opts.OnAction != nil {
		if err := s.ensureToastBinding(ctx); err != nil {
			return err
		}
		p.ActionID = uuid.NewString()
		p.Label = opts.ActionLabel
		if opts.Duration <= 0 {
			p.Millis = actionToastDuration.Milliseconds()
		}
		s.mu.Lock()
		s.toastActions[p.ActionID] = opts.OnAction
		s.mu.Unlock()
		id := p.ActionID
		time.AfterFunc(time.Duration(p.Millis)*time.Millisecond+time.Second, func() { s.dropToastAction(id) })
	}

	var ok bool
	if err := s.runActions(ctx, chromedp.Evaluate(fmt.Sprintf(toastJS, JSLiteral(p)), &ok)); err != nil {
		s.dropToastAction(p.ActionID)
		return fmt.Errorf("failed to show toast: %w", err)
	}
	return nil
}

func (s *Session) ensureToastBinding(ctx context.Context) error {
	s.mu.Lock()
	bound := s.toastBound
	s.mu.Unlock()
	if bound {
		return nil
	}
	if err := s.ExposeFunction(ctx, toastBinding, s.runToastAction); err != nil {
		return err
	}
	s.mu.Lock()
	s.toastBound = true
	s.mu.Unlock()
	return nil
}

// runToastAction runs a toast action at most once.
func (s *Session) runToastAction(id string) {
	s.mu.Lock()
	fn := s.toastActions[id]
	delete(s.toastActions, id)
	s.mu.Unlock()
	if fn == nil {
		s.logger.Debug("Unknown or expired toast action.", zap.String("action", id))
		return
	}
	fn()
}

func (s *Session) dropToastAction(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	delete(s.toastActions, id)
	s.mu.Unlock()
}
