// internal/notify/page.go
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// ToastRenderer draws a toast inside a page. The browser session implements it.
type ToastRenderer interface {
	ShowToast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) error
}

// PageNotifier renders toasts in the tab. Rendering failures fall back to
// the next notifier, if any.
type PageNotifier struct {
	page     ToastRenderer
	fallback schemas.Notifier
	duration time.Duration
	logger   *zap.Logger
}

// NewPageNotifier creates a page notifier. duration applies to toasts that
// do not set their own.
func NewPageNotifier(page ToastRenderer, fallback schemas.Notifier, duration time.Duration, logger *zap.Logger) *PageNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageNotifier{page: page, fallback: fallback, duration: duration, logger: logger.Named("page_toast")}
}

func (n *PageNotifier) Toast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	o := schemas.ToastOptions{Duration: n.duration}
	if opts != nil {
		o = *opts
		if o.Duration <= 0 {
			o.Duration = n.duration
		}
	}
	if err := n.page.ShowToast(ctx, message, kind, &o); err != nil {
		n.logger.Debug("Page toast failed.", zap.Error(err))
		if n.fallback != nil {
			n.fallback.Toast(ctx, message, kind, opts)
		}
	}
}
