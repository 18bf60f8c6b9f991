// internal/notify/notify.go
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

// Nop drops every toast.
type Nop struct{}

func (Nop) Toast(context.Context, string, schemas.ToastKind, *schemas.ToastOptions) {}

// LogNotifier writes toasts to the log. It is the terminal's toast surface.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier logging through logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("toast")}
}

func (n *LogNotifier) Toast(_ context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	fields := []zap.Field{zap.String("kind", string(kind))}
	if opts != nil && opts.ActionLabel != "" {
		fields = append(fields, zap.String("action", opts.ActionLabel))
	}
	switch kind {
	case schemas.ToastError:
		n.logger.Error(message, fields...)
	case schemas.ToastWarning:
		n.logger.Warn(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}
}

// Multi fans a toast out to several notifiers.
type Multi []schemas.Notifier

func (m Multi) Toast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	for _, n := range m {
		if n != nil {
			n.Toast(ctx, message, kind, opts)
		}
	}
}

// Throttled bounds the toast rate and drops repeats of the same message
// within the dedup window. Toasts carrying an action are never dropped by
// the rate limit since they ask the user for a decision.
type Throttled struct {
	next    schemas.Notifier
	limiter *rate.Limiter
	window  time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewThrottled wraps next. A zero rate disables rate limiting; a zero window
// disables duplicate suppression.
func NewThrottled(next schemas.Notifier, cfg config.NotifyConfig, logger *zap.Logger) *Throttled {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Throttled{
		next:   next,
		window: cfg.DedupWindow,
		now:    time.Now,
		logger: logger.Named("throttle"),
		seen:   make(map[string]time.Time),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return t
}

func (t *Throttled) Toast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	now := t.now()
	key := string(kind) + "\x00" + message
	hasAction := opts != nil && opts.OnAction != nil

	t.mu.Lock()
	if last, ok := t.seen[key]; ok && t.window > 0 && now.Sub(last) < t.window {
		t.mu.Unlock()
		t.logger.Debug("Duplicate toast suppressed.", zap.String("message", message))
		return
	}
	t.seen[key] = now
	for k, at := range t.seen {
		if now.Sub(at) >= t.window {
			delete(t.seen, k)
		}
	}
	t.mu.Unlock()

	if t.limiter != nil && !hasAction && !t.limiter.AllowN(now, 1) {
		t.logger.Debug("Toast rate limited.", zap.String("message", message))
		return
	}
	t.next.Toast(ctx, message, kind, opts)
}

// Recorded is one toast captured by a Recorder.
type Recorded struct {
	Message string
	Kind    schemas.ToastKind
	Options *schemas.ToastOptions
}

// Recorder keeps every toast it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	toasts []Recorded
}

func (r *Recorder) Toast(_ context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Recorded{Message: message, Kind: kind, Options: opts})
}

// Toasts returns a copy of everything recorded.
func (r *Recorder) Toasts() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.toasts...)
}

// OfKind returns the recorded toasts of one kind.
func (r *Recorder) OfKind(kind schemas.ToastKind) []Recorded {
	var out []Recorded
	for _, t := range r.Toasts() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// WithActions returns the recorded toasts that offer an action.
func (r *Recorder) WithActions() []Recorded {
	var out []Recorded
	for _, t := range r.Toasts() {
		if t.Options != nil && t.Options.OnAction != nil {
			out = append(out, t)
		}
	}
	return out
}
