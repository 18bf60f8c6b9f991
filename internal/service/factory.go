// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/autosend"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/detector"
	"github.com/xkilldash9x/chatpilot/internal/guard"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/injector"
	"github.com/xkilldash9x/chatpilot/internal/notify"
	"github.com/xkilldash9x/chatpilot/internal/persist"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/sites"
	"github.com/xkilldash9x/chatpilot/internal/store"
)

type options struct {
	repo     store.Repository
	notifier schemas.Notifier
	clock    clock.Clock
	settings <-chan schemas.HeuristicSettings
}

// Option customizes NewComponents.
type Option func(*options)

// WithRepository uses repo instead of opening the configured store. The
// caller keeps ownership of it.
func WithRepository(repo store.Repository) Option {
	return func(o *options) { o.repo = repo }
}

// WithNotifier replaces the notifier chain built from config.
func WithNotifier(n schemas.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithClock drives detection and auto-send timing from c.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSettings applies heuristic toggle updates (from a config watch) to the
// detector until the components shut down.
func WithSettings(updates <-chan schemas.HeuristicSettings) Option {
	return func(o *options) { o.settings = updates }
}

// NewComponents wires the selector stack, detector, auto-send engine and
// dispatcher for one page. When page can run scripts an injector is built
// for the configured toolbar buttons as well.
func NewComponents(ctx context.Context, cfg config.Interface, page schemas.Page, site schemas.Site, logger *zap.Logger, opts ...Option) (*Components, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Components{Site: site, logger: logger.Named("components")}

	repo := o.repo
	if repo == nil {
		opened, closeFn, err := store.Open(ctx, cfg.Store(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open selector store: %w", err)
		}
		repo, c.closeStore = opened, closeFn
	}
	c.Repo = repo

	c.Catalog = selectors.NewCatalog(logger)
	if err := c.Catalog.Load(ctx, repo, site); err != nil {
		// Defaults still work without the overlay.
		c.logger.Warn("Custom selectors unavailable, using defaults only.", zap.Error(err))
	}

	c.Notifier = o.notifier
	if c.Notifier == nil {
		c.Notifier = buildNotifier(cfg.Notify(), page, logger)
	}

	c.Detector = detector.New(cfg.Detector(), heuristics.NewDefaultRegistry(logger), c.Notifier, logger,
		detector.WithClock(o.clock),
		detector.WithSaver(persist.NewSaver(repo, c.Catalog, logger)))
	if o.settings != nil {
		watchCtx, cancel := context.WithCancel(ctx)
		c.stopWatch = cancel
		go c.Detector.WatchSettings(watchCtx, o.settings)
	}

	c.Guard = guard.New(site, page, c.Catalog, c.Detector, logger)
	c.Engine = autosend.NewEngine(page, c.Guard, cfg.AutoSend(), logger, autosend.WithClock(o.clock))
	c.Dispatcher = sites.NewDispatcher(page, c.Guard, c.Engine, c.Notifier, logger)

	if host, ok := page.(injector.Host); ok {
		c.Injector = injector.New(host, site, c.Catalog, c.Guard, c.Dispatcher, cfg.Buttons(), logger,
			injector.WithClock(o.clock),
			injector.WithTeardown(c.Engine.Cancel),
			injector.WithTeardown(c.Guard.Forget),
			injector.WithTeardown(c.Detector.Teardown))
	}

	c.logger.Info("Page components ready.", zap.String("site", string(site)), zap.Bool("toolbar", c.Injector != nil))
	return c, nil
}

// buildNotifier chains page toasts (when the page can draw them) over the
// log notifier, behind the rate limiter.
func buildNotifier(cfg config.NotifyConfig, page schemas.Page, logger *zap.Logger) schemas.Notifier {
	var next schemas.Notifier = notify.NewLogNotifier(logger)
	if renderer, ok := page.(notify.ToastRenderer); ok && cfg.PageToasts {
		next = notify.NewPageNotifier(renderer, next, cfg.ToastDuration, logger)
	}
	return notify.NewThrottled(next, cfg, logger)
}
