// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// Manager owns the browser connection: either a Chrome it launched or a
// running Chrome it attached to through RemoteURL.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager launches or connects to Chrome.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.RemoteURL != "" {
		log.Info("Attaching to running browser.", zap.String("url", cfg.RemoteURL))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		log.Info("Launching browser.", zap.Bool("headless", cfg.Headless))
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	}

	sugar := log.Sugar()
	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(sugar.Errorf)}
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Manager{
		cfg:           cfg,
		logger:        log,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		sessions:      make(map[string]*Session),
	}, nil
}

// NewSession opens a new tab.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(m.browserCtx)
	return m.register(ctx, tabCtx, cancel)
}

// AttachSession attaches to the first page tab whose URL contains match and
// opens a new tab when none does.
func (m *Manager) AttachSession(ctx context.Context, match string) (*Session, error) {
	targets, err := chromedp.Targets(m.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	for _, t := range targets {
		if t.Type != "page" || match == "" || !strings.Contains(t.URL, match) {
			continue
		}
		m.logger.Info("Attaching to tab.", zap.String("url", t.URL))
		tabCtx, cancel := chromedp.NewContext(m.browserCtx, chromedp.WithTargetID(t.TargetID))
		return m.register(ctx, tabCtx, cancel)
	}
	return m.NewSession(ctx)
}

func (m *Manager) register(ctx context.Context, tabCtx context.Context, cancel context.CancelFunc) (*Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		cancel()
		return nil, fmt.Errorf("browser manager is shut down")
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}

	s := newSession(tabCtx, cancel, m.cfg, m.logger, m.forget)
	if err := s.initialize(); err != nil {
		cancel()
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Shutdown closes every session and releases the browser. A launched
// Chrome is terminated; an attached one keeps running.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close(ctx)
	}
	if m.cfg.RemoteURL == "" {
		if err := chromedp.Cancel(m.browserCtx); err != nil {
			m.logger.Debug("Browser cancel reported an error.", zap.Error(err))
		}
	}
	m.browserCancel()
	m.allocCancel()
	m.logger.Info("Browser released.")
	return nil
}
