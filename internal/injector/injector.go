// internal/injector/injector.go
package injector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/sites"
)

const (
	clickBinding = "__chatpilotPromptClick"
	remountDelay = 750 * time.Millisecond
)

// ErrNoPrompts is returned when there is nothing to put on the toolbar.
var ErrNoPrompts = errors.New("injector: no prompts configured")

// Host is the page surface the injector needs beyond schemas.Page.
type Host interface {
	schemas.Page
	ExecuteScript(ctx context.Context, script string, res any) error
	ExposeFunction(ctx context.Context, name string, fn any) error
	OnNavigate(fn func(url string))
}

// Dispatcher runs a clicked prompt.
type Dispatcher interface {
	Dispatch(ctx context.Context, p schemas.Prompt) (sites.Result, error)
}

// Mount describes where the toolbar went.
type Mount struct {
	ToolbarID    string
	ContainerRef int64
	Source       heuristics.ContainerSource
	Selector     string
}

// Option configures an Injector.
type Option func(*Injector)

// WithClock replaces the wall clock used for the remount delay.
func WithClock(c clock.Clock) Option {
	return func(in *Injector) { in.clock = c }
}

// WithTeardown registers a hook run on every teardown, after the toolbar
// is removed. Page scoped state (remembered elements, detection state)
// is reset here.
func WithTeardown(fn func()) Option {
	return func(in *Injector) { in.onTeardown = append(in.onTeardown, fn) }
}

// Injector mounts the prompt toolbar into a chat page and keeps it mounted
// across navigations.
type Injector struct {
	host       Host
	site       schemas.Site
	catalog    *selectors.Catalog
	anchors    heuristics.Anchors
	resolver   *heuristics.ContainerResolver
	dispatcher Dispatcher
	prompts    []schemas.Prompt
	clock      clock.Clock
	logger     *zap.Logger
	onTeardown []func()

	mu      sync.Mutex
	runCtx  context.Context
	mounted *Mount
	failed  []string
	bound   bool
}

// New creates an injector for one page.
func New(host Host, site schemas.Site, catalog *selectors.Catalog, anchors heuristics.Anchors, dispatcher Dispatcher, prompts []schemas.Prompt, logger *zap.Logger, opts ...Option) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	in := &Injector{
		host:       host,
		site:       site,
		catalog:    catalog,
		anchors:    anchors,
		resolver:   heuristics.NewContainerResolver(logger),
		dispatcher: dispatcher,
		prompts:    append([]schemas.Prompt(nil), prompts...),
		clock:      clock.Real{},
		logger:     logger.Named("injector").With(zap.String("site", string(site))),
		runCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Start binds toolbar clicks, mounts the toolbar and remounts it after every
// main frame navigation. Clicks run under ctx.
func (in *Injector) Start(ctx context.Context) (Mount, error) {
	in.mu.Lock()
	in.runCtx = ctx
	in.mu.Unlock()

	in.host.OnNavigate(func(url string) {
		if ctx.Err() != nil {
			return
		}
		in.logger.Info("Page navigated, remounting toolbar.", zap.String("url", url))
		in.Teardown(ctx)
		if err := in.clock.Sleep(ctx, remountDelay); err != nil {
			return
		}
		if _, err := in.Mount(ctx); err != nil {
			in.logger.Warn("Remount failed.", zap.Error(err))
		}
	})
	return in.Mount(ctx)
}

// Mount resolves the container and mounts the toolbar. An existing toolbar
// from a previous Mount is left in place.
func (in *Injector) Mount(ctx context.Context) (Mount, error) {
	if len(in.prompts) == 0 {
		return Mount{}, ErrNoPrompts
	}
	if err := in.bind(ctx); err != nil {
		return Mount{}, err
	}

	doc, err := in.host.Snapshot(ctx)
	if err != nil {
		return Mount{}, fmt.Errorf("snapshot: %w", err)
	}
	set := in.catalog.Set(in.site)
	toolbarID := set.ButtonsContainerID
	if toolbarID == "" {
		toolbarID = selectors.DefaultButtonsContainerID
	}

	in.mu.Lock()
	if in.mounted != nil && doc.Count("#"+toolbarID) > 0 {
		m := *in.mounted
		in.mu.Unlock()
		return m, nil
	}
	failed := append([]string(nil), in.failed...)
	in.mu.Unlock()

	res := in.resolver.Resolve(ctx, heuristics.ContainerRequest{
		Doc:            doc,
		Defaults:       set.Containers,
		Failed:         failed,
		OwnContainerID: toolbarID,
		Anchors:        in.anchors,
		Refresh:        in.host.Snapshot,
	})
	if res.Element == nil {
		return Mount{}, fmt.Errorf("no container: page has no body")
	}

	var ok bool
	if err := in.host.ExecuteScript(ctx, mountScript(res.Element.Ref, toolbarID, in.labels()), &ok); err != nil {
		return Mount{}, fmt.Errorf("mount toolbar: %w", err)
	}
	if !ok {
		return Mount{}, fmt.Errorf("mount toolbar: %w", dom.ErrStaleElement)
	}

	m := Mount{ToolbarID: toolbarID, ContainerRef: res.Element.Ref, Source: res.Source, Selector: res.Selector}
	in.mu.Lock()
	in.mounted = &m
	if res.Source != heuristics.SourceSelector && res.Source != heuristics.SourceRetry {
		in.failed = mergeFailed(in.failed, set.Containers)
	}
	in.mu.Unlock()

	in.logger.Info("Toolbar mounted.",
		zap.String("source", string(res.Source)),
		zap.String("container", res.Element.Describe()),
		zap.Int("prompts", len(in.prompts)))
	return m, nil
}

// Teardown removes the toolbar, forgets element references and runs the
// teardown hooks.
func (in *Injector) Teardown(ctx context.Context) {
	in.mu.Lock()
	m := in.mounted
	in.mounted = nil
	in.mu.Unlock()

	if m != nil {
		if err := in.host.ExecuteScript(ctx, unmountScript(m.ToolbarID), nil); err != nil {
			in.logger.Debug("Toolbar removal failed, page is probably gone.", zap.Error(err))
		}
	}
	for _, fn := range in.onTeardown {
		fn()
	}
}

// Mounted returns the current mount, if any.
func (in *Injector) Mounted() (Mount, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.mounted == nil {
		return Mount{}, false
	}
	return *in.mounted, true
}

func (in *Injector) bind(ctx context.Context) error {
	in.mu.Lock()
	bound := in.bound
	in.mu.Unlock()
	if bound {
		return nil
	}
	if err := in.host.ExposeFunction(ctx, clickBinding, in.onClick); err != nil {
		return fmt.Errorf("bind toolbar clicks: %w", err)
	}
	in.mu.Lock()
	in.bound = true
	in.mu.Unlock()
	return nil
}

// onClick is invoked from the page with the index of the clicked prompt.
func (in *Injector) onClick(index int) {
	if index < 0 || index >= len(in.prompts) {
		in.logger.Warn("Toolbar click for unknown prompt.", zap.Int("index", index))
		return
	}
	p := in.prompts[index]
	in.mu.Lock()
	ctx := in.runCtx
	in.mu.Unlock()

	res, err := in.dispatcher.Dispatch(ctx, p)
	if err != nil {
		in.logger.Warn("Prompt dispatch failed.", zap.String("prompt", p.Name), zap.Error(err))
		return
	}
	fields := []zap.Field{zap.String("prompt", p.Name), zap.Bool("inserted", res.Inserted)}
	if res.Send != nil {
		fields = append(fields, zap.String("send", string(res.Send.Status)))
	}
	in.logger.Info("Prompt dispatched.", fields...)
}

func (in *Injector) labels() []string {
	out := make([]string, len(in.prompts))
	for i, p := range in.prompts {
		out[i] = p.Name
		if out[i] == "" {
			out[i] = p.Text
		}
	}
	return out
}

func mergeFailed(failed, add []string) []string {
	seen := make(map[string]bool, len(failed))
	for _, s := range failed {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			failed = append(failed, s)
			seen[s] = true
		}
	}
	return failed
}

func mountScript(containerRef int64, toolbarID string, labels []string) string {
	return browser.Script(fmt.Sprintf(`
const host = cp.byRef(%d);
if (!host) return false;
const old = document.getElementById(%s);
if (old) old.remove();
const bar = document.createElement('div');
bar.id = %s;
bar.className = 'chatpilot-toolbar';
bar.style.cssText = 'display:flex;flex-wrap:wrap;gap:6px;margin:4px 0;';
%s.forEach((label, i) => {
  const b = document.createElement('button');
  b.type = 'button';
  b.className = 'chatpilot-prompt';
  b.textContent = label;
  b.onclick = (e) => { e.preventDefault(); e.stopPropagation(); window[%s](JSON.stringify([i])); };
  bar.appendChild(b);
});
host.appendChild(bar);
return true;`,
		containerRef, browser.JSLiteral(toolbarID), browser.JSLiteral(toolbarID),
		browser.JSLiteral(labels), browser.JSLiteral(clickBinding)))
}

func unmountScript(toolbarID string) string {
	return fmt.Sprintf(`(() => { const el = document.getElementById(%s); if (el) el.remove(); return true; })()`,
		browser.JSLiteral(toolbarID))
}
