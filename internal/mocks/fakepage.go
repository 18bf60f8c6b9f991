// File: internal/mocks/fakepage.go
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

// Insertion is one recorded InsertText call.
type Insertion struct {
	Ref      int64
	Text     string
	Strategy schemas.InsertStrategy
}

// FakePage implements schemas.Page over HTML fixtures. Each Snapshot consumes
// the next queued frame; the last frame repeats. Inserted text is reflected
// in the value of the target element on later snapshots.
type FakePage struct {
	mu        sync.Mutex
	frames    []string
	snapshots int
	shown     string
	values    map[int64]string

	clicks     []int64
	focused    []int64
	insertions []Insertion
	keys       []schemas.KeyEventData

	// SnapshotErr, when set, fails every Snapshot.
	SnapshotErr error
	// ActionErr, when set, fails every action.
	ActionErr error
	// OnClick runs after a click is recorded, outside the page lock. It may
	// queue frames to simulate the page reacting.
	OnClick func(ref int64)
}

// NewFakePage creates a page showing the given frames in order.
func NewFakePage(frames ...string) *FakePage {
	return &FakePage{frames: frames, values: make(map[int64]string)}
}

// SetHTML replaces every queued frame with markup.
func (p *FakePage) SetHTML(markup string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = []string{markup}
	p.shown = ""
}

// Queue appends frames after the current one.
func (p *FakePage) Queue(frames ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frames...)
}

func (p *FakePage) current() (string, error) {
	if len(p.frames) == 0 {
		return "", fmt.Errorf("fake page: no frames")
	}
	return p.frames[0], nil
}

func (p *FakePage) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SnapshotErr != nil {
		return nil, p.SnapshotErr
	}
	markup, err := p.current()
	if err != nil {
		return nil, err
	}
	if len(p.frames) > 1 {
		p.frames = p.frames[1:]
	}
	p.snapshots++
	p.shown = markup

	doc, err := dom.ParseHTML(markup)
	if err != nil {
		return nil, err
	}
	for ref, v := range p.values {
		doc.SetValue(ref, v)
	}
	return doc, nil
}

// act records an action after checking the reference exists in the frame
// last handed out by Snapshot.
func (p *FakePage) act(ctx context.Context, ref int64, record func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ActionErr != nil {
		return p.ActionErr
	}
	markup := p.shown
	if markup == "" {
		var err error
		if markup, err = p.current(); err != nil {
			return err
		}
	}
	doc, err := dom.ParseHTML(markup)
	if err != nil {
		return err
	}
	if doc.ByRef(ref) == nil {
		return fmt.Errorf("ref %d: %w", ref, dom.ErrStaleElement)
	}
	record()
	return nil
}

func (p *FakePage) Click(ctx context.Context, ref int64) error {
	err := p.act(ctx, ref, func() { p.clicks = append(p.clicks, ref) })
	if err == nil && p.OnClick != nil {
		p.OnClick(ref)
	}
	return err
}

func (p *FakePage) Focus(ctx context.Context, ref int64) error {
	return p.act(ctx, ref, func() { p.focused = append(p.focused, ref) })
}

func (p *FakePage) InsertText(ctx context.Context, ref int64, text string, strategy schemas.InsertStrategy) error {
	return p.act(ctx, ref, func() {
		p.insertions = append(p.insertions, Insertion{Ref: ref, Text: text, Strategy: strategy})
		if strategy == schemas.InsertKeystrokes {
			p.values[ref] += text
			return
		}
		p.values[ref] = text
	})
}

func (p *FakePage) PressKey(ctx context.Context, ref int64, key schemas.KeyEventData) error {
	return p.act(ctx, ref, func() { p.keys = append(p.keys, key) })
}

// Clicks returns the clicked references in order.
func (p *FakePage) Clicks() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.clicks...)
}

// Focused returns the focused references in order.
func (p *FakePage) Focused() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.focused...)
}

// Insertions returns every InsertText call in order.
func (p *FakePage) Insertions() []Insertion {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Insertion(nil), p.insertions...)
}

// Keys returns every key press in order.
func (p *FakePage) Keys() []schemas.KeyEventData {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]schemas.KeyEventData(nil), p.keys...)
}

// SnapshotCount returns how many snapshots were taken.
func (p *FakePage) SnapshotCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}
