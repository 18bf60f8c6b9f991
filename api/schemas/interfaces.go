package schemas

import (
	"context"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

// -- Page Interface --

// Page is the contract between the resolution core and a live (or simulated)
// browser tab. The core reads state exclusively through snapshots and acts on
// elements through their stable references.
type Page interface {
	// Snapshot captures the current DOM, including open shadow roots.
	Snapshot(ctx context.Context) (*dom.Document, error)
	// Click dispatches a click on the referenced element.
	Click(ctx context.Context, ref int64) error
	// Focus moves keyboard focus to the referenced element.
	Focus(ctx context.Context, ref int64) error
	// InsertText writes text into the referenced editor with the given strategy.
	InsertText(ctx context.Context, ref int64, text string, strategy InsertStrategy) error
	// PressKey sends a single structured key press to the referenced element.
	PressKey(ctx context.Context, ref int64, key KeyEventData) error
}

// -- Notification Interface --

// Notifier is the fire-and-forget user feedback surface.
type Notifier interface {
	Toast(ctx context.Context, message string, kind ToastKind, opts *ToastOptions)
}

// -- Configuration Store Interface --

// SelectorRepository persists per-site custom selector overlays.
//
//go:generate mockery --name SelectorRepository --output ../../internal/mocks --outpkg mocks
type SelectorRepository interface {
	// GetCustomSelectors returns the stored overlay, or nil when none exists.
	GetCustomSelectors(ctx context.Context, site Site) (*SelectorSet, error)
	// SaveCustomSelectors replaces the stored overlay for a site.
	SaveCustomSelectors(ctx context.Context, site Site, set SelectorSet) error
	// DeleteCustomSelectors removes any stored overlay for a site.
	DeleteCustomSelectors(ctx context.Context, site Site) error
	// ListSites returns the sites that currently have overlays.
	ListSites(ctx context.Context) ([]Site, error)
}
