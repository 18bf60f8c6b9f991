// internal/selectors/catalog.go
package selectors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// Catalog is the live, goroutine-safe view of every site's selectors: the
// built-in defaults with the custom overlay merged on top. Lookups always see
// the latest overlay, so a selector saved mid-session is used by the next lookup.
type Catalog struct {
	mu       sync.RWMutex
	defaults map[schemas.Site]schemas.SelectorSet
	custom   map[schemas.Site]schemas.SelectorSet
	logger   *zap.Logger
}

// NewCatalog creates a catalog seeded with the built-in defaults.
func NewCatalog(logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Catalog{
		defaults: make(map[schemas.Site]schemas.SelectorSet, len(builtin)),
		custom:   make(map[schemas.Site]schemas.SelectorSet),
		logger:   logger.Named("catalog"),
	}
	for site := range builtin {
		c.defaults[site] = Defaults(site)
	}
	return c
}

// SetDefaults replaces the default floor of a site.
func (c *Catalog) SetDefaults(site schemas.Site, set schemas.SelectorSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaults[site] = set.Clone()
}

// Defaults returns the default floor of a site.
func (c *Catalog) Defaults(site schemas.Site) schemas.SelectorSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if set, ok := c.defaults[site]; ok {
		return set.Clone()
	}
	return Defaults(site)
}

// Custom returns the custom overlay of a site (empty when none is loaded).
func (c *Catalog) Custom(site schemas.Site) schemas.SelectorSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.custom[site].Clone()
}

// SetCustom replaces the custom overlay of a site.
func (c *Catalog) SetCustom(site schemas.Site, set schemas.SelectorSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[site] = set.Clone()
}

// ClearCustom drops the custom overlay of a site.
func (c *Catalog) ClearCustom(site schemas.Site) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.custom, site)
}

// Set returns the merged selector set of a site.
func (c *Catalog) Set(site schemas.Site) schemas.SelectorSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defaults[site]
	if !ok {
		def = Defaults(site)
	}
	return Merge(c.custom[site], def)
}

// Selectors returns the merged list for one target type, in lookup order.
func (c *Catalog) Selectors(site schemas.Site, t schemas.TargetType) []string {
	return c.Set(site).Selectors(t)
}

// OverlaySource is the read side of the selector repository. A site without
// an overlay yields (nil, nil).
type OverlaySource interface {
	GetCustomSelectors(ctx context.Context, site schemas.Site) (*schemas.SelectorSet, error)
}

// Load hydrates the custom overlays of the given sites (all sites when none
// are named). A failing site is logged and skipped; the joined errors are returned.
func (c *Catalog) Load(ctx context.Context, src OverlaySource, sites ...schemas.Site) error {
	if len(sites) == 0 {
		sites = schemas.AllSites
	}
	var errs []error
	for _, site := range sites {
		overlay, err := src.GetCustomSelectors(ctx, site)
		if err != nil {
			c.logger.Warn("Failed to load custom selectors.", zap.String("site", string(site)), zap.Error(err))
			errs = append(errs, fmt.Errorf("site %s: %w", site, err))
			continue
		}
		if overlay == nil {
			continue
		}
		c.SetCustom(site, *overlay)
		c.logger.Debug("Custom selectors loaded.", zap.String("site", string(site)))
	}
	return errors.Join(errs...)
}
