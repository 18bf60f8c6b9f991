// File: internal/service/components.go
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/autosend"
	"github.com/xkilldash9x/chatpilot/internal/detector"
	"github.com/xkilldash9x/chatpilot/internal/guard"
	"github.com/xkilldash9x/chatpilot/internal/injector"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/sites"
	"github.com/xkilldash9x/chatpilot/internal/store"
)

// Components holds everything wired for one chat page.
type Components struct {
	Site       schemas.Site
	Repo       store.Repository
	Catalog    *selectors.Catalog
	Notifier   schemas.Notifier
	Detector   *detector.Registry
	Guard      *guard.Guard
	Engine     *autosend.Engine
	Dispatcher *sites.Dispatcher
	// Injector is nil when the page cannot run scripts.
	Injector *injector.Injector

	logger     *zap.Logger
	closeStore func()
	stopWatch  context.CancelFunc
}

// Shutdown stops background work and releases the store, in that order.
func (c *Components) Shutdown(ctx context.Context) {
	if c.Injector != nil {
		c.Injector.Teardown(ctx)
	}
	if c.Engine != nil {
		c.Engine.Cancel()
	}
	if c.stopWatch != nil {
		c.stopWatch()
	}
	if c.Detector != nil {
		c.Detector.Close()
	}
	if c.closeStore != nil {
		c.closeStore()
		c.logger.Debug("Selector store closed.")
	}
}
