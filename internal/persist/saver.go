// internal/persist/saver.go
package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
)

// SaveRequest names what to remember. When SelectorOverride is empty the
// selector is derived from Element.
type SaveRequest struct {
	Site             schemas.Site
	Type             schemas.TargetType
	Element          *dom.Element
	SelectorOverride string
}

// SaveResult reports the outcome of a save. Reason is set when OK is false.
type SaveResult struct {
	OK       bool
	Selector string
	Reason   string
	Err      error
}

// Saver writes discovered selectors to the repository and the live catalog.
type Saver struct {
	repo    schemas.SelectorRepository
	catalog *selectors.Catalog
	logger  *zap.Logger
}

// NewSaver creates a saver. catalog may be nil when no live lookups need updating.
func NewSaver(repo schemas.SelectorRepository, catalog *selectors.Catalog, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{repo: repo, catalog: catalog, logger: logger.Named("persist")}
}

// SaveFromElement prepends the selector to the site's custom overlay and
// persists it. The catalog is updated only after the store accepted the
// write, so a failed save leaves every in-memory list untouched.
func (s *Saver) SaveFromElement(ctx context.Context, req SaveRequest) SaveResult {
	log := s.logger.With(zap.String("site", string(req.Site)), zap.String("target", string(req.Type)))

	selector := strings.TrimSpace(req.SelectorOverride)
	if selector == "" {
		var doc *dom.Document
		if req.Element != nil {
			doc = req.Element.Document()
		}
		derived, err := DeriveSelector(doc, req.Element)
		if err != nil {
			log.Info("Could not derive a selector.", zap.Error(err))
			return failed(err)
		}
		selector = derived
	}

	existing, err := s.repo.GetCustomSelectors(ctx, req.Site)
	if err != nil {
		log.Error("Failed to load custom selectors.", zap.Error(err))
		return failed(fmt.Errorf("%w: load: %w", ErrPersistFailed, err))
	}
	var overlay schemas.SelectorSet
	if existing != nil {
		overlay = existing.Clone()
	}
	overlay = overlay.WithSelectors(req.Type, selectors.Prepend(overlay.Selectors(req.Type), selector))

	if err := s.repo.SaveCustomSelectors(ctx, req.Site, overlay); err != nil {
		log.Error("Failed to save custom selectors.", zap.Error(err))
		return failed(fmt.Errorf("%w: %w", ErrPersistFailed, err))
	}
	if s.catalog != nil {
		s.catalog.SetCustom(req.Site, overlay)
	}
	log.Info("Custom selector saved.", zap.String("selector", selector))
	return SaveResult{OK: true, Selector: selector}
}

func failed(err error) SaveResult {
	reason := "persist_failed"
	if errors.Is(err, ErrDerivationFailed) {
		reason = "derivation_failed"
	}
	return SaveResult{Reason: reason, Err: err}
}
