// cmd/page.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

// errReadOnly is returned by actions on an offline fixture page.
var errReadOnly = errors.New("page is a read-only fixture")

// resolveSite picks the site from the flag, or from the URL host.
func resolveSite(flag, url string) (schemas.Site, error) {
	if flag != "" {
		return schemas.ParseSite(flag)
	}
	if url == "" {
		return "", fmt.Errorf("--site is required when no --url is given")
	}
	return schemas.SiteForURL(url)
}

// openTab starts or attaches to Chrome and returns a tab showing url. With
// attach set an existing tab whose URL contains url is reused.
func (a *app) openTab(ctx context.Context, url string, attach bool) (*browser.Manager, *browser.Session, error) {
	mgr, err := browser.NewManager(ctx, a.cfg.Browser(), a.logger)
	if err != nil {
		return nil, nil, err
	}
	var sess *browser.Session
	if attach {
		sess, err = mgr.AttachSession(ctx, url)
	} else {
		sess, err = mgr.NewSession(ctx)
	}
	if err != nil {
		_ = mgr.Shutdown(context.Background())
		return nil, nil, err
	}

	current, _ := sess.URL(ctx)
	if !attach || current != url {
		if err := sess.Navigate(ctx, url); err != nil {
			_ = mgr.Shutdown(context.Background())
			return nil, nil, err
		}
	}
	a.logger.Info("Tab ready.", zap.String("url", url), zap.String("session", sess.ID()))
	return mgr, sess, nil
}

func shutdownBrowser(mgr *browser.Manager, logger *zap.Logger) {
	if err := mgr.Shutdown(context.Background()); err != nil {
		logger.Warn("Browser shutdown failed.", zap.Error(err))
	}
}

// staticPage serves one parsed fixture for offline probing.
type staticPage struct {
	doc *dom.Document
}

func (p staticPage) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func (staticPage) Click(context.Context, int64) error { return errReadOnly }
func (staticPage) Focus(context.Context, int64) error { return errReadOnly }
func (staticPage) InsertText(context.Context, int64, string, schemas.InsertStrategy) error {
	return errReadOnly
}
func (staticPage) PressKey(context.Context, int64, schemas.KeyEventData) error { return errReadOnly }

func renderTable(w io.Writer, rows pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(rows).Render()
}
