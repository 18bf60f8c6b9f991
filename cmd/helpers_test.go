package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/notify"
	"github.com/xkilldash9x/chatpilot/internal/service"
)

func newProbeComponents(t *testing.T, doc *dom.Document) *service.Components {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.StoreCfg.Path = filepath.Join(t.TempDir(), "selectors.json")
	comps, err := service.NewComponents(context.Background(), cfg, staticPage{doc: doc}, schemas.SiteClaude, nil,
		service.WithNotifier(notify.Nop{}))
	require.NoError(t, err)
	t.Cleanup(func() { comps.Shutdown(context.Background()) })
	return comps
}
