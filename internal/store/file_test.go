package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "selectors.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return fs
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	got, err := fs.GetCustomSelectors(ctx, schemas.SiteClaude)
	require.NoError(t, err)
	assert.Nil(t, got, "missing file reads as no overlay")

	set := schemas.SelectorSet{
		Editors:            []string{`div[data-testid="composer"]`},
		SendButtons:        []string{"button.send"},
		ButtonsContainerID: "custom-id",
	}
	require.NoError(t, fs.SaveCustomSelectors(ctx, schemas.SiteClaude, set))
	require.NoError(t, fs.SaveCustomSelectors(ctx, schemas.SiteChatGPT, schemas.SelectorSet{Editors: []string{"#x"}}))

	got, err = fs.GetCustomSelectors(ctx, schemas.SiteClaude)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, set.Editors, got.Editors)
	assert.Equal(t, set.SendButtons, got.SendButtons)
	assert.Equal(t, "custom-id", got.ButtonsContainerID)

	sites, err := fs.ListSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []schemas.Site{schemas.SiteChatGPT, schemas.SiteClaude}, sites)

	// A second store over the same file sees the persisted data.
	other, err := NewFileStore(fs.Path(), nil)
	require.NoError(t, err)
	again, err := other.GetCustomSelectors(ctx, schemas.SiteChatGPT)
	require.NoError(t, err)
	assert.Equal(t, []string{"#x"}, again.Editors)
}

func TestFileStore_Delete(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	assert.ErrorIs(t, fs.DeleteCustomSelectors(ctx, schemas.SiteGrok), ErrNotFound)

	require.NoError(t, fs.SaveCustomSelectors(ctx, schemas.SiteGrok, schemas.SelectorSet{Editors: []string{"textarea"}}))
	require.NoError(t, fs.DeleteCustomSelectors(ctx, schemas.SiteGrok))

	got, err := fs.GetCustomSelectors(ctx, schemas.SiteGrok)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStore_AtomicWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, fs.SaveCustomSelectors(ctx, schemas.SiteGemini, schemas.SelectorSet{Editors: []string{"div.ql-editor"}}))
	}
	entries, err := os.ReadDir(filepath.Dir(fs.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "selectors.json", entries[0].Name())
}

func TestFileStore_CorruptFile(t *testing.T) {
	ctx := context.Background()
	fs := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(fs.Path()), 0o755))
	require.NoError(t, os.WriteFile(fs.Path(), []byte("{not json"), 0o644))

	_, err := fs.GetCustomSelectors(ctx, schemas.SiteClaude)
	assert.Error(t, err)

	err = fs.SaveCustomSelectors(ctx, schemas.SiteClaude, schemas.SelectorSet{})
	assert.Error(t, err, "a corrupt store must not be silently overwritten")
}

func TestFileStore_CancelledContext(t *testing.T) {
	fs := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fs.SaveCustomSelectors(ctx, schemas.SiteClaude, schemas.SelectorSet{}), context.Canceled)
}

func TestNewFileStore_ExpandsHome(t *testing.T) {
	fs, err := NewFileStore("", nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(fs.Path()))
	assert.Equal(t, "selectors.json", filepath.Base(fs.Path()))
}
