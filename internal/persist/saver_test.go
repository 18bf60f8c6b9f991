package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/mocks"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/store"
)

const sendPage = `<body><form><textarea></textarea><button data-testid="fresh-send">Send</button></form></body>`

func TestSaver_PrependsAndUpdatesCatalog(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockSelectorRepository)
	catalog := selectors.NewCatalog(nil)
	catalog.SetCustom(schemas.SiteClaude, schemas.SelectorSet{SendButtons: []string{"button.old"}})

	existing := &schemas.SelectorSet{SendButtons: []string{"button.old"}, ThreadRoot: "main"}
	repo.On("GetCustomSelectors", ctx, schemas.SiteClaude).Return(existing, nil)
	repo.On("SaveCustomSelectors", ctx, schemas.SiteClaude, schemas.SelectorSet{
		SendButtons: []string{`button[data-testid="fresh-send"]`, "button.old"},
		ThreadRoot:  "main",
	}).Return(nil)

	doc := dom.MustParseHTML(sendPage)
	btn := mustQuery(t, doc, "button")

	res := NewSaver(repo, catalog, nil).SaveFromElement(ctx, SaveRequest{
		Site: schemas.SiteClaude, Type: schemas.TargetSendButton, Element: btn,
	})
	require.True(t, res.OK, res.Reason)
	assert.Equal(t, `button[data-testid="fresh-send"]`, res.Selector)
	assert.Empty(t, res.Reason)

	merged := catalog.Selectors(schemas.SiteClaude, schemas.TargetSendButton)
	require.GreaterOrEqual(t, len(merged), 2)
	assert.Equal(t, []string{`button[data-testid="fresh-send"]`, "button.old"}, merged[:2])
	repo.AssertExpectations(t)
}

func TestSaver_SaveTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "selectors.json"), nil)
	require.NoError(t, err)
	catalog := selectors.NewCatalog(nil)
	saver := NewSaver(fs, catalog, nil)

	req := SaveRequest{Site: schemas.SiteGrok, Type: schemas.TargetEditor, SelectorOverride: "textarea.composer"}
	require.True(t, saver.SaveFromElement(ctx, req).OK)
	require.True(t, saver.SaveFromElement(ctx, req).OK)

	stored, err := fs.GetCustomSelectors(ctx, schemas.SiteGrok)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, []string{"textarea.composer"}, stored.Editors)

	count := 0
	for _, s := range catalog.Selectors(schemas.SiteGrok, schemas.TargetEditor) {
		if s == "textarea.composer" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSaver_PersistFailureLeavesCatalogUntouched(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockSelectorRepository)
	catalog := selectors.NewCatalog(nil)
	before := catalog.Selectors(schemas.SiteGemini, schemas.TargetEditor)

	repo.On("GetCustomSelectors", ctx, schemas.SiteGemini).Return(nil, nil)
	repo.On("SaveCustomSelectors", ctx, schemas.SiteGemini, mock.Anything).Return(errors.New("disk full"))

	res := NewSaver(repo, catalog, nil).SaveFromElement(ctx, SaveRequest{
		Site: schemas.SiteGemini, Type: schemas.TargetEditor, SelectorOverride: "rich-textarea",
	})
	assert.False(t, res.OK)
	assert.Equal(t, "persist_failed", res.Reason)
	assert.ErrorIs(t, res.Err, ErrPersistFailed)
	assert.Equal(t, before, catalog.Selectors(schemas.SiteGemini, schemas.TargetEditor))
}

func TestSaver_LoadFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(mocks.MockSelectorRepository)
	repo.On("GetCustomSelectors", ctx, schemas.SiteCopilot).Return(nil, errors.New("connection refused"))

	res := NewSaver(repo, nil, nil).SaveFromElement(ctx, SaveRequest{
		Site: schemas.SiteCopilot, Type: schemas.TargetEditor, SelectorOverride: "#userInput",
	})
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, ErrPersistFailed)
	repo.AssertNotCalled(t, "SaveCustomSelectors", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaver_DerivationFailureSkipsStore(t *testing.T) {
	repo := new(mocks.MockSelectorRepository)
	doc := dom.MustParseHTML(`<body><x-app><template shadowrootmode="open"><textarea></textarea></template></x-app></body>`)
	deep, _ := doc.QueryAllDeep("textarea")
	require.Len(t, deep, 1)

	res := NewSaver(repo, nil, nil).SaveFromElement(context.Background(), SaveRequest{
		Site: schemas.SiteChatGPT, Type: schemas.TargetEditor, Element: deep[0],
	})
	assert.False(t, res.OK)
	assert.Equal(t, "derivation_failed", res.Reason)
	assert.ErrorIs(t, res.Err, ErrDerivationFailed)
	repo.AssertNotCalled(t, "GetCustomSelectors", mock.Anything, mock.Anything)
}
