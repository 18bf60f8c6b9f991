package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

const collectorOutput = `{
  "url": "https://chat.deepseek.com/",
  "title": "DeepSeek",
  "viewport": {"x": 0, "y": 0, "width": 1400, "height": 900},
  "root": {"ref": 1, "tag": "HTML", "rect": {"x":0,"y":0,"width":1400,"height":900}, "children": [
    {"ref": 2, "tag": "BODY", "rect": {"x":0,"y":0,"width":1400,"height":900}, "children": [
      {"ref": 3, "tag": "TEXTAREA", "attrs": [["id","chat-input"],["placeholder","Message DeepSeek"]],
       "rect": {"x":100,"y":780,"width":900,"height":60}, "value": "hello",
       "style": {"display":"block","visibility":"visible","opacity":1}},
      {"ref": 4, "tag": "DIV", "attrs": [["role","button"],["class","ds-icon-button"]], "disabled": true, "click": true,
       "rect": {"x":1010,"y":790,"width":34,"height":34}, "children": [{"text": "Send"}]},
      {"ref": 5, "tag": "CHAT-WIDGET", "rect": {"x":0,"y":0,"width":10,"height":10},
       "shadow": [{"ref": 6, "tag": "BUTTON", "attrs": [["aria-label","Stop"]], "rect": {"x":1,"y":1,"width":8,"height":8}}]}
    ]}
  ]}
}`

func TestDecodeAndBuildSnapshot(t *testing.T) {
	snap, err := dom.DecodeSnapshot([]byte(collectorOutput))
	require.NoError(t, err)

	doc, err := dom.FromSnapshot(snap)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.deepseek.com/", doc.URL)
	assert.Equal(t, 1400.0, doc.Viewport.Width)

	editor, err := doc.Query("textarea#chat-input")
	require.NoError(t, err)
	require.NotNil(t, editor)
	assert.Equal(t, int64(3), editor.Ref)
	assert.Equal(t, "hello", editor.Value())
	assert.Equal(t, 900.0, editor.Rect.Width)

	btn := doc.ByRef(4)
	require.NotNil(t, btn)
	assert.True(t, btn.Disabled(), "disabled property is carried even without the attribute")
	assert.True(t, btn.HasClickHandler())
	assert.Equal(t, "Send", btn.Text())
	assert.Equal(t, 1.0, btn.Style.Opacity, "missing style falls back to a visible default")

	stop := doc.ByRef(6)
	require.NotNil(t, stop)
	require.NotNil(t, stop.Scope())
	assert.Equal(t, int64(5), stop.Scope().Host().Ref)

	light, _ := doc.QueryAll("button")
	assert.Empty(t, light)
	deep, _ := doc.QueryAllDeep("button[aria-label=Stop]")
	assert.Len(t, deep, 1)
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	_, err := dom.DecodeSnapshot([]byte(`{"url":"x"}`))
	assert.Error(t, err)

	_, err = dom.DecodeSnapshot([]byte(`not json`))
	assert.Error(t, err)

	_, err = dom.FromSnapshot(nil)
	assert.Error(t, err)
}
