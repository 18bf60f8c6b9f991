package heuristics

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

const deepSeekPage = `<html data-viewport="1280,900"><body data-rect="0,0,1280,900">
	<textarea id="sidebar-search" placeholder="Search chats" data-rect="10,20,200,30"></textarea>
	<div class="composer" data-rect="80,680,900,140">
		<textarea id="chat-input" placeholder="Message DeepSeek" data-rect="100,700,800,60"></textarea>
		<div id="think" role="button" class="ds-button" data-rect="100,770,140,34"><span>DeepThink (R1)</span></div>
		<div id="search" role="button" class="ds-button" data-rect="250,770,100,34"><span>Search</span></div>
		<div id="attach" role="button" aria-label="Attach file" class="ds-icon-button" data-rect="820,770,34,34"><svg></svg></div>
		<div id="send" role="button" class="ds-icon-button" data-disabled-prop data-rect="860,770,34,34"><svg></svg></div>
	</div>
	<div id="corner" role="button" data-rect="1200,10,34,34"><svg></svg></div>
</body></html>`

func TestDeepSeek_DetectEditor(t *testing.T) {
	doc := dom.MustParseHTML(deepSeekPage)
	got := DeepSeek{}.DetectEditor(context.Background(), doc, Hint{})
	require.NotNil(t, got)
	assert.Equal(t, "chat-input", got.ID())
}

func TestDeepSeek_DetectSendButton(t *testing.T) {
	ctx := context.Background()
	doc := dom.MustParseHTML(deepSeekPage)

	got := DeepSeek{}.DetectSendButton(ctx, doc, Hint{})
	require.NotNil(t, got)
	assert.Equal(t, "send", got.ID(), "icon button at the editor's lower right wins over toggles")

	editor := elementByID(t, doc, "chat-input")
	d := DeepSeek{}
	assert.True(t, math.IsInf(d.score(elementByID(t, doc, "think"), editor), -1))
	assert.True(t, math.IsInf(d.score(elementByID(t, doc, "search"), editor), -1))
	assert.True(t, math.IsInf(d.score(elementByID(t, doc, "attach"), editor), -1))
	assert.Less(t, d.score(elementByID(t, doc, "corner"), editor), deepSeekMinScore,
		"far away icons decay below the acceptance threshold")
}

func TestDeepSeek_OnlyTogglesMeansNotFound(t *testing.T) {
	doc := dom.MustParseHTML(`<body data-rect="0,0,1280,900">
		<textarea id="chat-input" data-rect="100,700,800,60"></textarea>
		<div role="button" data-rect="100,770,140,34">DeepThink (R1)</div>
		<div role="button" data-rect="250,770,100,34">Search</div>
	</body>`)
	assert.Nil(t, DeepSeek{}.DetectSendButton(context.Background(), doc, Hint{}))
}
