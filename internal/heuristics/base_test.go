package heuristics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

func elementByID(t *testing.T, doc *dom.Document, id string) *dom.Element {
	t.Helper()
	for _, el := range doc.All() {
		if el.ID() == id {
			return el
		}
	}
	require.FailNow(t, "fixture element not found", id)
	return nil
}

func TestWalkDeep_ShadowRootsAndEarlyStop(t *testing.T) {
	doc := dom.MustParseHTML(`<body>
		<div id="a"><template shadowrootmode="open">
			<div id="b"><template shadowrootmode="open"><span id="c"></span></template></div>
		</template><p id="d"></p></div>
	</body>`)

	var ids []string
	WalkDeep(doc.Body(), func(el *dom.Element) bool {
		if id := el.ID(); id != "" {
			ids = append(ids, id)
		}
		return true
	})
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids, "nested shadow roots are walked to any depth")

	var visited int
	WalkDeep(doc.Body(), func(el *dom.Element) bool {
		visited++
		return el.ID() != "b"
	})
	assert.Equal(t, 3, visited, "body, a, b then stop")

	WalkDeep(nil, func(*dom.Element) bool { t.Fatal("must not visit"); return true })
}

func TestBaseDetectEditor(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers the lowest visible candidate", func(t *testing.T) {
		doc := dom.MustParseHTML(`<body>
			<textarea id="search" data-rect="10,10,300,30"></textarea>
			<textarea id="hidden" style="display:none" data-rect="10,900,300,30"></textarea>
			<div id="composer" contenteditable="true" data-rect="10,700,600,60"></div>
			<div id="tiny" contenteditable="true" data-rect="10,790,5,5"></div>
			<div id="ro" contenteditable="false" data-rect="10,780,600,60"></div>
		</body>`)
		got := Base{}.DetectEditor(ctx, doc, Hint{})
		require.NotNil(t, got)
		assert.Equal(t, "composer", got.ID())
	})

	t.Run("finds editors inside shadow roots", func(t *testing.T) {
		doc := dom.MustParseHTML(`<body>
			<chat-app id="app" data-rect="0,0,800,800"><template shadowrootmode="open">
				<textarea id="deep" data-rect="0,700,600,60"></textarea>
			</template></chat-app>
		</body>`)
		got := Base{}.DetectEditor(ctx, doc, Hint{})
		require.NotNil(t, got)
		assert.Equal(t, "deep", got.ID())
	})

	t.Run("skips our own injected subtree", func(t *testing.T) {
		doc := dom.MustParseHTML(`<body>
			<div id="chatpilot-buttons" data-rect="0,0,800,100"><textarea id="ours" data-rect="0,750,600,60"></textarea></div>
			<textarea id="theirs" data-rect="0,600,600,60"></textarea>
		</body>`)
		got := Base{}.DetectEditor(ctx, doc, Hint{OwnContainerID: "chatpilot-buttons"})
		require.NotNil(t, got)
		assert.Equal(t, "theirs", got.ID())
	})

	t.Run("returns nil without candidates", func(t *testing.T) {
		assert.Nil(t, Base{}.DetectEditor(ctx, dom.MustParseHTML(`<body><input></body>`), Hint{}))
	})
}

const sendButtonPage = `<body data-rect="0,0,1280,800">
	<textarea id="editor" data-rect="100,700,800,60"></textarea>
	<button id="attach" aria-label="Attach files" data-rect="60,710,30,30"><svg></svg></button>
	<button id="stop" aria-label="Stop generating" data-rect="910,710,30,30"><svg></svg></button>
	<button id="send" data-testid="composer-send" data-rect="950,710,30,30" disabled><svg></svg></button>
	<button id="nav" data-rect="10,10,80,30">Home</button>
	<div id="role" role="button" data-rect="990,710,30,30">Send</div>
</body>`

func TestBaseDetectSendButton(t *testing.T) {
	ctx := context.Background()
	doc := dom.MustParseHTML(sendButtonPage)

	t.Run("scores keywords, icons and editor proximity", func(t *testing.T) {
		editor := elementByID(t, doc, "editor")
		got := Base{}.DetectSendButton(ctx, doc, Hint{Editor: editor})
		require.NotNil(t, got)
		// send: keyword 10 + svg 5 + band 3 + right 2 + disabled 1 = 21
		// role: exact text 5 + band 3 + right 2 = 10
		assert.Equal(t, "send", got.ID())
	})

	t.Run("derives the editor itself when no hint is given", func(t *testing.T) {
		got := Base{}.DetectSendButton(ctx, doc, Hint{})
		require.NotNil(t, got)
		assert.Equal(t, "send", got.ID())
	})

	t.Run("negative keywords dominate", func(t *testing.T) {
		editor := elementByID(t, doc, "editor")
		assert.Less(t, scoreSendButton(elementByID(t, doc, "stop"), editor), 0)
		assert.Less(t, scoreSendButton(elementByID(t, doc, "attach"), editor), 0)
	})

	t.Run("negative keywords match whole words only", func(t *testing.T) {
		doc := dom.MustParseHTML(`<body data-rect="0,0,1280,800">
			<textarea id="editor" data-rect="100,700,800,60"></textarea>
			<button id="copilot" aria-label="Send message to Microsoft Copilot" data-rect="950,710,30,30"><svg></svg></button>
			<button id="mic" aria-label="Use microphone" data-rect="910,710,30,30"><svg></svg></button>
		</body>`)
		editor := elementByID(t, doc, "editor")
		assert.Greater(t, scoreSendButton(elementByID(t, doc, "copilot"), editor), 0)
		assert.Less(t, scoreSendButton(elementByID(t, doc, "mic"), editor), 0)

		got := Base{}.DetectSendButton(ctx, doc, Hint{Editor: editor})
		require.NotNil(t, got)
		assert.Equal(t, "copilot", got.ID())
	})

	t.Run("returns nil when nothing scores above zero", func(t *testing.T) {
		doc := dom.MustParseHTML(`<body>
			<button aria-label="Cancel" data-rect="0,0,30,30"><svg></svg></button>
			<button data-rect="0,50,80,30">Home</button>
		</body>`)
		assert.Nil(t, Base{}.DetectSendButton(ctx, doc, Hint{}))
	})

	t.Run("editor hints from older snapshots are resolved by reference", func(t *testing.T) {
		older := dom.MustParseHTML(sendButtonPage)
		editor := elementByID(t, older, "editor")
		got := Base{}.DetectSendButton(ctx, doc, Hint{Editor: editor})
		require.NotNil(t, got)
		assert.Same(t, elementByID(t, doc, "send"), got)
	})
}

func TestProximityScore(t *testing.T) {
	editor := dom.Rect{X: 100, Y: 700, Width: 800, Height: 60}
	assert.Equal(t, scoreInEditorBand+scoreRightOfEdit+scoreBelowRight, proximityScore(dom.Rect{X: 950, Y: 730, Width: 20, Height: 20}, editor))
	assert.Equal(t, scoreInEditorBand, proximityScore(dom.Rect{X: 50, Y: 710, Width: 20, Height: 20}, editor))
	assert.Equal(t, scoreRightOfEdit, proximityScore(dom.Rect{X: 950, Y: 100, Width: 20, Height: 20}, editor))
	assert.Equal(t, 0, proximityScore(dom.Rect{X: 0, Y: 0, Width: 20, Height: 20}, editor))
}

func TestHasKeyword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Use microphone", true},
		{"mic-button", true},
		{"Send to Microsoft Copilot", false},
		{"dynamic layout", false},
		{"Upload files", true},
		{"upload_attachments", true},
		{"Stopwatch", false},
		{"停止生成", true},
	}
	keywords := []string{"mic", "microphone", "upload", "attachment", "stop", "停止"}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HasKeyword(tt.in, keywords), tt.in)
	}
	assert.Equal(t, []string{"send", "button", "2"}, Words("Send-Button_2"))
}
