package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
)

const xpathHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Welcome</h1>
		</div>
		<div class="content">
			<p>P1</p><p>P2</p>
			<ul>
				<li>Item 1</li>
				<li>Item 2</li>
				<li id="special">Item 3</li>
			</ul>
		</div>
		<div class="content"><p>P3</p></div>
	</body>
	</html>
	`

func TestXPathOf(t *testing.T) {
	doc := dom.MustParseHTML(xpathHTML)

	tests := []struct {
		name          string
		targetXPath   string
		expectedXPath string
	}{
		{"Body", "//body", "/html[1]/body[1]"},
		{"Element with ID", "//div[@id='header']", `//*[@id='header']`},
		{"Child of ID element", "//h1", `//*[@id='header']/h1[1]`},
		{"Specific index", "(//p)[2]", "/html[1]/body[1]/div[2]/p[2]"},
		{"Ambiguous classes", "(//div[@class='content'])[2]/p", "/html[1]/body[1]/div[3]/p[1]"},
		{"List item", "//ul/li[2]", "/html[1]/body[1]/div[2]/ul[1]/li[2]"},
		{"List item with ID", "//li[@id='special']", `//*[@id='special']`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := doc.Query(dom.XPathPrefix + tt.targetXPath)
			require.NoError(t, err)
			require.NotNil(t, target, "Test setup error: target not found with %s", tt.targetXPath)

			generated := dom.XPathOf(target)
			assert.Equal(t, tt.expectedXPath, generated)

			// The generated XPath must select exactly the original element.
			matches, err := doc.QueryAll(dom.XPathPrefix + generated)
			require.NoError(t, err)
			require.Len(t, matches, 1)
			assert.True(t, matches[0].Is(target))
		})
	}

	assert.Equal(t, "", dom.XPathOf(nil))
}
