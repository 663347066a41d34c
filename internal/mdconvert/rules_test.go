package mdconvert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
)

func parseFragment(t *testing.T, fragment string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	require.NoError(t, err)
	return doc
}

func newTestRule(t *testing.T) (*StrictConversionRule, *metadata.Recorder) {
	t.Helper()
	recorder := metadata.NewRecorder("test")
	return NewRule(&recorder), &recorder
}

func TestConvert_Headings(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><h1>Top</h1><h2>Section</h2><h3>Sub</h3></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	md := result.Markdown()
	assert.Contains(t, md, "# Top")
	assert.Contains(t, md, "## Section")
	assert.Contains(t, md, "### Sub")
}

func TestConvert_ParagraphsAndInlineCode(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><p>Use <code>go build</code> to compile.</p></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	assert.Contains(t, result.Markdown(), "`go build`")
}

func TestConvert_FencedCodeBlockWithLanguage(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><pre><code class="language-go">fmt.Println("hi")</code></pre></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	md := result.Markdown()
	assert.Contains(t, md, "```go")
	assert.Contains(t, md, `fmt.Println("hi")`)
}

func TestConvert_Lists(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><ul><li>first</li><li>second</li></ul><ol><li>one</li><li>two</li></ol></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	md := result.Markdown()
	assert.Contains(t, md, "- first")
	assert.Contains(t, md, "- second")
	assert.Contains(t, md, "1. one")
}

func TestConvert_Table(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><table>
		<tr><th>Flag</th><th>Default</th></tr>
		<tr><td>--workers</td><td>10</td></tr>
	</table></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	md := result.Markdown()
	assert.Contains(t, md, "| Flag | Default |")
	assert.Contains(t, md, "| --workers | 10 |")
}

func TestConvert_LinksAndImages(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><p><a href="/guide">the guide</a></p><img src="/d.png" alt="diagram"></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	md := result.Markdown()
	assert.Contains(t, md, "[the guide](/guide)")
	assert.Contains(t, md, "![diagram](/d.png)")
}

func TestConvert_Blockquote(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main><blockquote><p>quoted wisdom</p></blockquote></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)

	assert.Contains(t, result.Markdown(), "> quoted wisdom")
}

func TestConvert_NilNodeFails(t *testing.T) {
	rule, recorder := newTestRule(t)

	_, err := rule.Convert(nil)
	require.NotNil(t, err)
	assert.NotEmpty(t, recorder.Errors())
}

func TestConvert_EmptyRegionYieldsEmptyMarkdown(t *testing.T) {
	rule, _ := newTestRule(t)

	node := parseFragment(t, `<main></main>`)
	result, err := rule.Convert(node)
	require.Nil(t, err)
	assert.True(t, result.IsEmpty())
}

func TestConvert_Deterministic(t *testing.T) {
	rule, _ := newTestRule(t)

	fragment := `<main><h1>T</h1><p>body</p><ul><li>a</li></ul></main>`
	first, err := rule.Convert(parseFragment(t, fragment))
	require.Nil(t, err)
	second, err := rule.Convert(parseFragment(t, fragment))
	require.Nil(t, err)

	assert.Equal(t, first.Markdown(), second.Markdown())
}
