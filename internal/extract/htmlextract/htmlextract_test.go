package htmlextract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/extract/htmlextract"
)

const samplePage = `
<html>
<head><title>Example Page</title></head>
<body>
  <nav><a href="/nav-link">Nav</a></nav>
  <article>
    <p>Hello world.</p>
    <a href="/b">B</a>
    <a href="https://other.test/c">C</a>
    <a href="javascript:void(0)">JS</a>
    <a href="/b">B again</a>
  </article>
  <footer><a href="/footer-link">Footer</a></footer>
</body>
</html>`

func TestExtractTextTitleAndLinks(t *testing.T) {
	t.Parallel()

	e := htmlextract.New()

	result, err := e.Extract([]byte(samplePage), "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, "Example Page", result.Title)
	assert.Contains(t, result.Text, "Hello world.")
	// Nav text is left out of Text because extraction prefers <article>
	// content; links still come from every anchor in the document.
	assert.NotContains(t, result.Text, "Nav")

	assert.ElementsMatch(t, []string{
		"https://example.com/nav-link",
		"https://example.com/b",
		"https://other.test/c",
		"https://example.com/footer-link",
	}, result.Links)
}

func TestExtractFallsBackToBodyWhenNoArticle(t *testing.T) {
	t.Parallel()

	const html = `<html><body><script>evil()</script><p>Plain body</p></body></html>`

	e := htmlextract.New()
	result, err := e.Extract([]byte(html), "https://example.com/")
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Plain body")
	assert.NotContains(t, result.Text, "evil()")
}
