// File: internal/extract/extract_test.go
package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><head>
	<title>Solar Flares Explained</title>
	<meta name="description" content="A primer on solar flares.">
</head><body>
	<nav><a href="/home">Home</a><a href="/about">About</a></nav>
	<article>
		<h1>Solar Flares</h1>
		<p>Solar flares are intense bursts of radiation, observed since 1859,
		arising from the release of magnetic energy associated with sunspots.</p>
		<p>Flares are classified by their X-ray brightness, in classes A, B, C,
		M, and X, each class ten times stronger than the one before it.</p>
		<a href="/story/1">Read more</a>
	</article>
	<footer>Copyright 2026</footer>
	<script>trackPageView();</script>
</body></html>`

func TestExtractMainContent(t *testing.T) {
	c, err := Extract(articleHTML, true, "https://example.com/flares")
	require.NoError(t, err)

	assert.Equal(t, "Solar Flares Explained", c.Title)
	assert.Equal(t, "A primer on solar flares.", c.Description)
	assert.Contains(t, c.Text, "intense bursts of radiation")
	assert.Contains(t, c.Text, "X-ray brightness")
	assert.NotContains(t, c.Text, "Copyright 2026")
	assert.NotContains(t, c.Text, "trackPageView")
	assert.NotContains(t, c.HTML, "<script")
}

func TestExtractLinksResolvedAndDeduplicated(t *testing.T) {
	html := `<html><body>
		<a href="/a">A</a>
		<a href="/a">A again</a>
		<a href="https://other.com/b">B</a>
		<a href="#frag">Frag</a>
		<a href="javascript:void(0)">JS</a>
		<a href="mailto:x@y.z">Mail</a>
	</body></html>`
	c, err := Extract(html, false, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://other.com/b"}, c.Links)
}

func TestExtractTitleFallbacks(t *testing.T) {
	c, err := Extract(`<html><head><meta property="og:title" content="OG Title"></head>
		<body><p>text</p></body></html>`, false, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "OG Title", c.Title)

	c, err = Extract(`<html><body><h1>Heading Title</h1></body></html>`, false, "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", c.Title)
}

func TestExtractHeuristicFallback(t *testing.T) {
	// Short fragments keep the scoring pass below its acceptance threshold
	// so the candidate-selector walk takes over.
	html := `<html><body>
		<div class="content">` + strings.Repeat("<span>word </span>", 60) + `</div>
	</body></html>`
	c, err := Extract(html, true, "https://example.com/")
	require.NoError(t, err)
	assert.Contains(t, c.Text, "word")
	assert.Greater(t, len(c.Text), heuristicMinCandidate)
}

func TestExtractStripsPresentationAttrs(t *testing.T) {
	html := `<html><body><article>
		<p style="color:red" class="big" onclick="evil()">Styled paragraph with plenty of
		text, commas, and still more text to clear the scoring threshold easily.</p>
	</article></body></html>`
	c, err := Extract(html, true, "https://example.com/")
	require.NoError(t, err)
	assert.NotContains(t, c.HTML, "style=")
	assert.NotContains(t, c.HTML, "onclick=")
	assert.NotContains(t, c.HTML, "class=")
}

func TestRenderMarkdown(t *testing.T) {
	c, err := Extract(articleHTML, true, "https://example.com/")
	require.NoError(t, err)
	assert.Contains(t, c.Markdown, "# Solar Flares")
	assert.Contains(t, c.Markdown, "intense bursts of radiation")
}

func TestDetectSSRNext(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__" type="application/json">{"props":{"page":"home"}}</script>
	</body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.Equal(t, "next", got.Framework)
	assert.JSONEq(t, `{"props":{"page":"home"}}`, string(got.Data))
}

func TestDetectSSRAngular(t *testing.T) {
	html := `<html><body><script id="ng-state" type="application/json">{"k":1}</script></body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.Equal(t, "angular", got.Framework)
}

func TestDetectSSRNuxtAssignment(t *testing.T) {
	html := `<html><body><script>window.__NUXT__ = {"state":{"count":2}};</script></body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.Equal(t, "nuxt", got.Framework)
	assert.JSONEq(t, `{"state":{"count":2}}`, string(got.Data))
}

func TestDetectSSRRemix(t *testing.T) {
	html := `<html><body><script>window.__remixContext = {"routes":["root"]};</script></body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.Equal(t, "remix", got.Framework)
}

func TestDetectSSRGeneric(t *testing.T) {
	html := `<html><body><script>window.__REDUX_STATE__ = {"user":null};</script></body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.Equal(t, "generic", got.Framework)
}

func TestDetectSSRMalformedJSONYieldsNil(t *testing.T) {
	html := `<html><body>
		<script id="__NEXT_DATA__">{"broken": </script>
		<script>window.__NUXT__ = {also: broken,};</script>
	</body></html>`
	assert.Nil(t, DetectSSR(html))
}

func TestDetectSSRNoneMatches(t *testing.T) {
	assert.Nil(t, DetectSSR(`<html><body><p>plain page</p></body></html>`))
}

func TestDetectSSRBalancedBraceScanning(t *testing.T) {
	html := `<html><body><script>
		window.__NUXT__ = {"msg":"contains } brace and { brace","n":{"deep":true}}; other();
	</script></body></html>`
	got := DetectSSR(html)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"msg":"contains } brace and { brace","n":{"deep":true}}`, string(got.Data))
}

func TestHasEnoughContent(t *testing.T) {
	long := strings.Repeat("Plenty of meaningful article prose here. ", 80)

	t.Run("long content passes", func(t *testing.T) {
		assert.True(t, HasEnoughContent("<html><body><p>"+long+"</p></body></html>"))
	})

	t.Run("short page fails", func(t *testing.T) {
		assert.False(t, HasEnoughContent("<html><body><p>tiny</p></body></html>"))
	})

	t.Run("script text does not count", func(t *testing.T) {
		html := "<html><body><script>" + long + "</script><p>tiny</p></body></html>"
		assert.False(t, HasEnoughContent(html))
	})

	t.Run("short challenge page fails", func(t *testing.T) {
		filler := strings.Repeat("waiting room text ", 30)
		html := "<html><body><p>Just a moment... Checking your browser. " + filler + "</p></body></html>"
		assert.False(t, HasEnoughContent(html))
	})

	t.Run("long page with challenge phrase passes", func(t *testing.T) {
		html := "<html><body><p>captcha mentioned in an article. " + long + "</p></body></html>"
		assert.True(t, HasEnoughContent(html))
	})
}
