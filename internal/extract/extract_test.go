package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PrefersMainContainer(t *testing.T) {
	t.Parallel()

	markup := `<html><head><title> Welcome </title></head><body>
<nav>Menu</nav>
<article>Article text</article>
<main>
  <h1>  Heading </h1>
  <p>First line<br>second line</p>

  <script>var x = 1;</script>
  <p>   </p>
</main>
</body></html>`

	res, err := Extract(markup, "https://example.com/", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "Heading\nFirst line\nsecond line", res.Text)
	assert.Equal(t, "Welcome", res.Title)
}

func TestExtract_SelectorPriority(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		markup string
		want   string
	}{
		{"article", `<body><div class="content">C</div><article>A</article></body>`, "A"},
		{"content id", `<body><div class="content">C</div><div id="content">I</div></body>`, "I"},
		{"main id", `<body><div class="main-content">M</div><div id="main">X</div></body>`, "X"},
		{"content class", `<body><div class="main-content">M</div><div class="content">C</div></body>`, "C"},
		{"main-content class", `<body><p>outside</p><div class="main-content">M</div></body>`, "M"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res, err := Extract(tc.markup, "https://example.com/", "example.com")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Text)
		})
	}
}

func TestExtract_FallbackStripsNoise(t *testing.T) {
	t.Parallel()

	markup := `<html><body>
<header>Site header</header>
<nav><a href="/nav-link">Nav</a></nav>
<div>Body copy</div>
<aside>Sidebar</aside>
<form><input value="x">Form label</form>
<style>.a{}</style>
<footer>Footer</footer>
</body></html>`

	res, err := Extract(markup, "https://example.com/page", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "Body copy", res.Text)
	// Links come from the whole page, stripped regions included.
	assert.Equal(t, []string{"https://example.com/nav-link"}, res.Links)
}

func TestExtract_EmptyBody(t *testing.T) {
	t.Parallel()

	res, err := Extract(`<html><body><script>app()</script></body></html>`, "https://example.com/", "example.com")
	require.NoError(t, err)
	assert.Empty(t, res.Text)
}

func TestExtract_Links(t *testing.T) {
	t.Parallel()

	markup := `<main>
<a href="/about">About</a>
<a href="docs/intro">Intro</a>
<a href="/about#team">Team</a>
<a href="https://EXAMPLE.com:443/pricing">Pricing</a>
<a href="https://other.com/x">Other</a>
<a href="//cdn.example.com/y">CDN</a>
<a href="mailto:hi@example.com">Mail</a>
<a href="tel:+15555555">Call</a>
<a href="javascript:void(0)">JS</a>
<a href="#top">Top</a>
<a href="ftp://example.com/file">FTP</a>
<a>No href</a>
</main>`

	res, err := Extract(markup, "https://example.com/guide/", "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/about",
		"https://example.com/guide/docs/intro",
		"https://EXAMPLE.com:443/pricing",
	}, res.Links)
}

func TestExtractor_ImplementsScheduler(t *testing.T) {
	t.Parallel()

	text, links, err := Extractor{}.Extract(`<main>Hi <a href="/x">x</a></main>`, "http://example.com/", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "Hi\nx", text)
	assert.Equal(t, []string{"http://example.com/x"}, links)
}

func TestExtract_BadURL(t *testing.T) {
	t.Parallel()

	_, err := Extract("<p>x</p>", "http://%zz", "example.com")
	require.Error(t, err)
}
