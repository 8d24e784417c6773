package scraper

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"video-scraper/internal/config"
	"video-scraper/internal/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc.Selection
}

func TestTitleFallbacks(t *testing.T) {
	r := NewPageReader()

	assert.Equal(t, "OG", r.Title(parse(t, `<html><head><meta property="og:title" content=" OG "><title>T</title></head></html>`)))
	assert.Equal(t, "TW", r.Title(parse(t, `<html><head><meta name="twitter:title" content="TW"></head></html>`)))
	assert.Equal(t, "H1", r.Title(parse(t, `<html><body><h1>H1</h1></body></html>`)))
	assert.Equal(t, "T", r.Title(parse(t, `<html><head><title>T</title></head></html>`)))
}

func TestDescriptionIsPlainText(t *testing.T) {
	r := NewPageReader()
	doc := parse(t, `<html><head><meta name="description" content="<b>bold</b>  text"></head></html>`)
	assert.Equal(t, "bold text", r.Description(doc))
}

func TestBodyKeepsParagraphs(t *testing.T) {
	r := NewPageReader()
	doc := parse(t, `<html><body><div class="main_blog_txt"><h2>告知</h2><p>一行目</p><p>二行目</p></div></body></html>`)

	assert.Equal(t, "告知\n\n一行目\n二行目", r.Body(doc, ".main_blog_txt", "https://ch.nicovideo.jp/x/blomaga/ar1"))
}

func TestBodyFallsBackToReadability(t *testing.T) {
	r := NewPageReader()
	paragraph := strings.Repeat("本文のテキストがここに続きます。", 20)
	doc := parse(t, fmt.Sprintf(`<html><head><title>x</title></head><body>
		<nav>menu</nav>
		<article><p>%s</p><p>%s</p></article>
	</body></html>`, paragraph, paragraph))

	body := r.Body(doc, ".missing", "https://example.com/a")
	assert.Contains(t, body, "本文のテキスト")
}

func TestJSONLD(t *testing.T) {
	type entry struct {
		Headline string `json:"headline"`
	}

	var obj entry
	require.NoError(t, JSONLD(parse(t, `<script type="application/ld+json">{"headline":"single"}</script>`), &obj))
	assert.Equal(t, "single", obj.Headline)

	var first entry
	require.NoError(t, JSONLD(parse(t, `<script type="application/ld+json">[{"headline":"a"},{"headline":"b"}]</script>`), &first))
	assert.Equal(t, "a", first.Headline)

	assert.ErrorIs(t, JSONLD(parse(t, `<p>none</p>`), &obj), ErrNoJSONLD)
	assert.ErrorIs(t, JSONLD(parse(t, `<script type="application/ld+json">[]</script>`), &obj), ErrNoJSONLD)
	assert.Error(t, JSONLD(parse(t, `<script type="application/ld+json">{broken</script>`), &obj))
}

func TestParseCount(t *testing.T) {
	tests := map[string]int64{
		"1,234":      1234,
		"再生 12,345回": 12345,
		"0":          0,
	}
	for in, want := range tests {
		got, err := ParseCount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCount("--")
	assert.Error(t, err)
}

func TestPathSegments(t *testing.T) {
	assert.Equal(t, "RJ01077937", LastPathSegment("https://www.dlsite.com/maniax/work/=/product_id/RJ01077937.html"))
	assert.Equal(t, "lv345", LastPathSegment("https://live.nicovideo.jp/watch/lv345?ref=top"))
	assert.Equal(t, "ch2581", PathSegment("https://ch.nicovideo.jp/ch2581/join", 2))
	assert.Equal(t, "", PathSegment("https://example.com/a", 3))
}

func TestImageHelpers(t *testing.T) {
	assert.Equal(t, "https://img.example.com/thumb/1.jpg",
		StyleURL(`background-image: url("https://img.example.com/thumb/1.jpg");`))
	assert.Equal(t, "", StyleURL("color: red"))

	doc := parse(t, `<html><head><meta property="og:image" content="/og.png"></head><body>
		<img class="lazy" data-src="//img.dlsite.jp/a.jpg">
		<img srcset="s.jpg 320w, l.jpg 1280w">
	</body></html>`)

	assert.Equal(t, "https://www.dlsite.com/og.png", OGImage(doc, "https://www.dlsite.com/maniax/"))
	imgs := doc.Find("img")
	assert.Equal(t, "https://img.dlsite.jp/a.jpg", ImageSource(imgs.Eq(0), "https://www.dlsite.com/"))
	assert.Equal(t, "https://www.dlsite.com/l.jpg", ImageSource(imgs.Eq(1), "https://www.dlsite.com/"))
}

func TestStaleErrorsAreMapped(t *testing.T) {
	err := staleOr(errors.New("Could not find node with given id (-32000)"))
	assert.ErrorIs(t, err, dom.ErrStale)

	other := errors.New("net::ERR_NAME_NOT_RESOLVED")
	assert.Equal(t, other, staleOr(other))
}

func TestBrowserOptionsFromConfig(t *testing.T) {
	no := false
	opts := BrowserOptionsFromConfig(config.BrowserConfig{Headless: &no})
	assert.False(t, opts.Headless)
	assert.Equal(t, DefaultWindowWidth, opts.WindowWidth)
	assert.NotEmpty(t, BuildChromeOptions(opts))
}
