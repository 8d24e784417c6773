package scraper

import (
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// PageReader pulls article-level fields out of a parsed page: titles, meta
// descriptions and body text. Everything it returns is plain text.
type PageReader struct {
	sanitizer *bluemonday.Policy
}

func NewPageReader() *PageReader {
	return &PageReader{
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Title returns the page title with fallback strategies
func (p *PageReader) Title(doc *goquery.Selection) string {
	title := FindMetaTag(doc, OGTitle, "")
	if title == "" {
		title = FindMetaTag(doc, "", TwitterTitle)
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return p.Sanitize(title)
}

// Description returns the page description with fallback strategies
func (p *PageReader) Description(doc *goquery.Selection) string {
	description := FindMetaTag(doc, OGDescription, "")
	if description == "" {
		description = FindMetaTag(doc, "", TwitterDesc)
	}
	if description == "" {
		description = FindMetaTag(doc, "", MetaDesc)
	}
	return p.Sanitize(description)
}

// Body returns the text of container with paragraph structure kept. When the
// container is empty or missing, the whole page goes through readability.
func (p *PageReader) Body(doc *goquery.Selection, container, pageURL string) string {
	if container != "" {
		if sel := doc.Find(container).First(); sel.Length() > 0 {
			text := ExtractTextFromElements(sel, TextElements)
			if text == "" {
				text = ExtractFallbackText(sel.Clone())
			}
			if text != "" {
				return p.Sanitize(text)
			}
		}
	}
	return p.Sanitize(p.readable(doc, pageURL))
}

func (p *PageReader) readable(doc *goquery.Selection, pageURL string) string {
	html, err := goquery.OuterHtml(doc)
	if err != nil || html == "" {
		html, err = doc.Html()
		if err != nil {
			return ""
		}
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(html), u)
	if err != nil {
		return ""
	}
	return article.TextContent
}

// Sanitize strips any markup from text and collapses whitespace.
func (p *PageReader) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	// bluemonday escapes entities in the text it keeps.
	return CleanWhitespace(html.UnescapeString(p.sanitizer.Sanitize(text)))
}
