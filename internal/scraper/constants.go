// Package scraper provides constants used throughout the scraping functionality.
package scraper

import "time"

// Timeout constants
const (
	BrowserStartTimeout = 40 * time.Second
	NavigationTimeout   = 30 * time.Second
)

// Content extraction selectors
const (
	TextElements   = "p, h1, h2, h3, h4, h5, h6, li, blockquote"
	NonContentTags = "script, style, nav, header, footer"
	JSONLDSelector = `script[type="application/ld+json"]`
)

// Meta tag properties
const (
	OGTitle       = "og:title"
	OGDescription = "og:description"
	OGImageProp   = "og:image"
	OGURL         = "og:url"
	TwitterTitle  = "twitter:title"
	TwitterDesc   = "twitter:description"
	MetaDesc      = "description"
)

// Text processing constants
const (
	DoubleNewline = "\n\n"
	SingleNewline = "\n"
	TripleNewline = "\n\n\n"
	DoubleSpace   = "  "
	SingleSpace   = " "
)

// Browser configuration
const (
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
	MaxRedirects        = 5
)

// Markers of a CDP call against a node that has left the document
var staleNodeMessages = []string{
	"could not find node with given id",
	"no node with given id",
	"node with given id does not belong to the document",
	"node is detached from document",
}
