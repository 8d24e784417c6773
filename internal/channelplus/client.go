// Package channelplus scrapes NicoNico Channel Plus, a client-rendered site
// where every listing is read from a live browser session.
package channelplus

import (
	"context"
	"regexp"

	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"go.uber.org/zap"
)

const (
	mainSelector     = "#root > div > div:nth-of-type(2) > div:nth-of-type(1)"
	footerSelector   = "#root > div > div:nth-of-type(2) > div:nth-of-type(2)"
	sectionsSelector = mainSelector + " > div > div"

	cannotDisplay = "ページを表示することができませんでした"
	pageNotFound  = "お探しのページは見つかりませんでした"
	allShown      = "すべて表示しています"
)

var (
	namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

	notFound = scraper.AnyOf(
		scraper.TextPresent("h5", cannotDisplay),
		scraper.TextPresent("h5", pageNotFound),
	)
	listingEnd = scraper.TextPresent("span", allShown)
)

// Client scrapes one or more ChannelPlus channels, addressed by their URL
// name. It owns a single browser, started on first use.
type Client struct {
	// Base is the site root, without a trailing slash.
	Base string

	deps    *scraper.Deps
	logger  *zap.Logger
	browser *scraper.Lazy
}

func New(deps *scraper.Deps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Base:    "https://nicochannel.jp",
		deps:    deps,
		logger:  logger.Named("channelplus"),
		browser: scraper.NewLazy(deps.OpenBrowser),
	}
}

func (c *Client) Close() error {
	return c.browser.Close()
}

// ValidateName checks a channel's URL name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return &models.InvalidIdentifierError{Kind: "channelplus name", Value: name}
	}
	return nil
}

// channel is the poster shared by every item of a listing
type channel struct {
	id, name, url *string
}

// currentChannel reads the channel behind the page b shows. The name sits
// in the footer; the id is the path segment at depth from the end of the
// current location.
func (c *Client) currentChannel(ctx context.Context, b scraper.Browser, depth int) (channel, error) {
	loc, err := b.Location(ctx)
	if err != nil {
		return channel{}, err
	}

	var ch channel
	if id := scraper.PathSegment(loc, depth); id != "" {
		ch.id = &id
		ch.url = models.Ptr(c.Base + "/" + id)
	}

	root, err := b.Root(ctx)
	if err != nil {
		return channel{}, err
	}
	footer, err := dom.First(ctx, root, footerSelector)
	if err != nil || footer == nil {
		return ch, err
	}
	h6, err := dom.First(ctx, footer, "h6")
	if err != nil || h6 == nil {
		return ch, err
	}
	name, err := h6.Text(ctx)
	if err != nil {
		return ch, err
	}
	ch.name = optional(name)
	return ch, nil
}

func (ch channel) fields() models.ContentFields {
	return models.ContentFields{PosterID: ch.id, PosterName: ch.name, PosterURL: ch.url}
}

func optional(s string) *string {
	s = scraper.CleanWhitespace(s)
	if s == "" {
		return nil
	}
	return &s
}
