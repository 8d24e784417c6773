// Package niconico scrapes NicoNico Channel: live and video listings, the
// blog feed, and live, video and blog detail pages.
package niconico

import (
	"regexp"

	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"go.uber.org/zap"
)

var (
	channelIDPattern = regexp.MustCompile(`^ch\d+$`)
	liveIDPattern    = regexp.MustCompile(`^lv\d+$`)
	videoIDPattern   = regexp.MustCompile(`^(sm|so|nm)\d+$`)
	newsIDPattern    = regexp.MustCompile(`^ar\d+$`)
	handlePattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Endpoints are the hosts the client talks to. Tests point them at local
// fixtures.
type Endpoints struct {
	Channel   string
	Live      string
	ThumbInfo string
	User      string
}

// DefaultEndpoints returns the production hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Channel:   "https://ch.nicovideo.jp",
		Live:      "https://live.nicovideo.jp",
		ThumbInfo: "https://ext.nicovideo.jp/api/getthumbinfo",
		User:      "https://www.nicovideo.jp/user",
	}
}

// Client scrapes one or more NicoNico channels. It owns a single browser,
// started on first use; call Close when done.
type Client struct {
	Endpoints Endpoints

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
		Endpoints: DefaultEndpoints(),
		deps:      deps,
		logger:    logger.Named("niconico"),
		browser:   scraper.NewLazy(deps.OpenBrowser),
	}
}

// Close releases the client's browser.
func (c *Client) Close() error {
	return c.browser.Close()
}

func validate(kind string, pattern *regexp.Regexp, value string) error {
	if !pattern.MatchString(value) {
		return &models.InvalidIdentifierError{Kind: kind, Value: value}
	}
	return nil
}

func ValidateChannelID(id string) error { return validate("channel", channelIDPattern, id) }
func ValidateLiveID(id string) error    { return validate("live", liveIDPattern, id) }
func ValidateVideoID(id string) error   { return validate("video", videoIDPattern, id) }
func ValidateNewsID(id string) error    { return validate("news", newsIDPattern, id) }
