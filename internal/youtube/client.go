// Package youtube reads YouTube channels through the Data API v3, the public
// upload feed and the channel page.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

var (
	channelIDPattern = regexp.MustCompile(`^UC[\w-]{22}$`)
	handlePattern    = regexp.MustCompile(`^@[\w.-]+$`)
	videoIDPattern   = regexp.MustCompile(`^[\w-]{11}$`)
)

// ErrNoAPIKey is returned by API backed operations when no key is configured.
var ErrNoAPIKey = errors.New("youtube: no API key configured")

// Endpoints are the hosts the client talks to.
type Endpoints struct {
	Site string
	Feed string
	// API overrides the Data API root; empty means the library default.
	API string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Site: "https://www.youtube.com",
		Feed: "https://www.youtube.com/feeds/videos.xml",
	}
}

// Client reads one or more channels. The API service is created on first
// use.
type Client struct {
	Endpoints Endpoints

	deps   *scraper.Deps
	logger *zap.Logger
	apiKey string

	mu  sync.Mutex
	svc *yt.Service
}

func New(deps *scraper.Deps, apiKey string) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Endpoints: DefaultEndpoints(),
		deps:      deps,
		logger:    logger.Named("youtube"),
		apiKey:    apiKey,
	}
}

func (c *Client) service(ctx context.Context) (*yt.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil {
		return c.svc, nil
	}
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	opts := []option.ClientOption{option.WithAPIKey(c.apiKey)}
	if c.Endpoints.API != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoints.API))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	c.svc = svc
	return svc, nil
}

func ValidateChannelID(id string) error {
	if !channelIDPattern.MatchString(id) {
		return &models.InvalidIdentifierError{Kind: "youtube channel", Value: id}
	}
	return nil
}

func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return &models.InvalidIdentifierError{Kind: "youtube handle", Value: handle}
	}
	return nil
}

func ValidateVideoID(id string) error {
	if !videoIDPattern.MatchString(id) {
		return &models.InvalidIdentifierError{Kind: "youtube video", Value: id}
	}
	return nil
}

// ChannelID accepts a channel ID or an @handle and returns the channel ID.
func (c *Client) ChannelID(ctx context.Context, idOrHandle string) (string, error) {
	if strings.HasPrefix(idOrHandle, "@") {
		return c.ResolveHandle(ctx, idOrHandle)
	}
	if err := ValidateChannelID(idOrHandle); err != nil {
		return "", err
	}
	return idOrHandle, nil
}

// ResolveHandle reads the channel ID from the channel page of an @handle.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	if err := ValidateHandle(handle); err != nil {
		return "", err
	}

	url := c.Endpoints.Site + "/" + handle
	doc, err := c.deps.HTTP.Document(ctx, url)
	if err != nil {
		var rfe *models.RemoteFetchError
		if errors.As(err, &rfe) && rfe.StatusCode == http.StatusNotFound {
			return "", &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier, Err: err}
		}
		return "", err
	}

	candidates := []string{
		doc.Find(`link[itemprop="url"]`).AttrOr("href", ""),
		scraper.FindMetaTag(doc.Selection, scraper.OGURL, ""),
		doc.Find(`link[rel="canonical"]`).AttrOr("href", ""),
	}
	for _, href := range candidates {
		if id := scraper.LastPathSegment(href); channelIDPattern.MatchString(id) {
			c.logger.Debug("handle resolved", zap.String("handle", handle), zap.String("channel", id))
			return id, nil
		}
	}
	return "", &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: errors.New("no channel link on page")}
}
