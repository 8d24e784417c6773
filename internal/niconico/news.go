package niconico

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"video-scraper/internal/chrono"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
)

const (
	newsDateLayout = "2006-01-02 15:04:05"
	feedbackText   = "ご意見・ご要望はこちら"
)

// News reads the channel blog feed, newest first.
func (c *Client) News(ctx context.Context, channelID string, limit int) ([]*models.News, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	url := fmt.Sprintf("%s/%s/blomaga/nico/feed", c.Endpoints.Channel, channelID)
	body, err := c.deps.HTTP.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &models.RemoteFetchError{URL: url, StatusCode: http.StatusOK, Err: fmt.Errorf("parse feed: %w", err)}
	}

	newses := make([]*models.News, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(newses) >= limit {
			break
		}

		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		fields := models.NewsFields{
			ContentFields: models.ContentFields{
				PosterID:   &channelID,
				PosterName: optional(scraper.PathSegment(guid, 3)),
				PosterURL:  models.Ptr(c.Endpoints.Channel + "/" + channelID),
				Title:      optional(item.Title),
				URL:        optional(item.Link),
				Thumbnail:  optional(feedExtension(item, "nicoch", "article_thumbnail")),
			},
		}
		if item.PublishedParsed != nil {
			posted := item.PublishedParsed.In(chrono.Tokyo)
			fields.PostedAt = &posted
		}

		news := models.NewNews(scraper.LastPathSegment(guid))
		news.Set(fields)
		newses = append(newses, news)
	}

	c.logger.Debug("news feed", zap.String("url", url), zap.Int("items", len(newses)))
	return newses, nil
}

// feedExtension reads the first value of a namespaced feed element.
func feedExtension(item *gofeed.Item, namespace, name string) string {
	if item.Extensions == nil {
		return ""
	}
	values := item.Extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}

// newsLD is the JSON-LD block of a blog article
type newsLD struct {
	Headline         string `json:"headline"`
	MainEntityOfPage string `json:"mainEntityOfPage"`
	Image            struct {
		URL string `json:"url"`
	} `json:"image"`
	DatePublished string `json:"datePublished"`
	DateModified  string `json:"dateModified"`
}

// NewsDetail reads one blog article. The page is static, so no browser is
// involved.
func (c *Client) NewsDetail(ctx context.Context, channelID, newsID string) (*models.News, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if err := ValidateNewsID(newsID); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s/blomaga/%s", c.Endpoints.Channel, channelID, newsID)
	doc, err := c.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	var ld newsLD
	if err := scraper.JSONLD(doc.Selection, &ld); err != nil {
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: err}
	}

	fields := models.NewsFields{
		ContentFields: models.ContentFields{
			PosterID:  &channelID,
			PosterURL: models.Ptr(c.Endpoints.Channel + "/" + channelID),
			Title:     optional(ld.Headline),
			URL:       optional(ld.MainEntityOfPage),
			Thumbnail: optional(ld.Image.URL),
		},
		Body: optional(c.deps.Reader.Body(doc.Selection, "div.main_blog_txt", url)),
	}
	if fields.URL == nil {
		fields.URL = &url
	}
	if fields.Title == nil {
		fields.Title = optional(c.deps.Reader.Title(doc.Selection))
	}
	// The thumbnail lives under a folder named after the channel.
	if owner := scraper.PathSegment(ld.Image.URL, 2); channelIDPattern.MatchString(owner) {
		fields.PosterID = &owner
	}

	if ld.DatePublished != "" {
		posted, err := chrono.ParseIn(newsDateLayout, ld.DatePublished)
		if err != nil {
			return nil, &models.ExtractionError{Step: "news datePublished", Err: err}
		}
		fields.PostedAt = &posted
	}
	if ld.DateModified != "" {
		updated, err := chrono.ParseIn(newsDateLayout, ld.DateModified)
		if err != nil {
			return nil, &models.ExtractionError{Step: "news dateModified", Err: err}
		}
		fields.UpdatedAt = &updated
	}

	news := models.NewNews(newsID)
	news.Set(fields)
	return news, nil
}

// ResolveChannelID turns a channel's vanity path into its chNNN identifier.
func (c *Client) ResolveChannelID(ctx context.Context, handle string) (string, error) {
	handle = strings.TrimPrefix(handle, "@")
	if !handlePattern.MatchString(handle) {
		return "", &models.InvalidIdentifierError{Kind: "channel handle", Value: handle}
	}
	if channelIDPattern.MatchString(handle) {
		return handle, nil
	}

	url := fmt.Sprintf("%s/%s", c.Endpoints.Channel, handle)
	doc, err := c.fetchPage(ctx, url)
	if err != nil {
		return "", err
	}

	if id := scraper.LastPathSegment(scraper.FindMetaTag(doc.Selection, scraper.OGURL, "")); channelIDPattern.MatchString(id) {
		return id, nil
	}

	var found string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) != feedbackText {
			return true
		}
		href, _ := a.Attr("href")
		found = channelSegment(href)
		return found == ""
	})
	if found == "" {
		return "", &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: errors.New("no channel id on page")}
	}
	return found, nil
}

// channelSegment returns the first chNNN segment of a URL path.
func channelSegment(href string) string {
	for i := 1; ; i++ {
		seg := scraper.PathSegment(href, i)
		if seg == "" {
			return ""
		}
		if channelIDPattern.MatchString(seg) {
			return seg
		}
	}
}

// fetchPage gets a static page. A 404 means the identifier was wrong.
func (c *Client) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	doc, err := c.deps.HTTP.Document(ctx, url)
	var rfe *models.RemoteFetchError
	if errors.As(err, &rfe) && rfe.StatusCode == http.StatusNotFound {
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier, Err: err}
	}
	return doc, err
}
