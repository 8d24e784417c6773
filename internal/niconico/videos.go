package niconico

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const postedLayout = "2006/01/02 15:04"

// Videos lists a channel's uploads page by page until limit items are read
// or the listing ends. A limit of zero or less reads nothing.
func (c *Client) Videos(ctx context.Context, channelID string, limit int) ([]*models.Video, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	b := c.browser.Get()
	videos := make([]*models.Video, 0, limit)

	for page := 1; len(videos) < limit; page++ {
		url := fmt.Sprintf("%s/%s/video?page=%d", c.Endpoints.Channel, channelID, page)
		c.logger.Debug("video listing", zap.String("url", url), zap.Int("page", page))

		root, err := scraper.OpenPage(ctx, b, url, scraper.SelectorPresent("li.item"), channelMissing, c.deps.PollOptions())
		if err != nil {
			return videos, err
		}

		found, err := c.videoPage(ctx, root, url)
		videos = append(videos, found...)
		if err != nil {
			return videos, err
		}
		if len(videos) >= limit {
			break
		}

		next, err := scraper.HasNextPage(ctx, b, url, page, listingMarkers, c.deps.Poll.PaginationAttempts, c.deps.PollOptions())
		if err != nil {
			return videos, err
		}
		if !next {
			break
		}
	}

	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func (c *Client) videoPage(ctx context.Context, root dom.Node, pageURL string) ([]*models.Video, error) {
	owner, err := c.listingPoster(ctx, root, pageURL)
	if err != nil {
		return nil, err
	}

	items, err := root.Query(ctx, "li.item")
	if err != nil {
		return nil, err
	}

	videos := make([]*models.Video, 0, len(items))
	for _, node := range items {
		item, err := dom.Snapshot(ctx, node)
		if err != nil {
			return videos, err
		}
		video, err := c.videoItem(item, pageURL, owner)
		if err != nil {
			return videos, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}

func (c *Client) videoItem(item *goquery.Selection, pageURL string, owner poster) (*models.Video, error) {
	href, ok := item.Find("a").First().Attr("href")
	if !ok {
		return nil, &models.ExtractionError{Step: "video link", Err: fmt.Errorf("no link under %s", pageURL)}
	}
	url, err := scraper.ToAbsoluteURL(href, pageURL)
	if err != nil {
		return nil, &models.ExtractionError{Step: "video link", Err: err}
	}

	fields := models.VideoFields{
		ContentFields: models.ContentFields{
			PosterID:   owner.id,
			PosterName: owner.name,
			PosterURL:  owner.url,
			URL:        &url,
			Thumbnail:  optional(scraper.ImageSource(item.Find("img").First(), pageURL)),
		},
	}

	title, _ := item.Find("h6 a").First().Attr("title")
	if title == "" {
		title = item.Find("h6").First().Text()
	}
	fields.Title = optional(title)

	// "2023/09/08 19:00"
	if raw, ok := item.Find("p.time time var").First().Attr("title"); ok {
		posted, err := chrono.ParseIn(postedLayout, raw)
		if err != nil {
			return nil, &models.ExtractionError{Step: "video posted-at " + raw, Err: err}
		}
		fields.PostedAt = &posted
	}

	// Counters are missing on members-only uploads.
	if n, err := scraper.ParseCount(item.Find("li.view var").First().Text()); err == nil {
		fields.ViewCount = &n
	}
	if n, err := scraper.ParseCount(item.Find("li.comment var").First().Text()); err == nil {
		fields.CommentCount = &n
	}

	if raw := item.Find("span.badge.length").First().Text(); raw != "" {
		d, err := chrono.ParseClock(raw) // "115:56"
		if err != nil {
			return nil, &models.ExtractionError{Step: "video length", Err: err}
		}
		fields.Duration = &d
	}

	video := models.NewVideo(scraper.LastPathSegment(url))
	video.Set(fields)
	return video, nil
}

// thumbInfo is the getthumbinfo API response
type thumbInfo struct {
	XMLName xml.Name `xml:"nicovideo_thumb_response"`
	Status  string   `xml:"status,attr"`
	Thumb   struct {
		VideoID       string   `xml:"video_id"`
		Title         string   `xml:"title"`
		Description   string   `xml:"description"`
		ThumbnailURL  string   `xml:"thumbnail_url"`
		FirstRetrieve string   `xml:"first_retrieve"`
		Length        string   `xml:"length"`
		ViewCounter   *int64   `xml:"view_counter"`
		CommentNum    *int64   `xml:"comment_num"`
		MylistCounter *int64   `xml:"mylist_counter"`
		WatchURL      string   `xml:"watch_url"`
		Tags          []string `xml:"tags>tag"`
		UserID        string   `xml:"user_id"`
		UserNickname  string   `xml:"user_nickname"`
		ChannelID     string   `xml:"ch_id"`
		ChannelName   string   `xml:"ch_name"`
	} `xml:"thumb"`
	Error struct {
		Code        string `xml:"code"`
		Description string `xml:"description"`
	} `xml:"error"`
}

// VideoDetail reads a video through the public thumbnail-info API. A video
// the API reports as failed comes back marked deleted.
func (c *Client) VideoDetail(ctx context.Context, videoID string) (*models.Video, error) {
	if err := ValidateVideoID(videoID); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s", c.Endpoints.ThumbInfo, videoID)
	body, err := c.deps.HTTP.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	var info thumbInfo
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&info); err != nil {
		return nil, &models.RemoteFetchError{URL: url, StatusCode: 200, Err: fmt.Errorf("decode thumbinfo: %w", err)}
	}

	video := models.NewVideo(videoID)
	if info.Status != "ok" {
		c.logger.Info("video unavailable",
			zap.String("video", videoID),
			zap.String("code", info.Error.Code),
		)
		video.Set(models.VideoFields{ContentFields: models.ContentFields{Deleted: models.Ptr(true)}})
		return video, nil
	}

	t := info.Thumb
	fields := models.VideoFields{
		ContentFields: models.ContentFields{
			Title:     optional(t.Title),
			URL:       optional(t.WatchURL),
			Thumbnail: optional(t.ThumbnailURL),
			Tags:      t.Tags,
			Deleted:   models.Ptr(false),
		},
		Metrics: models.Metrics{
			Description:  optional(t.Description),
			ViewCount:    t.ViewCounter,
			CommentCount: t.CommentNum,
		},
	}

	if t.ChannelID != "" {
		id := "ch" + t.ChannelID
		fields.PosterID = &id
		fields.PosterName = optional(t.ChannelName)
		fields.PosterURL = models.Ptr(c.Endpoints.Channel + "/" + id)
	} else if t.UserID != "" {
		fields.PosterID = optional(t.UserID)
		fields.PosterName = optional(t.UserNickname)
		fields.PosterURL = models.Ptr(c.Endpoints.User + "/" + t.UserID)
	}

	if t.FirstRetrieve != "" {
		posted, err := time.Parse(time.RFC3339, t.FirstRetrieve)
		if err != nil {
			return nil, &models.ExtractionError{Step: "thumbinfo first_retrieve", Err: err}
		}
		posted = posted.In(chrono.Tokyo)
		fields.PostedAt = &posted
	}
	if t.Length != "" {
		d, err := chrono.ParseClock(t.Length)
		if err != nil {
			return nil, &models.ExtractionError{Step: "thumbinfo length", Err: err}
		}
		fields.Duration = &d
	}

	video.Set(fields)
	return video, nil
}
