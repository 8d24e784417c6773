package channelplus

import (
	"context"
	"fmt"
	"regexp"

	"video-scraper/internal/chrono"
	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Tab picks which uploads the video page shows.
type Tab string

const (
	TabAll     Tab = "all"
	TabUpload  Tab = "upload"
	TabArchive Tab = "archive"
)

var tabLabels = map[Tab]string{
	TabUpload:  "アップロード動画",
	TabArchive: "アーカイブ動画",
}

var gridItemPattern = regexp.MustCompile(`^.*MuiGrid-item`)

// ParseTab accepts "all", "upload" or "archive".
func ParseTab(s string) (Tab, error) {
	switch t := Tab(s); t {
	case TabAll, TabUpload, TabArchive:
		return t, nil
	}
	return "", &models.InvalidIdentifierError{Kind: "channelplus video tab", Value: s}
}

// Videos reads up to limit videos from one tab of the channel's video page,
// scrolling the endless list until enough are loaded or it ends.
func (c *Client) Videos(ctx context.Context, name string, tab Tab, limit int) ([]*models.Video, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, err := ParseTab(string(tab)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	b := c.browser.Get()
	url := fmt.Sprintf("%s/%s/videos", c.Base, name)
	c.logger.Debug("video listing", zap.String("url", url), zap.String("tab", string(tab)))

	root, err := scraper.OpenPage(ctx, b, url, scraper.SelectorPresent(mainSelector), notFound, c.deps.PollOptions())
	if err != nil {
		return nil, err
	}

	if label, ok := tabLabels[tab]; ok {
		button, err := dom.FindFirst(ctx, root, "span", dom.TextEquals(label),
			dom.WithTimeout(c.deps.Poll.Timeout), dom.WithInterval(c.deps.Poll.Interval))
		if err != nil {
			return nil, err
		}
		if button == nil {
			return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: fmt.Errorf("no %q tab", label)}
		}
		if err := b.Click(ctx, button); err != nil {
			return nil, err
		}
	}

	if _, err := scraper.ScrollFeed(ctx, b, url, gridItems, limit, listingEnd, c.deps.PollOptions()); err != nil {
		return nil, err
	}

	ch, err := c.currentChannel(ctx, b, 2)
	if err != nil {
		return nil, err
	}

	root, err = b.Root(ctx)
	if err != nil {
		return nil, err
	}
	items, err := gridItems(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}

	videos := make([]*models.Video, 0, len(items))
	for _, node := range items {
		item, err := dom.Snapshot(ctx, node)
		if err != nil {
			return videos, err
		}
		video, err := c.videoItem(item, url, ch)
		if err != nil {
			return videos, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// gridItems lists the video cards of the main column.
func gridItems(ctx context.Context, root dom.Node) ([]dom.Node, error) {
	main, err := dom.First(ctx, root, mainSelector)
	if err != nil || main == nil {
		return nil, err
	}
	return dom.FindAllMatching(ctx, main, "div", "class", gridItemPattern, dom.Once())
}

// videoItem reads one card. The card has an upper half with the image and
// the length badge, and a lower half with the link, the date and the
// counters.
func (c *Client) videoItem(item *goquery.Selection, pageURL string, ch channel) (*models.Video, error) {
	halves := item.ChildrenFiltered("div").ChildrenFiltered("div").ChildrenFiltered("div")
	upper, lower := halves.Eq(0), halves.Eq(1)

	href, ok := lower.Find("a").First().Attr("href")
	if !ok {
		href, ok = item.Find("a").First().Attr("href")
	}
	if !ok {
		return nil, &models.ExtractionError{Step: "video card link", Err: fmt.Errorf("no link under %s", pageURL)}
	}
	url, err := scraper.ToAbsoluteURL(href, pageURL)
	if err != nil {
		return nil, &models.ExtractionError{Step: "video card link", Err: err}
	}

	fields := models.VideoFields{ContentFields: ch.fields()}
	fields.URL = &url
	fields.Title = optional(lower.Find("h6").First().Text())
	fields.Thumbnail = optional(scraper.ImageSource(upper.Find("img").First(), pageURL))

	// "2023/07/06", "2日前" or "3時間前"
	if raw := scraper.CleanWhitespace(lower.Find("span").First().Text()); raw != "" {
		posted, err := chrono.ParsePosted(raw, c.deps.Clock())
		if err != nil {
			return nil, &models.ExtractionError{Step: "video posted-at " + raw, Err: err}
		}
		fields.PostedAt = &posted
	}

	// The last badge on the image is the length: "1:02:03" or "12:34".
	if raw := scraper.CleanWhitespace(upper.Find("div").Last().Text()); raw != "" {
		d, err := chrono.ParseClock(raw)
		if err != nil {
			return nil, &models.ExtractionError{Step: "video length " + raw, Err: err}
		}
		fields.Duration = &d
	}

	counters := lower.ChildrenFiltered("div").ChildrenFiltered("div").ChildrenFiltered("div")
	if n, err := scraper.ParseCount(counters.Eq(0).ChildrenFiltered("div").Text()); err == nil {
		fields.ViewCount = &n
	}
	if n, err := scraper.ParseCount(counters.Eq(1).ChildrenFiltered("div").Text()); err == nil {
		fields.CommentCount = &n
	}

	video := models.NewVideo(scraper.LastPathSegment(url))
	video.Set(fields)
	return video, nil
}
