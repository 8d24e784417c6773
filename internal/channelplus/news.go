package channelplus

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"go.uber.org/zap"
)

const (
	newsDateSelector = mainSelector + " > div > div:nth-of-type(4) > span"
	newsBodySelector = mainSelector + " > div > div:nth-of-type(5)"
)

var paperPattern = regexp.MustCompile(`^.*MuiPaper-rounded`)

// newsCard is what the listing shows for an article
type newsCard struct {
	title     string
	thumbnail string
}

// News reads up to limit articles. The listing only carries titles and
// images, so each article is opened by clicking its title on the listing,
// one at a time and no faster than the configured detail interval.
func (c *Client) News(ctx context.Context, name string, limit int) ([]*models.News, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	b := c.browser.Get()
	url := fmt.Sprintf("%s/%s/articles/news", c.Base, name)
	c.logger.Debug("news listing", zap.String("url", url))

	if _, err := scraper.OpenPage(ctx, b, url, scraper.SelectorPresent(mainSelector), notFound, c.deps.PollOptions()); err != nil {
		return nil, err
	}
	if _, err := scraper.ScrollFeed(ctx, b, url, paperItems, limit, listingEnd, c.deps.PollOptions()); err != nil {
		return nil, err
	}

	ch, err := c.currentChannel(ctx, b, 3)
	if err != nil {
		return nil, err
	}
	cards, err := c.newsCards(ctx, b, url, limit)
	if err != nil {
		return nil, err
	}

	newses := make([]*models.News, 0, len(cards))
	var last time.Time
	for _, card := range cards {
		if err := pace(ctx, last, c.deps.Poll.DetailInterval); err != nil {
			return newses, err
		}
		last = time.Now()

		news, err := c.newsDetail(ctx, b, url, card.title, ch)
		if err != nil {
			return newses, err
		}
		news.Update(models.NewsFields{ContentFields: models.ContentFields{Thumbnail: optional(card.thumbnail)}})
		newses = append(newses, news)
	}
	return newses, nil
}

func paperItems(ctx context.Context, root dom.Node) ([]dom.Node, error) {
	main, err := dom.First(ctx, root, mainSelector)
	if err != nil || main == nil {
		return nil, err
	}
	return dom.FindAllMatching(ctx, main, "div", "class", paperPattern, dom.Once())
}

// newsCards snapshots the loaded cards before any navigation replaces them.
func (c *Client) newsCards(ctx context.Context, b scraper.Browser, pageURL string, limit int) ([]newsCard, error) {
	root, err := b.Root(ctx)
	if err != nil {
		return nil, err
	}
	items, err := paperItems(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}

	cards := make([]newsCard, 0, len(items))
	for _, node := range items {
		sel, err := dom.Snapshot(ctx, node)
		if err != nil {
			return nil, err
		}
		title := scraper.CleanWhitespace(sel.Find("h6").First().Text())
		if title == "" {
			return nil, &models.ExtractionError{Step: "news card title", Err: fmt.Errorf("untitled card on %s", pageURL)}
		}
		cards = append(cards, newsCard{
			title:     title,
			thumbnail: scraper.ImageSource(sel.Find("img").First(), pageURL),
		})
	}
	return cards, nil
}

// newsDetail opens the listing, clicks the article titled title and reads
// the article page it leads to.
func (c *Client) newsDetail(ctx context.Context, b scraper.Browser, listURL, title string, ch channel) (*models.News, error) {
	if _, err := scraper.OpenPage(ctx, b, listURL, scraper.SelectorPresent(mainSelector), notFound, c.deps.PollOptions()); err != nil {
		return nil, err
	}
	// Older articles only show up after scrolling the listing again.
	shown := scraper.TextPresent("h6", title)
	if _, err := scraper.ScrollFeed(ctx, b, listURL, paperItems, math.MaxInt, scraper.AnyOf(shown, listingEnd), c.deps.PollOptions()); err != nil {
		return nil, err
	}

	root, err := b.Root(ctx)
	if err != nil {
		return nil, err
	}
	heading, err := dom.FindFirst(ctx, root, "h6", dom.TextEquals(title), dom.Once())
	if err != nil {
		return nil, err
	}
	if heading == nil {
		return nil, &models.StructureNotFoundError{URL: listURL, Reason: models.ReasonUnknown, Err: fmt.Errorf("no article titled %q", title)}
	}
	if err := b.Click(ctx, heading); err != nil {
		return nil, err
	}

	left := func(ctx context.Context, _ dom.Node) (bool, error) {
		loc, err := b.Location(ctx)
		return loc != listURL, err
	}
	ready := scraper.AllOf(left, scraper.SelectorPresent(newsBodySelector))
	root, err = scraper.AwaitStructure(ctx, b, listURL, ready, notFound, c.deps.PollOptions())
	if err != nil {
		return nil, err
	}

	loc, err := b.Location(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := dom.Snapshot(ctx, root)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("news detail", zap.String("url", loc))

	fields := models.NewsFields{ContentFields: ch.fields()}
	fields.URL = &loc
	fields.Title = optional(scraper.FindMetaTag(doc, scraper.OGTitle, ""))
	if fields.Title == nil {
		fields.Title = &title
	}
	fields.Body = optional(c.deps.Reader.Body(doc, newsBodySelector, loc))

	// "2023/07/06", "2日前" or "3時間前"
	if raw := scraper.CleanWhitespace(doc.Find(newsDateSelector).First().Text()); raw != "" {
		posted, err := chrono.ParsePosted(raw, c.deps.Clock())
		if err != nil {
			return nil, &models.ExtractionError{Step: "news posted-at " + raw, Err: err}
		}
		fields.PostedAt = &posted
	}

	news := models.NewNews(scraper.LastPathSegment(loc))
	news.Set(fields)
	return news, nil
}

// pace waits until at least interval has passed since last.
func pace(ctx context.Context, last time.Time, interval time.Duration) error {
	if last.IsZero() || interval <= 0 {
		return nil
	}
	wait := interval - time.Since(last)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
