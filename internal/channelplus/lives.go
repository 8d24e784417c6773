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

var (
	cardLinkPattern = regexp.MustCompile(`^MuiButtonBase-root MuiCardActionArea-root`)
	captionPattern  = regexp.MustCompile(`^.*MuiTypography-caption`)
)

// Lives reads the channel's live page. With three sections the page shows
// on-air broadcasts followed by upcoming ones; otherwise only upcoming ones.
func (c *Client) Lives(ctx context.Context, name string) ([]*models.Live, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	b := c.browser.Get()
	url := fmt.Sprintf("%s/%s/lives", c.Base, name)
	c.logger.Debug("live listing", zap.String("url", url))

	root, err := scraper.OpenPage(ctx, b, url, scraper.CountAtLeast(sectionsSelector, 2), notFound, c.deps.PollOptions())
	if err != nil {
		return nil, err
	}
	ch, err := c.currentChannel(ctx, b, 2)
	if err != nil {
		return nil, err
	}

	sections, err := root.Query(ctx, sectionsSelector)
	if err != nil {
		return nil, err
	}
	var onAir, upcoming dom.Node
	switch {
	case len(sections) == 3:
		onAir, upcoming = sections[0], sections[1]
	case len(sections) > 0:
		upcoming = sections[0]
	}

	var lives []*models.Live
	if onAir != nil {
		found, err := c.liveCards(ctx, onAir, url, ch, models.StatusNow)
		lives = append(lives, found...)
		if err != nil {
			return lives, err
		}
	}
	if upcoming != nil {
		found, err := c.liveCards(ctx, upcoming, url, ch, models.StatusFuture)
		lives = append(lives, found...)
		if err != nil {
			return lives, err
		}
	}
	return lives, nil
}

func (c *Client) liveCards(ctx context.Context, section dom.Node, pageURL string, ch channel, status models.LiveStatus) ([]*models.Live, error) {
	cards, err := dom.FindAllMatching(ctx, section, "a", "class", cardLinkPattern, dom.Once())
	if err != nil {
		return nil, err
	}

	lives := make([]*models.Live, 0, len(cards))
	for _, card := range cards {
		sel, err := dom.Snapshot(ctx, card)
		if err != nil {
			return lives, err
		}
		live, err := c.liveCard(ctx, sel, pageURL, ch, status)
		if err != nil {
			return lives, err
		}
		lives = append(lives, live)
	}
	return lives, nil
}

func (c *Client) liveCard(ctx context.Context, card *goquery.Selection, pageURL string, ch channel, status models.LiveStatus) (*models.Live, error) {
	href, ok := card.Attr("href")
	if !ok {
		return nil, &models.ExtractionError{Step: "live card link", Err: fmt.Errorf("no href under %s", pageURL)}
	}
	url, err := scraper.ToAbsoluteURL(href, pageURL)
	if err != nil {
		return nil, &models.ExtractionError{Step: "live card link", Err: err}
	}

	fields := models.LiveFields{
		ContentFields: ch.fields(),
		LiveSchedule:  models.LiveSchedule{Status: &status},
	}
	fields.URL = &url
	fields.Title = optional(card.Find("h6").First().Text())
	fields.Thumbnail = optional(cardThumbnail(card, pageURL))

	if status == models.StatusFuture {
		// Upcoming cards link to /{channel}/live/{id}.
		if id := scraper.PathSegment(url, 3); id != "" {
			fields.PosterID = &id
		}

		caption, err := dom.FindMatching(ctx, dom.FromSelection(card), "span", "class", captionPattern, dom.Once())
		if err != nil {
			return nil, err
		}
		if caption != nil {
			text, _ := caption.Text(ctx)
			start, err := chrono.ParseScheduled(text, c.deps.Clock())
			if err != nil {
				return nil, &models.ExtractionError{Step: "live start " + text, Err: err}
			}
			fields.StartAt = &start
		}
	}

	live := models.NewLive(scraper.LastPathSegment(url))
	live.Set(fields)
	return live, nil
}

// cardThumbnail reads the background image of a card, falling back to an
// img element.
func cardThumbnail(card *goquery.Selection, pageURL string) string {
	var found string
	card.Find("div").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		if style, ok := div.Attr("style"); ok {
			found = scraper.StyleURL(style)
		}
		return found == ""
	})
	if found != "" {
		return found
	}
	return scraper.ImageSource(card.Find("img").First(), pageURL)
}
