package niconico

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/poll"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	messageWaiting       = "放送開始までしばらくお待ちください"
	messageArchiveClosed = "タイムシフトの公開期間が終了しました"
	channelNotFound      = "お探しのページは見つかりませんでした"

	futureLayout  = "01月02日 15時04分"
	pastLayout    = "放送開始：2006/01/02 15:04:05"
	archiveLayout = "2006-01-02 15:04:05"
)

var (
	posterWrapperPattern = regexp.MustCompile(`^.*thumb_wrapper_ch`)
	timeshiftPattern     = regexp.MustCompile(`^___program-viewing-period-date-time___`)
	messagePattern       = regexp.MustCompile(`^___primary-message___`)
	descriptionPattern   = regexp.MustCompile(`^___description___`)

	listingMarkers = scraper.PaginationMarkers{Next: "li.next a", Disabled: "li.next.disabled"}

	channelMissing = scraper.AnyOf(
		scraper.SelectorPresent("#error_page"),
		scraper.TextPresent("h1", channelNotFound),
	)
)

// poster is the channel shown in a listing header
type poster struct {
	id, name, url *string
}

// Lives lists a channel's broadcasts, newest first. The first page holds the
// on-air, upcoming and past sections; later pages only past broadcasts.
// A limit of zero or less reads nothing.
func (c *Client) Lives(ctx context.Context, channelID string, limit int) ([]*models.Live, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	b := c.browser.Get()
	lives := make([]*models.Live, 0, limit)

	for page := 1; len(lives) < limit; page++ {
		url := fmt.Sprintf("%s/%s/live?page=%d", c.Endpoints.Channel, channelID, page)
		c.logger.Debug("live listing", zap.String("url", url), zap.Int("page", page))

		root, err := scraper.OpenPage(ctx, b, url, scraper.SelectorPresent("section.sub.past"), channelMissing, c.deps.PollOptions())
		if err != nil {
			return lives, err
		}

		found, err := c.livePage(ctx, root, url, page == 1)
		lives = append(lives, found...)
		if err != nil {
			return lives, err
		}
		if len(lives) >= limit {
			break
		}

		next, err := scraper.HasNextPage(ctx, b, url, page, listingMarkers, c.deps.Poll.PaginationAttempts, c.deps.PollOptions())
		if err != nil {
			return lives, err
		}
		if !next {
			break
		}
	}

	if len(lives) > limit {
		lives = lives[:limit]
	}
	return lives, nil
}

func (c *Client) livePage(ctx context.Context, root dom.Node, pageURL string, firstPage bool) ([]*models.Live, error) {
	owner, err := c.listingPoster(ctx, root, pageURL)
	if err != nil {
		return nil, err
	}

	var lives []*models.Live
	sections := []struct {
		selector string
		read     func(*goquery.Selection, string, poster) (*models.Live, error)
	}{
		{"section.sub.now", c.nowItem},
		{"section.sub.future", c.futureItem},
		{"section.sub.past", c.pastItem},
	}
	if !firstPage {
		sections = sections[2:]
	}

	for _, section := range sections {
		node, err := dom.First(ctx, root, section.selector)
		if err != nil {
			return lives, err
		}
		if node == nil {
			continue
		}
		sel, err := dom.Snapshot(ctx, node)
		if err != nil {
			return lives, err
		}

		var itemErr error
		sel.Find("li.item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
			live, err := section.read(item, pageURL, owner)
			if err != nil {
				itemErr = err
				return false
			}
			lives = append(lives, live)
			return true
		})
		if itemErr != nil {
			return lives, itemErr
		}
	}
	return lives, nil
}

// listingPoster reads the channel icon link shown on every listing page.
func (c *Client) listingPoster(ctx context.Context, root dom.Node, pageURL string) (poster, error) {
	wrapper, err := dom.FindMatching(ctx, root, "span", "class", posterWrapperPattern, dom.Once())
	if err != nil || wrapper == nil {
		return poster{}, err
	}
	link, err := dom.First(ctx, wrapper, "a")
	if err != nil || link == nil {
		return poster{}, err
	}

	var p poster
	if name, ok, err := link.Attr(ctx, "title"); err != nil {
		return poster{}, err
	} else if ok {
		p.name = models.Ptr(name)
	}
	if href, ok, err := link.Attr(ctx, "href"); err != nil {
		return poster{}, err
	} else if ok {
		abs, _ := scraper.ToAbsoluteURL(href, pageURL)
		p.url = models.Ptr(abs)
		p.id = models.Ptr(scraper.LastPathSegment(abs))
	}
	return p, nil
}

func (c *Client) nowItem(item *goquery.Selection, pageURL string, owner poster) (*models.Live, error) {
	link := item.Find("p.title a").First()
	return c.listedLive(item, link, pageURL, owner, models.StatusNow, nil)
}

func (c *Client) futureItem(item *goquery.Selection, pageURL string, owner poster) (*models.Live, error) {
	link := item.Find("h2.title a").First()
	caption := chrono.StripWeekday(item.Find("p.date strong").First().Text()) // "09月23日 (土) 22時00分"
	start, err := chrono.ParseYearless(futureLayout, caption, c.deps.Clock())
	if err != nil {
		return nil, &models.ExtractionError{Step: "future start " + caption, Err: err}
	}
	return c.listedLive(item, link, pageURL, owner, models.StatusFuture, &start)
}

func (c *Client) pastItem(item *goquery.Selection, pageURL string, owner poster) (*models.Live, error) {
	link := item.Find("h2 a").First()
	caption := chrono.StripWeekday(item.Find("p.date").First().Text()) // "放送開始：2023/09/04 (月) 22:50:00"
	start, err := chrono.ParseIn(pastLayout, caption)
	if err != nil {
		return nil, &models.ExtractionError{Step: "past start " + caption, Err: err}
	}
	return c.listedLive(item, link, pageURL, owner, models.StatusPast, &start)
}

func (c *Client) listedLive(item, link *goquery.Selection, pageURL string, owner poster, status models.LiveStatus, start *time.Time) (*models.Live, error) {
	href, ok := link.Attr("href")
	if !ok {
		return nil, &models.ExtractionError{Step: "live link", Err: fmt.Errorf("no href under %s", pageURL)}
	}
	url, err := scraper.ToAbsoluteURL(href, pageURL)
	if err != nil {
		return nil, &models.ExtractionError{Step: "live link", Err: err}
	}

	live := models.NewLive(scraper.LastPathSegment(url))
	live.Set(models.LiveFields{
		ContentFields: models.ContentFields{
			PosterID:   owner.id,
			PosterName: owner.name,
			PosterURL:  owner.url,
			Title:      optional(link.Text()),
			URL:        &url,
			Thumbnail:  optional(scraper.ImageSource(item.Find("img").First(), pageURL)),
		},
		LiveSchedule: models.LiveSchedule{
			Status:  &status,
			StartAt: start,
		},
	})
	return live, nil
}

// liveLD is the JSON-LD block of a broadcast page
type liveLD struct {
	EmbedURL string `json:"embedUrl"`
	Author   struct {
		URL string `json:"url"`
	} `json:"author"`
	Publication struct {
		Name      string `json:"name"`
		StartDate string `json:"startDate"`
		EndDate   string `json:"endDate"`
	} `json:"publication"`
	ThumbnailURL []string `json:"thumbnailUrl"`
	Keywords     []string `json:"keywords"`
}

// LiveDetail reads one broadcast page.
func (c *Client) LiveDetail(ctx context.Context, liveID string) (*models.Live, error) {
	if err := ValidateLiveID(liveID); err != nil {
		return nil, err
	}
	return c.liveDetail(ctx, c.browser.Get(), liveID)
}

// LiveDetails reads several broadcast pages. With workers <= 1 they are read
// one after another on the client's browser; otherwise each worker gets its
// own browser. All identifiers are checked before anything is opened.
func (c *Client) LiveDetails(ctx context.Context, liveIDs []string, workers int) ([]*models.Live, error) {
	for _, id := range liveIDs {
		if err := ValidateLiveID(id); err != nil {
			return nil, err
		}
	}
	if workers <= 1 {
		return scraper.Sequential(ctx, liveIDs, c.browser.Get(), c.liveDetail)
	}
	return scraper.FanOut(ctx, liveIDs, workers, c.deps.OpenBrowser, c.liveDetail)
}

func (c *Client) liveDetail(ctx context.Context, b scraper.Browser, liveID string) (*models.Live, error) {
	url := fmt.Sprintf("%s/watch/%s", c.Endpoints.Live, liveID)
	c.logger.Debug("live detail", zap.String("url", url))

	root, err := scraper.OpenPage(ctx, b, url, scraper.SelectorPresent(scraper.JSONLDSelector), channelMissing, c.deps.PollOptions())
	if err != nil {
		return nil, err
	}

	doc, err := dom.Snapshot(ctx, root)
	if err != nil {
		return nil, err
	}
	var ld liveLD
	if err := scraper.JSONLD(doc, &ld); err != nil {
		return nil, &models.ExtractionError{Step: "live JSON-LD", Err: err}
	}

	fields := models.LiveFields{
		ContentFields: models.ContentFields{
			Title:     optional(ld.Publication.Name),
			URL:       optional(ld.EmbedURL),
			Tags:      ld.Keywords,
			PosterURL: optional(ld.Author.URL),
		},
	}
	fields.PosterID = authorID(ld.Author.URL)
	if len(ld.ThumbnailURL) > 0 {
		fields.Thumbnail = optional(ld.ThumbnailURL[0])
	}

	if desc, err := dom.FindMatching(ctx, root, "div", "class", descriptionPattern, dom.Once()); err != nil {
		return nil, err
	} else if desc != nil {
		text, err := desc.Text(ctx)
		if err != nil {
			return nil, err
		}
		fields.Description = optional(text)
	}

	state, err := c.classify(ctx, root, liveID, url)
	if err != nil {
		return nil, err
	}
	fields.Status = &state.status

	start, err := parseISO(ld.Publication.StartDate)
	if err != nil {
		return nil, &models.ExtractionError{Step: "live start", Err: err}
	}
	fields.StartAt = start

	if state.status == models.StatusPast {
		end, err := parseISO(ld.Publication.EndDate)
		if err != nil {
			return nil, &models.ExtractionError{Step: "live end", Err: err}
		}
		fields.EndAt = end
		if start != nil && end != nil {
			fields.Duration = models.Ptr(end.Sub(*start))
		}
		fields.ArchiveEnabled = &state.archive
		fields.ArchiveUntil = state.archiveUntil
	}

	live := models.NewLive(liveID)
	live.Set(fields)
	return live, nil
}

type liveState struct {
	status       models.LiveStatus
	archive      bool
	archiveUntil *time.Time
}

// classify resolves the broadcast status from the page signals. The rules
// are tried in order and the first that holds wins:
//  1. a timeshift viewing period is shown: past, replay available
//  2. the waiting message is shown: future
//  3. the replay-closed message is shown: past, no replay
//  4. the on-air button is shown: now
func (c *Client) classify(ctx context.Context, root dom.Node, liveID, url string) (liveState, error) {
	var state liveState
	err := poll.Until(ctx, c.deps.PollOptions(), func(ctx context.Context) (bool, error) {
		period, err := dom.FindMatching(ctx, root, "time", "class", timeshiftPattern, dom.Once())
		if err != nil {
			return false, err
		}
		if period != nil {
			state = liveState{status: models.StatusPast, archive: true}
			if raw, ok, err := period.Attr(ctx, "datetime"); err == nil && ok {
				if until, err := chrono.ParseIn(archiveLayout, raw); err == nil {
					state.archiveUntil = &until
				}
			}
			return true, nil
		}

		message, err := dom.FindMatching(ctx, root, "p", "class", messagePattern, dom.Once())
		if err != nil {
			return false, err
		}
		if message != nil {
			text, err := message.Text(ctx)
			if err != nil {
				return false, nil
			}
			switch text {
			case messageWaiting:
				state = liveState{status: models.StatusFuture}
				return true, nil
			case messageArchiveClosed:
				state = liveState{status: models.StatusPast, archive: false}
				return true, nil
			}
		}

		onAir, err := dom.Exists(ctx, root, `button[data-live-status="live"]`)
		if err != nil {
			return false, nil
		}
		if onAir {
			state = liveState{status: models.StatusNow}
			return true, nil
		}
		return false, nil
	})

	if errors.Is(err, poll.ErrTimeout) {
		c.logger.Warn("no status signal", zap.String("live", liveID))
		return state, &models.UnknownLiveStatusError{ID: liveID, URL: url}
	}
	return state, err
}

// authorID takes the channel from ".../chNNN/join" or the user from
// ".../user/NNN".
func authorID(authorURL string) *string {
	if authorURL == "" {
		return nil
	}
	if scraper.LastPathSegment(authorURL) == "join" {
		return optional(scraper.PathSegment(authorURL, 2))
	}
	if scraper.PathSegment(authorURL, 2) == "user" {
		return optional(scraper.LastPathSegment(authorURL))
	}
	return nil
}

func parseISO(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.In(chrono.Tokyo)
	return &t, nil
}

// optional returns nil for blank text.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
