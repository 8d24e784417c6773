package dlsite

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Sale states of a listed work
const (
	SaleOnSale   = "on_sale"
	SaleUpcoming = "upcoming"
)

const (
	errorTitle      = "エラー"
	releaseLabel    = "販売日"
	releaseLayout   = "2006年01月02日"
	circleItemsPath = "div#search_result_list > ul > li"
)

var releasePattern = regexp.MustCompile(`\d{4}年\d{2}月\d{2}日`)

// CircleWorks lists the works on a circle's profile page.
func (c *Client) CircleWorks(ctx context.Context, circleID string) ([]*models.Work, error) {
	if err := ValidateCircleID(circleID); err != nil {
		return nil, err
	}

	url := c.circleURL(circleID)
	doc, err := c.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	name := scraper.CleanWhitespace(doc.Find("span.original_name").First().Text())
	if name == "" {
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier, Err: errors.New("no circle name on page")}
	}
	circle := models.ContentFields{
		PosterID:   &circleID,
		PosterName: &name,
		PosterURL:  &url,
	}

	items := doc.Find(circleItemsPath)
	c.logger.Debug("circle works", zap.String("url", url), zap.Int("items", items.Length()))

	works := make([]*models.Work, 0, items.Length())
	for i := range items.Nodes {
		work, err := listedWork(items.Eq(i), url)
		if err != nil {
			return works, fmt.Errorf("circle %s item %d: %w", circleID, i, err)
		}
		work.Update(models.WorkFields{ContentFields: circle})
		works = append(works, work)
	}
	return works, nil
}

// listedWork reads one entry of a circle catalogue or a search result.
// Prices are only shown for works already on sale.
func listedWork(item *goquery.Selection, pageURL string) (*models.Work, error) {
	link := item.Find(".work_name a").First()
	href, _ := link.Attr("href")
	id := scraper.LastPathSegment(href)
	if !workIDPattern.MatchString(id) {
		return nil, &models.ExtractionError{Step: "work link", Err: fmt.Errorf("no work id in %q", href)}
	}
	abs, err := scraper.ToAbsoluteURL(href, pageURL)
	if err != nil {
		return nil, &models.ExtractionError{Step: "work link", Err: err}
	}

	fields := models.WorkFields{
		ContentFields: models.ContentFields{
			Title:     optional(link.Text()),
			URL:       &abs,
			Thumbnail: optional(scraper.ImageSource(item.Find("img").First(), pageURL)),
			Deleted:   models.Ptr(false),
		},
		WorkInfo: models.WorkInfo{
			Category: optional(item.Find(".work_category").First().Text()),
		},
	}

	if maker := item.Find(".maker_name a").First(); maker.Length() > 0 {
		makerURL, _ := maker.Attr("href")
		if circleID := scraper.LastPathSegment(makerURL); circleIDPattern.MatchString(circleID) {
			fields.PosterID = &circleID
		}
		fields.PosterName = optional(maker.Text())
		if abs, err := scraper.ToAbsoluteURL(makerURL, pageURL); err == nil && makerURL != "" {
			fields.PosterURL = &abs
		}
	}

	status := SaleOnSale
	if item.Find(".expected_date").Length() > 0 {
		status = SaleUpcoming
	}
	fields.SaleStatus = &status

	if status == SaleOnSale {
		if err := readPrices(item, &fields.WorkInfo); err != nil {
			return nil, err
		}
		if fields.SaleCount, err = intField(item.Find(".work_dl span"), "sale count"); err != nil {
			return nil, err
		}
	}

	work := models.NewWork(id)
	work.Set(fields)
	return work, nil
}

// readPrices fills the list price and, during a sale, the discounted one.
func readPrices(item *goquery.Selection, info *models.WorkInfo) error {
	var err error
	discounted := item.Find(".work_price.discount")
	if discounted.Length() == 0 {
		info.BasePrice, err = intField(item.Find(".work_price"), "price")
		return err
	}
	if info.BasePrice, err = intField(item.Find(".strike"), "base price"); err != nil {
		return err
	}
	info.DiscountPrice, err = intField(discounted, "discount price")
	return err
}

// Work reads a work page. DLsite answers unknown IDs with an error page
// whose title says so.
func (c *Client) Work(ctx context.Context, workID string) (*models.Work, error) {
	if err := ValidateWorkID(workID); err != nil {
		return nil, err
	}

	url := c.workURL(workID)
	doc, err := c.fetchPage(ctx, url)
	if err != nil {
		return nil, err
	}

	pageTitle := doc.Find("title").First().Text()
	if strings.Contains(pageTitle, errorTitle) {
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier, Err: fmt.Errorf("error page %q", pageTitle)}
	}

	title := doc.Find("h1#work_name").First().Text()
	if strings.TrimSpace(title) == "" {
		title = c.deps.Reader.Title(doc.Selection)
	}
	link := scraper.FindMetaTag(doc.Selection, scraper.OGURL, "")
	if link == "" {
		link = url
	}

	fields := models.WorkFields{
		ContentFields: models.ContentFields{
			Title:     optional(title),
			URL:       &link,
			Thumbnail: optional(scraper.OGImage(doc.Selection, url)),
			Tags:      genres(doc),
			Deleted:   models.Ptr(false),
		},
		WorkInfo: models.WorkInfo{
			Category: optional(doc.Find("#category_type span").First().Text()),
		},
	}
	if body := doc.Find(`div[itemprop="description"]`).First(); body.Length() > 0 {
		fields.Description = optional(c.deps.Reader.Sanitize(htmlOf(body)))
	} else {
		fields.Description = optional(c.deps.Reader.Description(doc.Selection))
	}

	maker := doc.Find("span.maker_name a").First()
	if maker.Length() > 0 {
		makerURL, _ := maker.Attr("href")
		fields.PosterName = optional(maker.Text())
		fields.PosterURL = optional(makerURL)
		if id := scraper.LastPathSegment(makerURL); circleIDPattern.MatchString(id) {
			fields.PosterID = &id
		}
	}

	released, err := releaseDate(doc)
	if err != nil {
		return nil, err
	}
	if released != nil {
		fields.PostedAt = released
		fields.SaleStatus = models.Ptr(SaleOnSale)
	}

	info := &fields.WorkInfo
	if info.SaleCount, err = intField(doc.Find("dd.point"), "sale count"); err != nil {
		return nil, err
	}
	if info.Rating, err = floatField(doc.Find("span.point.average_count"), "rating"); err != nil {
		return nil, err
	}
	if info.RatingCount, err = intField(doc.Find("div.star_wrap > span.count"), "rating count"); err != nil {
		return nil, err
	}
	if info.FavoriteCount, err = intField(doc.Find("dd.position_fix"), "favorite count"); err != nil {
		return nil, err
	}

	c.logger.Debug("work", zap.String("url", url), zap.String("title", title))
	work := models.NewWork(workID)
	work.Set(fields)
	return work, nil
}

// releaseDate reads the 販売日 row of the work outline table.
func releaseDate(doc *goquery.Document) (*time.Time, error) {
	var raw string
	doc.Find("table#work_outline tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if strings.TrimSpace(row.Find("th").First().Text()) != releaseLabel {
			return true
		}
		raw = releasePattern.FindString(row.Find("td").First().Text())
		return false
	})
	if raw == "" {
		return nil, nil
	}
	t, err := chrono.ParseIn(releaseLayout, raw)
	if err != nil {
		return nil, &models.ExtractionError{Step: "release date " + raw, Err: err}
	}
	return &t, nil
}

func genres(doc *goquery.Document) []string {
	var tags []string
	doc.Find("div.main_genre a").Each(func(_ int, a *goquery.Selection) {
		if t := scraper.CleanWhitespace(a.Text()); t != "" {
			tags = append(tags, t)
		}
	})
	return tags
}

func htmlOf(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	h, err := sel.Html()
	if err != nil {
		return ""
	}
	return h
}
