// Package dlsite reads works from the DLsite maniax storefront: circle
// catalogues, work pages and faceted searches. Every page it needs is
// served static, so it talks plain HTTP with the age gate cookie set.
package dlsite

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"video-scraper/internal/models"
	"video-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var (
	workIDPattern   = regexp.MustCompile(`^(RJ|VJ|BJ)\d+$`)
	circleIDPattern = regexp.MustCompile(`^RG\d+$`)
	numberPattern   = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)
)

// ageGateCookie skips the adult content interstitial.
const (
	ageGateCookie = "adultchecked"
	ageGateValue  = "1"
)

// Endpoints are the hosts the client talks to.
type Endpoints struct {
	Site string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{Site: "https://www.dlsite.com"}
}

type Client struct {
	Endpoints Endpoints

	deps   *scraper.Deps
	logger *zap.Logger
}

func New(deps *scraper.Deps) *Client {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Endpoints: DefaultEndpoints(),
		deps:      deps,
		logger:    logger.Named("dlsite"),
	}
}

func ValidateWorkID(id string) error {
	if !workIDPattern.MatchString(id) {
		return &models.InvalidIdentifierError{Kind: "dlsite work", Value: id}
	}
	return nil
}

func ValidateCircleID(id string) error {
	if !circleIDPattern.MatchString(id) {
		return &models.InvalidIdentifierError{Kind: "dlsite circle", Value: id}
	}
	return nil
}

func (c *Client) circleURL(id string) string {
	return c.Endpoints.Site + "/maniax/circle/profile/=/maker_id/" + id + ".html"
}

func (c *Client) workURL(id string) string {
	return c.Endpoints.Site + "/maniax/work/=/product_id/" + id + ".html"
}

// fetchPage loads a page past the age gate. A 404 means the identifier does
// not exist.
func (c *Client) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	doc, err := c.deps.HTTP.Document(ctx, url, scraper.WithCookie(ageGateCookie, ageGateValue))
	var rfe *models.RemoteFetchError
	if errors.As(err, &rfe) && rfe.StatusCode == http.StatusNotFound {
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier, Err: err}
	}
	return doc, err
}

// number reads the first number shown in s, so "1,320円" and "(1,234)"
// both work and trailing labels like "50%OFF" are ignored.
func number(s string) (string, bool) {
	m := numberPattern.FindString(s)
	if m == "" {
		return "", false
	}
	return strings.ReplaceAll(m, ",", ""), true
}

// intField parses the number in sel's text. An absent element is unknown,
// a present one without a number is an extraction failure.
func intField(sel *goquery.Selection, step string) (*int64, error) {
	if sel.Length() == 0 {
		return nil, nil
	}
	text := scraper.CleanWhitespace(sel.First().Text())
	if text == "" {
		return nil, nil
	}
	raw, ok := number(text)
	if !ok {
		return nil, &models.ExtractionError{Step: step + " " + strconv.Quote(text), Err: errors.New("no number")}
	}
	n, err := strconv.ParseInt(strings.SplitN(raw, ".", 2)[0], 10, 64)
	if err != nil {
		return nil, &models.ExtractionError{Step: step, Err: err}
	}
	return &n, nil
}

func floatField(sel *goquery.Selection, step string) (*float64, error) {
	if sel.Length() == 0 {
		return nil, nil
	}
	text := scraper.CleanWhitespace(sel.First().Text())
	if text == "" {
		return nil, nil
	}
	raw, ok := number(text)
	if !ok {
		return nil, &models.ExtractionError{Step: step + " " + strconv.Quote(text), Err: errors.New("no number")}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &models.ExtractionError{Step: step, Err: err}
	}
	return &f, nil
}

func optional(s string) *string {
	s = scraper.CleanWhitespace(s)
	if s == "" {
		return nil
	}
	return &s
}
