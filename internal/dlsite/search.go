package dlsite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"video-scraper/internal/models"

	"go.uber.org/zap"
)

// Status filters works by sale state.
type Status string

const (
	StatusAll      Status = "all"
	StatusOnSale   Status = "on_sale"
	StatusPreorder Status = "preorder"
	StatusUpcoming Status = "upcoming"
)

// WorkType is a work format facet.
type WorkType string

const (
	TypeIllust WorkType = "illust"
	TypeMovie  WorkType = "movie"
	TypeAudio  WorkType = "audio"
	TypeMusic  WorkType = "music"
)

// workTypes is the facet order; a type's index is part of its parameter.
var workTypes = []struct {
	typ   WorkType
	label string
}{
	{TypeIllust, "CG・イラスト"},
	{TypeMovie, "動画"},
	{TypeAudio, "ボイス・ASMR"},
	{TypeMusic, "音楽"},
}

// Order is the sort order of a search.
type Order string

const (
	OrderTrend     Order = "trend"
	OrderNewest    Order = "release_d"
	OrderOldest    Order = "release"
	OrderSales     Order = "dl_d"
	OrderCheapest  Order = "price"
	OrderExpensive Order = "price_d"
	OrderRating    Order = "rate_d"
	OrderReviews   Order = "review_d"
)

var validOrders = map[Order]bool{
	OrderTrend: true, OrderNewest: true, OrderOldest: true, OrderSales: true,
	OrderCheapest: true, OrderExpensive: true, OrderRating: true, OrderReviews: true,
}

// ShowType is the result layout.
type ShowType string

const (
	ShowBox  ShowType = "box"
	ShowList ShowType = "list"
)

// Keyword combines search terms. All of And must match, any of Or, none
// of Not, and each Exact phrase verbatim.
type Keyword struct {
	And   []string
	Or    []string
	Not   []string
	Exact []string
}

// String renders the keyword the way the search box expects it.
func (k Keyword) String() string {
	var b strings.Builder
	b.WriteString(strings.Join(k.And, " "))
	if len(k.Or) > 0 {
		b.WriteString("|" + strings.Join(k.Or, "|"))
	}
	if len(k.Not) > 0 {
		b.WriteString(" -" + strings.Join(k.Not, " -"))
	}
	if len(k.Exact) > 0 {
		b.WriteString(` "` + strings.Join(k.Exact, `" "`) + `"`)
	}
	return b.String()
}

// SearchQuery is a faceted search. Zero values leave a facet unset.
type SearchQuery struct {
	Status    Status
	WorkTypes []WorkType
	Keyword   Keyword
	// Creator matches voice actors, writers and illustrators.
	Creator         string
	Order           Order
	PerPage         int
	Page            int
	ShowType        ShowType
	HideAIGenerated bool
	HideAIAssisted  bool
	// Language defaults to "jp".
	Language string
}

// SearchURL builds the URL of a faceted search on the maniax floor.
func (c *Client) SearchURL(q SearchQuery) (string, error) {
	segments, err := q.segments()
	if err != nil {
		return "", err
	}
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.Endpoints.Site + "/maniax/fsr/=/" + strings.Join(segments, "/") + "/", nil
}

func (q SearchQuery) segments() ([]string, error) {
	lang := q.Language
	if lang == "" {
		lang = "jp"
	}
	s := []string{"language", lang}

	switch q.Status {
	case "", StatusAll:
		s = append(s, "ana_flg", "all")
	case StatusOnSale:
		s = append(s, "ana_flg", "on_sale")
	case StatusPreorder:
		s = append(s, "is_reserve", "1")
	case StatusUpcoming:
		s = append(s, "ana_flg", "on")
	default:
		return nil, fmt.Errorf("unknown status %q", q.Status)
	}

	for _, want := range q.WorkTypes {
		found := false
		for i, wt := range workTypes {
			if wt.typ != want {
				continue
			}
			idx := strconv.Itoa(i)
			s = append(s,
				"work_type_category["+idx+"]", string(wt.typ),
				"work_type_category_name["+idx+"]", wt.label,
			)
			found = true
		}
		if !found {
			return nil, fmt.Errorf("unknown work type %q", want)
		}
	}

	if kw := q.Keyword.String(); strings.TrimSpace(kw) != "" {
		s = append(s, "keyword", kw)
	}
	if q.Creator != "" {
		s = append(s, "keyword_creater", q.Creator)
	}
	if q.Order != "" {
		if !validOrders[q.Order] {
			return nil, fmt.Errorf("unknown order %q", q.Order)
		}
		s = append(s, "order", string(q.Order))
	}

	switch q.PerPage {
	case 0:
	case 30, 50, 100:
		s = append(s, "per_page", strconv.Itoa(q.PerPage))
	default:
		return nil, fmt.Errorf("per page must be 30, 50 or 100, got %d", q.PerPage)
	}
	if q.Page < 0 {
		return nil, fmt.Errorf("negative page %d", q.Page)
	}
	if q.Page > 0 {
		s = append(s, "page", strconv.Itoa(q.Page))
	}

	switch q.ShowType {
	case "":
	case ShowBox:
		s = append(s, "show_type", "0")
	case ShowList:
		s = append(s, "show_type", "1")
	default:
		return nil, fmt.Errorf("show type must be box or list, got %q", q.ShowType)
	}

	switch {
	case q.HideAIGenerated && q.HideAIAssisted:
		s = append(s, "options_and_or", "and", "options_not[0]", "AIG", "options_not[1]", "AIP")
	case q.HideAIGenerated:
		s = append(s, "options_not[0]", "AIG")
	case q.HideAIAssisted:
		s = append(s, "options_not[0]", "AIP")
	}
	return s, nil
}

// Search runs q and reads the result page. Upcoming works carry no price.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]*models.Work, error) {
	searchURL, err := c.SearchURL(q)
	if err != nil {
		return nil, err
	}

	doc, err := c.fetchPage(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	if doc.Find("ul.n_worklist, #search_result_list").Length() == 0 {
		return nil, &models.StructureNotFoundError{URL: searchURL, Reason: models.ReasonUnknown, Err: errors.New("no result list on page")}
	}

	items := doc.Find("ul.n_worklist > li")
	c.logger.Debug("search", zap.String("url", searchURL), zap.Int("items", items.Length()))

	works := make([]*models.Work, 0, items.Length())
	for i := range items.Nodes {
		work, err := listedWork(items.Eq(i), searchURL)
		if err != nil {
			return works, fmt.Errorf("search item %d: %w", i, err)
		}
		works = append(works, work)
	}
	return works, nil
}
