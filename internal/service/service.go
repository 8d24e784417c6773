// Package service maps "platform operation target" requests onto the
// platform clients. The CLI and the HTTP server both go through it.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"video-scraper/internal/channelplus"
	"video-scraper/internal/config"
	"video-scraper/internal/dlsite"
	"video-scraper/internal/models"
	"video-scraper/internal/niconico"
	"video-scraper/internal/scraper"
	"video-scraper/internal/youtube"

	"go.uber.org/zap"
)

// DefaultLimit caps listings when the request names no limit.
const DefaultLimit = 20

// ErrUnknownOperation is returned for a platform or operation not in the
// table.
var ErrUnknownOperation = errors.New("unknown operation")

// Request names one scrape. Target lists several identifiers separated by
// commas where the operation takes more than one.
type Request struct {
	Platform  string
	Operation string
	Target    string
	Limit     int
	Workers   int
	// Options carry operation specific settings such as the ChannelPlus
	// tab or DLsite search facets.
	Options map[string]string
}

func (r Request) limit() int {
	if r.Limit <= 0 {
		return DefaultLimit
	}
	return r.Limit
}

func (r Request) targets() []string {
	var out []string
	for _, t := range strings.Split(r.Target, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Service owns one client per platform. Browser backed clients start their
// browser on first use; call Close when done. A Service runs one request
// at a time.
type Service struct {
	NicoNico    *niconico.Client
	ChannelPlus *channelplus.Client
	YouTube     *youtube.Client
	DLsite      *dlsite.Client

	logger *zap.Logger
}

func New(deps *scraper.Deps, cfg *config.Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		NicoNico:    niconico.New(deps),
		ChannelPlus: channelplus.New(deps),
		YouTube:     youtube.New(deps, cfg.YouTube.APIKey),
		DLsite:      dlsite.New(deps),
		logger:      logger.Named("service"),
	}
}

// Close releases the browsers the clients opened.
func (s *Service) Close() error {
	return errors.Join(s.NicoNico.Close(), s.ChannelPlus.Close())
}

type handler func(ctx context.Context, s *Service, req Request) ([]models.Record, error)

var operations = map[string]map[string]handler{
	"niconico": {
		"lives":   nicoLives,
		"videos":  nicoVideos,
		"news":    nicoNews,
		"live":    nicoLiveDetails,
		"video":   nicoVideoDetails,
		"article": nicoArticles,
	},
	"channelplus": {
		"lives":  plusLives,
		"videos": plusVideos,
		"news":   plusNews,
	},
	"youtube": {
		"videos": youtubeChannelVideos,
		"video":  youtubeVideos,
	},
	"dlsite": {
		"circle": dlsiteCircle,
		"work":   dlsiteWorks,
		"search": dlsiteSearch,
	},
}

// Operations lists every "platform operation" pair, sorted.
func Operations() []string {
	var out []string
	for platform, ops := range operations {
		for op := range ops {
			out = append(out, platform+" "+op)
		}
	}
	sort.Strings(out)
	return out
}

// Run executes req. Listings return the records read before a failure
// together with the error.
func (s *Service) Run(ctx context.Context, req Request) ([]models.Record, error) {
	h, ok := operations[req.Platform][req.Operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrUnknownOperation, req.Platform, req.Operation)
	}
	s.logger.Info("run",
		zap.String("platform", req.Platform),
		zap.String("operation", req.Operation),
		zap.String("target", req.Target),
		zap.Int("limit", req.limit()),
	)
	return h(ctx, s, req)
}

// HTTPStatus maps a Run error onto a response code.
func HTTPStatus(err error) int {
	var (
		invalid *models.InvalidIdentifierError
		missing *models.StructureNotFoundError
		remote  *models.RemoteFetchError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownOperation):
		return http.StatusNotFound
	case errors.As(err, &missing) && missing.WrongIdentifier():
		return http.StatusNotFound
	case errors.As(err, &remote):
		return http.StatusBadGateway
	case errors.Is(err, youtube.ErrNoAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func records[R models.Record](rs []R) []models.Record {
	out := make([]models.Record, len(rs))
	for i, r := range rs {
		out[i] = r
	}
	return out
}

// nicoChannel accepts a chNNN identifier or a channel's vanity name.
func (s *Service) nicoChannel(ctx context.Context, target string) (string, error) {
	return s.NicoNico.ResolveChannelID(ctx, target)
}

func nicoLives(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	ch, err := s.nicoChannel(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	lives, err := s.NicoNico.Lives(ctx, ch, req.limit())
	return records(lives), err
}

func nicoVideos(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	ch, err := s.nicoChannel(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	videos, err := s.NicoNico.Videos(ctx, ch, req.limit())
	return records(videos), err
}

func nicoNews(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	ch, err := s.nicoChannel(ctx, req.Target)
	if err != nil {
		return nil, err
	}
	newses, err := s.NicoNico.News(ctx, ch, req.limit())
	return records(newses), err
}

func nicoLiveDetails(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	lives, err := s.NicoNico.LiveDetails(ctx, req.targets(), req.Workers)
	return records(lives), err
}

func nicoVideoDetails(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	var out []models.Record
	for _, id := range req.targets() {
		v, err := s.NicoNico.VideoDetail(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// nicoArticles takes "channel,arNNN,arNNN...".
func nicoArticles(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	targets := req.targets()
	if len(targets) < 2 {
		return nil, &models.InvalidIdentifierError{Kind: "channel,article list", Value: req.Target}
	}
	ch, err := s.nicoChannel(ctx, targets[0])
	if err != nil {
		return nil, err
	}
	var out []models.Record
	for _, id := range targets[1:] {
		n, err := s.NicoNico.NewsDetail(ctx, ch, id)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}

func plusLives(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	lives, err := s.ChannelPlus.Lives(ctx, req.Target)
	return records(lives), err
}

func plusVideos(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	tab := channelplus.TabAll
	if raw := req.Options["tab"]; raw != "" {
		var err error
		if tab, err = channelplus.ParseTab(raw); err != nil {
			return nil, err
		}
	}
	videos, err := s.ChannelPlus.Videos(ctx, req.Target, tab, req.limit())
	return records(videos), err
}

func plusNews(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	newses, err := s.ChannelPlus.News(ctx, req.Target, req.limit())
	return records(newses), err
}

// youtubeChannelVideos lists a channel's newest uploads through the API,
// or through the public feed when source=feed.
func youtubeChannelVideos(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	ch, err := s.YouTube.ChannelID(ctx, req.Target)
	if err != nil {
		return nil, err
	}

	var ids []string
	switch source := req.Options["source"]; source {
	case "", "api":
		ids, err = s.YouTube.LatestVideoIDs(ctx, ch, req.limit())
	case "feed":
		ids, err = s.YouTube.FeedVideoIDs(ctx, ch)
		if len(ids) > req.limit() {
			ids = ids[:req.limit()]
		}
	default:
		return nil, fmt.Errorf("unknown youtube source %q", source)
	}
	if err != nil {
		return nil, err
	}
	return s.YouTube.Videos(ctx, ids)
}

func youtubeVideos(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	return s.YouTube.Videos(ctx, req.targets())
}

func dlsiteCircle(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	works, err := s.DLsite.CircleWorks(ctx, req.Target)
	if len(works) > req.limit() {
		works = works[:req.limit()]
	}
	return records(works), err
}

func dlsiteWorks(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	var out []models.Record
	for _, id := range req.targets() {
		w, err := s.DLsite.Work(ctx, id)
		if err != nil {
			return out, err
		}
		out = append(out, w)
	}
	return out, nil
}

// dlsiteSearch treats the target as space separated keywords; "-" searches
// without any. Facets come from the options.
func dlsiteSearch(ctx context.Context, s *Service, req Request) ([]models.Record, error) {
	q, err := searchQuery(req)
	if err != nil {
		return nil, err
	}
	works, err := s.DLsite.Search(ctx, q)
	if len(works) > req.limit() {
		works = works[:req.limit()]
	}
	return records(works), err
}

func searchQuery(req Request) (dlsite.SearchQuery, error) {
	opts := req.Options
	q := dlsite.SearchQuery{
		Status:   dlsite.Status(opts["status"]),
		Creator:  opts["creator"],
		Order:    dlsite.Order(opts["order"]),
		ShowType: dlsite.ShowType(opts["show"]),
		Language: opts["language"],
	}
	if req.Target != "-" {
		q.Keyword.And = strings.Fields(req.Target)
	}
	if not := opts["not"]; not != "" {
		q.Keyword.Not = strings.Split(not, "|")
	}
	if types := opts["types"]; types != "" {
		for _, t := range strings.Split(types, "|") {
			q.WorkTypes = append(q.WorkTypes, dlsite.WorkType(t))
		}
	}

	for key, dst := range map[string]*int{"per_page": &q.PerPage, "page": &q.Page} {
		raw := opts[key]
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("option %s: %w", key, err)
		}
		*dst = n
	}

	switch hide := opts["hide_ai"]; hide {
	case "":
	case "generated":
		q.HideAIGenerated = true
	case "assisted":
		q.HideAIAssisted = true
	case "all":
		q.HideAIGenerated, q.HideAIAssisted = true, true
	default:
		return q, fmt.Errorf("option hide_ai: unknown value %q", hide)
	}
	return q, nil
}
