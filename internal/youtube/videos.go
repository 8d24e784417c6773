package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/models"

	"github.com/mmcdole/gofeed"
	"github.com/sosodev/duration"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	yt "google.golang.org/api/youtube/v3"
)

// maxIDsPerCall is the videos.list page size limit.
const maxIDsPerCall = 50

var videoParts = []string{"snippet", "statistics", "liveStreamingDetails", "contentDetails"}

// LatestVideoIDs returns up to limit of the channel's newest video IDs.
func (c *Client) LatestVideoIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}
	if limit > maxIDsPerCall {
		limit = maxIDsPerCall
	}

	res, err := svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		MaxResults(int64(limit)).
		Type("video").
		Order("date").
		SafeSearch("none").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError("search.list", err)
	}

	ids := make([]string, 0, len(res.Items))
	for _, item := range res.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			ids = append(ids, item.Id.VideoId)
		}
	}
	c.logger.Debug("search", zap.String("channel", channelID), zap.Int("ids", len(ids)))
	return ids, nil
}

// FeedVideoIDs reads the channel's public upload feed, which holds the 15
// newest entries.
func (c *Client) FeedVideoIDs(ctx context.Context, channelID string) ([]string, error) {
	if err := ValidateChannelID(channelID); err != nil {
		return nil, err
	}

	url := c.Endpoints.Feed + "?channel_id=" + channelID
	body, err := c.deps.HTTP.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &models.RemoteFetchError{URL: url, StatusCode: http.StatusOK, Err: fmt.Errorf("parse feed: %w", err)}
	}

	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if values := item.Extensions["yt"]["videoId"]; len(values) > 0 && values[0].Value != "" {
			ids = append(ids, values[0].Value)
		}
	}
	return ids, nil
}

// Videos fetches full details for ids in input order. Broadcasts come back
// as *models.Live, everything else as *models.Video. IDs the API does not
// return are reported as deleted videos.
func (c *Client) Videos(ctx context.Context, ids []string) ([]models.Record, error) {
	for _, id := range ids {
		if err := ValidateVideoID(id); err != nil {
			return nil, err
		}
	}
	if len(ids) == 0 {
		return []models.Record{}, nil
	}
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	found := make(map[string]*yt.Video, len(ids))
	for start := 0; start < len(ids); start += maxIDsPerCall {
		end := min(start+maxIDsPerCall, len(ids))
		res, err := svc.Videos.List(videoParts).Id(ids[start:end]...).Context(ctx).Do()
		if err != nil {
			return nil, apiError("videos.list", err)
		}
		for _, v := range res.Items {
			found[v.Id] = v
		}
	}

	records := make([]models.Record, 0, len(ids))
	for _, id := range ids {
		v, ok := found[id]
		if !ok {
			c.logger.Info("video not returned", zap.String("video", id))
			gone := models.NewVideo(id)
			gone.Set(models.VideoFields{ContentFields: models.ContentFields{Deleted: models.Ptr(true)}})
			records = append(records, gone)
			continue
		}
		r, err := c.record(v)
		if err != nil {
			return records, fmt.Errorf("%s: %w", id, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (c *Client) record(v *yt.Video) (models.Record, error) {
	content := models.ContentFields{
		URL:     models.Ptr(c.Endpoints.Site + "/watch?v=" + v.Id),
		Deleted: models.Ptr(false),
	}
	var metrics models.Metrics

	if s := v.Snippet; s != nil {
		content.PosterID = optional(s.ChannelId)
		content.PosterName = optional(s.ChannelTitle)
		if s.ChannelId != "" {
			content.PosterURL = models.Ptr(c.Endpoints.Site + "/channel/" + s.ChannelId)
		}
		content.Title = optional(s.Title)
		content.Thumbnail = optional(thumbnail(s.Thumbnails))
		content.Tags = s.Tags
		metrics.Description = optional(s.Description)

		posted, err := parseTime(s.PublishedAt)
		if err != nil {
			return nil, &models.ExtractionError{Step: "publishedAt", Err: err}
		}
		content.PostedAt = posted
	}

	if st := v.Statistics; st != nil {
		metrics.ViewCount = count(st.ViewCount)
		metrics.LikeCount = shown(st.LikeCount)
		metrics.CommentCount = shown(st.CommentCount)
	}

	var length *time.Duration
	if cd := v.ContentDetails; cd != nil && cd.Duration != "" {
		d, err := duration.Parse(cd.Duration)
		if err != nil {
			return nil, &models.ExtractionError{Step: "duration " + cd.Duration, Err: err}
		}
		length = models.Ptr(d.ToTimeDuration())
	}

	ld := v.LiveStreamingDetails
	if ld == nil {
		metrics.Duration = length
		video := models.NewVideo(v.Id)
		video.Set(models.VideoFields{ContentFields: content, Metrics: metrics})
		return video, nil
	}

	schedule, err := liveSchedule(v, ld)
	if err != nil {
		return nil, err
	}
	if *schedule.Status == models.StatusPast {
		metrics.Duration = length
	}
	live := models.NewLive(v.Id)
	live.Set(models.LiveFields{ContentFields: content, Metrics: metrics, LiveSchedule: schedule})
	return live, nil
}

// liveSchedule classifies a broadcast: on air while the snippet says
// "live", finished once an actual end exists, upcoming otherwise.
func liveSchedule(v *yt.Video, ld *yt.VideoLiveStreamingDetails) (models.LiveSchedule, error) {
	var (
		status     models.LiveStatus
		start, end string
	)
	switch {
	case v.Snippet != nil && v.Snippet.LiveBroadcastContent == "live":
		status, start = models.StatusNow, ld.ActualStartTime
	case ld.ActualEndTime != "":
		status, start, end = models.StatusPast, ld.ActualStartTime, ld.ActualEndTime
	default:
		status, start = models.StatusFuture, ld.ScheduledStartTime
	}

	schedule := models.LiveSchedule{Status: &status}
	var err error
	if schedule.StartAt, err = parseTime(start); err != nil {
		return schedule, &models.ExtractionError{Step: "live start", Err: err}
	}
	if schedule.EndAt, err = parseTime(end); err != nil {
		return schedule, &models.ExtractionError{Step: "live end", Err: err}
	}
	return schedule, nil
}

// thumbnail picks the largest available size.
func thumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.Standard, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func parseTime(s string) (*time.Time, error) {
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

func count(n uint64) *int64 {
	v := int64(n)
	return &v
}

// shown reads a counter the owner can hide. A hidden counter is left out of
// the response and decodes as zero, so zero is reported as unknown.
func shown(n uint64) *int64 {
	if n == 0 {
		return nil
	}
	return count(n)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// apiError turns an HTTP level API failure into a RemoteFetchError.
func apiError(call string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &models.RemoteFetchError{URL: call, StatusCode: gerr.Code, Err: gerr}
	}
	return fmt.Errorf("%s: %w", call, err)
}
