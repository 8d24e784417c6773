package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper/scrapertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yt "google.golang.org/api/youtube/v3"
)

const (
	testChannel = "UCabcdefghijklmnopqrstuv"
	plainID     = "vid00000001"
	pastID      = "vid00000002"
	upcomingID  = "vid00000003"
	onAirID     = "vid00000004"
	missingID   = "vid00000005"
	hiddenID    = "vid00000006"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>テストチャンネル</title>
 <entry>
  <id>yt:video:vid00000001</id>
  <yt:videoId>vid00000001</yt:videoId>
  <yt:channelId>UCabcdefghijklmnopqrstuv</yt:channelId>
  <title>動画1</title>
  <published>2024-03-01T12:00:00+00:00</published>
 </entry>
 <entry>
  <id>yt:video:vid00000002</id>
  <yt:videoId>vid00000002</yt:videoId>
  <yt:channelId>UCabcdefghijklmnopqrstuv</yt:channelId>
  <title>配信アーカイブ</title>
  <published>2024-02-28T12:00:00+00:00</published>
 </entry>
</feed>`

func apiVideos() map[string]*yt.Video {
	snippet := func(title, broadcast string) *yt.VideoSnippet {
		return &yt.VideoSnippet{
			ChannelId:            testChannel,
			ChannelTitle:         "テストチャンネル",
			Title:                title,
			Description:          title + "の説明",
			PublishedAt:          "2024-03-01T12:00:00Z",
			LiveBroadcastContent: broadcast,
			Tags:                 []string{"ゲーム"},
			Thumbnails: &yt.ThumbnailDetails{
				Default: &yt.Thumbnail{Url: "https://i.ytimg.com/default.jpg"},
				High:    &yt.Thumbnail{Url: "https://i.ytimg.com/hq.jpg"},
			},
		}
	}
	stats := &yt.VideoStatistics{ViewCount: 1500, LikeCount: 120, CommentCount: 8}

	return map[string]*yt.Video{
		plainID: {
			Id: plainID, Snippet: snippet("動画1", "none"), Statistics: stats,
			ContentDetails: &yt.VideoContentDetails{Duration: "PT1H2M3S"},
		},
		pastID: {
			Id: pastID, Snippet: snippet("配信アーカイブ", "none"), Statistics: stats,
			ContentDetails: &yt.VideoContentDetails{Duration: "PT2H"},
			LiveStreamingDetails: &yt.VideoLiveStreamingDetails{
				ActualStartTime: "2024-02-28T12:00:00Z",
				ActualEndTime:   "2024-02-28T14:00:00Z",
			},
		},
		upcomingID: {
			Id: upcomingID, Snippet: snippet("次回の配信", "upcoming"),
			ContentDetails: &yt.VideoContentDetails{Duration: "P0D"},
			LiveStreamingDetails: &yt.VideoLiveStreamingDetails{
				ScheduledStartTime: "2024-03-20T11:00:00Z",
			},
		},
		hiddenID: {
			Id: hiddenID, Snippet: snippet("評価非公開", "none"),
			Statistics:     &yt.VideoStatistics{ViewCount: 30},
			ContentDetails: &yt.VideoContentDetails{Duration: "PT45S"},
		},
		onAirID: {
			Id: onAirID, Snippet: snippet("配信中", "live"),
			ContentDetails: &yt.VideoContentDetails{Duration: "P0D"},
			LiveStreamingDetails: &yt.VideoLiveStreamingDetails{
				ActualStartTime: "2024-03-10T01:00:00Z",
			},
		},
	}
}

type fakeAPI struct {
	*httptest.Server
	hits atomic.Int32
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	videos := apiVideos()
	api := &fakeAPI{}

	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, testChannel, r.URL.Query().Get("channelId"))
		assert.Equal(t, "date", r.URL.Query().Get("order"))
		writeJSON(w, &yt.SearchListResponse{Items: []*yt.SearchResult{
			{Id: &yt.ResourceId{Kind: "youtube#video", VideoId: plainID}},
			{Id: &yt.ResourceId{Kind: "youtube#video", VideoId: pastID}},
		}})
	})
	mux.HandleFunc("/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		api.hits.Add(1)
		var ids []string
		for _, v := range r.URL.Query()["id"] {
			ids = append(ids, strings.Split(v, ",")...)
		}
		res := &yt.VideoListResponse{}
		for _, id := range ids {
			if v, ok := videos[id]; ok {
				res.Items = append(res.Items, v)
			}
		}
		writeJSON(w, res)
	})
	mux.HandleFunc("/feeds/videos.xml", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testChannel, r.URL.Query().Get("channel_id"))
		_, _ = w.Write([]byte(atomFeed))
	})
	mux.HandleFunc("/@testhandle", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><link itemprop="url" href="http://www.youtube.com/channel/` + testChannel + `"></head><body></body></html>`))
	})

	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(api *fakeAPI, key string) *Client {
	c := New(scrapertest.Deps(&scrapertest.Factory{}, time.Date(2024, 3, 10, 12, 0, 0, 0, chrono.Tokyo)), key)
	c.Endpoints = Endpoints{
		Site: api.URL,
		Feed: api.URL + "/feeds/videos.xml",
		API:  api.URL + "/",
	}
	return c
}

func TestLatestVideoIDs(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "test-key")

	ids, err := c.LatestVideoIDs(context.Background(), testChannel, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{plainID, pastID}, ids)
}

func TestLatestVideoIDsNonPositiveLimit(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "test-key")

	ids, err := c.LatestVideoIDs(context.Background(), testChannel, -1)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Zero(t, api.hits.Load())
}

func TestFeedVideoIDs(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "")

	ids, err := c.FeedVideoIDs(context.Background(), testChannel)
	require.NoError(t, err)
	assert.Equal(t, []string{plainID, pastID}, ids)
}

func TestVideosMapsKinds(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "test-key")

	records, err := c.Videos(context.Background(), []string{plainID, pastID, upcomingID, onAirID, missingID})
	require.NoError(t, err)
	require.Len(t, records, 5)

	video, ok := records[0].(*models.Video)
	require.True(t, ok)
	assert.Equal(t, "動画1", *video.Title)
	assert.Equal(t, "https://i.ytimg.com/hq.jpg", *video.Thumbnail)
	assert.Equal(t, time.Hour+2*time.Minute+3*time.Second, *video.Duration)
	assert.Equal(t, int64(1500), *video.ViewCount)
	assert.Equal(t, int64(120), *video.LikeCount)
	assert.Equal(t, testChannel, *video.PosterID)
	assert.Equal(t, api.URL+"/watch?v="+plainID, *video.URL)
	assert.Equal(t, []string{"ゲーム"}, video.Tags)

	past, ok := records[1].(*models.Live)
	require.True(t, ok)
	assert.Equal(t, models.StatusPast, *past.Status)
	assert.Equal(t, 2*time.Hour, *past.Duration)
	require.NotNil(t, past.EndAt)
	assert.True(t, time.Date(2024, 2, 28, 23, 0, 0, 0, chrono.Tokyo).Equal(*past.EndAt))

	upcoming := records[2].(*models.Live)
	assert.Equal(t, models.StatusFuture, *upcoming.Status)
	assert.True(t, time.Date(2024, 3, 20, 20, 0, 0, 0, chrono.Tokyo).Equal(*upcoming.StartAt))
	assert.Nil(t, upcoming.Duration)
	assert.Nil(t, upcoming.EndAt)

	onAir := records[3].(*models.Live)
	assert.Equal(t, models.StatusNow, *onAir.Status)
	assert.Nil(t, onAir.EndAt)

	assert.Equal(t, missingID, records[4].Base().ID())
	assert.True(t, records[4].Base().Deleted)
}

func TestVideosHiddenCountersAreUnknown(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "test-key")

	records, err := c.Videos(context.Background(), []string{hiddenID})
	require.NoError(t, err)
	require.Len(t, records, 1)

	video := records[0].(*models.Video)
	assert.Equal(t, int64(30), *video.ViewCount)
	assert.Nil(t, video.LikeCount)
	assert.Nil(t, video.CommentCount)
}

func TestInvalidIdentifiersSkipTheAPI(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "test-key")
	ctx := context.Background()

	var invalid *models.InvalidIdentifierError
	_, err := c.Videos(ctx, []string{plainID, "short"})
	assert.ErrorAs(t, err, &invalid)
	_, err = c.LatestVideoIDs(ctx, "UCshort", 5)
	assert.ErrorAs(t, err, &invalid)
	_, err = c.FeedVideoIDs(ctx, "channel")
	assert.ErrorAs(t, err, &invalid)
	_, err = c.ResolveHandle(ctx, "testhandle")
	assert.ErrorAs(t, err, &invalid)

	assert.Zero(t, api.hits.Load())
}

func TestMissingAPIKey(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "")

	_, err := c.Videos(context.Background(), []string{plainID})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestResolveHandle(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestClient(api, "")
	ctx := context.Background()

	id, err := c.ChannelID(ctx, "@testhandle")
	require.NoError(t, err)
	assert.Equal(t, testChannel, id)

	id, err = c.ChannelID(ctx, testChannel)
	require.NoError(t, err)
	assert.Equal(t, testChannel, id)

	_, err = c.ResolveHandle(ctx, "@nobody")
	var snf *models.StructureNotFoundError
	require.ErrorAs(t, err, &snf)
	assert.True(t, snf.WrongIdentifier())
}

func TestThumbnailPreference(t *testing.T) {
	assert.Equal(t, "m", thumbnail(&yt.ThumbnailDetails{
		Default: &yt.Thumbnail{Url: "d"},
		Medium:  &yt.Thumbnail{Url: "m"},
	}))
	assert.Equal(t, "x", thumbnail(&yt.ThumbnailDetails{
		Maxres:   &yt.Thumbnail{Url: "x"},
		Standard: &yt.Thumbnail{Url: "s"},
	}))
	assert.Empty(t, thumbnail(nil))
}
