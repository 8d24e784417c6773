package niconico

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/models"
	"video-scraper/internal/scraper/scrapertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	channelHost = "https://ch.example.test"
	liveHost    = "https://live.example.test"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, chrono.Tokyo)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func newTestClient(f *scrapertest.Factory) *Client {
	c := New(scrapertest.Deps(f, testNow))
	c.Endpoints.Channel = channelHost
	c.Endpoints.Live = liveHost
	return c
}

func assertTime(t *testing.T, want time.Time, got *time.Time) {
	t.Helper()
	if assert.NotNil(t, got) {
		assert.True(t, want.Equal(*got), "want %s, got %s", want, got)
	}
}

func watchPage(id, signals string) string {
	return fmt.Sprintf(`<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"VideoObject","embedUrl":"https://live.nicovideo.jp/watch/%[1]s","author":{"@type":"Organization","url":"https://ch.nicovideo.jp/ch2581/join"},"publication":{"@type":"BroadcastEvent","name":"特番 %[1]s","startDate":"2024-03-01T21:00:00+09:00","endDate":"2024-03-01T22:30:00+09:00"},"thumbnailUrl":["https://nicolive.cdn.nimg.jp/live/%[1]s.jpg"],"keywords":["ゲーム","雑談"]}</script>
</head><body>
<div class="___description___a1B2c">番組の説明です。</div>
%[2]s
</body></html>`, id, signals)
}

func TestInvalidIdentifiersTouchNoPage(t *testing.T) {
	f := &scrapertest.Factory{}
	c := newTestClient(f)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Lives(ctx, "2581", 10)
	var invalid *models.InvalidIdentifierError
	assert.ErrorAs(t, err, &invalid)

	_, err = c.Videos(ctx, "channel", 10)
	assert.ErrorAs(t, err, &invalid)

	_, err = c.LiveDetail(ctx, "so123")
	assert.ErrorAs(t, err, &invalid)

	_, err = c.LiveDetails(ctx, []string{"lv1", "x"}, 4)
	assert.ErrorAs(t, err, &invalid)

	_, err = c.VideoDetail(ctx, "lv1")
	assert.ErrorAs(t, err, &invalid)

	_, err = c.NewsDetail(ctx, "ch1", "2061213")
	assert.ErrorAs(t, err, &invalid)

	assert.Empty(t, f.Opened())
	assert.Zero(t, f.TotalCalls())
}

func TestNonPositiveLimitReadsNothing(t *testing.T) {
	f := &scrapertest.Factory{}
	c := newTestClient(f)
	defer c.Close()
	ctx := context.Background()

	videos, err := c.Videos(ctx, "ch123", -1)
	require.NoError(t, err)
	assert.Empty(t, videos)

	lives, err := c.Lives(ctx, "ch123", 0)
	require.NoError(t, err)
	assert.Empty(t, lives)

	newses, err := c.News(ctx, "ch123", -5)
	require.NoError(t, err)
	assert.Empty(t, newses)

	assert.Empty(t, f.Opened())
}

func TestLivesWalksPages(t *testing.T) {
	scrapertest.EachMode(t, func(t *testing.T, opaque bool) {
		f := &scrapertest.Factory{Pages: map[string]string{
			channelHost + "/ch2581/live?page=1": fixture(t, "live_page1.html"),
			channelHost + "/ch2581/live?page=2": fixture(t, "live_page2.html"),
		}}
		f.Opaque = opaque
		c := newTestClient(f)
		defer c.Close()

		lives, err := c.Lives(context.Background(), "ch2581", 10)
		require.NoError(t, err)
		require.Len(t, lives, 7)

		ids := make([]string, len(lives))
		for i, l := range lives {
			ids[i] = l.ID()
		}
		assert.Equal(t, []string{"lv100", "lv201", "lv202", "lv301", "lv302", "lv303", "lv304"}, ids)

		now := lives[0]
		assert.Equal(t, models.StatusNow, *now.Status)
		assert.Nil(t, now.StartAt)
		assert.Equal(t, "アーカイブ配信中", *now.Title)
		assert.Equal(t, "testch", *now.PosterID)
		assert.Equal(t, "テストチャンネル", *now.PosterName)

		// January is before March, so it rolls into next year.
		assert.Equal(t, models.StatusFuture, *lives[1].Status)
		assertTime(t, time.Date(2025, 1, 15, 22, 0, 0, 0, chrono.Tokyo), lives[1].StartAt)
		assertTime(t, time.Date(2024, 6, 1, 20, 30, 0, 0, chrono.Tokyo), lives[2].StartAt)

		past := lives[3]
		assert.Equal(t, models.StatusPast, *past.Status)
		assertTime(t, time.Date(2024, 3, 4, 22, 50, 0, 0, chrono.Tokyo), past.StartAt)
		assert.Equal(t, "https://live.nicovideo.jp/watch/lv301", *past.URL)
		assert.Equal(t, "https://nicolive.cdn.nimg.jp/live/lv301.jpg", *past.Thumbnail)
	})
}

func TestLivesStopsAtLimit(t *testing.T) {
	f := &scrapertest.Factory{Pages: map[string]string{
		channelHost + "/ch2581/live?page=1": fixture(t, "live_page1.html"),
		channelHost + "/ch2581/live?page=2": fixture(t, "live_page2.html"),
	}}
	c := newTestClient(f)
	defer c.Close()

	lives, err := c.Lives(context.Background(), "ch2581", 3)
	require.NoError(t, err)
	assert.Len(t, lives, 3)

	require.Len(t, f.Opened(), 1)
	assert.Equal(t, []string{channelHost + "/ch2581/live?page=1"}, f.Opened()[0].Navigations())
}

func TestLivesMissingChannel(t *testing.T) {
	f := &scrapertest.Factory{Pages: map[string]string{
		channelHost + "/ch9/live?page=1": `<html><body><h1>お探しのページは見つかりませんでした</h1></body></html>`,
	}}
	c := newTestClient(f)
	defer c.Close()

	lives, err := c.Lives(context.Background(), "ch9", 10)
	var notFound *models.StructureNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, notFound.WrongIdentifier())
	assert.Empty(t, lives)
}

func TestVideosListing(t *testing.T) {
	scrapertest.EachMode(t, func(t *testing.T, opaque bool) {
		f := &scrapertest.Factory{Pages: map[string]string{
			channelHost + "/ch2581/video?page=1": fixture(t, "video_page1.html"),
		}}
		f.Opaque = opaque
		c := newTestClient(f)
		defer c.Close()

		videos, err := c.Videos(context.Background(), "ch2581", 10)
		require.NoError(t, err)
		require.Len(t, videos, 2)

		v := videos[0]
		assert.Equal(t, "so42000001", v.ID())
		assert.Equal(t, "【公式】第1話 はじまり", *v.Title)
		assert.Equal(t, int64(12345), *v.ViewCount)
		assert.Equal(t, int64(678), *v.CommentCount)
		assert.Equal(t, 115*time.Minute+56*time.Second, *v.Duration)
		assertTime(t, time.Date(2023, 9, 8, 19, 0, 0, 0, chrono.Tokyo), v.PostedAt)

		members := videos[1]
		assert.Equal(t, "会員限定 メイキング", *members.Title)
		assert.Nil(t, members.ViewCount)
		assert.Nil(t, members.CommentCount)
	})
}

func TestLiveDetailPast(t *testing.T) {
	scrapertest.EachMode(t, func(t *testing.T, opaque bool) {
		f := &scrapertest.Factory{Pages: map[string]string{
			liveHost + "/watch/lv500": watchPage("lv500",
				`<time class="___program-viewing-period-date-time___xY1" datetime="2024-04-01 05:59:00">2024/04/01(月) 05:59まで</time>`),
		}}
		f.Opaque = opaque
		c := newTestClient(f)
		defer c.Close()

		live, err := c.LiveDetail(context.Background(), "lv500")
		require.NoError(t, err)

		assert.Equal(t, models.StatusPast, *live.Status)
		assert.Equal(t, "特番 lv500", *live.Title)
		assert.Equal(t, "ch2581", *live.PosterID)
		assert.Equal(t, "番組の説明です。", *live.Description)
		assert.Equal(t, []string{"ゲーム", "雑談"}, live.Tags)
		assert.True(t, *live.ArchiveEnabled)
		assertTime(t, time.Date(2024, 4, 1, 5, 59, 0, 0, chrono.Tokyo), live.ArchiveUntil)
		assertTime(t, time.Date(2024, 3, 1, 22, 30, 0, 0, chrono.Tokyo), live.EndAt)
		assert.Equal(t, 90*time.Minute, *live.Duration)
	})
}

func TestLiveDetailStatusSignals(t *testing.T) {
	tests := []struct {
		name    string
		signals string
		status  models.LiveStatus
		archive *bool
	}{
		{
			name:    "waiting message",
			signals: `<p class="___primary-message___q9">放送開始までしばらくお待ちください</p>`,
			status:  models.StatusFuture,
		},
		{
			name:    "replay closed",
			signals: `<p class="___primary-message___q9">タイムシフトの公開期間が終了しました</p>`,
			status:  models.StatusPast,
			archive: models.Ptr(false),
		},
		{
			name:    "on air",
			signals: `<button data-live-status="live">LIVE</button>`,
			status:  models.StatusNow,
		},
		{
			name: "timeshift wins over on-air button",
			signals: `<button data-live-status="live">LIVE</button>
<time class="___program-viewing-period-date-time___xY1" datetime="2024-04-01 05:59:00"></time>`,
			status:  models.StatusPast,
			archive: models.Ptr(true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &scrapertest.Factory{Pages: map[string]string{
				liveHost + "/watch/lv1": watchPage("lv1", tt.signals),
			}}
			c := newTestClient(f)
			defer c.Close()

			live, err := c.LiveDetail(context.Background(), "lv1")
			require.NoError(t, err)
			assert.Equal(t, tt.status, *live.Status)
			assert.Equal(t, tt.archive, live.ArchiveEnabled)
			if tt.status != models.StatusPast {
				assert.Nil(t, live.EndAt)
			}
		})
	}
}

func TestLiveDetailUnknownStatus(t *testing.T) {
	f := &scrapertest.Factory{Pages: map[string]string{
		liveHost + "/watch/lv7": watchPage("lv7", ""),
	}}
	c := newTestClient(f)
	defer c.Close()

	_, err := c.LiveDetail(context.Background(), "lv7")
	var unknown *models.UnknownLiveStatusError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "lv7", unknown.ID)
}

func TestLiveDetailsFanOut(t *testing.T) {
	on := `<button data-live-status="live">LIVE</button>`
	f := &scrapertest.Factory{Pages: map[string]string{
		liveHost + "/watch/lv1": watchPage("lv1", on),
		liveHost + "/watch/lv2": watchPage("lv2", on),
		liveHost + "/watch/lv3": watchPage("lv3", on),
	}}
	c := newTestClient(f)
	defer c.Close()

	lives, err := c.LiveDetails(context.Background(), []string{"lv1", "lv2", "lv3"}, 2)
	require.NoError(t, err)
	require.Len(t, lives, 3)
	for i, id := range []string{"lv1", "lv2", "lv3"} {
		assert.Equal(t, id, lives[i].ID())
	}

	opened := f.Opened()
	assert.Len(t, opened, 2)
	for _, b := range opened {
		assert.True(t, b.Closed())
	}
}

func TestLiveDetailsReturnsPrefixOnFailure(t *testing.T) {
	f := &scrapertest.Factory{Pages: map[string]string{
		liveHost + "/watch/lv1": watchPage("lv1", `<button data-live-status="live">LIVE</button>`),
		liveHost + "/watch/lv2": watchPage("lv2", ""),
	}}
	c := newTestClient(f)
	defer c.Close()

	lives, err := c.LiveDetails(context.Background(), []string{"lv1", "lv2", "lv3"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lv2")
	require.Len(t, lives, 1)
	assert.Equal(t, "lv1", lives[0].ID())
}

func newAPIServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVideoDetail(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"/thumb/so42000001": fixture(t, "thumbinfo_ok.xml"),
		"/thumb/sm9":        fixture(t, "thumbinfo_fail.xml"),
	})
	c := newTestClient(&scrapertest.Factory{})
	defer c.Close()
	c.Endpoints.ThumbInfo = srv.URL + "/thumb"

	v, err := c.VideoDetail(context.Background(), "so42000001")
	require.NoError(t, err)
	assert.False(t, v.Deleted)
	assert.Equal(t, "ch2581", *v.PosterID)
	assert.Equal(t, "テストチャンネル", *v.PosterName)
	assert.Equal(t, []string{"アニメ", "公式"}, v.Tags)
	assert.Equal(t, int64(12345), *v.ViewCount)
	assert.Equal(t, "第1話の本編です。", *v.Description)
	assertTime(t, time.Date(2023, 9, 8, 19, 0, 0, 0, chrono.Tokyo), v.PostedAt)

	gone, err := c.VideoDetail(context.Background(), "sm9")
	require.NoError(t, err)
	assert.True(t, gone.Deleted)
	assert.Nil(t, gone.Title)
}

func TestNewsFeed(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"/ch2581/blomaga/nico/feed": fixture(t, "feed.xml"),
	})
	c := newTestClient(&scrapertest.Factory{})
	defer c.Close()
	c.Endpoints.Channel = srv.URL

	newses, err := c.News(context.Background(), "ch2581", 2)
	require.NoError(t, err)
	require.Len(t, newses, 2)

	first := newses[0]
	assert.Equal(t, "ar2061213", first.ID())
	assert.Equal(t, "9月の配信スケジュール", *first.Title)
	assert.Equal(t, "testch", *first.PosterName)
	assert.Equal(t, "ch2581", *first.PosterID)
	assert.Contains(t, *first.Thumbnail, "2061213.jpg")
	assertTime(t, time.Date(2023, 9, 16, 19, 3, 0, 0, chrono.Tokyo), first.PostedAt)

	assert.Nil(t, newses[1].Thumbnail)
}

func TestNewsDetail(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"/ch2581/blomaga/ar2061213": fixture(t, "news_detail.html"),
	})
	c := newTestClient(&scrapertest.Factory{})
	defer c.Close()
	c.Endpoints.Channel = srv.URL

	news, err := c.NewsDetail(context.Background(), "ch2581", "ar2061213")
	require.NoError(t, err)
	assert.Equal(t, "9月の配信スケジュール", *news.Title)
	assert.Equal(t, "ch2581", *news.PosterID)
	assert.Contains(t, *news.Body, "9月23日 22時から特番を放送します。")
	assertTime(t, time.Date(2023, 9, 16, 19, 3, 0, 0, chrono.Tokyo), news.PostedAt)
	assertTime(t, time.Date(2023, 9, 16, 23, 13, 17, 0, chrono.Tokyo), news.UpdatedAt)

	_, err = c.NewsDetail(context.Background(), "ch2581", "ar1")
	var notFound *models.StructureNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, notFound.WrongIdentifier())
}

func TestNewsDetailTitleFallsBackToPageMeta(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"/ch2581/blomaga/ar2061214": `<html><head>
<meta property="og:title" content="号外のお知らせ">
<script type="application/ld+json">{"@type":"NewsArticle","datePublished":"2023-09-20 12:00:00"}</script>
</head><body><div class="main_blog_txt"><p>号外です。</p></div></body></html>`,
	})
	c := newTestClient(&scrapertest.Factory{})
	defer c.Close()
	c.Endpoints.Channel = srv.URL

	news, err := c.NewsDetail(context.Background(), "ch2581", "ar2061214")
	require.NoError(t, err)
	assert.Equal(t, "号外のお知らせ", *news.Title)
	assert.Equal(t, srv.URL+"/ch2581/blomaga/ar2061214", *news.URL)
	assert.Equal(t, "号外です。", *news.Body)
}

func TestResolveChannelID(t *testing.T) {
	srv := newAPIServer(t, map[string]string{
		"/testch": fixture(t, "channel_top.html"),
	})
	c := newTestClient(&scrapertest.Factory{})
	defer c.Close()
	c.Endpoints.Channel = srv.URL
	ctx := context.Background()

	id, err := c.ResolveChannelID(ctx, "@testch")
	require.NoError(t, err)
	assert.Equal(t, "ch2581", id)

	id, err = c.ResolveChannelID(ctx, "ch42")
	require.NoError(t, err)
	assert.Equal(t, "ch42", id)

	_, err = c.ResolveChannelID(ctx, "bad/handle")
	var invalid *models.InvalidIdentifierError
	assert.ErrorAs(t, err, &invalid)

	_, err = c.ResolveChannelID(ctx, "missing")
	var notFound *models.StructureNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.True(t, notFound.WrongIdentifier())
}

func TestAuthorID(t *testing.T) {
	assert.Equal(t, "ch2581", *authorID("https://ch.nicovideo.jp/ch2581/join"))
	assert.Equal(t, "12345", *authorID("https://www.nicovideo.jp/user/12345"))
	assert.Nil(t, authorID("https://example.com/somewhere"))
	assert.Nil(t, authorID(""))
}
