package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"video-scraper/internal/config"
	"video-scraper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(retries, limit int) *HTTPClient {
	return NewHTTPClient(config.HTTPConfig{
		Timeout:        5 * time.Second,
		MaxRetries:     retries,
		SizeLimitBytes: limit,
		UserAgent:      "test-agent",
	}, zap.NewNop())
}

func TestGetSendsHeadersAndCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		if c, err := r.Cookie("adultchecked"); assert.NoError(t, err) {
			assert.Equal(t, "1", c.Value)
		}
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer srv.Close()

	body, err := newTestClient(0, 0).Get(context.Background(), srv.URL, WithCookie("adultchecked", "1"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
}

func TestGetMapsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestClient(0, 0).Get(context.Background(), srv.URL)

	var rfe *models.RemoteFetchError
	require.ErrorAs(t, err, &rfe)
	assert.Equal(t, http.StatusNotFound, rfe.StatusCode)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("fine"))
	}))
	defer srv.Close()

	body, err := newTestClient(2, 0).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "fine", string(body))
	assert.Equal(t, int32(2), hits.Load())
}

func TestGetEnforcesSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, err := newTestClient(0, 16).Get(context.Background(), srv.URL)
	var rfe *models.RemoteFetchError
	assert.ErrorAs(t, err, &rfe)
}

func TestDocumentParsesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1 class="t">見出し</h1></body></html>`))
	}))
	defer srv.Close()

	doc, err := newTestClient(0, 0).Document(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "見出し", doc.Find("h1.t").Text())
}
