package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"video-scraper/internal/config"
	"video-scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// HTTPClient fetches feeds, XML APIs and static pages. Server errors are
// retried with backoff.
type HTTPClient struct {
	client    *resty.Client
	sizeLimit int
	logger    *zap.Logger
}

// RequestOption adjusts a single request.
type RequestOption func(*resty.Request)

// WithCookie sends a cookie with the request.
func WithCookie(name, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetCookie(&http.Cookie{Name: name, Value: value})
	}
}

func NewHTTPClient(cfg config.HTTPConfig, logger *zap.Logger) *HTTPClient {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		}).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(MaxRedirects)).
		SetHeaders(map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "ja,en-US;q=0.9,en;q=0.8",
			"Cache-Control":   "no-cache",
		})

	return &HTTPClient{
		client:    client,
		sizeLimit: cfg.SizeLimitBytes,
		logger:    logger,
	}
}

// Get fetches url and returns the response body. Any non-2xx answer is a
// *models.RemoteFetchError.
func (h *HTTPClient) Get(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	req := h.client.R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := req.Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.RemoteFetchError{URL: url, Err: err}
	}

	h.logger.Debug("fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.IsError() {
		return nil, &models.RemoteFetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode()),
		}
	}

	body := resp.Body()
	if h.sizeLimit > 0 && len(body) > h.sizeLimit {
		return nil, &models.RemoteFetchError{
			URL:        url,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("response exceeds %d bytes", h.sizeLimit),
		}
	}
	return body, nil
}

// Document fetches url and parses it as HTML.
func (h *HTTPClient) Document(ctx context.Context, url string, opts ...RequestOption) (*goquery.Document, error) {
	body, err := h.Get(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &models.ExtractionError{Step: "parse " + url, Err: err}
	}
	return doc, nil
}
