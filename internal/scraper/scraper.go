// Package scraper provides the machinery shared by the platform extractors:
// a scripted browser session, an HTTP client with retries, page-structure
// waits, pagination checks, a browser worker pool and page text helpers.
package scraper

import (
	"sync"
	"time"

	"video-scraper/internal/chrono"
	"video-scraper/internal/config"
	"video-scraper/internal/poll"

	"go.uber.org/zap"
)

// Deps bundles what every platform client needs.
type Deps struct {
	Logger *zap.Logger
	HTTP   *HTTPClient
	Reader *PageReader
	// OpenBrowser returns a fresh, not yet started browser.
	OpenBrowser func() Browser
	Poll        config.PollConfig
	Now         chrono.Clock
}

// NewDeps wires the production dependencies from cfg.
func NewDeps(cfg *config.Config, logger *zap.Logger) *Deps {
	browserOpts := BrowserOptionsFromConfig(cfg.Browser)
	return &Deps{
		Logger: logger,
		HTTP:   NewHTTPClient(cfg.HTTP, logger),
		Reader: NewPageReader(),
		OpenBrowser: func() Browser {
			return NewSession(browserOpts, logger)
		},
		Poll: cfg.Poll,
		Now:  chrono.Now,
	}
}

// PollOptions returns the bound for page waits.
func (d *Deps) PollOptions() poll.Options {
	return poll.Options{Timeout: d.Poll.Timeout, Interval: d.Poll.Interval}
}

// Clock returns the current Tokyo time.
func (d *Deps) Clock() time.Time {
	if d.Now == nil {
		return chrono.Now()
	}
	return d.Now()
}

// Lazy holds one browser per client, opened on first use.
type Lazy struct {
	open func() Browser

	mu sync.Mutex
	b  Browser
}

func NewLazy(open func() Browser) *Lazy {
	return &Lazy{open: open}
}

// Get returns the client's browser, opening it if needed.
func (l *Lazy) Get() Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.b == nil {
		l.b = l.open()
	}
	return l.b
}

// Close releases the browser if one was opened.
func (l *Lazy) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.b == nil {
		return nil
	}
	err := l.b.Close()
	l.b = nil
	return err
}
