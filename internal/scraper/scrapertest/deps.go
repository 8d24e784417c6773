package scrapertest

import (
	"time"

	"video-scraper/internal/config"
	"video-scraper/internal/scraper"

	"go.uber.org/zap"
)

// FastPoll keeps page waits short enough for unit tests.
var FastPoll = config.PollConfig{
	Timeout:            300 * time.Millisecond,
	Interval:           5 * time.Millisecond,
	PaginationAttempts: 3,
}

// Deps returns client dependencies that open browsers from f, talk HTTP
// without retries and see now as the current time.
func Deps(f *Factory, now time.Time) *scraper.Deps {
	logger := zap.NewNop()
	return &scraper.Deps{
		Logger: logger,
		HTTP: scraper.NewHTTPClient(config.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "scrapertest",
		}, logger),
		Reader:      scraper.NewPageReader(),
		OpenBrowser: f.Open,
		Poll:        FastPoll,
		Now:         func() time.Time { return now },
	}
}
