// Package scraper provides browser configuration options for Chrome automation.
package scraper

import (
	"video-scraper/internal/config"

	"github.com/chromedp/chromedp"
)

// BrowserOptions contains configuration for browser automation
type BrowserOptions struct {
	Headless     bool
	LoadImages   bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
}

// DefaultBrowserOptions returns standard browser options
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:     true,
		LoadImages:   false,
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
	}
}

// BrowserOptionsFromConfig maps the browser section of the configuration
func BrowserOptionsFromConfig(cfg config.BrowserConfig) BrowserOptions {
	opts := DefaultBrowserOptions()
	opts.Headless = cfg.IsHeadless()
	opts.LoadImages = cfg.LoadImages
	opts.UserAgent = cfg.UserAgent
	if cfg.WindowWidth > 0 {
		opts.WindowWidth = cfg.WindowWidth
	}
	if cfg.WindowHeight > 0 {
		opts.WindowHeight = cfg.WindowHeight
	}
	return opts
}

// BuildChromeOptions creates Chrome options based on BrowserOptions
func BuildChromeOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	chromeOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	// Add user agent if provided
	if opts.UserAgent != "" {
		chromeOpts = append(chromeOpts, chromedp.UserAgent(opts.UserAgent))
	}

	if !opts.LoadImages {
		chromeOpts = append(chromeOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	return chromeOpts
}
