// Package scrapertest provides an in-memory Browser serving canned HTML.
package scrapertest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"video-scraper/internal/dom"
	"video-scraper/internal/scraper"
)

const blankPage = "<html><head></head><body></body></html>"

// Browser serves fixed pages by URL. It records every call so tests can
// assert that no page was touched.
type Browser struct {
	// Pages maps a URL to the HTML shown after navigating there. Unknown
	// URLs show an empty page.
	Pages map[string]string
	// Scrolls maps a URL to the successive versions of its page revealed by
	// each ScrollIntoView call.
	Scrolls map[string][]string
	// Delays maps a URL to the number of Root calls that still see an empty
	// page after navigating there.
	Delays map[string]int
	// ClickRoutes maps the text of a clicked element without href to the URL
	// the click leads to.
	ClickRoutes map[string]string
	// NavigateErr, when set, fails every navigation.
	NavigateErr error
	// Opaque hands out nodes that hide their parsed form, as a live session
	// does, so readers have to serialize them to take a snapshot.
	Opaque bool

	mu          sync.Mutex
	current     string
	html        string
	pending     int
	scrollStep  int
	calls       int
	navigations []string
	clicks      int
	closed      bool
}

var _ scraper.Browser = (*Browser)(nil)

func New(pages map[string]string) *Browser {
	return &Browser{Pages: pages}
}

func (b *Browser) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.closed {
		return scraper.ErrSessionClosed
	}
	if b.NavigateErr != nil {
		return b.NavigateErr
	}
	b.load(url)
	return nil
}

func (b *Browser) load(url string) {
	b.navigations = append(b.navigations, url)
	b.current = url
	b.scrollStep = 0
	b.pending = b.Delays[url]
	if html, ok := b.Pages[url]; ok {
		b.html = html
	} else {
		b.html = blankPage
	}
}

func (b *Browser) Root(ctx context.Context) (dom.Node, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.closed {
		return nil, scraper.ErrSessionClosed
	}
	html := b.html
	if html == "" || b.pending > 0 {
		if b.pending > 0 {
			b.pending--
		}
		html = blankPage
	}
	root, err := dom.Parse(html)
	if err != nil || !b.Opaque {
		return root, err
	}
	return Opaque(root), nil
}

func (b *Browser) Location(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.current, nil
}

// Click follows the element's href, or a ClickRoutes entry for its text.
func (b *Browser) Click(ctx context.Context, n dom.Node) error {
	href, ok, err := n.Attr(ctx, "href")
	if err != nil {
		return err
	}
	text, err := n.Text(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	b.clicks++
	if b.closed {
		return scraper.ErrSessionClosed
	}
	switch {
	case ok && href != "":
		b.load(href)
	case b.ClickRoutes[text] != "":
		b.load(b.ClickRoutes[text])
	}
	return nil
}

// ScrollIntoView reveals the next scroll version of the current page.
func (b *Browser) ScrollIntoView(context.Context, dom.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	versions := b.Scrolls[b.current]
	if b.scrollStep < len(versions) {
		b.html = versions[b.scrollStep]
		b.scrollStep++
	}
	return nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Calls counts every method call except Close.
func (b *Browser) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Navigations lists the URLs navigated to, clicks included.
func (b *Browser) Navigations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.navigations...)
}

func (b *Browser) Clicks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clicks
}

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Factory opens fake browsers that share one set of pages.
type Factory struct {
	Pages       map[string]string
	Delays      map[string]int
	Scrolls     map[string][]string
	ClickRoutes map[string]string
	Opaque      bool

	mu     sync.Mutex
	opened []*Browser
}

// Open satisfies the Deps.OpenBrowser signature.
func (f *Factory) Open() scraper.Browser {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := &Browser{
		Pages:       f.Pages,
		Delays:      f.Delays,
		Scrolls:     f.Scrolls,
		ClickRoutes: f.ClickRoutes,
		Opaque:      f.Opaque,
	}
	f.opened = append(f.opened, b)
	return b
}

// Opened returns every browser handed out so far.
func (f *Factory) Opened() []*Browser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Browser(nil), f.opened...)
}

// TotalCalls sums Calls over all opened browsers.
func (f *Factory) TotalCalls() int {
	total := 0
	for _, b := range f.Opened() {
		total += b.Calls()
	}
	return total
}

// Opaque wraps n and everything queried from it in a type dom cannot see
// through.
func Opaque(n dom.Node) dom.Node {
	return opaqueNode{n}
}

type opaqueNode struct {
	dom.Node
}

func (n opaqueNode) Query(ctx context.Context, selector string) ([]dom.Node, error) {
	found, err := n.Node.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	out := make([]dom.Node, len(found))
	for i, f := range found {
		out[i] = opaqueNode{f}
	}
	return out, nil
}

// EachMode runs fn once with static nodes and once with opaque ones.
func EachMode(t *testing.T, fn func(t *testing.T, opaque bool)) {
	t.Helper()
	for _, opaque := range []bool{false, true} {
		name := "static"
		if opaque {
			name = "opaque"
		}
		t.Run(name, func(t *testing.T) { fn(t, opaque) })
	}
}

// ErrNavigation is a ready-made failure for NavigateErr.
var ErrNavigation = errors.New("navigation failed")
