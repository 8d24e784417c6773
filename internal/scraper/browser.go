package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"video-scraper/internal/dom"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrSessionClosed is returned by every Session call after Close.
var ErrSessionClosed = errors.New("browser session closed")

// Browser is one scripted browser tab. Extractors only talk to this
// interface so tests can swap in canned pages.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// Root returns the current document.
	Root(ctx context.Context) (dom.Node, error)
	// Location returns the URL of the current document after redirects.
	Location(ctx context.Context) (string, error)
	Click(ctx context.Context, n dom.Node) error
	ScrollIntoView(ctx context.Context, n dom.Node) error
	Close() error
}

// Session is a Browser backed by a headless Chrome driven over CDP. Chrome
// starts on the first call that needs it.
type Session struct {
	opts   BrowserOptions
	logger *zap.Logger

	mu          sync.Mutex
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	closed      bool
}

func NewSession(opts BrowserOptions, logger *zap.Logger) *Session {
	return &Session{opts: opts, logger: logger}
}

func (s *Session) tab() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.tabCtx != nil {
		return s.tabCtx, nil
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), BuildChromeOptions(s.opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(s.logger.Sugar().Debugf),
		chromedp.WithErrorf(s.logger.Sugar().Debugf),
	)

	// The first Run binds the browser to tabCtx, so later per-call
	// timeouts only cancel actions and never the tab itself.
	startCtx, cancel := context.WithTimeout(tabCtx, BrowserStartTimeout)
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()
	select {
	case err := <-started:
		if err != nil {
			tabCancel()
			allocCancel()
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-startCtx.Done():
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", startCtx.Err())
	}

	s.logger.Debug("browser started", zap.Bool("headless", s.opts.Headless))
	s.tabCtx, s.tabCancel, s.allocCancel = tabCtx, tabCancel, allocCancel
	return tabCtx, nil
}

// run executes actions on the tab, bounded by the caller's ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tabCtx, err := s.tab()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return staleOr(err)
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, NavigationTimeout)
	defer cancel()

	s.logger.Debug("navigating", zap.String("url", url))
	if err := s.run(navCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *Session) Root(ctx context.Context) (dom.Node, error) {
	if _, err := s.tab(); err != nil {
		return nil, err
	}
	return &liveNode{s: s}, nil
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (s *Session) Click(ctx context.Context, n dom.Node) error {
	ln, err := s.own(n)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.MouseClickNode(ln.node))
}

func (s *Session) ScrollIntoView(ctx context.Context, n dom.Node) error {
	ln, err := s.own(n)
	if err != nil {
		return err
	}
	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return cdpdom.ScrollIntoViewIfNeeded().WithNodeID(ln.node.NodeID).Do(ctx)
	}))
}

func (s *Session) own(n dom.Node) (*liveNode, error) {
	ln, ok := n.(*liveNode)
	if !ok || ln.s != s {
		return nil, fmt.Errorf("node %T does not belong to this session", n)
	}
	if ln.node == nil {
		return nil, errors.New("cannot act on the document node")
	}
	return ln, nil
}

// Close shuts Chrome down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.tabCtx == nil {
		return nil
	}

	err := chromedp.Cancel(s.tabCtx)
	s.tabCancel()
	s.allocCancel()
	s.tabCtx = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// staleOr maps CDP errors about vanished nodes onto dom.ErrStale.
func staleOr(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range staleNodeMessages {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", dom.ErrStale, err)
		}
	}
	return err
}

// liveNode is an element in the session's current document. A nil node
// stands for the document itself.
type liveNode struct {
	s    *Session
	node *cdp.Node
}

func (n *liveNode) Query(ctx context.Context, selector string) ([]dom.Node, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if n.node != nil {
		opts = append(opts, chromedp.FromNode(n.node))
	}
	if err := n.s.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, err
	}

	out := make([]dom.Node, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, &liveNode{s: n.s, node: node})
	}
	return out, nil
}

func (n *liveNode) Attr(ctx context.Context, name string) (string, bool, error) {
	if n.node == nil {
		return "", false, nil
	}

	var attrs []string
	err := n.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		attrs, err = cdpdom.GetAttributes(n.node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", false, err
	}

	for i := 0; i+1 < len(attrs); i += 2 {
		if attrs[i] == name {
			return attrs[i+1], true, nil
		}
	}
	return "", false, nil
}

func (n *liveNode) HTML(ctx context.Context) (string, error) {
	var html string
	if n.node == nil {
		err := n.s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		return html, err
	}

	err := n.s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		html, err = cdpdom.GetOuterHTML().WithNodeID(n.node.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

func (n *liveNode) Text(ctx context.Context) (string, error) {
	html, err := n.HTML(ctx)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse node html: %w", err)
	}
	if n.node == nil {
		return strings.TrimSpace(doc.Find("body").Text()), nil
	}
	return strings.TrimSpace(doc.Text()), nil
}
