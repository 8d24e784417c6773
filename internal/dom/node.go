// Package dom abstracts the element handles extractors read from, so the same
// lookup code runs against a live browser page or a parsed HTML document.
package dom

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrStale reports that a node was removed or replaced between being found and
// being read. Readers treat it as transient.
var ErrStale = errors.New("dom: stale node")

// Node is a handle on one element of a document.
type Node interface {
	// Query returns the descendants matching a CSS selector, in document order.
	Query(ctx context.Context, selector string) ([]Node, error)
	// Attr reads an attribute. The bool is false when the attribute is absent.
	Attr(ctx context.Context, name string) (string, bool, error)
	// Text returns the trimmed text content.
	Text(ctx context.Context) (string, error)
	// HTML returns the outer HTML.
	HTML(ctx context.Context) (string, error)
}

type selectionNode struct {
	sel *goquery.Selection
}

// FromSelection wraps the first element of a goquery selection.
func FromSelection(sel *goquery.Selection) Node {
	return &selectionNode{sel: sel.First()}
}

// Parse builds a static node over a whole HTML document.
func Parse(html string) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &selectionNode{sel: doc.Selection}, nil
}

func (n *selectionNode) Query(_ context.Context, selector string) ([]Node, error) {
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &selectionNode{sel: s})
	})
	return nodes, nil
}

func (n *selectionNode) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := n.sel.Attr(name)
	return v, ok, nil
}

func (n *selectionNode) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(n.sel.Text()), nil
}

func (n *selectionNode) HTML(_ context.Context) (string, error) {
	return goquery.OuterHtml(n.sel)
}

// Selection returns the goquery selection behind a static node.
func Selection(n Node) (*goquery.Selection, bool) {
	if s, ok := n.(*selectionNode); ok {
		return s.sel, true
	}
	return nil, false
}

// Snapshot returns a goquery view of n for reading many sub-fields at once.
// The selection always holds n itself: static nodes are returned as is, and
// live nodes are serialized and parsed back. A document root snapshots to the
// whole document.
func Snapshot(ctx context.Context, n Node) (*goquery.Selection, error) {
	if sel, ok := Selection(n); ok {
		return sel, nil
	}
	html, err := n.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return outermost(doc, html), nil
}

// outermost picks the element the serialized html started with. The parser
// wraps a lone element in html, head and body.
func outermost(doc *goquery.Document, html string) *goquery.Selection {
	head := strings.ToLower(strings.TrimSpace(html))
	switch {
	case strings.HasPrefix(head, "<!doctype"), strings.HasPrefix(head, "<html"):
		return doc.Selection
	case strings.HasPrefix(head, "<body"):
		return doc.Find("body")
	case strings.HasPrefix(head, "<head"):
		return doc.Find("head")
	}
	if el := doc.Find("body").Children().First(); el.Length() > 0 {
		return el
	}
	// meta, link, script and title land in head
	return doc.Find("head").Children().First()
}

// First runs a query and returns its first result, or nil when nothing matches.
func First(ctx context.Context, root Node, selector string) (Node, error) {
	nodes, err := root.Query(ctx, selector)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Exists reports whether selector matches anything under root right now.
func Exists(ctx context.Context, root Node, selector string) (bool, error) {
	n, err := First(ctx, root, selector)
	return n != nil, err
}
