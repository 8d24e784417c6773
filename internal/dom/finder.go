package dom

import (
	"context"
	"errors"
	"regexp"
	"time"

	"video-scraper/internal/poll"
)

// DefaultFindTimeout bounds a lookup when no timeout is given
const DefaultFindTimeout = 10 * time.Second

// Matcher decides whether a candidate element is wanted.
type Matcher func(ctx context.Context, n Node) (bool, error)

// FindOptions tunes a lookup
type FindOptions struct {
	Timeout  time.Duration
	Interval time.Duration
	Limit    int
}

// Option mutates FindOptions
type Option func(*FindOptions)

func WithTimeout(d time.Duration) Option {
	return func(o *FindOptions) { o.Timeout = d }
}

func WithInterval(d time.Duration) Option {
	return func(o *FindOptions) { o.Interval = d }
}

// WithLimit stops an all-match lookup once n elements are collected.
func WithLimit(n int) Option {
	return func(o *FindOptions) { o.Limit = n }
}

// Once limits a lookup to a single enumeration pass, for callers that run
// their own poll around it.
func Once() Option {
	return func(o *FindOptions) { o.Timeout = time.Nanosecond }
}

func buildOptions(opts []Option) FindOptions {
	o := FindOptions{Timeout: DefaultFindTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// AttrMatches matches elements whose attribute matches pattern at the start of
// the value. Elements without the attribute never match.
func AttrMatches(attr string, pattern *regexp.Regexp) Matcher {
	return func(ctx context.Context, n Node) (bool, error) {
		v, ok, err := n.Attr(ctx, attr)
		if err != nil || !ok {
			return false, err
		}
		return matchPrefix(pattern, v), nil
	}
}

// TextEquals matches elements whose trimmed text is exactly text.
func TextEquals(text string) Matcher {
	return func(ctx context.Context, n Node) (bool, error) {
		t, err := n.Text(ctx)
		if err != nil {
			return false, err
		}
		return t == text, nil
	}
}

// matchPrefix reports whether pattern matches s starting at offset 0. A
// leftmost match exists at 0 whenever any anchored match does.
func matchPrefix(pattern *regexp.Regexp, s string) bool {
	loc := pattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}

// FindFirst polls root for the first tag descendant accepted by m. It returns
// nil without error when nothing matched before the timeout.
func FindFirst(ctx context.Context, root Node, tag string, m Matcher, opts ...Option) (Node, error) {
	o := buildOptions(opts)

	var found Node
	err := poll.Until(ctx, poll.Options{Timeout: o.Timeout, Interval: o.Interval}, func(ctx context.Context) (bool, error) {
		nodes, err := root.Query(ctx, tag)
		if err != nil {
			return false, skipStale(err)
		}
		for _, n := range nodes {
			ok, err := m(ctx, n)
			if err != nil {
				if errors.Is(err, ErrStale) {
					continue
				}
				return false, err
			}
			if ok {
				found = n
				return true, nil
			}
		}
		return false, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindAll polls root until one enumeration pass yields at least one accepted
// element and returns every match of that pass in document order. It returns
// an empty slice without error when nothing matched before the timeout.
func FindAll(ctx context.Context, root Node, tag string, m Matcher, opts ...Option) ([]Node, error) {
	o := buildOptions(opts)

	var matches []Node
	err := poll.Until(ctx, poll.Options{Timeout: o.Timeout, Interval: o.Interval}, func(ctx context.Context) (bool, error) {
		matches = matches[:0]
		nodes, err := root.Query(ctx, tag)
		if err != nil {
			return false, skipStale(err)
		}
		for _, n := range nodes {
			ok, err := m(ctx, n)
			if err != nil {
				if errors.Is(err, ErrStale) {
					continue
				}
				return false, err
			}
			if !ok {
				continue
			}
			matches = append(matches, n)
			if o.Limit > 0 && len(matches) >= o.Limit {
				return true, nil
			}
		}
		return len(matches) > 0, nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return []Node{}, nil
	}
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// FindMatching is FindFirst over an attribute pattern.
func FindMatching(ctx context.Context, root Node, tag, attr string, pattern *regexp.Regexp, opts ...Option) (Node, error) {
	return FindFirst(ctx, root, tag, AttrMatches(attr, pattern), opts...)
}

// FindAllMatching is FindAll over an attribute pattern.
func FindAllMatching(ctx context.Context, root Node, tag, attr string, pattern *regexp.Regexp, opts ...Option) ([]Node, error) {
	return FindAll(ctx, root, tag, AttrMatches(attr, pattern), opts...)
}

func skipStale(err error) error {
	if errors.Is(err, ErrStale) {
		return nil
	}
	return err
}
