package scraper

import (
	"context"
	"errors"

	"video-scraper/internal/dom"
	"video-scraper/internal/models"
	"video-scraper/internal/poll"
)

// Check inspects the current document.
type Check func(ctx context.Context, root dom.Node) (bool, error)

// SelectorPresent holds once selector matches at least one element.
func SelectorPresent(selector string) Check {
	return func(ctx context.Context, root dom.Node) (bool, error) {
		return dom.Exists(ctx, root, selector)
	}
}

// TextPresent holds once an element of tag has exactly the given text.
func TextPresent(tag, text string) Check {
	return func(ctx context.Context, root dom.Node) (bool, error) {
		nodes, err := root.Query(ctx, tag)
		if err != nil {
			return false, err
		}
		match := dom.TextEquals(text)
		for _, n := range nodes {
			ok, err := match(ctx, n)
			if err != nil && !errors.Is(err, dom.ErrStale) {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// AnyOf holds when one of checks does.
func AnyOf(checks ...Check) Check {
	return func(ctx context.Context, root dom.Node) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx, root)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
}

// AllOf holds when every one of checks does.
func AllOf(checks ...Check) Check {
	return func(ctx context.Context, root dom.Node) (bool, error) {
		for _, c := range checks {
			ok, err := c(ctx, root)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// CountAtLeast holds once selector matches n or more elements.
func CountAtLeast(selector string, n int) Check {
	return func(ctx context.Context, root dom.Node) (bool, error) {
		nodes, err := root.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		return len(nodes) >= n, nil
	}
}

// AwaitStructure waits for the current page of b to show the ready
// structure and returns its document. If notFound holds first the page is
// reported as a wrong identifier; if neither appears in time the reason is
// unknown. notFound may be nil.
func AwaitStructure(ctx context.Context, b Browser, url string, ready, notFound Check, opts poll.Options) (dom.Node, error) {
	var (
		root    dom.Node
		missing bool
	)

	err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		r, err := b.Root(ctx)
		if err != nil {
			return false, err
		}

		ok, err := ready(ctx, r)
		if err != nil {
			return false, ignoreStale(err)
		}
		if ok {
			root = r
			return true, nil
		}

		if notFound != nil {
			nf, err := notFound(ctx, r)
			if err != nil {
				return false, ignoreStale(err)
			}
			if nf {
				missing = true
				return true, nil
			}
		}
		return false, nil
	})

	switch {
	case missing:
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonWrongIdentifier}
	case errors.Is(err, poll.ErrTimeout):
		return nil, &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: err}
	case err != nil:
		return nil, err
	}
	return root, nil
}

// OpenPage navigates b to url and waits for its structure.
func OpenPage(ctx context.Context, b Browser, url string, ready, notFound Check, opts poll.Options) (dom.Node, error) {
	if err := b.Navigate(ctx, url); err != nil {
		return nil, err
	}
	return AwaitStructure(ctx, b, url, ready, notFound, opts)
}

// PaginationMarkers names the two states of a listing's "next" control.
type PaginationMarkers struct {
	Next     string
	Disabled string
}

// HasNextPage decides whether the listing currently shown in b continues.
// The disabled marker wins over the next marker. When neither shows up
// within attempts tries the result is a *models.PaginationError.
func HasNextPage(ctx context.Context, b Browser, url string, page int, markers PaginationMarkers, attempts int, opts poll.Options) (bool, error) {
	var next bool
	err := poll.Attempts(ctx, attempts, opts.Interval, func(ctx context.Context) (bool, error) {
		root, err := b.Root(ctx)
		if err != nil {
			return false, err
		}

		disabled, err := dom.Exists(ctx, root, markers.Disabled)
		if err != nil {
			return false, ignoreStale(err)
		}
		if disabled {
			next = false
			return true, nil
		}

		more, err := dom.Exists(ctx, root, markers.Next)
		if err != nil {
			return false, ignoreStale(err)
		}
		if more {
			next = true
			return true, nil
		}
		return false, nil
	})

	if errors.Is(err, poll.ErrTimeout) {
		return false, &models.PaginationError{URL: url, Page: page, Attempts: attempts, Err: err}
	}
	if err != nil {
		return false, err
	}
	return next, nil
}

// ItemsFunc lists the items of a listing in the given document.
type ItemsFunc func(ctx context.Context, root dom.Node) ([]dom.Node, error)

// ScrollFeed loads an endless listing by scrolling its last item into view
// until want items are shown or end holds. It returns the number of items
// last seen. Running out of time is only a failure when nothing loaded.
func ScrollFeed(ctx context.Context, b Browser, url string, items ItemsFunc, want int, end Check, opts poll.Options) (int, error) {
	seen := 0
	err := poll.Until(ctx, opts, func(ctx context.Context) (bool, error) {
		root, err := b.Root(ctx)
		if err != nil {
			return false, err
		}

		found, err := items(ctx, root)
		if err != nil {
			return false, ignoreStale(err)
		}
		seen = len(found)
		if seen >= want {
			return true, nil
		}

		done, err := end(ctx, root)
		if err != nil {
			return false, ignoreStale(err)
		}
		if done {
			return true, nil
		}

		if seen > 0 {
			if err := b.ScrollIntoView(ctx, found[seen-1]); err != nil {
				return false, ignoreStale(err)
			}
		}
		return false, nil
	})

	switch {
	case errors.Is(err, poll.ErrTimeout) && seen > 0:
		return seen, nil
	case errors.Is(err, poll.ErrTimeout):
		return 0, &models.StructureNotFoundError{URL: url, Reason: models.ReasonUnknown, Err: err}
	case err != nil:
		return seen, err
	}
	return seen, nil
}

func ignoreStale(err error) error {
	if errors.Is(err, dom.ErrStale) {
		return nil
	}
	return err
}
