package scraper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Fetch reads one item with a browser the pool owns.
type Fetch[T any] func(ctx context.Context, b Browser, id string) (T, error)

// FanOut fetches every id using up to workers browsers, one per worker,
// each opened lazily through open and closed when the worker ends. Results
// come back in input order. On failure the remaining work is cancelled and
// the records finished so far are returned with the first error.
func FanOut[T any](ctx context.Context, ids []string, workers int, open func() Browser, fetch Fetch[T]) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(ids) {
		workers = len(ids)
	}

	results := make([]T, len(ids))
	done := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	g.Go(func() error {
		defer close(jobs)
		for i := range ids {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			b := open()
			defer b.Close()

			for i := range jobs {
				r, err := fetch(gctx, b, ids[i])
				if err != nil {
					return fmt.Errorf("%s: %w", ids[i], err)
				}
				results[i] = r
				done[i] = true
			}
			return nil
		})
	}

	err := g.Wait()

	out := make([]T, 0, len(ids))
	for i, ok := range done {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, err
}

// Sequential fetches ids one after another on a single browser, stopping at
// the first failure with the prefix read so far.
func Sequential[T any](ctx context.Context, ids []string, b Browser, fetch Fetch[T]) ([]T, error) {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		r, err := fetch(ctx, b, id)
		if err != nil {
			return out, fmt.Errorf("%s: %w", id, err)
		}
		out = append(out, r)
	}
	return out, nil
}
