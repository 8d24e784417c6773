// Package poll provides the bounded wait used whenever a page has to settle
// before it can be read.
package poll

import (
	"context"
	"errors"
	"time"
)

// Default timing for page waits
const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// ErrTimeout is returned when the condition never held within the timeout.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Options bounds a poll
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Condition reports whether the awaited state has been reached. A non-nil
// error aborts the poll.
type Condition func(ctx context.Context) (bool, error)

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return o
}

// Until evaluates cond until it returns true, the timeout elapses or ctx is
// done. cond always runs at least once.
func Until(ctx context.Context, opts Options, cond Condition) error {
	opts = opts.withDefaults()
	deadline := time.Now().Add(opts.Timeout)

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}

		wait := opts.Interval
		if wait > remaining {
			wait = remaining
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Attempts runs cond up to n times with interval between tries. It is the
// fixed-budget form of Until used where the platform only needs a retry count.
func Attempts(ctx context.Context, n int, interval time.Duration, cond Condition) error {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if i == n-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return ErrTimeout
}
