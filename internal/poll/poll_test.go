package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilReturnsOnceConditionHolds(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Timeout: time.Second, Interval: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntilTimesOut(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, calls, 2)
}

func TestUntilRunsAtLeastOnce(t *testing.T) {
	calls := 0
	err := Until(context.Background(), Options{Timeout: time.Nanosecond, Interval: time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntilStopsOnConditionError(t *testing.T) {
	boom := errors.New("boom")
	err := Until(context.Background(), Options{Timeout: time.Second}, func(ctx context.Context) (bool, error) {
		return false, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestUntilHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Until(ctx, Options{Timeout: time.Minute, Interval: 5 * time.Millisecond}, func(ctx context.Context) (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAttemptsBudget(t *testing.T) {
	calls := 0
	err := Attempts(context.Background(), 4, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 4, calls)

	calls = 0
	err = Attempts(context.Background(), 4, time.Millisecond, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 2, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
