package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	slept []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return nil
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	rec := &sleepRecorder{}
	p := DefaultRetryPolicy().WithSleeper(rec.sleep)

	attempts, err := p.Do(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.slept)
}

func TestRetryFailTwiceSucceedThird(t *testing.T) {
	rec := &sleepRecorder{}
	p := RetryPolicy{MaxAttempts: 3, Base: time.Second}.WithSleeper(rec.sleep)

	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	// Backoff doubles: 1s before attempt 2, 2s before attempt 3.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.slept)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	rec := &sleepRecorder{}
	p := RetryPolicy{MaxAttempts: 3, Base: time.Second}.WithSleeper(rec.sleep)

	wantErr := errors.New("still down")
	attempts, err := p.Do(context.Background(), func(context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 3, attempts)
	// No sleep after the final failure.
	assert.Len(t, rec.slept, 2)
}

func TestRetryPermanentAbortsImmediately(t *testing.T) {
	rec := &sleepRecorder{}
	p := RetryPolicy{MaxAttempts: 3, Base: time.Second}.WithSleeper(rec.sleep)

	wantErr := errors.New("no recipient")
	calls := 0
	attempts, err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(wantErr)
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.slept)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Base: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := p.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
