package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond, Multiplier: 2}
}

func TestRetryWithCallback_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	var retried []int

	err := RetryWithCallback(context.Background(), fastPolicy(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error, next time.Duration) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryWithCallback_StopsOnFatal(t *testing.T) {
	calls := 0
	cause := errors.New("bad payload")

	err := Retry(context.Background(), fastPolicy(), func() error {
		calls++
		return NewFatalError(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, calls)
}

func TestRetryWithCallback_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(), func() error {
		calls++
		return errors.New("still failing")
	})

	assert.EqualError(t, err, "still failing")
	assert.Equal(t, 3, calls)
}

func TestAttempts_PerErrorDelay(t *testing.T) {
	slow := errors.New("slow down")
	now := errors.New("try again")
	stop := errors.New("stop")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
		minWait   time.Duration
	}{
		{name: "success first", errs: []error{nil}, wantCalls: 1},
		{name: "cooldown then success", errs: []error{slow, nil}, wantCalls: 2, minWait: 20 * time.Millisecond},
		{name: "immediate retry exhausted", errs: []error{now, now, now}, wantCalls: 3, wantErr: now},
		{name: "non retryable", errs: []error{stop, nil}, wantCalls: 1, wantErr: stop},
	}

	delayFor := func(err error) (time.Duration, bool) {
		switch err {
		case slow:
			return 20 * time.Millisecond, true
		case now:
			return 0, true
		}
		return 0, false
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			start := time.Now()
			err := Attempts(context.Background(), 3, func(attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				return tt.errs[attempt-1]
			}, delayFor, nil)

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.GreaterOrEqual(t, time.Since(start), tt.minWait)
		})
	}
}

func TestAttempts_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := Attempts(ctx, 3, func(int) error {
		return errors.New("rate limited")
	}, func(error) (time.Duration, bool) {
		return time.Minute, true
	}, nil)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
