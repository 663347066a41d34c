package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/timeutil"
)

// fakeSleeper records requested waits and never blocks.
type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.slept = append(f.slept, d)
	return nil
}

// taskError is a minimal classified error with controllable retryability.
type taskError struct {
	retryable bool
}

func (e *taskError) Error() string              { return "task error" }
func (e *taskError) Severity() failure.Severity { return failure.SeverityRecoverable }
func (e *taskError) IsRetryable() bool          { return e.retryable }

func testParam(maxAttempts int, sleeper timeutil.Sleeper) RetryParam {
	param := NewRetryParam(
		0,
		42,
		maxAttempts,
		timeutil.NewBackoffParam(10*time.Millisecond, 2.0, time.Second),
	)
	param.Sleeper = sleeper
	return param
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	got, err := Do(context.Background(), testParam(3, sleeper), func() (string, failure.ClassifiedError) {
		calls++
		return "ok", nil
	})

	assert.Nil(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.slept)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	got, err := Do(context.Background(), testParam(3, sleeper), func() (int, failure.ClassifiedError) {
		calls++
		if calls < 3 {
			return 0, &taskError{retryable: true}
		}
		return 7, nil
	})

	assert.Nil(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.slept, 2)
	// Exponential growth between attempts.
	assert.Equal(t, 10*time.Millisecond, sleeper.slept[0])
	assert.Equal(t, 20*time.Millisecond, sleeper.slept[1])
}

func TestDo_NonRetryableReturnsImmediately(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	_, err := Do(context.Background(), testParam(3, sleeper), func() (int, failure.ClassifiedError) {
		calls++
		return 0, &taskError{retryable: false}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.slept)
	var taskErr *taskError
	assert.True(t, errors.As(err, &taskErr))
}

func TestDo_ExhaustedAttempts(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	_, err := Do(context.Background(), testParam(3, sleeper), func() (int, failure.ClassifiedError) {
		calls++
		return 0, &taskError{retryable: true}
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)

	var retryErr *RetryError
	assert.True(t, errors.As(err, &retryErr))
	assert.Equal(t, ErrExhaustedAttempts, retryErr.Cause)
	// The last task error stays reachable for classification.
	var taskErr *taskError
	assert.True(t, errors.As(err, &taskErr))
}

func TestDo_ZeroAttemptsRejected(t *testing.T) {
	_, err := Do(context.Background(), testParam(0, &fakeSleeper{}), func() (int, failure.ClassifiedError) {
		t.Fatal("task must not run")
		return 0, nil
	})

	var retryErr *RetryError
	assert.True(t, errors.As(err, &retryErr))
	assert.Equal(t, ErrZeroAttempt, retryErr.Cause)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, testParam(3, &fakeSleeper{}), func() (int, failure.ClassifiedError) {
		calls++
		cancel()
		return 0, &taskError{retryable: true}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	var retryErr *RetryError
	assert.True(t, errors.As(err, &retryErr))
	assert.Equal(t, ErrCancelled, retryErr.Cause)
	assert.Equal(t, failure.KindCancelled, retryErr.Kind())
}

func TestRetryError_KindSurfacesLastError(t *testing.T) {
	kindErr := &kindedError{}
	retryErr := &RetryError{
		Cause: ErrExhaustedAttempts,
		Last:  kindErr,
	}
	assert.Equal(t, failure.KindTimeout, retryErr.Kind())
}

type kindedError struct{}

func (e *kindedError) Error() string              { return "timed out" }
func (e *kindedError) Severity() failure.Severity { return failure.SeverityRecoverable }
func (e *kindedError) Kind() failure.Kind         { return failure.KindTimeout }
