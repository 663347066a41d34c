package retry

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/timeutil"
)

// Do executes the provided function with retry logic. It makes at most
// MaxAttempts attempts in total, applying exponential backoff with jitter between
// attempts. Only retryable errors trigger a retry; the backoff sleep is
// cancellable through ctx.
//
// Type parameter T is the return type of the function being retried.
func Do[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func() (T, failure.ClassifiedError),
) (T, failure.ClassifiedError) {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return zero, &RetryError{
			Message:   "max attempts cannot be 0",
			Cause:     ErrZeroAttempt,
			Retryable: false,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))
	sleeper := retryParam.Sleeper
	if sleeper == nil {
		sleeper = timeutil.NewRealSleeper()
	}

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isErrorRetryable(err) {
			return zero, err
		}
		if attempt == retryParam.MaxAttempts {
			break
		}

		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			*rng,
			retryParam.BackoffParam,
		)
		if sleepErr := sleeper.Sleep(ctx, backoffDelay); sleepErr != nil {
			return zero, &RetryError{
				Message:   fmt.Sprintf("cancelled while backing off: %v", sleepErr),
				Cause:     ErrCancelled,
				Retryable: false,
			}
		}
	}

	return zero, &RetryError{
		Message:   fmt.Sprintf("exhausted %d attempts, last error: %v", retryParam.MaxAttempts, lastErr),
		Cause:     ErrExhaustedAttempts,
		Retryable: false,
		Last:      lastErr,
	}
}

// isErrorRetryable checks if an error should be retried. Errors expose
// retryability through an IsRetryable method; anything else is assumed
// retryable.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}
	return true
}
