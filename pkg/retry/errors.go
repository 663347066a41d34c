package retry

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type RetryErrorCause string

const (
	ErrZeroAttempt       RetryErrorCause = "zero attempt"
	ErrExhaustedAttempts RetryErrorCause = "exhausted attempts"
	ErrCancelled         RetryErrorCause = "cancelled"
)

type RetryError struct {
	Message   string
	Retryable bool
	Cause     RetryErrorCause

	// Last is the final task error when attempts were exhausted.
	Last failure.ClassifiedError
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error: %s, %s", e.Cause, e.Message)
}

func (e *RetryError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *RetryError) IsRetryable() bool {
	return e.Retryable
}

// Kind surfaces the crawl-wide kind of the underlying failure, so a page
// record carries the cause of the last attempt rather than a generic
// retry wrapper.
func (e *RetryError) Kind() failure.Kind {
	if e.Cause == ErrCancelled {
		return failure.KindCancelled
	}
	if e.Last != nil {
		if k := failure.KindOf(e.Last); k != "" {
			return k
		}
	}
	return ""
}

// Unwrap exposes the last task error to errors.Is/As chains.
func (e *RetryError) Unwrap() error {
	if e.Last == nil {
		return nil
	}
	return e.Last
}

// Is allows errors.Is to match RetryError types.
func (e *RetryError) Is(target error) bool {
	_, ok := target.(*RetryError)
	return ok
}
