package limiter

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type LimiterErrorCause string

const (
	ErrCauseAcquireTimeout LimiterErrorCause = "acquire timeout"
	ErrCauseCancelled      LimiterErrorCause = "cancelled"
)

type LimiterError struct {
	Message string
	Cause   LimiterErrorCause
}

func (e *LimiterError) Error() string {
	return fmt.Sprintf("limiter error: %s", e.Cause)
}

func (e *LimiterError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *LimiterError) IsRetryable() bool {
	return e.Cause == ErrCauseAcquireTimeout
}

func (e *LimiterError) Kind() failure.Kind {
	if e.Cause == ErrCauseAcquireTimeout {
		return failure.KindRateLimitTimeout
	}
	return failure.KindCancelled
}
