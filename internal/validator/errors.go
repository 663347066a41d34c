package validator

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type ValidationErrorCause string

const (
	ErrCauseMalformed      ValidationErrorCause = "malformed url"
	ErrCauseScheme         ValidationErrorCause = "disallowed scheme"
	ErrCauseBlockedHost    ValidationErrorCause = "blocked host"
	ErrCauseBlockedIP      ValidationErrorCause = "blocked ip range"
	ErrCauseResolveFailure ValidationErrorCause = "resolution failure"
)

type ValidationError struct {
	Message string
	Cause   ValidationErrorCause
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator error: %s: %s", e.Cause, e.Message)
}

func (e *ValidationError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *ValidationError) IsRetryable() bool {
	return false
}

func (e *ValidationError) Kind() failure.Kind {
	return failure.KindUnsafeURL
}
