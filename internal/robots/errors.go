package robots

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type RobotsErrorCause string

const (
	ErrCausePreFetchFailure  RobotsErrorCause = "failed before making fetch"
	ErrCauseHttpFetchFailure RobotsErrorCause = "failed to fetch"
	ErrCauseHttpServerError  RobotsErrorCause = "http server error"
	ErrCauseParseError       RobotsErrorCause = "failed to parse robots.txt"
)

type RobotsError struct {
	Message string
	Cause   RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s", e.Cause)
}

func (e *RobotsError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *RobotsError) IsRetryable() bool {
	return false
}

// mapRobotsErrorToMetadataCause maps robots-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapRobotsErrorToMetadataCause(err *RobotsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCausePreFetchFailure:
		return metadata.CauseUnknown
	case ErrCauseHttpFetchFailure, ErrCauseHttpServerError:
		return metadata.CauseNetworkFailure
	case ErrCauseParseError:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
