package browser

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type BrowserErrorCause string

const (
	ErrCauseLaunchFailed      BrowserErrorCause = "browser launch failed"
	ErrCauseUnavailable       BrowserErrorCause = "browser unavailable"
	ErrCausePageCrashed       BrowserErrorCause = "page crashed"
	ErrCauseNavigationTimeout BrowserErrorCause = "navigation timeout"
	ErrCausePoolDraining      BrowserErrorCause = "pool draining"
	ErrCauseCancelled         BrowserErrorCause = "cancelled"
)

type BrowserError struct {
	Message string
	Cause   BrowserErrorCause
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("browser error: %s", e.Cause)
}

func (e *BrowserError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *BrowserError) IsRetryable() bool {
	switch e.Cause {
	case ErrCausePageCrashed, ErrCauseNavigationTimeout:
		return true
	}
	return false
}

func (e *BrowserError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseLaunchFailed, ErrCauseUnavailable:
		return failure.KindBrowserUnavailable
	case ErrCausePageCrashed:
		return failure.KindPageCrashed
	case ErrCauseNavigationTimeout:
		return failure.KindNavigationTimeout
	case ErrCauseCancelled:
		return failure.KindCancelled
	}
	return failure.KindBrowserUnavailable
}

// mapBrowserErrorToMetadataCause maps browser-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapBrowserErrorToMetadataCause(err *BrowserError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseLaunchFailed, ErrCauseUnavailable, ErrCausePageCrashed, ErrCauseNavigationTimeout:
		return metadata.CauseBrowserFailure
	default:
		return metadata.CauseUnknown
	}
}
