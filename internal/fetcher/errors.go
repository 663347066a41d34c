package fetcher

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout               FetchErrorCause = "timeout"
	ErrCauseConnectFailure        FetchErrorCause = "connect failure"
	ErrCauseTLSFailure            FetchErrorCause = "tls failure"
	ErrCauseReadResponseBodyError FetchErrorCause = "failed to read response body"
	ErrCausePayloadTooLarge       FetchErrorCause = "payload too large"
	ErrCauseUnsafeRedirect        FetchErrorCause = "unsafe redirect"
	ErrCauseRequestClientError    FetchErrorCause = "client error"
	ErrCauseRequestTooMany        FetchErrorCause = "too many requests"
	ErrCauseRequest5xx            FetchErrorCause = "5xx"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause

	// StatusCode is the HTTP status when the error is status-derived,
	// zero otherwise. The orchestrator feeds it to the rate limiter.
	StatusCode int
	// RetryAfter is the parsed Retry-After header on 429/503 responses.
	RetryAfter int64
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// Kind maps fetcher-local causes onto the crawl-wide error taxonomy.
func (e *FetchError) Kind() failure.Kind {
	switch e.Cause {
	case ErrCauseTimeout:
		return failure.KindTimeout
	case ErrCauseConnectFailure, ErrCauseReadResponseBodyError:
		return failure.KindConnect
	case ErrCauseTLSFailure:
		return failure.KindTLS
	case ErrCausePayloadTooLarge:
		return failure.KindPayloadTooLarge
	case ErrCauseUnsafeRedirect:
		return failure.KindUnsafeRedirect
	case ErrCauseRequestClientError, ErrCauseRequestTooMany:
		return failure.KindHTTP4xx
	case ErrCauseRequest5xx:
		return failure.KindHTTP5xx
	}
	return ""
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseConnectFailure, ErrCauseTLSFailure,
		ErrCauseReadResponseBodyError, ErrCauseRequest5xx:
		return metadata.CauseNetworkFailure
	case ErrCauseUnsafeRedirect, ErrCauseRequestTooMany, ErrCauseRequestClientError:
		return metadata.CausePolicyDisallow
	case ErrCausePayloadTooLarge:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
