package metadata

import (
	"time"
)

type FetchEvent struct {
	FetchURL    string
	HTTPStatus  int
	Duration    time.Duration
	ContentType string
	RetryCount  int
	CrawlDepth  int
}

type RenderEvent struct {
	RenderURL   string
	WithBrowser bool
	Duration    time.Duration
	Attempts    int
	CrawlDepth  int
}

type SkipEvent struct {
	SkipURL string
	Reason  string
}

/*
CrawlStats
  - Represents a terminal, derived summary of a completed crawl
  - Contains only aggregate counts and durations
  - Is computed by the orchestrator after crawl termination
  - Is recorded exactly once
  - Must not influence scheduling, retries, or crawl termination
*/
type CrawlStats struct {
	TotalPages    int
	TotalErrors   int
	TotalSkipped  int
	BrowserShare  float64
	CrawlDuration time.Duration
}

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging, metrics, reporting).

	Rules:
	 - ErrorCause is for observability only.
	 - It must never be used to derive retry, continuation, or abort decisions.
	 - ErrorCause values MUST have stable, package-agnostic semantics.
	 - Pipeline packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.
	Non-goals:
	 - ErrorCause does not encode severity.
	 - ErrorCause does not imply retryability.
	 - ErrorCause does not imply crawl termination.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

Meaning:
  - The failure does not map cleanly to any known category.
  - Used as a safe fallback.

# CauseNetworkFailure

Meaning:
  - Failure caused by network transport or remote availability.

Examples:
  - TCP timeouts
  - DNS resolution failures
  - Connection resets
  - robots.txt fetch timeout

# CausePolicyDisallow

Meaning:
  - Crawling was disallowed by an explicit policy or rule.

Examples:
  - robots.txt disallow
  - URL validator rejection (scheme, blocked IP range)
  - rate-limit enforcement

# CauseContentInvalid

Meaning:
  - Content was fetched but could not be processed meaningfully.

Examples:
  - Non-HTML responses
  - Empty or unextractable document bodies
  - Broken DOM preventing extraction

# CauseStorageFailure

Meaning:
  - Failure while persisting exported artifacts.

Examples:
  - Disk full
  - Write permission errors

# CauseBrowserFailure

Meaning:
  - The headless browser could not produce a rendered DOM.

Examples:
  - Browser launch failure
  - Page crash
  - Navigation timeout

# CauseInvariantViolation

Meaning:
  - A system-level invariant was violated.

Examples:
  - Impossible crawl depth
  - Frontier or visited-set corruption
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CausePolicyDisallow
	CauseContentInvalid
	CauseStorageFailure
	CauseBrowserFailure
	CauseInvariantViolation
)

type ErrorRecord struct {
	PackageName string
	Action      string
	Cause       ErrorCause
	ErrorString string
	ObservedAt  time.Time
	Attrs       []Attribute
}

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrDepth      AttributeKey = "depth"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrReason     AttributeKey = "reason"
	AttrErrorKind  AttributeKey = "error_kind"
)
