package failure

// Severity drives crawl-level control flow: a fatal error aborts the whole
// crawl, a recoverable one is captured on the page record and the crawl
// continues.
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

type ClassifiedError interface {
	error
	Severity() Severity
}

// Kind is the closed, crawl-wide error classification surfaced on page
// records. Pipeline packages map their local causes onto this table; they
// must not invent new values.
type Kind string

const (
	KindUnsafeURL          Kind = "unsafe_url"
	KindRobotsDenied       Kind = "robots_denied"
	KindRateLimitTimeout   Kind = "rate_limit_timeout"
	KindHTTP4xx            Kind = "http_4xx"
	KindHTTP5xx            Kind = "http_5xx"
	KindConnect            Kind = "connect"
	KindTimeout            Kind = "timeout"
	KindTLS                Kind = "tls"
	KindPayloadTooLarge    Kind = "payload_too_large"
	KindUnsafeRedirect     Kind = "unsafe_redirect"
	KindBrowserUnavailable Kind = "browser_unavailable"
	KindNavigationTimeout  Kind = "navigation_timeout"
	KindPageCrashed        Kind = "page_crashed"
	KindCancelled          Kind = "cancelled"
)

// Retryable reports whether an error of this kind may be re-attempted with
// backoff. 408 and 429 are re-classified by the fetcher before they reach
// KindHTTP4xx, so a surfaced KindHTTP4xx is always terminal.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimitTimeout, KindHTTP5xx, KindConnect, KindTimeout,
		KindTLS, KindNavigationTimeout, KindPageCrashed:
		return true
	}
	return false
}

// Kinded is implemented by pipeline errors that carry a crawl-wide kind.
type Kinded interface {
	Kind() Kind
}

// KindOf extracts the crawl-wide kind from an error, or "" when the error
// does not carry one.
func KindOf(err error) Kind {
	if k, ok := err.(Kinded); ok {
		return k.Kind()
	}
	return ""
}
