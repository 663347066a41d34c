package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/internal/validator"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/retry"
	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

/*
Responsibilities

- Perform HTTP requests over a shared pooled transport
- Apply headers and timeouts
- Re-validate every redirect hop (scope host + blocked IP ranges)
- Enforce the response size cap
- Classify responses into retryable and terminal failures

The fetcher never parses content; it only returns bytes and metadata.
Non-HTML responses are returned as-is; the caller decides what to do
with them.
*/

// shortRetryAfterMax bounds the Retry-After value under which a 429 is
// still worth retrying locally instead of failing the URL.
const shortRetryAfterMax = 5 * time.Second

const maxRedirects = 10

type HtmlFetcher struct {
	metadataSink     metadata.MetadataSink
	urlValidator     validator.Validator
	httpClient       *http.Client
	maxResponseBytes int64
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
	urlValidator validator.Validator,
	requestTimeout time.Duration,
	maxResponseBytes int64,
) HtmlFetcher {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return HtmlFetcher{
		metadataSink: metadataSink,
		urlValidator: urlValidator,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		maxResponseBytes: maxResponseBytes,
	}
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	crawlDepth int,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err := h.fetchWithRetry(ctx, fetchParam, retryParam)

	duration := time.Since(startTime)

	var statusCode int
	var contentType string
	var retryCount int
	if err != nil {
		var retryErr *retry.RetryError
		if errors.As(err, &retryErr) {
			retryCount = retryParam.MaxAttempts
		}
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			statusCode = fetchErr.StatusCode
		}
	} else {
		statusCode = result.Code()
		contentType = result.ContentType()
	}

	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		duration,
		contentType,
		retryCount,
		crawlDepth,
	)

	if err != nil {
		h.recordFetchError(callerMethod, fetchParam.fetchUrl, err)
		return FetchResult{}, err
	}

	return result, nil
}

func (h *HtmlFetcher) fetchWithRetry(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam)
	}
	return retry.Do(ctx, retryParam, fetchTask)
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchParam.fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseConnectFailure,
		}
	}

	// Apply browser-like headers
	for key, value := range requestHeaders(fetchParam.userAgent) {
		req.Header.Set(key, value)
	}

	// A shallow client copy shares the pooled transport while letting
	// each fetch carry its own redirect screen.
	client := *h.httpClient
	client.CheckRedirect = h.redirectScreen(fetchParam.scopeHost)

	resp, err := client.Do(req)
	if err != nil {
		return FetchResult{}, h.classifyTransportError(err)
	}
	defer resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())

	switch {
	case resp.StatusCode >= 500:
		// Server errors (5xx) are retryable
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("server error: %d", resp.StatusCode),
			Retryable:  true,
			Cause:      ErrCauseRequest5xx,
			StatusCode: resp.StatusCode,
			RetryAfter: int64(retryAfter),
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		// 429 is retried locally only when the server asks for a short
		// wait; longer waits are the rate limiter's problem.
		return FetchResult{}, &FetchError{
			Message:    "rate limited (429)",
			Retryable:  retryAfter <= shortRetryAfterMax,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: resp.StatusCode,
			RetryAfter: int64(retryAfter),
		}

	case resp.StatusCode == http.StatusRequestTimeout:
		return FetchResult{}, &FetchError{
			Message:    "request timeout (408)",
			Retryable:  true,
			Cause:      ErrCauseRequestClientError,
			StatusCode: resp.StatusCode,
		}

	case resp.StatusCode >= 400:
		// Other client errors are not retryable
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("client error: %d", resp.StatusCode),
			Retryable:  false,
			Cause:      ErrCauseRequestClientError,
			StatusCode: resp.StatusCode,
		}
	}

	// Read the body under the size cap; one byte past it means the
	// response is too large to accept.
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxResponseBytes+1))
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}
	if int64(len(body)) > h.maxResponseBytes {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("response exceeds %d bytes", h.maxResponseBytes),
			Retryable: false,
			Cause:     ErrCausePayloadTooLarge,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	finalURL := fetchParam.fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = urlutil.Canonicalize(*resp.Request.URL)
	}

	return FetchResult{
		url:       fetchParam.fetchUrl,
		finalURL:  finalURL,
		body:      body,
		fetchedAt: time.Now(),
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			responseHeaders: responseHeaders,
		},
	}, nil
}

// redirectScreen re-validates every redirect hop: the target must stay on
// the scope host and must not resolve into a blocked IP range.
func (h *HtmlFetcher) redirectScreen(scopeHost string) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if !strings.EqualFold(req.URL.Host, scopeHost) {
			return errUnsafeRedirect
		}
		if _, err := h.urlValidator.ValidateURL(req.Context(), *req.URL); err != nil {
			return errUnsafeRedirect
		}
		return nil
	}
}

var errUnsafeRedirect = errors.New("redirect target rejected")

// classifyTransportError maps a transport-level error from http.Client.Do
// into a FetchError.
func (h *HtmlFetcher) classifyTransportError(err error) *FetchError {
	if errors.Is(err, errUnsafeRedirect) {
		return &FetchError{
			Message:   "redirect left the crawl scope or hit a blocked range",
			Retryable: false,
			Cause:     ErrCauseUnsafeRedirect,
		}
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return &FetchError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseTLSFailure,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseTimeout,
		}
	}

	return &FetchError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     ErrCauseConnectFailure,
	}
}

func (h *HtmlFetcher) recordFetchError(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	cause := metadata.CauseUnknown
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		cause = mapFetchErrorToMetadataCause(fetchError)
	}
	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"DNT":             "1",
		"Connection":      "keep-alive",
	}
}
