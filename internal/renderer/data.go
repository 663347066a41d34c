package renderer

import (
	"net/url"
	"time"
)

// Hint lets the caller force a rendering strategy for one URL. HintAuto
// leaves the decision to the SPA detector and fallback policy.
type Hint string

const (
	HintAuto         Hint = "auto"
	HintForceStatic  Hint = "force_static"
	HintForceBrowser Hint = "force_browser"
)

// RenderResult is one rendered page, whichever tier produced it.
type RenderResult struct {
	html                []byte
	finalURL            url.URL
	renderedWithBrowser bool
	duration            time.Duration
	statusCode          int
	contentType         string
	retryAfter          time.Duration
	attempts            int
}

func (r *RenderResult) HTML() []byte {
	return r.html
}

func (r *RenderResult) FinalURL() url.URL {
	return r.finalURL
}

func (r *RenderResult) RenderedWithBrowser() bool {
	return r.renderedWithBrowser
}

func (r *RenderResult) Duration() time.Duration {
	return r.duration
}

// StatusCode is the static response status; zero for pure browser
// renders, where no single status describes the navigation.
func (r *RenderResult) StatusCode() int {
	return r.statusCode
}

func (r *RenderResult) ContentType() string {
	return r.contentType
}

// RetryAfter carries the static response's Retry-After header for the
// rate limiter's feedback loop.
func (r *RenderResult) RetryAfter() time.Duration {
	return r.retryAfter
}

func (r *RenderResult) Attempts() int {
	return r.attempts
}

// NewRenderResultForTest creates a RenderResult for testing purposes.
// This allows test packages to construct results without access to
// unexported fields.
func NewRenderResultForTest(
	html []byte,
	finalURL url.URL,
	renderedWithBrowser bool,
	duration time.Duration,
	statusCode int,
) RenderResult {
	return RenderResult{
		html:                html,
		finalURL:            finalURL,
		renderedWithBrowser: renderedWithBrowser,
		duration:            duration,
		statusCode:          statusCode,
		contentType:         "text/html",
		attempts:            1,
	}
}
