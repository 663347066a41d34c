package renderer

/*
Responsibilities

- Choose static vs. browser rendering per URL
- Fall back to the browser when a static render proves insufficient
- Retry browser renders on navigation timeout or page crash
- Record which tier produced each page

The hybrid renderer is the ONLY component that may call the browser
pool. Content-level emptiness after a browser render is never retried;
whatever the DOM yielded is returned.
*/

import (
	"context"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/thepingdoctor/scrape-api-docs/internal/browser"
	"github.com/thepingdoctor/scrape-api-docs/internal/config"
	"github.com/thepingdoctor/scrape-api-docs/internal/extractor"
	"github.com/thepingdoctor/scrape-api-docs/internal/fetcher"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/internal/spa"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/retry"
	"github.com/thepingdoctor/scrape-api-docs/pkg/timeutil"
	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

type Renderer interface {
	Render(ctx context.Context, u url.URL, hint Hint, crawlDepth int) (RenderResult, failure.ClassifiedError)
}

type HybridRenderer struct {
	metadataSink  metadata.MetadataSink
	staticFetcher fetcher.Fetcher
	pool          *browser.Pool // nil when the render mode never needs it
	detector      spa.Detector
	domExtractor  extractor.Extractor
	cfg           config.Config
	sleeper       timeutil.Sleeper
	scopeHost     string
}

func NewHybridRenderer(
	metadataSink metadata.MetadataSink,
	staticFetcher fetcher.Fetcher,
	pool *browser.Pool,
	detector spa.Detector,
	domExtractor extractor.Extractor,
	cfg config.Config,
	scopeHost string,
) HybridRenderer {
	return HybridRenderer{
		metadataSink:  metadataSink,
		staticFetcher: staticFetcher,
		pool:          pool,
		detector:      detector,
		domExtractor:  domExtractor,
		cfg:           cfg,
		sleeper:       timeutil.NewRealSleeper(),
		scopeHost:     scopeHost,
	}
}

// SetSleeper injects a wait implementation for tests.
func (h *HybridRenderer) SetSleeper(s timeutil.Sleeper) {
	h.sleeper = s
}

func (h *HybridRenderer) Render(
	ctx context.Context,
	u url.URL,
	hint Hint,
	crawlDepth int,
) (RenderResult, failure.ClassifiedError) {
	startTime := time.Now()

	result, err := h.render(ctx, u, hint, crawlDepth)
	if err != nil {
		return RenderResult{}, err
	}

	result.duration = time.Since(startTime)
	h.metadataSink.RecordRender(
		u.String(),
		result.renderedWithBrowser,
		result.duration,
		result.attempts,
		crawlDepth,
	)
	return result, nil
}

func (h *HybridRenderer) render(
	ctx context.Context,
	u url.URL,
	hint Hint,
	crawlDepth int,
) (RenderResult, failure.ClassifiedError) {
	forceBrowser := hint == HintForceBrowser || h.cfg.RenderMode() == config.RenderModeBrowserOnly
	staticOnly := hint == HintForceStatic || h.cfg.RenderMode() == config.RenderModeStaticOnly

	if forceBrowser && !staticOnly {
		return h.renderWithBrowser(ctx, u)
	}

	staticResult, staticErr := h.renderStatic(ctx, u, crawlDepth)
	if staticErr != nil {
		// Failure fallback: a dead static path may still render in the
		// browser, which fetches with its own network stack.
		if !staticOnly && h.pool != nil && staticErr.Severity() == failure.SeverityRecoverable &&
			failure.KindOf(staticErr) != failure.KindUnsafeRedirect {
			if browserResult, browserErr := h.renderWithBrowser(ctx, u); browserErr == nil {
				return browserResult, nil
			}
		}
		return RenderResult{}, staticErr
	}

	if staticOnly {
		return staticResult, nil
	}

	// Non-HTML is never browser-rendered; the caller will not crawl it
	// but may archive it.
	if ct := strings.ToLower(staticResult.contentType); !strings.Contains(ct, "text/html") &&
		!strings.Contains(ct, "application/xhtml") {
		return staticResult, nil
	}
	classification := h.detector.Classify(staticResult.html, staticResult.contentType)
	if !classification.NeedsBrowser() {
		extraction := h.domExtractor.Extract(u, staticResult.html)
		if len(extraction.Text) >= h.cfg.MinContentChars() {
			return staticResult, nil
		}
		// Sufficient by classification but effectively empty: fall back
		// to the browser when one is available.
		if h.pool == nil {
			return staticResult, nil
		}
	}

	if h.pool == nil {
		return RenderResult{}, &browser.BrowserError{
			Message: "URL needs browser rendering but no browser is configured",
			Cause:   browser.ErrCauseUnavailable,
		}
	}

	browserResult, browserErr := h.renderWithBrowser(ctx, u)
	if browserErr != nil {
		return RenderResult{}, browserErr
	}
	return browserResult, nil
}

func (h *HybridRenderer) renderStatic(
	ctx context.Context,
	u url.URL,
	crawlDepth int,
) (RenderResult, failure.ClassifiedError) {
	fetchParam := fetcher.NewFetchParam(u, h.cfg.UserAgent(), h.scopeHost)
	retryParam := retry.NewRetryParam(
		h.cfg.Jitter(),
		h.cfg.RandomSeed(),
		h.cfg.MaxRetries(),
		timeutil.NewBackoffParam(h.cfg.BackoffBase(), 2.0, h.cfg.BackoffCap()),
	)

	fetchResult, err := h.staticFetcher.Fetch(ctx, crawlDepth, fetchParam, retryParam)
	if err != nil {
		return RenderResult{}, err
	}

	return RenderResult{
		html:        fetchResult.Body(),
		finalURL:    fetchResult.FinalURL(),
		statusCode:  fetchResult.Code(),
		contentType: fetchResult.ContentType(),
		retryAfter:  fetchResult.RetryAfter(),
		attempts:    1,
	}, nil
}

// renderWithBrowser acquires a pooled page and navigates, retrying up to
// MaxRenderAttempts on navigation timeout or page crash with exponential
// backoff.
func (h *HybridRenderer) renderWithBrowser(ctx context.Context, u url.URL) (RenderResult, failure.ClassifiedError) {
	if h.pool == nil {
		return RenderResult{}, &browser.BrowserError{
			Message: "browser rendering requested but no browser is configured",
			Cause:   browser.ErrCauseUnavailable,
		}
	}

	backoffParam := timeutil.NewBackoffParam(h.cfg.BackoffBase(), 2.0, h.cfg.BackoffCap())
	rng := rand.New(rand.NewSource(h.cfg.RandomSeed()))

	var lastErr failure.ClassifiedError
	maxAttempts := h.cfg.MaxRenderAttempts()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := h.navigateOnce(ctx, u)
		if err == nil {
			result.attempts = attempt
			return result, nil
		}
		lastErr = err

		kind := failure.KindOf(err)
		if kind != failure.KindNavigationTimeout && kind != failure.KindPageCrashed {
			return RenderResult{}, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, h.cfg.Jitter(), *rng, backoffParam)
		if sleepErr := h.sleeper.Sleep(ctx, delay); sleepErr != nil {
			return RenderResult{}, &browser.BrowserError{
				Message: sleepErr.Error(),
				Cause:   browser.ErrCauseCancelled,
			}
		}
	}

	return RenderResult{}, lastErr
}

func (h *HybridRenderer) navigateOnce(ctx context.Context, u url.URL) (RenderResult, failure.ClassifiedError) {
	page, err := h.pool.AcquirePage(ctx)
	if err != nil {
		return RenderResult{}, err
	}
	defer page.Release()

	param := browser.NavigateParam{
		URL:     u.String(),
		Timeout: h.cfg.RenderTimeout(),
	}
	if selector, ok := h.cfg.WaitSelector(u.Host); ok {
		param.WaitSelector = selector
	}

	navResult, err := page.Navigate(ctx, param)
	if err != nil {
		return RenderResult{}, err
	}

	finalURL := u
	if parsed, parseErr := url.Parse(navResult.FinalURL); parseErr == nil && parsed.Host != "" {
		finalURL = urlutil.Canonicalize(*parsed)
	}

	return RenderResult{
		html:                []byte(navResult.HTML),
		finalURL:            finalURL,
		renderedWithBrowser: true,
		contentType:         "text/html",
	}, nil
}
