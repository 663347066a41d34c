package browser

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

// PageHandle is a single-use navigation lease on a pooled context. It is
// thread-affine to the worker that acquired it and must be released
// exactly once.
type PageHandle struct {
	pool     *Pool
	browser  *browserInstance
	nav      *navContext
	released bool
	damaged  bool
}

// NavigateParam parametrizes one navigation.
type NavigateParam struct {
	URL     string
	Timeout time.Duration

	// WaitSelector, when set, is a CSS selector waited for after load,
	// up to SelectorBudget. A selector that never appears is not an
	// error; the DOM is read as-is.
	WaitSelector   string
	SelectorBudget time.Duration
}

// NavigateResult is the serialized DOM after the navigation settled.
type NavigateResult struct {
	HTML     string
	FinalURL string
}

// Navigate drives the page through one navigation and reads the
// serialized DOM of the result. An error marks the underlying context
// damaged; Release then discards it.
func (h *PageHandle) Navigate(ctx context.Context, param NavigateParam) (NavigateResult, failure.ClassifiedError) {
	if h.released {
		return NavigateResult{}, &BrowserError{Message: "navigate on released page", Cause: ErrCausePageCrashed}
	}

	h.ensureResourceFilter()

	timeout := param.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	navCtx, cancel := context.WithTimeout(h.nav.tabCtx, timeout)
	defer cancel()

	// Caller cancellation aborts the in-flight navigation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(param.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		h.damaged = true
		return NavigateResult{}, classifyNavigateError(ctx, navCtx, err)
	}

	if param.WaitSelector != "" {
		budget := param.SelectorBudget
		if budget <= 0 {
			budget = 2 * time.Second
		}
		selCtx, selCancel := context.WithTimeout(navCtx, budget)
		// A missing selector is tolerated; the page may simply not use
		// the expected content root.
		_ = chromedp.Run(selCtx, chromedp.WaitVisible(param.WaitSelector, chromedp.ByQuery))
		selCancel()
	}

	var html, location string
	err = chromedp.Run(navCtx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			root, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(root.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		h.damaged = true
		return NavigateResult{}, classifyNavigateError(ctx, navCtx, err)
	}

	return NavigateResult{
		HTML:     html,
		FinalURL: location,
	}, nil
}

// Release closes the page. The context survives for reuse unless the
// navigation damaged it.
func (h *PageHandle) Release() {
	if h.released {
		return
	}
	h.released = true
	h.pool.release(h.browser, h.nav, h.damaged)
}

// ensureResourceFilter installs the request filter on the context once.
// Sub-resources in the blocked classes and requests to deny-listed hosts
// are failed at the CDP fetch layer before any bytes move.
func (h *PageHandle) ensureResourceFilter() {
	if h.nav.filtered {
		return
	}
	h.nav.filtered = true

	tabCtx := h.nav.tabCtx
	blockedHosts := append([]string{}, defaultBlockedHosts...)
	blockedHosts = append(blockedHosts, h.pool.cfg.BlockedHosts...)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			executor := cdp.WithExecutor(tabCtx, c.Target)
			if blockRequest(paused, blockedHosts) {
				_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(executor)
				return
			}
			_ = fetch.ContinueRequest(paused.RequestID).Do(executor)
		}()
	})

	_ = chromedp.Run(tabCtx, fetch.Enable())
}

func blockRequest(ev *fetch.EventRequestPaused, blockedHosts []string) bool {
	if _, blocked := blockedResourceTypes[string(ev.ResourceType)]; blocked {
		return true
	}
	host := hostOf(ev.Request.URL)
	for _, denied := range blockedHosts {
		if host == denied || strings.HasSuffix(host, "."+denied) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	} else {
		rest = strings.TrimPrefix(rest, "//")
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, ":"); i >= 0 && !strings.Contains(rest[i:], "]") {
		rest = rest[:i]
	}
	return strings.ToLower(rest)
}

// classifyNavigateError distinguishes caller cancellation, navigation
// timeout, and a crashed page.
func classifyNavigateError(callerCtx, navCtx context.Context, err error) failure.ClassifiedError {
	switch {
	case callerCtx.Err() != nil:
		return &BrowserError{Message: callerCtx.Err().Error(), Cause: ErrCauseCancelled}
	case errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return &BrowserError{Message: "navigation did not settle in time", Cause: ErrCauseNavigationTimeout}
	case strings.Contains(err.Error(), "crash"):
		return &BrowserError{Message: err.Error(), Cause: ErrCausePageCrashed}
	default:
		return &BrowserError{Message: err.Error(), Cause: ErrCausePageCrashed}
	}
}
