package browser

/*
Responsibilities

- Own every headless browser process of the crawl
- Bound simultaneous rendering: MaxBrowsers * ContextsPerBrowser pages
- Reuse navigation contexts across pages; discard a context on page error
- Drain cleanly on shutdown

Browser lifecycle: starting -> ready -> {idle, serving} -> draining ->
terminated. A context is bound to exactly one browser for its lifetime; a
page is bound to exactly one context and is closed on release.

Lock order, where multiple are held: pool semaphore -> pool mutex. No
code path takes the semaphore while holding the mutex.
*/

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type Pool struct {
	cfg          PoolConfig
	metadataSink metadata.MetadataSink

	// sem gates AcquirePage at the pool's page capacity.
	sem *semaphore.Weighted

	mu          sync.Mutex
	browsers    []*browserInstance
	draining    bool
	outstanding int
	idle        chan struct{} // signalled when outstanding drops to zero
}

type browserState string

const (
	stateStarting   browserState = "starting"
	stateReady      browserState = "ready"
	stateDraining   browserState = "draining"
	stateTerminated browserState = "terminated"
)

type browserInstance struct {
	id          int
	state       browserState
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	contexts    []*navContext
}

// navContext is a reusable tab. A page borrows it for one navigation.
type navContext struct {
	tabCtx   context.Context
	cancel   context.CancelFunc
	lastUsed time.Time
	inUse    bool
	filtered bool
}

func (b *browserInstance) liveContexts() int {
	return len(b.contexts)
}

func NewPool(cfg PoolConfig, metadataSink metadata.MetadataSink) *Pool {
	cfg = cfg.withDefaults()
	return &Pool{
		cfg:          cfg,
		metadataSink: metadataSink,
		sem:          semaphore.NewWeighted(cfg.Capacity()),
		idle:         make(chan struct{}, 1),
	}
}

// AcquirePage blocks on the pool gate (respecting cancellation), picks
// the browser with the fewest live contexts (lazily starting a new one
// while under the bound), reuses or creates a navigation context, and
// returns a single-use page handle.
func (p *Pool) AcquirePage(ctx context.Context) (*PageHandle, failure.ClassifiedError) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, &BrowserError{Message: err.Error(), Cause: ErrCauseCancelled}
	}

	handle, err := p.leasePage(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	return handle, nil
}

func (p *Pool) leasePage(ctx context.Context) (*PageHandle, failure.ClassifiedError) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return nil, &BrowserError{Message: "pool is shutting down", Cause: ErrCausePoolDraining}
	}

	b, berr := p.pickBrowserLocked(ctx)
	if berr != nil {
		p.mu.Unlock()
		return nil, berr
	}

	nav, nerr := p.pickContextLocked(b)
	if nerr != nil {
		p.mu.Unlock()
		return nil, nerr
	}
	nav.inUse = true
	nav.lastUsed = time.Now()
	p.outstanding++
	p.mu.Unlock()

	return &PageHandle{
		pool:    p,
		browser: b,
		nav:     nav,
	}, nil
}

// pickBrowserLocked selects the ready browser with the fewest live
// contexts, launching a new one when every ready browser is saturated
// and the bound allows it.
func (p *Pool) pickBrowserLocked(ctx context.Context) (*browserInstance, failure.ClassifiedError) {
	var best *browserInstance
	for _, b := range p.browsers {
		if b.state != stateReady {
			continue
		}
		if best == nil || b.liveContexts() < best.liveContexts() {
			best = b
		}
	}

	needNew := best == nil ||
		(best.liveContexts() >= p.cfg.ContextsPerBrowser && len(p.browsers) < p.cfg.MaxBrowsers)
	if !needNew {
		return best, nil
	}
	if len(p.browsers) >= p.cfg.MaxBrowsers {
		if best != nil {
			return best, nil
		}
		return nil, &BrowserError{Message: "no browser became ready", Cause: ErrCauseUnavailable}
	}

	// Launch failures are retried once before the pool gives up.
	b, err := p.launchLocked(ctx)
	if err != nil {
		b, err = p.launchLocked(ctx)
	}
	if err != nil {
		if best != nil {
			return best, nil
		}
		return nil, err
	}
	p.browsers = append(p.browsers, b)
	return b, nil
}

// launchLocked starts a headless browser process and waits for it to
// come up. Called with p.mu held; the launch itself is bounded by
// LaunchTimeout so the lock is never held indefinitely.
func (p *Pool) launchLocked(ctx context.Context) (*browserInstance, failure.ClassifiedError) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
	)
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}
	if p.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	b := &browserInstance{
		id:          len(p.browsers),
		state:       stateStarting,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      browserCancel,
	}

	launchCtx, cancel := context.WithTimeout(ctx, p.cfg.LaunchTimeout)
	defer cancel()

	launched := make(chan error, 1)
	go func() {
		// An empty task list forces the process to start.
		launched <- chromedp.Run(browserCtx)
	}()

	select {
	case err := <-launched:
		if err != nil {
			b.terminate()
			p.recordLaunchFailure(err)
			return nil, &BrowserError{Message: err.Error(), Cause: ErrCauseLaunchFailed}
		}
	case <-launchCtx.Done():
		b.terminate()
		p.recordLaunchFailure(launchCtx.Err())
		return nil, &BrowserError{Message: "browser did not start in time", Cause: ErrCauseLaunchFailed}
	}

	b.state = stateReady
	return b, nil
}

// pickContextLocked creates a fresh tab while the browser is under its
// context bound, otherwise reuses the least-recently-used idle one.
func (p *Pool) pickContextLocked(b *browserInstance) (*navContext, failure.ClassifiedError) {
	if b.liveContexts() < p.cfg.ContextsPerBrowser {
		tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
		nav := &navContext{
			tabCtx: tabCtx,
			cancel: tabCancel,
		}
		b.contexts = append(b.contexts, nav)
		return nav, nil
	}

	var lru *navContext
	for _, nav := range b.contexts {
		if nav.inUse {
			continue
		}
		if lru == nil || nav.lastUsed.Before(lru.lastUsed) {
			lru = nav
		}
	}
	if lru == nil {
		// Unreachable under the semaphore bound.
		return nil, &BrowserError{Message: "browser has no idle context", Cause: ErrCauseUnavailable}
	}
	return lru, nil
}

// release returns a page's context to the pool. A damaged context is
// discarded so leaked DOM/JS state never crosses pages; it is recreated
// on next demand.
func (p *Pool) release(b *browserInstance, nav *navContext, damaged bool) {
	p.mu.Lock()
	nav.inUse = false
	nav.lastUsed = time.Now()
	if damaged {
		nav.cancel()
		for i, candidate := range b.contexts {
			if candidate == nav {
				b.contexts = append(b.contexts[:i], b.contexts[i+1:]...)
				break
			}
		}
	}
	p.outstanding--
	if p.outstanding == 0 {
		select {
		case p.idle <- struct{}{}:
		default:
		}
	}
	p.mu.Unlock()
	p.sem.Release(1)
}

// Drain stops accepting new acquisitions, waits up to the grace period
// for outstanding pages, then terminates all contexts and browsers.
func (p *Pool) Drain() {
	p.mu.Lock()
	p.draining = true
	for _, b := range p.browsers {
		b.state = stateDraining
	}
	outstanding := p.outstanding
	p.mu.Unlock()

	if outstanding > 0 {
		timer := time.NewTimer(p.cfg.DrainGrace)
		defer timer.Stop()
		select {
		case <-p.idle:
		case <-timer.C:
		}
	}

	p.mu.Lock()
	for _, b := range p.browsers {
		b.terminate()
	}
	p.browsers = nil
	p.mu.Unlock()
}

func (b *browserInstance) terminate() {
	for _, nav := range b.contexts {
		nav.cancel()
	}
	b.contexts = nil
	b.cancel()
	b.allocCancel()
	b.state = stateTerminated
}

func (p *Pool) recordLaunchFailure(err error) {
	if p.metadataSink == nil {
		return
	}
	browserErr := &BrowserError{Message: fmt.Sprintf("%v", err), Cause: ErrCauseLaunchFailed}
	p.metadataSink.RecordError(
		time.Now(),
		"browser",
		"Pool.AcquirePage",
		mapBrowserErrorToMetadataCause(browserErr),
		browserErr.Error(),
		nil,
	)
}
