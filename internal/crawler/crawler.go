package crawler

/*
 Crawler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - The crawler is the ONLY component allowed to decide whether a URL
   may enter the crawl frontier.
 - All semantic admission checks (scope, page limits) MUST be completed
   before submitting a URL to the frontier.
 - No other component may enqueue, reject, or reorder URLs.
 - Pipeline stages may detect and classify failure, but must never
   decide retry, continuation, or abortion.

 Concurrency model:
 - maxWorkers workers each run a strictly sequential per-URL pipeline;
   concurrency is across URLs, not within one.
 - Shared state is the frontier, the record sequence, the progress
   counters, and the process-scoped policy caches; everything else is
   worker-local.
 - Termination: the crawl ends when the frontier is empty AND no worker
   is in flight. Workers detect this after finishing a token and close
   the frontier to wake blocked takers.

 Per-URL pipeline order:
   robots -> rate limit -> render -> extract -> convert -> discover -> emit

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.
*/

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/thepingdoctor/scrape-api-docs/internal/browser"
	"github.com/thepingdoctor/scrape-api-docs/internal/config"
	"github.com/thepingdoctor/scrape-api-docs/internal/extractor"
	"github.com/thepingdoctor/scrape-api-docs/internal/fetcher"
	"github.com/thepingdoctor/scrape-api-docs/internal/frontier"
	"github.com/thepingdoctor/scrape-api-docs/internal/mdconvert"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/internal/renderer"
	"github.com/thepingdoctor/scrape-api-docs/internal/robots"
	"github.com/thepingdoctor/scrape-api-docs/internal/spa"
	"github.com/thepingdoctor/scrape-api-docs/internal/validator"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/hashutil"
	"github.com/thepingdoctor/scrape-api-docs/pkg/limiter"
	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

type Crawler struct {
	cfg            config.Config
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	urlValidator   validator.Validator
	robot          robots.Robot
	rateLimiter    limiter.RateLimiter
	pageRenderer   renderer.Renderer
	domExtractor   extractor.Extractor
	convertRule    mdconvert.ConvertRule
	pool           *browser.Pool
}

// New wires a crawler from configuration. The browser pool is created
// lazily only for render modes that may need it; Close tears it down.
func New(cfg config.Config) *Crawler {
	recorder := metadata.NewRecorder("crawl")
	return NewWithSink(cfg, &recorder, &recorder)
}

// NewWithSink wires a crawler around a caller-provided metadata sink.
func NewWithSink(cfg config.Config, sink metadata.MetadataSink, finalizer metadata.CrawlFinalizer) *Crawler {
	urlValidator := validator.NewURLValidator(sink)
	robot := robots.NewCachedRobot(sink, cfg.RobotsTTL(), cfg.RobotsNegativeTTL())
	rateLimiter := limiter.NewHostRateLimiter(limiter.Config{
		RequestsPerSecond: cfg.RateLimitRPS(),
		Burst:             cfg.Burst(),
		MinInterval:       cfg.MinInterval(),
		BackoffBase:       cfg.BackoffBase(),
		BackoffCap:        cfg.BackoffCap(),
		Jitter:            cfg.Jitter(),
		RandomSeed:        cfg.RandomSeed(),
	})
	staticFetcher := fetcher.NewHtmlFetcher(sink, &urlValidator, cfg.RequestTimeout(), cfg.MaxResponseBytes())

	var pool *browser.Pool
	if cfg.RenderMode() != config.RenderModeStaticOnly {
		pool = browser.NewPool(browser.PoolConfig{
			MaxBrowsers:        cfg.MaxBrowsers(),
			ContextsPerBrowser: cfg.ContextsPerBrowser(),
			UserAgent:          cfg.UserAgent(),
			DrainGrace:         cfg.ShutdownGrace(),
		}, sink)
	}

	detector := spa.NewDetector(cfg.SpaThreshold())
	domExtractor := extractor.NewDomExtractor()
	seedScope := urlutil.Canonicalize(cfg.SeedURL())
	hybrid := renderer.NewHybridRenderer(
		sink, &staticFetcher, pool, detector, domExtractor, cfg, seedScope.Host,
	)

	return &Crawler{
		cfg:            cfg,
		metadataSink:   sink,
		crawlFinalizer: finalizer,
		urlValidator:   &urlValidator,
		robot:          &robot,
		rateLimiter:    rateLimiter,
		pageRenderer:   &hybrid,
		domExtractor:   domExtractor,
		convertRule:    mdconvert.NewRule(sink),
		pool:           pool,
	}
}

// NewWithDeps creates a Crawler with injected dependencies for testing.
func NewWithDeps(
	cfg config.Config,
	sink metadata.MetadataSink,
	finalizer metadata.CrawlFinalizer,
	urlValidator validator.Validator,
	robot robots.Robot,
	rateLimiter limiter.RateLimiter,
	pageRenderer renderer.Renderer,
	domExtractor extractor.Extractor,
	convertRule mdconvert.ConvertRule,
) *Crawler {
	return &Crawler{
		cfg:            cfg,
		metadataSink:   sink,
		crawlFinalizer: finalizer,
		urlValidator:   urlValidator,
		robot:          robot,
		rateLimiter:    rateLimiter,
		pageRenderer:   pageRenderer,
		domExtractor:   domExtractor,
		convertRule:    convertRule,
	}
}

// Close releases process-scoped resources: the browser pool drains and
// terminates.
func (c *Crawler) Close() {
	if c.pool != nil {
		c.pool.Drain()
	}
}

// crawlState is the orchestrator's shared mutable state, owned for the
// crawl's lifetime and touched only through its synchronized methods.
type crawlState struct {
	frontier *frontier.CrawlFrontier
	scope    urlutil.Scope
	sink     ProgressSink
	crawlID  string

	discovered atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	inFlight   atomic.Int64
	emitted    atomic.Int64

	// outstanding counts admitted-but-unfinished URLs: incremented on
	// every frontier admission, decremented when the URL's pipeline
	// completes. Zero means the crawl is done. Children are admitted
	// before the parent decrements, so the counter can never dip to
	// zero while work remains.
	outstanding atomic.Int64

	recordsMu sync.Mutex
	records   []PageRecord

	reasonMu sync.Mutex
	reason   TerminationReason

	stopEmitting atomic.Bool
	cancel       context.CancelFunc
}

func (st *crawlState) appendRecord(rec PageRecord) {
	st.recordsMu.Lock()
	st.records = append(st.records, rec)
	st.recordsMu.Unlock()
}

func (st *crawlState) snapshotRecords() []PageRecord {
	st.recordsMu.Lock()
	defer st.recordsMu.Unlock()
	out := make([]PageRecord, len(st.records))
	copy(out, st.records)
	return out
}

func (st *crawlState) setReason(r TerminationReason) {
	st.reasonMu.Lock()
	if st.reason == "" {
		st.reason = r
	}
	st.reasonMu.Unlock()
}

func (st *crawlState) terminationReason() TerminationReason {
	st.reasonMu.Lock()
	defer st.reasonMu.Unlock()
	if st.reason == "" {
		return ReasonFrontierExhausted
	}
	return st.reason
}

func (st *crawlState) progress(stage ProgressStage, pageURL string) {
	if st.sink == nil {
		return
	}
	st.sink(Progress{
		Stage:      stage,
		URL:        pageURL,
		Discovered: st.discovered.Load(),
		Completed:  st.completed.Load(),
		Failed:     st.failed.Load(),
		InFlight:   st.inFlight.Load(),
	})
}

// Crawl runs the whole crawl and returns every page record in completion
// order. Per-URL failures never abort the crawl; only a rejected seed or
// corrupt orchestrator state fails the call.
func (c *Crawler) Crawl(ctx context.Context, progressSink ProgressSink) (CrawlResult, error) {
	crawlStartTime := time.Now()
	crawlID := uuid.NewString()

	seed, verr := c.urlValidator.Validate(ctx, c.cfg.SeedURL().String())
	if verr != nil {
		return CrawlResult{}, &CrawlError{
			Message: verr.Error(),
			Cause:   ErrCauseSeedRejected,
		}
	}

	c.robot.Init(c.cfg.UserAgent())

	st := &crawlState{
		frontier: frontier.NewCrawlFrontier(c.cfg.FrontierCapacity(), c.cfg.MaxDepth()),
		scope:    urlutil.NewScope(seed),
		sink:     progressSink,
		crawlID:  crawlID,
	}

	outcome := st.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
		seed,
		frontier.SourceSeed,
		frontier.NewDiscoveryMetadata(0, nil),
	))
	if outcome != frontier.OutcomeAdmitted {
		return CrawlResult{}, &CrawlError{
			Message: "seed could not enter the frontier",
			Cause:   ErrCauseCorruptState,
		}
	}
	st.discovered.Add(1)
	st.outstanding.Add(1)

	crawlCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	st.cancel = cancelWorkers

	g, workerCtx := errgroup.WithContext(crawlCtx)
	for i := 0; i < c.cfg.MaxWorkers(); i++ {
		g.Go(func() error {
			return c.runWorker(workerCtx, st)
		})
	}

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- g.Wait()
	}()

	var fatal error
	select {
	case fatal = <-waitDone:
	case <-ctx.Done():
		st.setReason(ReasonCancelled)
		st.frontier.Close()
		// Bounded shutdown: in-flight workers get the grace period, then
		// the crawl returns whatever records exist.
		grace := time.NewTimer(c.cfg.ShutdownGrace())
		select {
		case fatal = <-waitDone:
		case <-grace.C:
		}
		grace.Stop()
	}

	crawlDuration := time.Since(crawlStartTime)
	records := st.snapshotRecords()
	c.recordFinalStats(records, crawlDuration)
	st.progress(StageTerminal, "")

	if fatal != nil && !errors.Is(fatal, context.Canceled) {
		return CrawlResult{}, fatal
	}
	return CrawlResult{
		Records: records,
		Reason:  st.terminationReason(),
		CrawlID: crawlID,
	}, nil
}

func (c *Crawler) runWorker(ctx context.Context, st *crawlState) error {
	for {
		token, ok := st.frontier.Dequeue(ctx)
		if !ok {
			if ctx.Err() != nil {
				st.setReason(ReasonCancelled)
			}
			return nil
		}

		st.inFlight.Add(1)
		err := c.processToken(ctx, st, token)
		st.inFlight.Add(-1)
		remaining := st.outstanding.Add(-1)
		if err != nil {
			st.frontier.Close()
			return err
		}
		if remaining == 0 {
			st.frontier.Close()
		}
	}
}

// processToken runs the strictly sequential per-URL pipeline. A non-nil
// return is fatal to the whole crawl.
func (c *Crawler) processToken(ctx context.Context, st *crawlState, token frontier.CrawlToken) error {
	u := token.URL()
	host := u.Host

	rec := PageRecord{
		URL:       u.String(),
		Depth:     token.Depth(),
		Seq:       token.Seq(),
		CrawlID:   st.crawlID,
		FetchedAt: time.Now().UTC(),
	}
	if parent := token.Parent(); parent != nil {
		parentStr := parent.String()
		rec.DiscoveredFrom = &parentStr
	}

	// a. robots gate. Denial is a normal, terminal outcome for the URL
	// and consumes no rate-limiter token.
	if c.cfg.RespectRobots() {
		decision, derr := c.robot.Decide(ctx, u)
		if derr == nil {
			if decision.CrawlDelay > 0 {
				c.rateLimiter.SetCrawlDelay(host, decision.CrawlDelay)
			}
			if !decision.Allowed {
				c.metadataSink.RecordSkip(u.String(), string(decision.Reason))
				rec.Status = StatusSkippedRobots
				rec.ErrorKind = string(failure.KindRobotsDenied)
				c.emit(st, rec)
				return nil
			}
		}
	}

	// b. per-host politeness gate.
	acquireCtx, cancelAcquire := context.WithTimeout(ctx, c.cfg.AcquireTimeout())
	aerr := c.rateLimiter.Acquire(acquireCtx, host)
	cancelAcquire()
	if aerr != nil {
		if failure.KindOf(aerr) == failure.KindCancelled && ctx.Err() != nil {
			// Crawl shutdown: the URL yields no record.
			return nil
		}
		rec.Status = StatusFailed
		rec.ErrorKind = string(failure.KindRateLimitTimeout)
		rec.ErrorDetail = aerr.Error()
		c.emit(st, rec)
		return nil
	}

	// c. render, then feed server behavior back to the limiter.
	renderResult, rerr := c.pageRenderer.Render(ctx, u, renderer.HintAuto, token.Depth())
	if rerr != nil {
		c.feedLimiter(host, rerr)
		if failure.KindOf(rerr) == failure.KindCancelled && ctx.Err() != nil {
			return nil
		}
		rec.Status = StatusFailed
		rec.ErrorKind = string(failure.KindOf(rerr))
		rec.ErrorDetail = rerr.Error()
		c.emit(st, rec)
		return nil
	}
	c.rateLimiter.OnResponse(host, renderResult.StatusCode(), renderResult.RetryAfter())

	// A redirect that stayed on-host but left the seed's path prefix is
	// out of scope: record it, crawl nothing from it.
	finalURL := renderResult.FinalURL()
	if finalURL.Host != "" && !st.scope.Contains(finalURL) {
		rec.Status = StatusSkippedScope
		c.emit(st, rec)
		return nil
	}

	// d. extract and convert.
	base := u
	if finalURL.Host != "" {
		base = finalURL
	}
	extraction := c.domExtractor.Extract(base, renderResult.HTML())

	markdown := ""
	if extraction.ContentNode != nil {
		if conversion, cerr := c.convertRule.Convert(extraction.ContentNode); cerr == nil {
			markdown = conversion.Markdown()
		}
	}
	// An ok record always carries non-empty markdown; empty content
	// degrades to the body text, the title, then the URL itself.
	if markdown == "" {
		markdown = extraction.Text
	}
	if markdown == "" {
		markdown = extraction.Title
	}
	if markdown == "" {
		markdown = u.String()
	}

	// e. discovery: scope-filter the region's links and admit new ones.
	rec.LinksOut = c.discoverLinks(st, u, token.Depth(), extraction.Links)

	// f. the record itself.
	rec.Title = extraction.Title
	rec.ContentMarkdown = markdown
	rec.ContentHTML = extraction.ContentHTML
	rec.RenderedWithBrowser = renderResult.RenderedWithBrowser()
	rec.RenderDurationMs = renderResult.Duration().Milliseconds()
	rec.ContentHash = hashutil.ContentHash([]byte(markdown))
	rec.Status = StatusOK
	c.emit(st, rec)
	return nil
}

// discoverLinks applies the in-scope predicate, records the page's
// in-scope link set, and admits not-yet-visited links to the frontier.
// Admission stops once the page bound is reached.
func (c *Crawler) discoverLinks(st *crawlState, parent url.URL, depth int, links []string) []string {
	var linksOut []string
	admitted := false

	for _, raw := range links {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if !st.scope.Contains(*parsed) {
			continue
		}
		linksOut = append(linksOut, raw)

		if c.cfg.MaxPagesBounded() && st.frontier.VisitedCount() >= max(c.cfg.MaxPages(), 1) {
			continue
		}

		parentCopy := parent
		outcome := st.frontier.Submit(frontier.NewCrawlAdmissionCandidate(
			*parsed,
			frontier.SourceCrawl,
			frontier.NewDiscoveryMetadata(depth+1, &parentCopy),
		))
		switch outcome {
		case frontier.OutcomeAdmitted:
			st.discovered.Add(1)
			st.outstanding.Add(1)
			admitted = true
		case frontier.OutcomeDropped:
			c.metadataSink.RecordError(
				time.Now(),
				"crawler",
				"Crawler.discoverLinks",
				metadata.CauseInvariantViolation,
				"frontier at capacity, newest enqueue dropped",
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, raw),
				},
			)
		}
	}

	if admitted {
		st.progress(StageDiscovery, parent.String())
	}
	return linksOut
}

// emit appends a record, updates counters, and enforces the page bound.
func (c *Crawler) emit(st *crawlState, rec PageRecord) {
	if st.stopEmitting.Load() {
		return
	}
	st.appendRecord(rec)
	if rec.Status == StatusFailed {
		st.failed.Add(1)
	} else {
		st.completed.Add(1)
	}
	st.progress(StagePage, rec.URL)

	if c.cfg.MaxPagesBounded() {
		bound := max(c.cfg.MaxPages(), 1)
		if st.emitted.Add(1) >= int64(bound) {
			// Page cap reached: same path as cancellation.
			st.stopEmitting.Store(true)
			st.setReason(ReasonMaxPages)
			st.frontier.Close()
			st.cancel()
		}
	} else {
		st.emitted.Add(1)
	}
}

// feedLimiter reports status-carrying fetch failures to the rate
// limiter so repeated 429/503 slow the host across all workers.
func (c *Crawler) feedLimiter(host string, err failure.ClassifiedError) {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) && fetchErr.StatusCode != 0 {
		c.rateLimiter.OnResponse(host, fetchErr.StatusCode, time.Duration(fetchErr.RetryAfter))
	}
}

func (c *Crawler) recordFinalStats(records []PageRecord, crawlDuration time.Duration) {
	var totalErrors, totalSkipped, browserRendered int
	for _, rec := range records {
		switch rec.Status {
		case StatusFailed:
			totalErrors++
		case StatusSkippedRobots, StatusSkippedScope:
			totalSkipped++
		}
		if rec.RenderedWithBrowser {
			browserRendered++
		}
	}
	browserShare := 0.0
	if len(records) > 0 {
		browserShare = float64(browserRendered) / float64(len(records))
	}
	c.crawlFinalizer.RecordFinalCrawlStats(metadata.CrawlStats{
		TotalPages:    len(records),
		TotalErrors:   totalErrors,
		TotalSkipped:  totalSkipped,
		BrowserShare:  browserShare,
		CrawlDuration: crawlDuration,
	})
}
