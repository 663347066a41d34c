package metadata

/*
Metadata Collected
- Fetch and render timestamps
- HTTP status codes
- Crawl depth
- Skip and error events

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Metadata emission is observational only and MUST NOT influence
scheduling, retries, or crawl termination.
*/

import (
	"sync"
	"time"
)

// MetadataSink receives observational events from every pipeline stage.
// Implementations must be safe for use from concurrent workers.
type MetadataSink interface {
	RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordRender(renderURL string, withBrowser bool, duration time.Duration, attempts int, crawlDepth int)
	RecordSkip(skipURL string, reason string)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute)
}

// CrawlFinalizer records the terminal crawl summary, exactly once.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(stats CrawlStats)
}

// Recorder is the in-memory sink used by a single crawl. It retains every
// event for post-run inspection; accessors return snapshots.
type Recorder struct {
	workerLabel string

	mu      sync.Mutex
	fetches []FetchEvent
	renders []RenderEvent
	skips   []SkipEvent
	errors  []ErrorRecord
	final   *CrawlStats
}

func NewRecorder(workerLabel string) Recorder {
	return Recorder{
		workerLabel: workerLabel,
	}
}

func (r *Recorder) RecordFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, FetchEvent{
		FetchURL:    fetchURL,
		HTTPStatus:  httpStatus,
		Duration:    duration,
		ContentType: contentType,
		RetryCount:  retryCount,
		CrawlDepth:  crawlDepth,
	})
}

func (r *Recorder) RecordRender(
	renderURL string,
	withBrowser bool,
	duration time.Duration,
	attempts int,
	crawlDepth int,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, RenderEvent{
		RenderURL:   renderURL,
		WithBrowser: withBrowser,
		Duration:    duration,
		Attempts:    attempts,
		CrawlDepth:  crawlDepth,
	})
}

func (r *Recorder) RecordSkip(skipURL string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skips = append(r.skips, SkipEvent{
		SkipURL: skipURL,
		Reason:  reason,
	})
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ErrorRecord{
		PackageName: packageName,
		Action:      action,
		Cause:       cause,
		ErrorString: errorString,
		ObservedAt:  observedAt,
		Attrs:       attrs,
	})
}

func (r *Recorder) RecordFinalCrawlStats(stats CrawlStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final != nil {
		// The summary is recorded exactly once; later calls are dropped.
		return
	}
	s := stats
	r.final = &s
}

// Fetches returns a snapshot of recorded fetch events.
func (r *Recorder) Fetches() []FetchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FetchEvent, len(r.fetches))
	copy(out, r.fetches)
	return out
}

// Renders returns a snapshot of recorded render events.
func (r *Recorder) Renders() []RenderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RenderEvent, len(r.renders))
	copy(out, r.renders)
	return out
}

// Skips returns a snapshot of recorded skip events.
func (r *Recorder) Skips() []SkipEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SkipEvent, len(r.skips))
	copy(out, r.skips)
	return out
}

// Errors returns a snapshot of recorded error events.
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

// FinalStats returns the terminal summary, or false when the crawl has
// not finished.
func (r *Recorder) FinalStats() (CrawlStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final == nil {
		return CrawlStats{}, false
	}
	return *r.final, true
}
