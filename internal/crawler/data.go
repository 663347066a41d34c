package crawler

import (
	"time"
)

// RecordStatus is the terminal disposition of one URL.
type RecordStatus string

const (
	StatusOK            RecordStatus = "ok"
	StatusSkippedRobots RecordStatus = "skipped_robots"
	StatusSkippedScope  RecordStatus = "skipped_scope"
	StatusFailed        RecordStatus = "failed"
)

// PageRecord is the immutable unit the crawl emits per URL. It is the
// contract with exporters: exporters must treat records as read-only and
// tolerate any subset of optional fields being absent.
type PageRecord struct {
	URL            string  `json:"url"`
	Title          string  `json:"title,omitempty"`
	DiscoveredFrom *string `json:"discovered_from,omitempty"`
	Depth          int     `json:"depth"`

	ContentMarkdown string   `json:"content_markdown,omitempty"`
	ContentHTML     string   `json:"content_html,omitempty"`
	LinksOut        []string `json:"links_out,omitempty"`

	RenderedWithBrowser bool  `json:"rendered_with_browser"`
	FromCache           bool  `json:"from_cache"`
	RenderDurationMs    int64 `json:"render_duration_ms"`

	FetchedAt   time.Time    `json:"fetched_at"`
	Status      RecordStatus `json:"status"`
	ErrorKind   string       `json:"error_kind,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`

	ContentHash string `json:"content_hash,omitempty"`
	CrawlID     string `json:"crawl_id,omitempty"`

	// Seq is the URL's BFS enqueue order. Records arrive in completion
	// order; callers needing enqueue order sort by this.
	Seq int64 `json:"seq"`
}

// Progress is the JSON-serializable event handed to the progress sink at
// milestones.
type Progress struct {
	Stage      ProgressStage `json:"stage"`
	URL        string        `json:"url,omitempty"`
	Discovered int64         `json:"discovered"`
	Completed  int64         `json:"completed"`
	Failed     int64         `json:"failed"`
	InFlight   int64         `json:"in_flight"`
}

type ProgressStage string

const (
	StageDiscovery ProgressStage = "discovery"
	StagePage      ProgressStage = "page"
	StageTerminal  ProgressStage = "terminal"
)

// ProgressSink receives progress events. A nil sink is valid. The sink
// is called from worker goroutines and must be fast and thread-safe.
type ProgressSink func(Progress)

// CrawlResult is the whole crawl's outcome: every record, in completion
// order, plus the reason the crawl ended.
type CrawlResult struct {
	Records []PageRecord
	Reason  TerminationReason
	CrawlID string
}

type TerminationReason string

const (
	ReasonFrontierExhausted TerminationReason = "frontier_exhausted"
	ReasonMaxPages          TerminationReason = "max_pages"
	ReasonCancelled         TerminationReason = "cancelled"
)
