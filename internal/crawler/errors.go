package crawler

import (
	"fmt"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

type CrawlErrorCause string

const (
	ErrCauseSeedRejected CrawlErrorCause = "seed rejected"
	ErrCauseCorruptState CrawlErrorCause = "corrupt crawl state"
)

// CrawlError is the orchestrator's own failure. Only catastrophic
// conditions surface here; per-URL failures live on page records.
type CrawlError struct {
	Message string
	Cause   CrawlErrorCause
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl error: %s: %s", e.Cause, e.Message)
}

func (e *CrawlError) Severity() failure.Severity {
	return failure.SeverityFatal
}
