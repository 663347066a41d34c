package fetcher

import (
	"context"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/retry"
)

// Fetcher performs a single static HTTP GET: no script execution, one
// response read. Implementations must be safe for concurrent use.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		crawlDepth int,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
}
