package retry

import (
	"time"

	"github.com/thepingdoctor/scrape-api-docs/pkg/timeutil"
)

// RetryParam holds the parameters for retry logic. These parameters are
// passed from outside (e.g. config) and should not be known by the retry
// handler internally.
type RetryParam struct {
	Jitter       time.Duration
	RandomSeed   int64
	MaxAttempts  int
	BackoffParam timeutil.BackoffParam

	// Sleeper is the wait implementation; nil means a real clock.
	Sleeper timeutil.Sleeper
}

// NewRetryParam creates a new RetryParam with the given settings.
func NewRetryParam(
	jitter time.Duration,
	randomSeed int64,
	maxAttempts int,
	backoffParam timeutil.BackoffParam,
) RetryParam {
	return RetryParam{
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		MaxAttempts:  maxAttempts,
		BackoffParam: backoffParam,
	}
}
