package robots

import (
	"net/url"
	"time"
)

type DecisionReason string

const (
	AllowedByRobots    DecisionReason = "allowed_by_robots"
	DisallowedByRobots DecisionReason = "disallowed_by_robots"
	EmptyRuleSet       DecisionReason = "empty_rule_set"
	FetchFailedOpen    DecisionReason = "fetch_failed_open"
)

type Decision struct {
	Url url.URL

	Allowed bool

	// Why this decision was made (for logging/debugging)
	Reason DecisionReason

	// Crawl-delay from robots.txt; zero when the matched group declares
	// none. The rate limiter raises its min-interval to this value.
	CrawlDelay time.Duration
}
