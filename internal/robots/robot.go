package robots

/*
Responsibilities

- Fetch robots.txt per host, at most once per TTL window
- Cache parsed rules for the crawl duration
- Enforce allow/disallow rules before any page fetch
- Surface crawl-delay so the rate limiter can honor it

Robots checks occur before a URL consumes a rate-limiter token: a URL
denied by robots incurs no token for its host.

Fetch failures fail open: the host is treated as unrestricted, cached
under a short negative TTL, and logged at warning level through the
metadata sink.
*/

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/internal/robots/cache"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

// Robot decides whether a URL may be crawled under the host's robots.txt.
type Robot interface {
	Init(userAgent string)
	Decide(ctx context.Context, u url.URL) (Decision, failure.ClassifiedError)
	CrawlDelay(host string) (time.Duration, bool)
}

// fetchTimeout bounds the robots.txt request; a slow robots endpoint must
// not stall the crawl.
const fetchTimeout = 10 * time.Second

type CachedRobot struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	rules        cache.Cache
	userAgent    string
	ttl          time.Duration
	negativeTTL  time.Duration

	// fetchMu serializes cache-miss fetches; hits are lock-free reads
	// through the cache's own synchronization.
	fetchMu sync.Mutex

	// now is replaceable in tests.
	now func() time.Time
}

func NewCachedRobot(metadataSink metadata.MetadataSink, ttl, negativeTTL time.Duration) CachedRobot {
	return CachedRobot{
		metadataSink: metadataSink,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		rules:        cache.NewMemoryCache(),
		ttl:          ttl,
		negativeTTL:  negativeTTL,
		now:          time.Now,
	}
}

// NewCachedRobotWithDeps creates a CachedRobot with injected dependencies
// for testing.
func NewCachedRobotWithDeps(
	metadataSink metadata.MetadataSink,
	httpClient *http.Client,
	rules cache.Cache,
	ttl, negativeTTL time.Duration,
) CachedRobot {
	r := NewCachedRobot(metadataSink, ttl, negativeTTL)
	if httpClient != nil {
		r.httpClient = httpClient
	}
	if rules != nil {
		r.rules = rules
	}
	return r
}

func (r *CachedRobot) Init(userAgent string) {
	r.userAgent = userAgent
}

// Decide reports whether the URL may be crawled. The decision carries the
// host's crawl-delay when robots.txt declares one for the matched group.
func (r *CachedRobot) Decide(ctx context.Context, u url.URL) (Decision, failure.ClassifiedError) {
	entry, err := r.hostRules(ctx, u)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Url: u,
	}
	if entry.CrawlDelay > 0 {
		decision.CrawlDelay = entry.CrawlDelay
	}

	if entry.FailOpen {
		decision.Allowed = true
		decision.Reason = FetchFailedOpen
		return decision, nil
	}

	group, ok := entry.Rules.(*robotstxt.Group)
	if !ok || group == nil {
		decision.Allowed = true
		decision.Reason = EmptyRuleSet
		return decision, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if group.Test(path) {
		decision.Allowed = true
		decision.Reason = AllowedByRobots
	} else {
		decision.Allowed = false
		decision.Reason = DisallowedByRobots
	}
	return decision, nil
}

// CrawlDelay reports the cached crawl-delay for a host, if its rules have
// already been fetched and declare one.
func (r *CachedRobot) CrawlDelay(host string) (time.Duration, bool) {
	entry, ok := r.rules.Get(host)
	if !ok || entry.CrawlDelay <= 0 {
		return 0, false
	}
	return entry.CrawlDelay, true
}

// hostRules returns the cached ruleset for the URL's host, fetching
// robots.txt on a miss or after expiry.
func (r *CachedRobot) hostRules(ctx context.Context, u url.URL) (cache.Entry, failure.ClassifiedError) {
	host := u.Host

	if entry, ok := r.rules.Get(host); ok && !entry.Expired(r.now()) {
		return entry, nil
	}

	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	// Another worker may have fetched while we waited.
	if entry, ok := r.rules.Get(host); ok && !entry.Expired(r.now()) {
		return entry, nil
	}

	entry, err := r.fetch(ctx, u.Scheme, host)
	if err != nil {
		// Fail open: cache a short-lived unrestricted entry and warn.
		r.recordFetchFailure(u, err)
		entry = cache.Entry{
			FetchedAt: r.now(),
			ExpiresAt: r.now().Add(r.negativeTTL),
			FailOpen:  true,
		}
	}
	r.rules.Put(host, entry)
	return entry, nil
}

func (r *CachedRobot) fetch(ctx context.Context, scheme, host string) (cache.Entry, *RobotsError) {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return cache.Entry{}, &RobotsError{
			Message: err.Error(),
			Cause:   ErrCausePreFetchFailure,
		}
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return cache.Entry{}, &RobotsError{
			Message: err.Error(),
			Cause:   ErrCauseHttpFetchFailure,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return cache.Entry{}, &RobotsError{
			Message: fmt.Sprintf("robots.txt returned %d", resp.StatusCode),
			Cause:   ErrCauseHttpServerError,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return cache.Entry{}, &RobotsError{
			Message: err.Error(),
			Cause:   ErrCauseHttpFetchFailure,
		}
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return cache.Entry{}, &RobotsError{
			Message: err.Error(),
			Cause:   ErrCauseParseError,
		}
	}

	group := data.FindGroup(r.userAgent)
	entry := cache.Entry{
		Rules:     group,
		FetchedAt: r.now(),
		ExpiresAt: r.now().Add(r.ttl),
	}
	if group != nil && group.CrawlDelay > 0 {
		entry.CrawlDelay = group.CrawlDelay
	}
	return entry, nil
}

func (r *CachedRobot) recordFetchFailure(u url.URL, robotsErr *RobotsError) {
	if r.metadataSink == nil {
		return
	}
	r.metadataSink.RecordError(
		time.Now(),
		"robots",
		"CachedRobot.Decide",
		mapRobotsErrorToMetadataCause(robotsErr),
		robotsErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, u.String()),
			metadata.NewAttr(metadata.AttrHost, u.Host),
		},
	)
}
