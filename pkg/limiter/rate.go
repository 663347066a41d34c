package limiter

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/timeutil"
)

// RateLimiter
// Specialized component to manage per-origin politeness during crawling.
// Responsibilities:
// - Bookkeep each hostname's token bucket and last request timestamp
// - Enforce the minimum interval between consecutive requests to a host
// - Apply penalty deadlines when a server signals throttling (429/503)
// - Make sure the crawling process respects the server's policy
//
// Host-level politeness dominates worker-level parallelism: Acquire gates
// every worker touching a host, no matter how many run concurrently.
type RateLimiter interface {
	Acquire(ctx context.Context, host string) failure.ClassifiedError
	OnResponse(host string, statusCode int, retryAfter time.Duration)
	SetCrawlDelay(host string, delay time.Duration)
	EffectiveMinInterval(host string) time.Duration
}

// Config carries the politeness knobs for every host bucket.
type Config struct {
	// RequestsPerSecond is the bucket refill rate.
	RequestsPerSecond float64
	// Burst is the bucket capacity.
	Burst int
	// MinInterval is the politeness floor between consecutive requests
	// to the same host. A robots crawl-delay can only raise it.
	MinInterval time.Duration
	// BackoffBase and BackoffCap bound the penalty computed from
	// repeated 429/503 responses.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Jitter is added to computed penalties.
	Jitter time.Duration
	// RandomSeed controls the jitter RNG.
	RandomSeed int64
}

type HostRateLimiter struct {
	cfg     Config
	sleeper timeutil.Sleeper

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	buckets map[string]*hostBucket

	// now is replaceable in tests.
	now func() time.Time
}

// hostBucket is the per-host politeness state. The gate serializes
// acquirers (waiters queue on the channel in arrival order) while mu
// protects the fields so OnResponse never blocks behind a waiting
// acquirer.
type hostBucket struct {
	gate chan struct{}

	mu              sync.Mutex
	tokens          float64
	lastRefill      time.Time
	lastRequestAt   time.Time
	penaltyUntil    time.Time
	penaltyAttempts int
	crawlDelay      time.Duration
}

func NewHostRateLimiter(cfg Config) *HostRateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2.0
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &HostRateLimiter{
		cfg:     cfg,
		sleeper: timeutil.NewRealSleeper(),
		rng:     rand.New(rand.NewSource(seed)),
		buckets: make(map[string]*hostBucket),
		now:     time.Now,
	}
}

// SetSleeper injects a wait implementation for tests.
func (r *HostRateLimiter) SetSleeper(s timeutil.Sleeper) {
	r.sleeper = s
}

// SetClock injects a clock for tests.
func (r *HostRateLimiter) SetClock(now func() time.Time) {
	r.now = now
}

func (r *HostRateLimiter) bucket(host string) *hostBucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[host]
	if !ok {
		b = &hostBucket{
			gate:       make(chan struct{}, 1),
			tokens:     float64(r.cfg.Burst),
			lastRefill: r.now(),
		}
		r.buckets[host] = b
	}
	return b
}

// Acquire blocks until a token is available for the host AND the minimum
// interval since the previous request has elapsed AND any penalty
// deadline has passed; it then consumes one token and stamps the request
// time. Cancellation returns promptly without consuming a token.
func (r *HostRateLimiter) Acquire(ctx context.Context, host string) failure.ClassifiedError {
	b := r.bucket(host)

	// One acquirer at a time per host; the rest queue on the gate.
	select {
	case b.gate <- struct{}{}:
	case <-ctx.Done():
		return acquireError(ctx.Err())
	}
	defer func() { <-b.gate }()

	// select picks at random when both cases are ready; never consume a
	// token for an already-cancelled caller.
	if err := ctx.Err(); err != nil {
		return acquireError(err)
	}

	for {
		wait, ok := r.tryConsume(b)
		if ok {
			return nil
		}
		if err := r.sleeper.Sleep(ctx, wait); err != nil {
			return acquireError(err)
		}
	}
}

// tryConsume refills the bucket and either consumes a token (ok=true) or
// reports how long the caller must wait before trying again.
func (r *HostRateLimiter) tryConsume(b *hostBucket) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := r.now()

	// Continuous refill up to capacity.
	elapsed := now.Sub(b.lastRefill)
	if elapsed > 0 {
		b.tokens += elapsed.Seconds() * r.cfg.RequestsPerSecond
		if b.tokens > float64(r.cfg.Burst) {
			b.tokens = float64(r.cfg.Burst)
		}
		b.lastRefill = now
	}

	var waits []time.Duration
	if b.tokens < 1 {
		deficit := 1 - b.tokens
		waits = append(waits, time.Duration(deficit/r.cfg.RequestsPerSecond*float64(time.Second)))
	}
	minInterval := r.effectiveMinIntervalLocked(b)
	if !b.lastRequestAt.IsZero() {
		if since := now.Sub(b.lastRequestAt); since < minInterval {
			waits = append(waits, minInterval-since)
		}
	}
	if now.Before(b.penaltyUntil) {
		waits = append(waits, b.penaltyUntil.Sub(now))
	}

	if len(waits) > 0 {
		wait := timeutil.MaxDuration(waits)
		if wait <= 0 {
			// Rounding can produce a zero wait while the bucket is still
			// fractionally short; never spin.
			wait = time.Millisecond
		}
		return wait, false
	}

	// Penalty decays once an acquire succeeds past the deadline.
	if b.penaltyAttempts > 0 && !now.Before(b.penaltyUntil) {
		b.penaltyAttempts = 0
		b.penaltyUntil = time.Time{}
	}

	b.tokens--
	b.lastRequestAt = now
	return 0, true
}

// OnResponse feeds server feedback into the bucket. 429 and 503 extend
// the penalty deadline: max(Retry-After, exponential backoff), jittered,
// capped. Other statuses are no-ops; penalty decay happens at acquire
// time.
func (r *HostRateLimiter) OnResponse(host string, statusCode int, retryAfter time.Duration) {
	if statusCode != 429 && statusCode != 503 {
		return
	}

	b := r.bucket(host)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.penaltyAttempts++
	backoff := r.penaltyBackoff(b.penaltyAttempts)
	penalty := backoff
	if retryAfter > penalty {
		penalty = retryAfter
	}
	until := r.now().Add(penalty)
	if until.After(b.penaltyUntil) {
		b.penaltyUntil = until
	}
}

// penaltyBackoff computes min(cap, base * 2^(attempt-1)) plus jitter.
func (r *HostRateLimiter) penaltyBackoff(attempt int) time.Duration {
	base := r.cfg.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	cap := r.cfg.BackoffCap
	if cap <= 0 {
		cap = 30 * time.Second
	}

	exponent := float64(attempt - 1)
	delay := float64(base) * math.Pow(2, exponent)
	if delay > float64(cap) {
		delay = float64(cap)
	}

	if r.cfg.Jitter > 0 {
		r.rngMu.Lock()
		delay += float64(timeutil.ComputeJitter(r.cfg.Jitter, *r.rng))
		r.rngMu.Unlock()
	}

	return time.Duration(delay)
}

// SetCrawlDelay records a robots crawl-delay for the host. The effective
// minimum interval becomes max(configured MinInterval, crawlDelay).
func (r *HostRateLimiter) SetCrawlDelay(host string, delay time.Duration) {
	b := r.bucket(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.crawlDelay = delay
}

// EffectiveMinInterval reports the politeness floor currently applied to
// the host.
func (r *HostRateLimiter) EffectiveMinInterval(host string) time.Duration {
	b := r.bucket(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	return r.effectiveMinIntervalLocked(b)
}

func (r *HostRateLimiter) effectiveMinIntervalLocked(b *hostBucket) time.Duration {
	if b.crawlDelay > r.cfg.MinInterval {
		return b.crawlDelay
	}
	return r.cfg.MinInterval
}

// PenaltyUntil exposes the host's penalty deadline for tests and stats.
func (r *HostRateLimiter) PenaltyUntil(host string) time.Time {
	b := r.bucket(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.penaltyUntil
}

func acquireError(err error) failure.ClassifiedError {
	cause := ErrCauseCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		cause = ErrCauseAcquireTimeout
	}
	return &LimiterError{
		Message: err.Error(),
		Cause:   cause,
	}
}
