package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"
)

// Unbounded marks a limit as absent.
const Unbounded = -1

// RenderMode selects the rendering strategy for every URL of a crawl.
type RenderMode string

const (
	RenderModeAuto        RenderMode = "auto"
	RenderModeStaticOnly  RenderMode = "static_only"
	RenderModeBrowserOnly RenderMode = "browser_only"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial page handed to the crawler to begin discovering and traversing other pages.
	seedURL url.URL

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from the seed URL. 0 means unbounded.
	maxDepth int
	// Maximum number of page records emitted. Negative means unbounded;
	// zero admits the seed and nothing else.
	maxPages int

	//===============
	// Workers
	//===============
	// Maximum number of concurrent render+extract pipelines;
	// it does not control OS threads or CPU parallelism.
	maxWorkers int
	// Bound on frontier size. New enqueue attempts past this are dropped.
	frontierCapacity int
	// Grace period a cancelled crawl may spend waiting for in-flight workers.
	shutdownGrace time.Duration

	//===============
	// Politeness
	//===============
	// Token-bucket refill rate per host.
	rateLimitRPS float64
	// Token-bucket capacity per host.
	burst int
	// Minimum waiting time enforced between two requests to the same host.
	minInterval time.Duration
	// Upper bound on a single rate-limiter wait before it fails with a timeout.
	acquireTimeout time.Duration
	// Randomized variation added on top of computed delays.
	jitter time.Duration
	// Controls the random number generator.
	randomSeed int64
	// Whether robots.txt is consulted before fetching.
	respectRobots bool
	// How long a parsed robots.txt stays cached.
	robotsTTL time.Duration
	// How long a failed robots.txt fetch is negatively cached.
	robotsNegativeTTL time.Duration

	//===============
	// Retry
	//===============
	// Maximum attempts for a retryable operation.
	maxRetries int
	// Initial delay for exponential backoff.
	backoffBase time.Duration
	// Capped maximum delay for exponential backoff.
	backoffCap time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single static fetch request.
	requestTimeout time.Duration
	// Maximum accepted response body size in bytes.
	maxResponseBytes int64
	// User agent used in request headers and robots.txt matching.
	userAgent string

	//===============
	// Render
	//===============
	// Rendering strategy.
	renderMode RenderMode
	// Maximum time of a single browser navigation.
	renderTimeout time.Duration
	// Maximum browser render attempts per URL.
	maxRenderAttempts int
	// Maximum number of long-lived headless browser processes.
	maxBrowsers int
	// Maximum navigation contexts per browser.
	contextsPerBrowser int
	// Minimum main-region text length for a static result to stand.
	minContentChars int
	// SPA detector confidence threshold at or above which a page needs the browser.
	spaThreshold float64
	// Optional per-host CSS selector waited for after navigation.
	waitSelectors map[string]string
}

type configDTO struct {
	SeedURL            string            `json:"seedUrl"`
	MaxDepth           int               `json:"maxDepth,omitempty"`
	MaxPages           *int              `json:"maxPages,omitempty"`
	MaxWorkers         int               `json:"maxWorkers,omitempty"`
	FrontierCapacity   int               `json:"frontierCapacity,omitempty"`
	ShutdownGraceMs    int64             `json:"shutdownGraceMs,omitempty"`
	RateLimitRPS       float64           `json:"rateLimitRps,omitempty"`
	Burst              int               `json:"burst,omitempty"`
	MinIntervalMs      int64             `json:"minIntervalMs,omitempty"`
	AcquireTimeoutMs   int64             `json:"acquireTimeoutMs,omitempty"`
	JitterMs           int64             `json:"jitterMs,omitempty"`
	RandomSeed         int64             `json:"randomSeed,omitempty"`
	RespectRobots      *bool             `json:"respectRobots,omitempty"`
	RobotsTTLMs        int64             `json:"robotsTtlMs,omitempty"`
	RobotsNegTTLMs     int64             `json:"robotsNegativeTtlMs,omitempty"`
	MaxRetries         int               `json:"maxRetries,omitempty"`
	BackoffBaseMs      int64             `json:"backoffBaseMs,omitempty"`
	BackoffCapMs       int64             `json:"backoffCapMs,omitempty"`
	RequestTimeoutMs   int64             `json:"requestTimeoutMs,omitempty"`
	MaxResponseBytes   int64             `json:"maxResponseBytes,omitempty"`
	UserAgent          string            `json:"userAgent,omitempty"`
	RenderMode         string            `json:"renderMode,omitempty"`
	RenderTimeoutMs    int64             `json:"renderTimeoutMs,omitempty"`
	MaxRenderAttempts  int               `json:"maxRenderAttempts,omitempty"`
	MaxBrowsers        int               `json:"maxBrowsers,omitempty"`
	ContextsPerBrowser int               `json:"contextsPerBrowser,omitempty"`
	MinContentChars    int               `json:"minContentChars,omitempty"`
	SpaThreshold       float64           `json:"spaThreshold,omitempty"`
	WaitSelectors      map[string]string `json:"waitSelectors,omitempty"`
}

// WithConfigFile loads a config from a JSON file. Unknown keys are
// rejected so a typoed option cannot silently fall back to a default.
func WithConfigFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	decoder := json.NewDecoder(bytes.NewReader(configContent))
	decoder.DisallowUnknownFields()

	cfgDTO := configDTO{}
	if err := decoder.Decode(&cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	seed, err := url.Parse(dto.SeedURL)
	if err != nil {
		return Config{}, fmt.Errorf("%w: seedUrl: %s", ErrConfigParsingFail, err.Error())
	}

	builder := WithDefault(*seed)

	if dto.MaxDepth != 0 {
		builder.WithMaxDepth(dto.MaxDepth)
	}
	if dto.MaxPages != nil {
		builder.WithMaxPages(*dto.MaxPages)
	}
	if dto.MaxWorkers != 0 {
		builder.WithMaxWorkers(dto.MaxWorkers)
	}
	if dto.FrontierCapacity != 0 {
		builder.WithFrontierCapacity(dto.FrontierCapacity)
	}
	if dto.ShutdownGraceMs != 0 {
		builder.WithShutdownGrace(time.Duration(dto.ShutdownGraceMs) * time.Millisecond)
	}
	if dto.RateLimitRPS != 0 {
		builder.WithRateLimitRPS(dto.RateLimitRPS)
	}
	if dto.Burst != 0 {
		builder.WithBurst(dto.Burst)
	}
	if dto.MinIntervalMs != 0 {
		builder.WithMinInterval(time.Duration(dto.MinIntervalMs) * time.Millisecond)
	}
	if dto.AcquireTimeoutMs != 0 {
		builder.WithAcquireTimeout(time.Duration(dto.AcquireTimeoutMs) * time.Millisecond)
	}
	if dto.JitterMs != 0 {
		builder.WithJitter(time.Duration(dto.JitterMs) * time.Millisecond)
	}
	if dto.RandomSeed != 0 {
		builder.WithRandomSeed(dto.RandomSeed)
	}
	if dto.RespectRobots != nil {
		builder.WithRespectRobots(*dto.RespectRobots)
	}
	if dto.RobotsTTLMs != 0 {
		builder.WithRobotsTTL(time.Duration(dto.RobotsTTLMs) * time.Millisecond)
	}
	if dto.RobotsNegTTLMs != 0 {
		builder.WithRobotsNegativeTTL(time.Duration(dto.RobotsNegTTLMs) * time.Millisecond)
	}
	if dto.MaxRetries != 0 {
		builder.WithMaxRetries(dto.MaxRetries)
	}
	if dto.BackoffBaseMs != 0 {
		builder.WithBackoffBase(time.Duration(dto.BackoffBaseMs) * time.Millisecond)
	}
	if dto.BackoffCapMs != 0 {
		builder.WithBackoffCap(time.Duration(dto.BackoffCapMs) * time.Millisecond)
	}
	if dto.RequestTimeoutMs != 0 {
		builder.WithRequestTimeout(time.Duration(dto.RequestTimeoutMs) * time.Millisecond)
	}
	if dto.MaxResponseBytes != 0 {
		builder.WithMaxResponseBytes(dto.MaxResponseBytes)
	}
	if dto.UserAgent != "" {
		builder.WithUserAgent(dto.UserAgent)
	}
	if dto.RenderMode != "" {
		builder.WithRenderMode(RenderMode(dto.RenderMode))
	}
	if dto.RenderTimeoutMs != 0 {
		builder.WithRenderTimeout(time.Duration(dto.RenderTimeoutMs) * time.Millisecond)
	}
	if dto.MaxRenderAttempts != 0 {
		builder.WithMaxRenderAttempts(dto.MaxRenderAttempts)
	}
	if dto.MaxBrowsers != 0 {
		builder.WithMaxBrowsers(dto.MaxBrowsers)
	}
	if dto.ContextsPerBrowser != 0 {
		builder.WithContextsPerBrowser(dto.ContextsPerBrowser)
	}
	if dto.MinContentChars != 0 {
		builder.WithMinContentChars(dto.MinContentChars)
	}
	if dto.SpaThreshold != 0 {
		builder.WithSpaThreshold(dto.SpaThreshold)
	}
	if len(dto.WaitSelectors) > 0 {
		builder.WithWaitSelectors(dto.WaitSelectors)
	}

	return builder.Build()
}

// WithDefault creates a new Config builder with the provided seed URL and
// default values for every other field.
func WithDefault(seedURL url.URL) *Config {
	defaultConfig := Config{
		seedURL:            seedURL,
		maxDepth:           0,
		maxPages:           Unbounded,
		maxWorkers:         10,
		frontierCapacity:   100_000,
		shutdownGrace:      5 * time.Second,
		rateLimitRPS:       2.0,
		burst:              4,
		minInterval:        500 * time.Millisecond,
		acquireTimeout:     60 * time.Second,
		jitter:             100 * time.Millisecond,
		randomSeed:         time.Now().UnixNano(),
		respectRobots:      true,
		robotsTTL:          time.Hour,
		robotsNegativeTTL:  5 * time.Minute,
		maxRetries:         3,
		backoffBase:        500 * time.Millisecond,
		backoffCap:         30 * time.Second,
		requestTimeout:     30 * time.Second,
		maxResponseBytes:   100 << 20,
		userAgent:          "scrape-api-docs/1.0",
		renderMode:         RenderModeAuto,
		renderTimeout:      30 * time.Second,
		maxRenderAttempts:  3,
		maxBrowsers:        3,
		contextsPerBrowser: 5,
		minContentChars:    200,
		spaThreshold:       0.5,
		waitSelectors:      map[string]string{},
	}
	return &defaultConfig
}

func (c *Config) WithMaxDepth(depth int) *Config          { c.maxDepth = depth; return c }
func (c *Config) WithMaxPages(pages int) *Config          { c.maxPages = pages; return c }
func (c *Config) WithMaxWorkers(workers int) *Config      { c.maxWorkers = workers; return c }
func (c *Config) WithFrontierCapacity(n int) *Config      { c.frontierCapacity = n; return c }
func (c *Config) WithShutdownGrace(d time.Duration) *Config {
	c.shutdownGrace = d
	return c
}
func (c *Config) WithRateLimitRPS(rps float64) *Config { c.rateLimitRPS = rps; return c }
func (c *Config) WithBurst(burst int) *Config          { c.burst = burst; return c }
func (c *Config) WithMinInterval(d time.Duration) *Config {
	c.minInterval = d
	return c
}
func (c *Config) WithAcquireTimeout(d time.Duration) *Config {
	c.acquireTimeout = d
	return c
}
func (c *Config) WithJitter(d time.Duration) *Config   { c.jitter = d; return c }
func (c *Config) WithRandomSeed(seed int64) *Config    { c.randomSeed = seed; return c }
func (c *Config) WithRespectRobots(b bool) *Config     { c.respectRobots = b; return c }
func (c *Config) WithRobotsTTL(d time.Duration) *Config {
	c.robotsTTL = d
	return c
}
func (c *Config) WithRobotsNegativeTTL(d time.Duration) *Config {
	c.robotsNegativeTTL = d
	return c
}
func (c *Config) WithMaxRetries(n int) *Config { c.maxRetries = n; return c }
func (c *Config) WithBackoffBase(d time.Duration) *Config {
	c.backoffBase = d
	return c
}
func (c *Config) WithBackoffCap(d time.Duration) *Config {
	c.backoffCap = d
	return c
}
func (c *Config) WithRequestTimeout(d time.Duration) *Config {
	c.requestTimeout = d
	return c
}
func (c *Config) WithMaxResponseBytes(n int64) *Config { c.maxResponseBytes = n; return c }
func (c *Config) WithUserAgent(ua string) *Config      { c.userAgent = ua; return c }
func (c *Config) WithRenderMode(m RenderMode) *Config  { c.renderMode = m; return c }
func (c *Config) WithRenderTimeout(d time.Duration) *Config {
	c.renderTimeout = d
	return c
}
func (c *Config) WithMaxRenderAttempts(n int) *Config  { c.maxRenderAttempts = n; return c }
func (c *Config) WithMaxBrowsers(n int) *Config        { c.maxBrowsers = n; return c }
func (c *Config) WithContextsPerBrowser(n int) *Config { c.contextsPerBrowser = n; return c }
func (c *Config) WithMinContentChars(n int) *Config    { c.minContentChars = n; return c }
func (c *Config) WithSpaThreshold(t float64) *Config   { c.spaThreshold = t; return c }
func (c *Config) WithWaitSelectors(m map[string]string) *Config {
	c.waitSelectors = m
	return c
}

// Build validates the configuration and returns an immutable copy.
func (c *Config) Build() (Config, error) {
	if c.seedURL.Host == "" {
		return Config{}, fmt.Errorf("%w: seed URL must have a host", ErrInvalidConfig)
	}
	if c.maxDepth < 0 {
		return Config{}, fmt.Errorf("%w: maxDepth must be >= 0", ErrInvalidConfig)
	}
	if c.maxPages < Unbounded {
		return Config{}, fmt.Errorf("%w: maxPages must be >= -1", ErrInvalidConfig)
	}
	if c.maxWorkers < 1 {
		return Config{}, fmt.Errorf("%w: maxWorkers must be >= 1", ErrInvalidConfig)
	}
	if c.frontierCapacity < 1 {
		return Config{}, fmt.Errorf("%w: frontierCapacity must be >= 1", ErrInvalidConfig)
	}
	if c.rateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("%w: rateLimitRps must be > 0", ErrInvalidConfig)
	}
	if c.burst < 1 {
		return Config{}, fmt.Errorf("%w: burst must be >= 1", ErrInvalidConfig)
	}
	if c.maxRetries < 1 {
		return Config{}, fmt.Errorf("%w: maxRetries must be >= 1", ErrInvalidConfig)
	}
	if c.maxResponseBytes < 1 {
		return Config{}, fmt.Errorf("%w: maxResponseBytes must be >= 1", ErrInvalidConfig)
	}
	switch c.renderMode {
	case RenderModeAuto, RenderModeStaticOnly, RenderModeBrowserOnly:
	default:
		return Config{}, fmt.Errorf("%w: unknown renderMode %q", ErrInvalidConfig, c.renderMode)
	}
	if c.spaThreshold < 0 || c.spaThreshold > 1 {
		return Config{}, fmt.Errorf("%w: spaThreshold must be within [0, 1]", ErrInvalidConfig)
	}
	if c.maxBrowsers < 1 || c.contextsPerBrowser < 1 {
		return Config{}, fmt.Errorf("%w: browser pool bounds must be >= 1", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) SeedURL() url.URL                 { return c.seedURL }
func (c Config) MaxDepth() int                    { return c.maxDepth }
func (c Config) MaxPages() int                    { return c.maxPages }
func (c Config) MaxPagesBounded() bool            { return c.maxPages >= 0 }
func (c Config) MaxWorkers() int                  { return c.maxWorkers }
func (c Config) FrontierCapacity() int            { return c.frontierCapacity }
func (c Config) ShutdownGrace() time.Duration     { return c.shutdownGrace }
func (c Config) RateLimitRPS() float64            { return c.rateLimitRPS }
func (c Config) Burst() int                       { return c.burst }
func (c Config) MinInterval() time.Duration       { return c.minInterval }
func (c Config) AcquireTimeout() time.Duration    { return c.acquireTimeout }
func (c Config) Jitter() time.Duration            { return c.jitter }
func (c Config) RandomSeed() int64                { return c.randomSeed }
func (c Config) RespectRobots() bool              { return c.respectRobots }
func (c Config) RobotsTTL() time.Duration         { return c.robotsTTL }
func (c Config) RobotsNegativeTTL() time.Duration { return c.robotsNegativeTTL }
func (c Config) MaxRetries() int                  { return c.maxRetries }
func (c Config) BackoffBase() time.Duration       { return c.backoffBase }
func (c Config) BackoffCap() time.Duration        { return c.backoffCap }
func (c Config) RequestTimeout() time.Duration    { return c.requestTimeout }
func (c Config) MaxResponseBytes() int64          { return c.maxResponseBytes }
func (c Config) UserAgent() string                { return c.userAgent }
func (c Config) RenderMode() RenderMode           { return c.renderMode }
func (c Config) RenderTimeout() time.Duration     { return c.renderTimeout }
func (c Config) MaxRenderAttempts() int           { return c.maxRenderAttempts }
func (c Config) MaxBrowsers() int                 { return c.maxBrowsers }
func (c Config) ContextsPerBrowser() int          { return c.contextsPerBrowser }
func (c Config) MinContentChars() int             { return c.minContentChars }
func (c Config) SpaThreshold() float64            { return c.spaThreshold }

// WaitSelector returns the optional CSS selector waited for after
// navigation on the given host.
func (c Config) WaitSelector(host string) (string, bool) {
	sel, ok := c.waitSelectors[host]
	return sel, ok
}
