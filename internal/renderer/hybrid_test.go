package renderer

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thepingdoctor/scrape-api-docs/internal/config"
	"github.com/thepingdoctor/scrape-api-docs/internal/extractor"
	"github.com/thepingdoctor/scrape-api-docs/internal/fetcher"
	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/internal/spa"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/retry"
)

// stubFetcher serves canned responses and counts calls.
type stubFetcher struct {
	body        string
	contentType string
	err         failure.ClassifiedError
	calls       atomic.Int32
}

func (s *stubFetcher) Fetch(
	_ context.Context,
	_ int,
	fetchParam fetcher.FetchParam,
	_ retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	s.calls.Add(1)
	if s.err != nil {
		return fetcher.FetchResult{}, s.err
	}
	return fetcher.NewFetchResultForTest(
		fetchParam.FetchURL(),
		[]byte(s.body),
		200,
		map[string]string{"Content-Type": s.contentType},
		time.Now(),
	), nil
}

func testConfig(t *testing.T, mode config.RenderMode) config.Config {
	t.Helper()
	u, err := url.Parse("https://docs.example.com/")
	require.NoError(t, err)
	cfg, err := config.WithDefault(*u).
		WithRenderMode(mode).
		WithRandomSeed(7).
		Build()
	require.NoError(t, err)
	return cfg
}

func newHybrid(t *testing.T, mode config.RenderMode, stub *stubFetcher) *HybridRenderer {
	t.Helper()
	cfg := testConfig(t, mode)
	recorder := metadata.NewRecorder("test")
	h := NewHybridRenderer(
		&recorder,
		stub,
		nil, // no pool: any browser attempt fails visibly
		spa.NewDetector(cfg.SpaThreshold()),
		extractor.NewDomExtractor(),
		cfg,
		"docs.example.com",
	)
	return &h
}

func richStaticPage() string {
	return `<html><head><title>Guide</title></head><body><main><h1>Guide</h1><p>` +
		strings.Repeat("Substantial static prose. ", 30) + `</p></main></body></html>`
}

func spaShell() string {
	var scripts strings.Builder
	for i := 0; i < 8; i++ {
		scripts.WriteString(`<script src="/c.js"></script>`)
	}
	return `<html><body><div id="app"></div>` + scripts.String() + `</body></html>`
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestRender_SufficientStaticNeverTouchesBrowser(t *testing.T) {
	stub := &stubFetcher{body: richStaticPage(), contentType: "text/html"}
	h := newHybrid(t, config.RenderModeAuto, stub)

	result, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/guide"), HintAuto, 0)
	require.Nil(t, err)

	// With no pool wired, reaching the browser path would have errored:
	// a sufficient static render must stand on its own.
	assert.False(t, result.RenderedWithBrowser())
	assert.Equal(t, 200, result.StatusCode())
	assert.Contains(t, string(result.HTML()), "Substantial static prose.")
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestRender_NonHTMLReturnedStatically(t *testing.T) {
	stub := &stubFetcher{body: `{"spec": true}`, contentType: "application/json"}
	h := newHybrid(t, config.RenderModeAuto, stub)

	result, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/openapi.json"), HintAuto, 0)
	require.Nil(t, err)
	assert.False(t, result.RenderedWithBrowser())
}

func TestRender_SPANeedsBrowserFailsWithoutPool(t *testing.T) {
	stub := &stubFetcher{body: spaShell(), contentType: "text/html"}
	h := newHybrid(t, config.RenderModeAuto, stub)

	_, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/app"), HintAuto, 0)
	require.NotNil(t, err)
	assert.Equal(t, failure.KindBrowserUnavailable, failure.KindOf(err))
}

func TestRender_StaticOnlyModeAcceptsSPAShell(t *testing.T) {
	stub := &stubFetcher{body: spaShell(), contentType: "text/html"}
	h := newHybrid(t, config.RenderModeStaticOnly, stub)

	result, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/app"), HintAuto, 0)
	require.Nil(t, err)
	assert.False(t, result.RenderedWithBrowser())
}

func TestRender_ForceStaticHintOverridesClassification(t *testing.T) {
	stub := &stubFetcher{body: spaShell(), contentType: "text/html"}
	h := newHybrid(t, config.RenderModeAuto, stub)

	result, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/app"), HintForceStatic, 0)
	require.Nil(t, err)
	assert.False(t, result.RenderedWithBrowser())
}

func TestRender_ForceBrowserFailsWithoutPool(t *testing.T) {
	stub := &stubFetcher{body: richStaticPage(), contentType: "text/html"}
	h := newHybrid(t, config.RenderModeAuto, stub)

	_, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/guide"), HintForceBrowser, 0)
	require.NotNil(t, err)
	assert.Equal(t, failure.KindBrowserUnavailable, failure.KindOf(err))
	// The static tier is skipped entirely under force_browser.
	assert.Equal(t, int32(0), stub.calls.Load())
}

func TestRender_StaticFetchErrorPropagates(t *testing.T) {
	stub := &stubFetcher{err: &fetcher.FetchError{
		Message:    "client error: 404",
		Retryable:  false,
		Cause:      fetcher.ErrCauseRequestClientError,
		StatusCode: 404,
	}}
	h := newHybrid(t, config.RenderModeStaticOnly, stub)

	_, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/missing"), HintAuto, 0)
	require.NotNil(t, err)
	assert.Equal(t, failure.KindHTTP4xx, failure.KindOf(err))
}

func TestRender_EmptyStaticWithoutPoolStillStands(t *testing.T) {
	// Classified sufficient (no SPA markers) but nearly empty: with no
	// browser available the static result is returned rather than lost.
	stub := &stubFetcher{
		body:        `<html><body><main><p>tiny</p></main></body></html>`,
		contentType: "text/html",
	}
	h := newHybrid(t, config.RenderModeAuto, stub)

	result, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/stub"), HintAuto, 0)
	require.Nil(t, err)
	assert.False(t, result.RenderedWithBrowser())
}

func TestRender_RecordsRenderEvent(t *testing.T) {
	stub := &stubFetcher{body: richStaticPage(), contentType: "text/html"}
	cfg := testConfig(t, config.RenderModeAuto)
	recorder := metadata.NewRecorder("test")
	h := NewHybridRenderer(
		&recorder, stub, nil,
		spa.NewDetector(cfg.SpaThreshold()),
		extractor.NewDomExtractor(),
		cfg, "docs.example.com",
	)

	_, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/guide"), HintAuto, 3)
	require.Nil(t, err)

	renders := recorder.Renders()
	require.Len(t, renders, 1)
	assert.False(t, renders[0].WithBrowser)
	assert.Equal(t, 3, renders[0].CrawlDepth)
}

func TestRender_UnsafeRedirectNeverFallsBackToBrowser(t *testing.T) {
	stub := &stubFetcher{err: &fetcher.FetchError{
		Message:   "redirect left the crawl scope",
		Retryable: false,
		Cause:     fetcher.ErrCauseUnsafeRedirect,
	}}
	h := newHybrid(t, config.RenderModeAuto, stub)

	_, err := h.Render(context.Background(), mustURL(t, "https://docs.example.com/evil"), HintAuto, 0)
	require.NotNil(t, err)
	assert.Equal(t, failure.KindUnsafeRedirect, failure.KindOf(err))
}
