package spa

/*
Responsibilities
- Classify a fetched static response as "sufficient" or "needs-browser"
- Combine generic signals into a confidence score in [0, 1]

Signals (generic only; no per-platform shortcuts):
- Known client-side framework root markers and SPA generator meta tags
- A single near-empty root container followed by many scripts
- Low text-to-markup ratio with abundant deferred scripts

A non-HTML response is always classified sufficient: the renderer never
browser-renders non-HTML.
*/

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Verdict is the detector's binary outcome.
type Verdict string

const (
	VerdictSufficient   Verdict = "sufficient"
	VerdictNeedsBrowser Verdict = "needs_browser"
)

// Classification carries the verdict together with the confidence score
// that produced it, for observability.
type Classification struct {
	Verdict    Verdict
	Confidence float64
}

func (c Classification) NeedsBrowser() bool {
	return c.Verdict == VerdictNeedsBrowser
}

// frameworkRootAttrs are attribute names that client-side frameworks
// stamp on their mount point.
//
//nolint:gochecknoglobals // static lookup table
var frameworkRootAttrs = []string{
	"data-reactroot",
	"data-react-helmet",
	"ng-version",
	"ng-app",
	"data-v-app",
	"data-server-rendered",
	"data-svelte-h",
}

// spaGenerators are values of <meta name="generator"> that name
// client-side rendered site generators.
//
//nolint:gochecknoglobals // static lookup table
var spaGenerators = []string{
	"next.js",
	"nuxt",
	"gatsby",
	"create react app",
	"docsify",
	"sveltekit",
	"angular",
}

// emptyRootIDs are container ids frameworks conventionally mount into.
//
//nolint:gochecknoglobals // static lookup table
var emptyRootIDs = []string{
	"app",
	"root",
	"__next",
	"___gatsby",
	"__nuxt",
	"q-app",
	"svelte",
}

const (
	frameworkSignalWeight = 0.5
	emptyRootSignalWeight = 0.3
	textRatioSignalWeight = 0.2

	// emptyRootTextMax is the root-content length under which a mount
	// point counts as empty.
	emptyRootTextMax = 500
	// emptyRootScriptMin is the script count above which an empty root
	// looks client-rendered.
	emptyRootScriptMin = 5
	// lowTextRatio is the text-to-markup ratio under which a document
	// with deferred scripts looks client-rendered.
	lowTextRatio = 0.02
)

// Detector scores static HTML responses. It is stateless and safe for
// concurrent use.
type Detector struct {
	threshold float64
}

func NewDetector(threshold float64) Detector {
	return Detector{
		threshold: threshold,
	}
}

// Classify scores the static response body. contentType is the response
// Content-Type header; a non-HTML media type short-circuits to
// sufficient.
func (d Detector) Classify(body []byte, contentType string) Classification {
	if !isHTMLMediaType(contentType) {
		return Classification{Verdict: VerdictSufficient, Confidence: 0}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		// Unparseable input carries no SPA signal.
		return Classification{Verdict: VerdictSufficient, Confidence: 0}
	}

	var confidence float64
	if hasFrameworkMarker(doc) {
		confidence += frameworkSignalWeight
	}
	if hasEmptyRootWithScripts(doc) {
		confidence += emptyRootSignalWeight
	}
	if hasLowTextRatio(doc, body) {
		confidence += textRatioSignalWeight
	}
	if confidence > 1 {
		confidence = 1
	}

	verdict := VerdictSufficient
	if confidence >= d.threshold {
		verdict = VerdictNeedsBrowser
	}
	return Classification{Verdict: verdict, Confidence: confidence}
}

func isHTMLMediaType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml")
}

// hasFrameworkMarker reports a framework root attribute or an SPA
// generator meta tag. The signal weight is applied once, no matter how
// many markers match.
func hasFrameworkMarker(doc *goquery.Document) bool {
	for _, attr := range frameworkRootAttrs {
		if doc.Find("[" + attr + "]").Length() > 0 {
			return true
		}
	}

	generator, _ := doc.Find(`meta[name="generator"]`).Attr("content")
	generator = strings.ToLower(generator)
	if generator != "" {
		for _, name := range spaGenerators {
			if strings.Contains(generator, name) {
				return true
			}
		}
	}
	return false
}

// hasEmptyRootWithScripts reports a conventional mount container whose
// extracted text is near-empty while the document carries many scripts.
func hasEmptyRootWithScripts(doc *goquery.Document) bool {
	scripts := doc.Find("script").Length()
	if scripts <= emptyRootScriptMin {
		return false
	}
	for _, id := range emptyRootIDs {
		root := doc.Find("div#" + id)
		if root.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(root.First().Text())
		if len(text) < emptyRootTextMax {
			return true
		}
	}
	return false
}

// hasLowTextRatio reports a document whose visible text is a tiny share
// of its markup while deferred or module scripts are present.
func hasLowTextRatio(doc *goquery.Document, body []byte) bool {
	if len(body) == 0 {
		return false
	}
	deferred := doc.Find("script[defer], script[async], script[type='module']").Length()
	if deferred == 0 {
		return false
	}
	bodyText := strings.TrimSpace(doc.Find("body").Text())
	ratio := float64(len(bodyText)) / float64(len(body))
	return ratio < lowTextRatio
}
