package extractor

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

/*
Responsibilities
- Parse HTML into a DOM tree
- Isolate the main documentation region
- Remove site chrome and attribute noise
- Resolve the page title and the region's outbound links

Extraction Strategy
- Priority order: main, article, .main-content, #content, body
Removal Rules
- Strip:
    - Navigation menus
    - Footers
    - "Skip to content" helpers
    - Cookie banners
    - Elements with roles navigation or banner

The extractor performs no I/O and has no failure modes: empty or
unparseable input yields an empty result.
*/

type Extractor interface {
	Extract(baseURL url.URL, htmlByte []byte) ExtractionResult
}

type DomExtractor struct{}

func NewDomExtractor() DomExtractor {
	return DomExtractor{}
}

func (d DomExtractor) Extract(baseURL url.URL, htmlByte []byte) ExtractionResult {
	if len(htmlByte) == 0 {
		return ExtractionResult{Title: fallbackTitle(baseURL)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlByte))
	if err != nil {
		return ExtractionResult{Title: fallbackTitle(baseURL)}
	}

	region := mainRegion(doc)

	for _, sel := range chromeSelectors {
		region.Find(sel).Remove()
	}
	stripNoiseAttrs(region)

	title := resolveTitle(region, doc, baseURL)
	links := extractLinks(region, baseURL)

	contentHTML, err := goquery.OuterHtml(region)
	if err != nil {
		contentHTML = ""
	}

	var contentNode *html.Node
	if len(region.Nodes) > 0 {
		contentNode = region.Nodes[0]
	}

	return ExtractionResult{
		Title:       title,
		ContentNode: contentNode,
		ContentHTML: contentHTML,
		Text:        strings.Join(strings.Fields(region.Text()), " "),
		Links:       links,
	}
}

// mainRegion probes the selector table in order; the first match wins
// and <body> is the final fallback.
func mainRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainRegionSelectors {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			return region
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// resolveTitle: first h1 inside the region, else document title, else
// the URL path basename.
func resolveTitle(region *goquery.Selection, doc *goquery.Document, baseURL url.URL) string {
	if h1 := strings.TrimSpace(region.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if docTitle := strings.TrimSpace(doc.Find("title").First().Text()); docTitle != "" {
		return docTitle
	}
	return fallbackTitle(baseURL)
}

func fallbackTitle(baseURL url.URL) string {
	base := path.Base(baseURL.Path)
	if base == "/" || base == "." || base == "" {
		return baseURL.Host
	}
	return base
}

// extractLinks resolves every <a href> in the region against the base
// URL and canonicalizes it. Fragment-only, malformed, and non-HTTP
// references are dropped. Order is document order, deduplicated.
func extractLinks(region *goquery.Selection, baseURL url.URL) []string {
	var links []string
	seen := make(map[string]struct{})

	region.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		resolved, ok := urlutil.Resolve(baseURL, href)
		if !ok {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		key := resolved.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		links = append(links, key)
	})

	return links
}

// stripNoiseAttrs drops styles, data-* attributes, and JS handlers from
// every element in the region.
func stripNoiseAttrs(region *goquery.Selection) {
	region.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, node := range s.Nodes {
			filtered := node.Attr[:0]
			for _, attr := range node.Attr {
				if keepAttr(attr.Key) {
					filtered = append(filtered, attr)
				}
			}
			node.Attr = filtered
		}
	})
}

func keepAttr(key string) bool {
	if _, ok := keepAttrs[key]; ok {
		return true
	}
	for _, prefix := range noiseAttrPrefixes {
		if strings.HasPrefix(key, prefix) {
			return false
		}
	}
	return true
}
