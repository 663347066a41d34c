package extractor

import "golang.org/x/net/html"

// ExtractionResult is the extractor's contract with the Markdown
// converter and link discovery.
type ExtractionResult struct {
	// Title resolution order: first h1 inside the region, document
	// title, URL path basename.
	Title string

	// ContentNode is the extracted main region with chrome removed and
	// attribute noise dropped.
	ContentNode *html.Node

	// ContentHTML is ContentNode rendered back to HTML.
	ContentHTML string

	// Text is the region's visible text, whitespace-trimmed. The hybrid
	// renderer uses its length to judge whether a static render stands.
	Text string

	// Links are the canonical absolute URLs of every <a href> in the
	// region, resolved against the page's base URL. Fragment-only and
	// malformed references are dropped; scope filtering is the
	// orchestrator's job.
	Links []string
}
