package extractor

// mainRegionSelectors is the ordered main-region probe: the first
// selector that matches wins, and <body> is the final fallback.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var mainRegionSelectors = []string{
	"main",
	"article",
	".main-content",
	"#content",
}

// chromeSelectors match site chrome stripped from the main region before
// conversion: navigation, footers, skip links, cookie banners, and
// landmark roles that never carry document content.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var chromeSelectors = []string{
	"nav",
	"footer",
	"header.site-header",
	"[role=navigation]",
	"[role=banner]",
	".skip-link",
	".skip-to-content",
	"a[href='#content']",
	"a[href='#main']",
	".cookie-banner",
	".cookie-consent",
	"#cookie-notice",
	"[aria-label='cookie banner']",
	".sidebar",
	".breadcrumbs",
	".edit-this-page",
}

// noiseAttrPrefixes are name prefixes of attributes dropped from every
// element in the extracted region: style and script noise that Markdown
// conversion must not see.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var noiseAttrPrefixes = []string{
	"style",
	"data-",
	"on",
}

// keepAttrs survive attribute stripping regardless of prefix matching.
//
//nolint:gochecknoglobals // This is a static lookup table that must be global
var keepAttrs = map[string]struct{}{
	"href":  {},
	"src":   {},
	"alt":   {},
	"title": {},
	"class": {}, // language hints on code fences live here
	"id":    {},
}
