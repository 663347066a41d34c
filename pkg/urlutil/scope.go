package urlutil

import (
	"net/url"
	"strings"
)

// Scope is the in-scope predicate of a crawl, derived from the canonical
// seed URL: same host (case-insensitive) and path within the seed's path
// prefix. A Scope is immutable after construction.
type Scope struct {
	host       string
	pathPrefix string
}

// NewScope derives the crawl scope from an already-canonical seed URL.
// The prefix is the seed path without a last segment that contains a dot:
// a seed of /docs/intro.html scopes the crawl to /docs, a seed of
// /docs/intro scopes it to /docs/intro, a seed of /docs (or /docs/) to
// /docs.
func NewScope(seed url.URL) Scope {
	prefix := seed.Path
	if prefix == "" {
		prefix = "/"
	}
	if i := strings.LastIndex(prefix, "/"); i > 0 {
		// A last segment with a dot (intro.html) names a document, not a
		// directory, unless the path ends in a slash.
		if !strings.HasSuffix(prefix, "/") && strings.Contains(prefix[i:], ".") {
			prefix = prefix[:i]
		}
	}
	prefix = stripTrailingSlash(prefix)
	if prefix == "" {
		prefix = "/"
	}
	return Scope{
		host:       lowerASCII(seed.Host),
		pathPrefix: prefix,
	}
}

func (s Scope) Host() string {
	return s.host
}

func (s Scope) PathPrefix() string {
	return s.pathPrefix
}

// Contains reports whether a canonical URL is in-scope: host equals the
// seed host and the path starts with the seed path prefix on a segment
// boundary.
func (s Scope) Contains(u url.URL) bool {
	if lowerASCII(u.Host) != s.host {
		return false
	}
	if s.pathPrefix == "/" {
		return true
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, s.pathPrefix) {
		return false
	}
	rest := p[len(s.pathPrefix):]
	return rest == "" || rest[0] == '/'
}
