package urlutil

import (
	"net/url"
	"path"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing
// the canonical form used for identity throughout a crawl. Two inputs are
// the same page iff they canonicalize equal.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - "." and ".." path segments are collapsed
//   - Trailing slashes are removed (except for root "/")
//   - Control bytes in the path are percent-encoded
//   - Query parameters and fragments are removed
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Path = cleanPath(canonical.Path)
	canonical.RawPath = ""

	canonical.Fragment = ""
	canonical.RawFragment = ""
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// Resolve resolves a possibly-relative reference against a base URL and
// canonicalizes the result. A reference that fails to parse yields ok=false.
func Resolve(base url.URL, ref string) (url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return url.URL{}, false
	}
	resolved := base.ResolveReference(parsed)
	return Canonicalize(*resolved), true
}

// cleanPath collapses "." and ".." segments, percent-encodes control
// bytes, and strips trailing slashes (root stays "/").
func cleanPath(p string) string {
	if p == "" {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		cleaned = "/"
	}
	cleaned = encodeControlBytes(cleaned)
	if len(cleaned) > 1 {
		cleaned = stripTrailingSlash(cleaned)
	}
	return cleaned
}

const upperhex = "0123456789ABCDEF"

func encodeControlBytes(s string) string {
	var hasControl bool
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			hasControl = true
			break
		}
	}
	if !hasControl {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 6)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
