package validator

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
	"github.com/thepingdoctor/scrape-api-docs/pkg/urlutil"
)

/*
Responsibilities
- Screen URL schemes (http/https only)
- Resolve hosts and reject addresses in blocked IP ranges
- Produce the canonical URL used for crawl identity

A URL that passes Validate is safe to hand to the fetcher or the browser.
Redirect targets MUST be re-validated per hop.
*/

// Validator is the URL admission screen. Implementations must be safe for
// concurrent use.
type Validator interface {
	// Validate parses, canonicalizes, and screens a raw URL.
	Validate(ctx context.Context, rawURL string) (url.URL, failure.ClassifiedError)
	// ValidateURL screens an already-parsed URL (redirect hops, resolved
	// links).
	ValidateURL(ctx context.Context, u url.URL) (url.URL, failure.ClassifiedError)
}

// Resolver is the DNS lookup seam, replaceable in tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

type URLValidator struct {
	metadataSink  metadata.MetadataSink
	resolver      Resolver
	lookupTimeout time.Duration
}

func NewURLValidator(metadataSink metadata.MetadataSink) URLValidator {
	return URLValidator{
		metadataSink:  metadataSink,
		resolver:      net.DefaultResolver,
		lookupTimeout: 5 * time.Second,
	}
}

// NewURLValidatorWithResolver creates a validator with an injected
// resolver for testing.
func NewURLValidatorWithResolver(metadataSink metadata.MetadataSink, resolver Resolver) URLValidator {
	v := NewURLValidator(metadataSink)
	v.resolver = resolver
	return v
}

func (v *URLValidator) Validate(ctx context.Context, rawURL string) (url.URL, failure.ClassifiedError) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return url.URL{}, v.reject(rawURL, ErrCauseMalformed, err.Error())
	}
	return v.ValidateURL(ctx, *parsed)
}

func (v *URLValidator) ValidateURL(ctx context.Context, u url.URL) (url.URL, failure.ClassifiedError) {
	canonical := urlutil.Canonicalize(u)

	switch canonical.Scheme {
	case "http", "https":
	default:
		return url.URL{}, v.reject(u.String(), ErrCauseScheme, fmt.Sprintf("scheme %q not allowed", canonical.Scheme))
	}

	host := canonical.Hostname()
	if host == "" {
		return url.URL{}, v.reject(u.String(), ErrCauseMalformed, "missing host")
	}
	if strings.EqualFold(host, "localhost") {
		return url.URL{}, v.reject(u.String(), ErrCauseBlockedHost, "host literal localhost")
	}

	// Host may already be an IP literal; otherwise resolve it and screen
	// every address it maps to.
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		if reason, blocked := blockedRange(addr); blocked {
			return url.URL{}, v.reject(u.String(), ErrCauseBlockedIP, reason)
		}
		return canonical, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, v.lookupTimeout)
	defer cancel()
	addrs, err := v.resolver.LookupIPAddr(lookupCtx, host)
	if err != nil {
		return url.URL{}, v.reject(u.String(), ErrCauseResolveFailure, err.Error())
	}
	if len(addrs) == 0 {
		return url.URL{}, v.reject(u.String(), ErrCauseResolveFailure, "host resolved to no addresses")
	}
	for _, ipAddr := range addrs {
		addr, ok := netip.AddrFromSlice(ipAddr.IP)
		if !ok {
			return url.URL{}, v.reject(u.String(), ErrCauseResolveFailure, "unparseable resolved address")
		}
		if reason, blocked := blockedRange(addr.Unmap()); blocked {
			return url.URL{}, v.reject(u.String(), ErrCauseBlockedIP, reason)
		}
	}

	return canonical, nil
}

func (v *URLValidator) reject(rawURL string, cause ValidationErrorCause, detail string) failure.ClassifiedError {
	valErr := &ValidationError{
		Message: detail,
		Cause:   cause,
	}
	if v.metadataSink != nil {
		v.metadataSink.RecordError(
			time.Now(),
			"validator",
			"URLValidator.Validate",
			metadata.CausePolicyDisallow,
			valErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, rawURL),
			},
		)
	}
	return valErr
}

// blockedRange screens an address against the ranges a docs crawler must
// never touch: loopback, RFC1918 private, link-local, unique-local,
// multicast, unspecified, and the cloud metadata address.
func blockedRange(addr netip.Addr) (string, bool) {
	metadataAddr := netip.MustParseAddr("169.254.169.254")

	switch {
	case addr == metadataAddr:
		return "cloud metadata address", true
	case addr.IsLoopback():
		return "loopback address", true
	case addr.IsPrivate():
		return "private address", true
	case addr.IsLinkLocalUnicast():
		return "link-local address", true
	case addr.IsLinkLocalMulticast(), addr.IsMulticast():
		return "multicast address", true
	case addr.IsUnspecified():
		return "unspecified address", true
	case addr.Is6() && uniqueLocal.Contains(addr):
		return "unique-local address", true
	}
	return "", false
}

var uniqueLocal = netip.MustParsePrefix("fc00::/7")
