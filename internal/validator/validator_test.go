package validator

import (
	"context"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thepingdoctor/scrape-api-docs/internal/metadata"
	"github.com/thepingdoctor/scrape-api-docs/pkg/failure"
)

// mapResolver resolves hosts from a fixed table.
type mapResolver struct {
	table map[string][]string
}

func (m *mapResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := m.table[host]
	if !ok {
		return nil, fmt.Errorf("no such host: %s", host)
	}
	var addrs []net.IPAddr
	for _, ip := range ips {
		addrs = append(addrs, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return addrs, nil
}

func newTestValidator(table map[string][]string) URLValidator {
	recorder := metadata.NewRecorder("test")
	return NewURLValidatorWithResolver(&recorder, &mapResolver{table: table})
}

func TestValidate_AcceptsPublicHosts(t *testing.T) {
	v := newTestValidator(map[string][]string{
		"docs.example.com": {"93.184.216.34"},
	})

	got, err := v.Validate(context.Background(), "https://docs.example.com/guide?x=1#frag")
	require.Nil(t, err)
	assert.Equal(t, "https://docs.example.com/guide", got.String())
}

func TestValidate_RejectsSchemes(t *testing.T) {
	v := newTestValidator(nil)

	tests := []struct {
		name string
		url  string
	}{
		{name: "ftp", url: "ftp://example.com/file"},
		{name: "file", url: "file:///etc/passwd"},
		{name: "javascript", url: "javascript:alert(1)"},
		{name: "gopher", url: "gopher://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.url)
			require.NotNil(t, err)
			assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
		})
	}
}

func TestValidate_RejectsBlockedRanges(t *testing.T) {
	v := newTestValidator(map[string][]string{
		"loopback.test":  {"127.0.0.1"},
		"rfc1918-10.test":  {"10.1.2.3"},
		"rfc1918-172.test": {"172.16.0.9"},
		"rfc1918-192.test": {"192.168.1.1"},
		"linklocal.test": {"169.254.10.20"},
		"metadata.test":  {"169.254.169.254"},
		"v6loop.test":    {"::1"},
		"v6ula.test":     {"fc00::1"},
		"v6link.test":    {"fe80::1"},
		"multicast.test": {"224.0.0.1"},
		"mixed.test":     {"93.184.216.34", "10.0.0.1"},
	}

	for host := range map[string][]string{
		"loopback.test": nil, "rfc1918-10.test": nil, "rfc1918-172.test": nil,
		"rfc1918-192.test": nil, "linklocal.test": nil, "metadata.test": nil,
		"v6loop.test": nil, "v6ula.test": nil, "v6link.test": nil,
		"multicast.test": nil, "mixed.test": nil,
	} {
		t.Run(host, func(t *testing.T) {
			_, err := v.Validate(context.Background(), "http://"+host+"/")
			require.NotNil(t, err, "expected %s to be rejected", host)
			assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
		})
	}
}

func TestValidate_RejectsIPLiterals(t *testing.T) {
	v := newTestValidator(nil)

	tests := []string{
		"http://127.0.0.1/",
		"http://127.0.0.1:8080/admin",
		"http://10.0.0.1/",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]/",
		"http://[fe80::1]/",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := v.Validate(context.Background(), raw)
			require.NotNil(t, err)
			assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
		})
	}
}

func TestValidate_AcceptsPublicIPLiteral(t *testing.T) {
	v := newTestValidator(nil)

	got, err := v.Validate(context.Background(), "http://93.184.216.34/docs")
	require.Nil(t, err)
	assert.Equal(t, "http://93.184.216.34/docs", got.String())
}

func TestValidate_RejectsLocalhostLiteral(t *testing.T) {
	v := newTestValidator(map[string][]string{
		// Even a localhost that "resolves" publicly is rejected by name.
		"localhost": {"93.184.216.34"},
	})

	_, err := v.Validate(context.Background(), "http://localhost:3000/")
	require.NotNil(t, err)
	assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
}

func TestValidate_RejectsUnresolvableHost(t *testing.T) {
	v := newTestValidator(map[string][]string{})

	_, err := v.Validate(context.Background(), "https://nonexistent.test/")
	require.NotNil(t, err)
	assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
}

func TestValidate_RejectsMalformed(t *testing.T) {
	v := newTestValidator(nil)

	_, err := v.Validate(context.Background(), "http://exa mple.com/")
	require.NotNil(t, err)
	assert.Equal(t, failure.KindUnsafeURL, failure.KindOf(err))
}

func TestValidate_CanonicalizesResult(t *testing.T) {
	v := newTestValidator(map[string][]string{
		"docs.example.com": {"93.184.216.34"},
	})

	got, err := v.Validate(context.Background(), "HTTPS://Docs.Example.Com:443/a/./b/../c/?q=1")
	require.Nil(t, err)
	assert.Equal(t, "https://docs.example.com/a/c", got.String())
}
