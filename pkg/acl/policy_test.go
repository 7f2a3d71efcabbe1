package acl

import (
	"iter"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/httpacl/httpacl/internal/netutil"
	"github.com/httpacl/httpacl/pkg/authority"
)

func mustRange(t *testing.T, s string) netutil.IPRange {
	t.Helper()
	r, err := netutil.ParseIPRange(s)
	require.NoError(t, err)
	return r
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()

	assert.True(t, p.IsSchemeAllowed("http").IsAllowed())
	assert.True(t, p.IsSchemeAllowed("https").IsAllowed())
	assert.True(t, p.IsSchemeAllowed("ftp").IsDenied())
	assert.True(t, p.IsSchemeAllowed("gopher").IsDenied())

	for _, m := range StandardMethods() {
		assert.Equal(t, AllowedByRule, p.IsMethodAllowed(m).Kind)
	}
	assert.Equal(t, DeniedByDefault, p.IsMethodAllowed("BREW").Kind)

	assert.Equal(t, AllowedByRule, p.IsPortAllowed(80).Kind)
	assert.Equal(t, AllowedByRule, p.IsPortAllowed(443).Kind)
	assert.Equal(t, DeniedByDefault, p.IsPortAllowed(8080).Kind)

	assert.Equal(t, DeniedByDefault, p.IsHostAllowed("example.com").Kind)
	assert.Equal(t, AllowedByDefault, p.IsHeaderAllowed("X-Anything", "v").Kind)
	assert.Equal(t, AllowedByDefault, p.IsURLPathAllowed("/anything").Kind)
}

func TestSchemeOnlyHTTPAndHTTPS(t *testing.T) {
	p := NewBuilder().HTTP(false).Build()
	assert.True(t, p.IsSchemeAllowed("http").IsDenied())
	assert.True(t, p.IsSchemeAllowed("https").IsAllowed())
}

func TestMethodPrecedence(t *testing.T) {
	b := NewBuilder().RemoveAllowedMethod(MethodTrace)
	require.NoError(t, b.AddDeniedMethod(MethodTrace))
	p := b.Build()

	assert.Equal(t, DeniedByRule, p.IsMethodAllowed(MethodTrace).Kind)
	assert.Equal(t, AllowedByRule, p.IsMethodAllowed(MethodGet).Kind)
}

func TestHostClassification(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddAllowedHost("good.example"))
	require.NoError(t, b.AddDeniedHost("bad.example"))
	p := b.Build()

	assert.Equal(t, AllowedByRule, p.IsHostAllowed("good.example").Kind)
	assert.Equal(t, AllowedByRule, p.IsHostAllowed("GOOD.example").Kind)
	assert.Equal(t, DeniedByRule, p.IsHostAllowed("bad.example").Kind)
	assert.Equal(t, DeniedByDefault, p.IsHostAllowed("other.example").Kind)
	// Exact matching only, no subdomain semantics.
	assert.Equal(t, DeniedByDefault, p.IsHostAllowed("sub.good.example").Kind)
}

// Host rules and lookups share one IDNA normalization, so a rule written as
// a unicode name matches the punycoded form a parsed authority carries, and
// the other way around.
func TestHostUnicodeNormalization(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDeniedHost("münchen.de"))
	p := b.Build()

	assert.Equal(t, DeniedByRule, p.IsHostAllowed("münchen.de").Kind)
	assert.Equal(t, DeniedByRule, p.IsHostAllowed("MÜNCHEN.de").Kind)
	assert.Equal(t, DeniedByRule, p.IsHostAllowed("xn--mnchen-3ya.de").Kind)

	// A rule written in punycode catches the unicode spelling too.
	b = NewBuilder()
	require.NoError(t, b.AddDeniedHost("xn--mnchen-3ya.de"))
	p = b.Build()
	assert.Equal(t, DeniedByRule, p.IsHostAllowed("münchen.de").Kind)

	// The two spellings are the same rule, not two entries.
	b = NewBuilder()
	require.NoError(t, b.AddAllowedHost("münchen.de"))
	err := b.AddAllowedHost("xn--mnchen-3ya.de")
	assert.Equal(t, ErrAlreadyAllowed, addErrKind(t, err))
}

func TestStaticDNSMappingUnicodeKey(t *testing.T) {
	b := NewBuilder()
	pinned := netip.MustParseAddrPort("1.2.3.4:443")
	require.NoError(t, b.AddStaticDNSMapping("münchen.de", pinned))
	p := b.Build()

	got, ok := p.ResolveStaticDNSMapping("xn--mnchen-3ya.de")
	require.True(t, ok)
	assert.Equal(t, pinned, got)
}

func TestDefaultFallback(t *testing.T) {
	allow := NewBuilder().ClearAllowedMethods().MethodACLDefault(true).Build()
	assert.Equal(t, AllowedByDefault, allow.IsMethodAllowed(MethodGet).Kind)

	deny := NewBuilder().ClearAllowedMethods().MethodACLDefault(false).Build()
	assert.Equal(t, DeniedByDefault, deny.IsMethodAllowed(MethodGet).Kind)
}

func TestIPGlobality(t *testing.T) {
	// Default policy: private ranges disallowed, IP default deny.
	p := Default()
	assert.True(t, p.IsIPAllowed(netip.MustParseAddr("192.168.1.1")).IsDenied())
	assert.Equal(t, DeniedPrivateRange, p.IsIPAllowed(netip.MustParseAddr("192.168.1.1")).Kind)

	b := NewBuilder().PrivateIPRanges(true).IPACLDefault(true)
	p = b.Build()
	assert.True(t, p.IsIPAllowed(netip.MustParseAddr("192.168.1.1")).IsAllowed())

	b = NewBuilder()
	require.NoError(t, b.AddAllowedIPRange(mustRange(t, "1.0.0.0/8")))
	p = b.Build()
	assert.Equal(t, AllowedByRule, p.IsIPAllowed(netip.MustParseAddr("1.1.1.1")).Kind)

	b = NewBuilder()
	require.NoError(t, b.AddDeniedIPRange(mustRange(t, "9.0.0.0/8")))
	p = b.Build()
	assert.Equal(t, DeniedByRule, p.IsIPAllowed(netip.MustParseAddr("9.9.9.9")).Kind)
}

// Fixes the classification order: the documentation address 203.0.113.12 is
// neither global nor private, so it is denied as not-global unless an
// explicit allow-range covers it, in both classification modes.
func TestIPVariantOrder(t *testing.T) {
	for _, split := range []bool{true, false} {
		p := NewBuilder().SplitPrivateIPRanges(split).IPACLDefault(true).Build()
		cls := p.IsIPAllowed(netip.MustParseAddr("203.0.113.12"))
		assert.Equal(t, DeniedNotGlobal, cls.Kind, "split=%v", split)

		b := NewBuilder().SplitPrivateIPRanges(split)
		require.NoError(t, b.AddAllowedIPRange(mustRange(t, "203.0.113.0/24")))
		cls = b.Build().IsIPAllowed(netip.MustParseAddr("203.0.113.12"))
		assert.Equal(t, AllowedByRule, cls.Kind, "split=%v", split)
	}
}

func TestIPVariantPrivateHandling(t *testing.T) {
	addr := netip.MustParseAddr("10.1.2.3")

	// Split mode gives private space its own denial reason.
	p := NewBuilder().SplitPrivateIPRanges(true).Build()
	assert.Equal(t, DeniedPrivateRange, p.IsIPAllowed(addr).Kind)

	// Coarse mode folds private space into the non-global gate.
	p = NewBuilder().SplitPrivateIPRanges(false).Build()
	assert.Equal(t, DeniedNotGlobal, p.IsIPAllowed(addr).Kind)

	// A deny-range beats the private default in split mode.
	b := NewBuilder().SplitPrivateIPRanges(true).PrivateIPRanges(true)
	require.NoError(t, b.AddDeniedIPRange(mustRange(t, "10.0.0.0/8")))
	assert.Equal(t, DeniedByRule, b.Build().IsIPAllowed(addr).Kind)
}

func TestIPLoopback(t *testing.T) {
	p := Default()
	assert.Equal(t, DeniedNotGlobal, p.IsIPAllowed(netip.MustParseAddr("127.0.0.1")).Kind)
	assert.Equal(t, DeniedNotGlobal, p.IsIPAllowed(netip.MustParseAddr("::1")).Kind)

	p = NewBuilder().NonGlobalIPRanges(true).IPACLDefault(true).Build()
	assert.True(t, p.IsIPAllowed(netip.MustParseAddr("127.0.0.1")).IsAllowed())
}

func TestIPMappedV4(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.AddDeniedIPRange(mustRange(t, "9.0.0.0/8")))
	p := b.Build()
	assert.Equal(t, DeniedByRule, p.IsIPAllowed(netip.MustParseAddr("::ffff:9.9.9.9")).Kind)
}

func TestHeaderMatching(t *testing.T) {
	b := NewBuilder().HeaderACLDefault(false)
	require.NoError(t, b.AddAllowedHeader("X-Allowed", nil))
	require.NoError(t, b.AddAllowedHeader("X-Allowed2", Value("true")))
	require.NoError(t, b.AddDeniedHeader("X-Denied", nil))
	require.NoError(t, b.AddDeniedHeader("X-Denied2", Value("true")))
	p := b.Build()

	assert.Equal(t, AllowedByRule, p.IsHeaderAllowed("X-Allowed", "anything").Kind)
	assert.Equal(t, AllowedByRule, p.IsHeaderAllowed("X-Allowed2", "true").Kind)
	assert.Equal(t, DeniedByRule, p.IsHeaderAllowed("X-Allowed2", "false").Kind)
	assert.Equal(t, DeniedByRule, p.IsHeaderAllowed("X-Denied", "anything").Kind)
	assert.Equal(t, DeniedByRule, p.IsHeaderAllowed("X-Denied2", "true").Kind)
	assert.Equal(t, AllowedByRule, p.IsHeaderAllowed("X-Denied2", "false").Kind)
	assert.Equal(t, DeniedByDefault, p.IsHeaderAllowed("X-Other", "v").Kind)
}

func TestURLPathMatching(t *testing.T) {
	b := NewBuilder().URLPathACLDefault(false)
	require.NoError(t, b.AddAllowedURLPath("/allowed"))
	require.NoError(t, b.AddAllowedURLPath("/allowed/:id"))
	require.NoError(t, b.AddDeniedURLPath("/denied"))
	require.NoError(t, b.AddDeniedURLPath("/denied/*path"))
	p := b.Build()

	assert.Equal(t, AllowedByRule, p.IsURLPathAllowed("/allowed").Kind)
	assert.Equal(t, AllowedByRule, p.IsURLPathAllowed("/allowed/42").Kind)
	assert.Equal(t, DeniedByRule, p.IsURLPathAllowed("/denied").Kind)
	assert.Equal(t, DeniedByRule, p.IsURLPathAllowed("/denied/x").Kind)
	assert.Equal(t, DeniedByRule, p.IsURLPathAllowed("/denied/x/y").Kind)
	assert.Equal(t, DeniedByDefault, p.IsURLPathAllowed("/other").Kind)
}

func TestStaticDNSMapping(t *testing.T) {
	b := NewBuilder()
	pinned := netip.MustParseAddrPort("93.184.216.34:443")
	require.NoError(t, b.AddStaticDNSMapping("example.com", pinned))
	p := b.Build()

	got, ok := p.ResolveStaticDNSMapping("example.com")
	require.True(t, ok)
	assert.Equal(t, pinned, got)

	got, ok = p.ResolveStaticDNSMapping("EXAMPLE.com")
	require.True(t, ok)
	assert.Equal(t, pinned, got)

	_, ok = p.ResolveStaticDNSMapping("other.example")
	assert.False(t, ok)
}

func TestIsValidHook(t *testing.T) {
	p := Default()
	cls := p.IsValid("https", authority.Domain("example.com"), emptyHeaders(), nil)
	assert.Equal(t, AllowedByDefault, cls.Kind)

	p = NewBuilder().BuildFull(func(scheme string, auth authority.Authority, headers iter.Seq2[string, string], body []byte) Classification {
		if len(body) > 1024 {
			return Deny("the body is too large")
		}
		return Classification{Kind: AllowedByDefault}
	})
	cls = p.IsValid("https", authority.Domain("example.com"), emptyHeaders(), make([]byte, 2048))
	require.True(t, cls.IsDenied())
	assert.Equal(t, "denied because the body is too large", cls.String())
}

func TestClassificationStrings(t *testing.T) {
	assert.Equal(t, "allowed according to the allowed ACL", Classification{Kind: AllowedByRule}.String())
	assert.Equal(t, "denied according to the denied ACL", Classification{Kind: DeniedByRule}.String())
	assert.Equal(t, "denied because the IP is not global", Classification{Kind: DeniedNotGlobal}.String())
	assert.Equal(t, "denied because the IP is in a private range", Classification{Kind: DeniedPrivateRange}.String())
}

func emptyHeaders() iter.Seq2[string, string] {
	return func(func(string, string) bool) {}
}
