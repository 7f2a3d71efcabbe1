package acl

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/httpacl/httpacl/internal/netutil"
)

func builderFixture(t *testing.T) *Builder {
	t.Helper()
	b := NewBuilder()
	require.NoError(t, b.AddAllowedHost("good.example"))
	require.NoError(t, b.AddDeniedHost("bad.example"))
	require.NoError(t, b.AddAllowedPortRange(netutil.PortRange{Lo: 8000, Hi: 8080}))
	r, err := netutil.ParseIPRange("9.0.0.0/8")
	require.NoError(t, err)
	require.NoError(t, b.AddDeniedIPRange(r))
	require.NoError(t, b.AddStaticDNSMapping("pinned.example", netip.MustParseAddrPort("1.2.3.4:443")))
	require.NoError(t, b.AddAllowedHeader("X-Allowed", nil))
	require.NoError(t, b.AddDeniedHeader("X-Denied", Value("secret")))
	require.NoError(t, b.AddAllowedURLPath("/api/:id"))
	require.NoError(t, b.AddDeniedURLPath("/internal/*rest"))
	b.URLPathACLDefault(false)
	return b
}

func classify(p *Policy) map[string]Kind {
	return map[string]Kind{
		"host good":     p.IsHostAllowed("good.example").Kind,
		"host bad":      p.IsHostAllowed("bad.example").Kind,
		"host other":    p.IsHostAllowed("other.example").Kind,
		"port 8080":     p.IsPortAllowed(8080).Kind,
		"port 22":       p.IsPortAllowed(22).Kind,
		"ip denied":     p.IsIPAllowed(netip.MustParseAddr("9.9.9.9")).Kind,
		"ip global":     p.IsIPAllowed(netip.MustParseAddr("8.8.8.8")).Kind,
		"ip private":    p.IsIPAllowed(netip.MustParseAddr("10.0.0.5")).Kind,
		"header allow":  p.IsHeaderAllowed("X-Allowed", "v").Kind,
		"header denied": p.IsHeaderAllowed("X-Denied", "secret").Kind,
		"path allow":    p.IsURLPathAllowed("/api/42").Kind,
		"path denied":   p.IsURLPathAllowed("/internal/x/y").Kind,
		"path other":    p.IsURLPathAllowed("/other").Kind,
	}
}

func TestConfigRoundTrip(t *testing.T) {
	b := builderFixture(t)
	original, err := b.TryBuild()
	require.NoError(t, err)

	data, err := yaml.Marshal(b.Config())
	require.NoError(t, err)

	var cfg Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	restored, err := FromConfig(cfg)
	require.NoError(t, err)
	rebuilt, err := restored.TryBuild()
	require.NoError(t, err)

	assert.Equal(t, classify(original), classify(rebuilt))

	pinned, ok := rebuilt.ResolveStaticDNSMapping("pinned.example")
	require.True(t, ok)
	assert.Equal(t, netip.MustParseAddrPort("1.2.3.4:443"), pinned)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
allow_http: false
allowed_hosts: [good.example]
denied_ip_ranges: ["10.0.0.0/8"]
allowed_url_paths: ["/api/:id"]
url_path_acl_default: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	b, err := LoadFile(path)
	require.NoError(t, err)
	p, err := b.TryBuild()
	require.NoError(t, err)

	assert.True(t, p.IsSchemeAllowed("http").IsDenied())
	assert.True(t, p.IsSchemeAllowed("https").IsAllowed())
	assert.Equal(t, AllowedByRule, p.IsHostAllowed("good.example").Kind)
	assert.Equal(t, DeniedByRule, p.IsIPAllowed(netip.MustParseAddr("10.0.0.5")).Kind)
	assert.Equal(t, AllowedByRule, p.IsURLPathAllowed("/api/42").Kind)
	assert.Equal(t, DeniedByDefault, p.IsURLPathAllowed("/other").Kind)
	// Absent toggles keep defaults.
	assert.Equal(t, AllowedByRule, p.IsPortAllowed(443).Kind)
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("no_such_field: true\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileBadStaticMapping(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("static_dns_mappings:\n  host.example: not-an-addr\n"), 0o600))

	_, err := LoadFile(path)
	require.Error(t, err)
	var ae *AddError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ErrInvalidEntity, ae.Kind)
}
