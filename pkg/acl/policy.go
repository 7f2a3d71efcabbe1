package acl

import (
	"iter"
	"net/netip"
	"strings"

	"github.com/httpacl/httpacl/internal/netutil"
	"github.com/httpacl/httpacl/internal/pathroute"
	"github.com/httpacl/httpacl/pkg/authority"
)

// ValidateFunc is an application-supplied content check consulted by IsValid.
// It sees the scheme, the parsed authority, an iterator over header pairs and
// the optional request body, and returns a Classification directly.
type ValidateFunc func(scheme string, auth authority.Authority, headers iter.Seq2[string, string], body []byte) Classification

// Policy is the immutable decision engine produced by a Builder. It holds no
// mutable state and is safe for unrestricted concurrent reads; share one
// instance between the request checker and the resolver wrapper.
type Policy struct {
	allowHTTP  bool
	allowHTTPS bool

	allowedMethods map[Method]struct{}
	deniedMethods  map[Method]struct{}

	allowedHosts map[string]struct{}
	deniedHosts  map[string]struct{}

	allowedPortRanges []netutil.PortRange
	deniedPortRanges  []netutil.PortRange

	allowedIPRanges []netutil.IPRange
	deniedIPRanges  []netutil.IPRange

	staticDNS map[string]netip.AddrPort

	allowedHeaders map[string]*string
	deniedHeaders  map[string]*string

	allowedPaths *pathroute.Table
	deniedPaths  *pathroute.Table

	allowNonGlobalIPs bool
	allowPrivateIPs   bool
	splitPrivateIPs   bool

	methodDefault bool
	hostDefault   bool
	portDefault   bool
	ipDefault     bool
	headerDefault bool
	pathDefault   bool

	validateFn ValidateFunc
}

// Default returns the default policy: https and http to ports 80 and 443
// with standard methods, everything else denied.
func Default() *Policy {
	return NewBuilder().Build()
}

// IsSchemeAllowed classifies a URL scheme. Only http and https can be
// allowed; every other scheme is denied.
func (p *Policy) IsSchemeAllowed(scheme string) Classification {
	if scheme == "http" && p.allowHTTP || scheme == "https" && p.allowHTTPS {
		return Classification{Kind: AllowedByRule}
	}
	return Classification{Kind: DeniedByRule}
}

// IsMethodAllowed classifies a request method.
func (p *Policy) IsMethodAllowed(m Method) Classification {
	if _, ok := p.deniedMethods[m]; ok {
		return Classification{Kind: DeniedByRule}
	}
	if _, ok := p.allowedMethods[m]; ok {
		return Classification{Kind: AllowedByRule}
	}
	return defaultClassification(p.methodDefault)
}

// IsHostAllowed classifies a host by exact match after the same IDNA
// normalization the builder applies to rules, so a unicode spelling and its
// punycoded form classify identically.
func (p *Policy) IsHostAllowed(host string) Classification {
	if normalized, ok := authority.NormalizeHost(host); ok {
		host = normalized
	} else {
		host = strings.ToLower(host)
	}
	if _, ok := p.deniedHosts[host]; ok {
		return Classification{Kind: DeniedByRule}
	}
	if _, ok := p.allowedHosts[host]; ok {
		return Classification{Kind: AllowedByRule}
	}
	return defaultClassification(p.hostDefault)
}

// IsPortAllowed classifies a destination port.
func (p *Policy) IsPortAllowed(port uint16) Classification {
	if portInRanges(port, p.deniedPortRanges) {
		return Classification{Kind: DeniedByRule}
	}
	if portInRanges(port, p.allowedPortRanges) {
		return Classification{Kind: AllowedByRule}
	}
	return defaultClassification(p.portDefault)
}

// IsIPAllowed classifies a destination address. With SplitPrivateIPRanges
// enabled, private-use space gets its own gate and denial reason; without
// it, every non-global address falls under the coarse non-global gate. In
// both modes an explicit allow-range overrides the non-global denial.
func (p *Policy) IsIPAllowed(ip netip.Addr) Classification {
	ip = ip.Unmap()
	if p.splitPrivateIPs {
		nonGlobal := !netutil.IsGlobalIP(ip) || netutil.IsLoopbackIP(ip)
		private := netutil.IsPrivateIP(ip)
		if nonGlobal && !private && !p.allowNonGlobalIPs {
			if ipInRanges(ip, p.allowedIPRanges) {
				return Classification{Kind: AllowedByRule}
			}
			return Classification{Kind: DeniedNotGlobal}
		}
		if ipInRanges(ip, p.allowedIPRanges) {
			return Classification{Kind: AllowedByRule}
		}
		if ipInRanges(ip, p.deniedIPRanges) {
			return Classification{Kind: DeniedByRule}
		}
		if private && !p.allowPrivateIPs {
			return Classification{Kind: DeniedPrivateRange}
		}
		return defaultClassification(p.ipDefault)
	}
	if !netutil.IsGlobalIP(ip) && !p.allowNonGlobalIPs {
		if ipInRanges(ip, p.allowedIPRanges) {
			return Classification{Kind: AllowedByRule}
		}
		return Classification{Kind: DeniedNotGlobal}
	}
	if ipInRanges(ip, p.allowedIPRanges) {
		return Classification{Kind: AllowedByRule}
	}
	if ipInRanges(ip, p.deniedIPRanges) {
		return Classification{Kind: DeniedByRule}
	}
	return defaultClassification(p.ipDefault)
}

// IsHeaderAllowed classifies one header pair. An allow rule with a nil value
// matches any value of the header and an exact-value rule matches only that
// value; deny rules mirror the same shape.
func (p *Policy) IsHeaderAllowed(name, value string) Classification {
	if allowed, ok := p.allowedHeaders[name]; ok {
		if allowed == nil || *allowed == value {
			return Classification{Kind: AllowedByRule}
		}
		return Classification{Kind: DeniedByRule}
	}
	if denied, ok := p.deniedHeaders[name]; ok {
		if denied == nil || *denied == value {
			return Classification{Kind: DeniedByRule}
		}
		return Classification{Kind: AllowedByRule}
	}
	return defaultClassification(p.headerDefault)
}

// IsURLPathAllowed classifies a concrete request path against the allow and
// deny routing tables.
func (p *Policy) IsURLPathAllowed(path string) Classification {
	if p.allowedPaths.Match(path) {
		return Classification{Kind: AllowedByRule}
	}
	if p.deniedPaths.Match(path) {
		return Classification{Kind: DeniedByRule}
	}
	return defaultClassification(p.pathDefault)
}

// IsValid runs the attached validate hook over the whole request, or reports
// AllowedByDefault when no hook is configured. It is an independent check on
// top of the per-dimension classifications, not a substitute for them.
func (p *Policy) IsValid(scheme string, auth authority.Authority, headers iter.Seq2[string, string], body []byte) Classification {
	if p.validateFn != nil {
		return p.validateFn(scheme, auth, headers, body)
	}
	return Classification{Kind: AllowedByDefault}
}

// ResolveStaticDNSMapping returns the pinned socket address for host, if one
// was configured.
func (p *Policy) ResolveStaticDNSMapping(host string) (netip.AddrPort, bool) {
	if normalized, ok := authority.NormalizeHost(host); ok {
		host = normalized
	} else {
		host = strings.ToLower(host)
	}
	addr, ok := p.staticDNS[host]
	return addr, ok
}

func defaultClassification(allow bool) Classification {
	if allow {
		return Classification{Kind: AllowedByDefault}
	}
	return Classification{Kind: DeniedByDefault}
}

func portInRanges(port uint16, ranges []netutil.PortRange) bool {
	for _, r := range ranges {
		if r.Contains(port) {
			return true
		}
	}
	return false
}

func ipInRanges(ip netip.Addr, ranges []netutil.IPRange) bool {
	for _, r := range ranges {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}
