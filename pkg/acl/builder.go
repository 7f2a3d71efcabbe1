package acl

import (
	"maps"
	"net/netip"
	"slices"

	"github.com/httpacl/httpacl/internal/netutil"
	"github.com/httpacl/httpacl/internal/pathroute"
	"github.com/httpacl/httpacl/pkg/authority"
)

// Builder accumulates ACL configuration through fluent mutators and produces
// an immutable Policy. Toggle and remove/clear mutators chain; add/set
// mutators return a *AddError on conflict. A Builder is not safe for
// concurrent use; construction is a single-threaded, one-shot operation.
type Builder struct {
	allowHTTP  bool
	allowHTTPS bool

	allowedMethods []Method
	deniedMethods  []Method

	allowedHosts []string
	deniedHosts  []string

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
}

// NewBuilder returns a Builder with the default policy: http and https
// allowed, all nine standard methods allowed, ports 80 and 443 allowed,
// header and URL path defaults allow, method/host/port/IP defaults deny,
// non-global and private IPs disallowed, private-range handling split from
// the coarse non-global gate.
func NewBuilder() *Builder {
	return &Builder{
		allowHTTP:         true,
		allowHTTPS:        true,
		allowedMethods:    StandardMethods(),
		allowedPortRanges: []netutil.PortRange{{Lo: 80, Hi: 80}, {Lo: 443, Hi: 443}},
		staticDNS:         map[string]netip.AddrPort{},
		allowedHeaders:    map[string]*string{},
		deniedHeaders:     map[string]*string{},
		allowedPaths:      pathroute.New(),
		deniedPaths:       pathroute.New(),
		splitPrivateIPs:   true,
		headerDefault:     true,
		pathDefault:       true,
	}
}

// Value returns a pointer to v, for exact-value header rules.
func Value(v string) *string { return &v }

// HTTP sets whether the http scheme is allowed.
func (b *Builder) HTTP(allow bool) *Builder { b.allowHTTP = allow; return b }

// HTTPS sets whether the https scheme is allowed.
func (b *Builder) HTTPS(allow bool) *Builder { b.allowHTTPS = allow; return b }

// NonGlobalIPRanges sets whether addresses outside globally routable space
// are allowed without an explicit allow-range.
func (b *Builder) NonGlobalIPRanges(allow bool) *Builder { b.allowNonGlobalIPs = allow; return b }

// PrivateIPRanges sets whether RFC1918/ULA private-use addresses are
// allowed. Only consulted when SplitPrivateIPRanges is enabled.
func (b *Builder) PrivateIPRanges(allow bool) *Builder { b.allowPrivateIPs = allow; return b }

// SplitPrivateIPRanges selects the IP classification variant. When enabled
// (the default) private-use space gets its own gate separate from the coarse
// non-global denial; when disabled every non-global address is handled by
// the NonGlobalIPRanges gate alone.
func (b *Builder) SplitPrivateIPRanges(enabled bool) *Builder { b.splitPrivateIPs = enabled; return b }

// MethodACLDefault sets the fallback for methods matching no rule.
func (b *Builder) MethodACLDefault(allow bool) *Builder { b.methodDefault = allow; return b }

// HostACLDefault sets the fallback for hosts matching no rule.
func (b *Builder) HostACLDefault(allow bool) *Builder { b.hostDefault = allow; return b }

// PortACLDefault sets the fallback for ports matching no rule.
func (b *Builder) PortACLDefault(allow bool) *Builder { b.portDefault = allow; return b }

// IPACLDefault sets the fallback for IPs matching no rule.
func (b *Builder) IPACLDefault(allow bool) *Builder { b.ipDefault = allow; return b }

// HeaderACLDefault sets the fallback for headers matching no rule.
func (b *Builder) HeaderACLDefault(allow bool) *Builder { b.headerDefault = allow; return b }

// URLPathACLDefault sets the fallback for URL paths matching no rule.
func (b *Builder) URLPathACLDefault(allow bool) *Builder { b.pathDefault = allow; return b }

// AddAllowedMethod adds a method to the allowed methods.
func (b *Builder) AddAllowedMethod(m Method) error {
	if slices.Contains(b.deniedMethods, m) {
		return alreadyDenied(DimMethod, string(m))
	}
	if slices.Contains(b.allowedMethods, m) {
		return alreadyAllowed(DimMethod, string(m))
	}
	b.allowedMethods = append(b.allowedMethods, m)
	return nil
}

// AddDeniedMethod adds a method to the denied methods.
func (b *Builder) AddDeniedMethod(m Method) error {
	if slices.Contains(b.allowedMethods, m) {
		return alreadyAllowed(DimMethod, string(m))
	}
	if slices.Contains(b.deniedMethods, m) {
		return alreadyDenied(DimMethod, string(m))
	}
	b.deniedMethods = append(b.deniedMethods, m)
	return nil
}

// RemoveAllowedMethod removes a method from the allowed methods.
func (b *Builder) RemoveAllowedMethod(m Method) *Builder {
	b.allowedMethods = remove(b.allowedMethods, m)
	return b
}

// RemoveDeniedMethod removes a method from the denied methods.
func (b *Builder) RemoveDeniedMethod(m Method) *Builder {
	b.deniedMethods = remove(b.deniedMethods, m)
	return b
}

// SetAllowedMethods atomically replaces the allowed methods.
func (b *Builder) SetAllowedMethods(methods []Method) error {
	for i, m := range methods {
		if slices.Contains(b.deniedMethods, m) {
			return alreadyDenied(DimMethod, string(m))
		}
		if slices.Contains(methods[:i], m) {
			return notUnique(DimMethod, string(m))
		}
	}
	b.allowedMethods = slices.Clone(methods)
	return nil
}

// SetDeniedMethods atomically replaces the denied methods.
func (b *Builder) SetDeniedMethods(methods []Method) error {
	for i, m := range methods {
		if slices.Contains(b.allowedMethods, m) {
			return alreadyAllowed(DimMethod, string(m))
		}
		if slices.Contains(methods[:i], m) {
			return notUnique(DimMethod, string(m))
		}
	}
	b.deniedMethods = slices.Clone(methods)
	return nil
}

// ClearAllowedMethods clears the allowed methods.
func (b *Builder) ClearAllowedMethods() *Builder { b.allowedMethods = nil; return b }

// ClearDeniedMethods clears the denied methods.
func (b *Builder) ClearDeniedMethods() *Builder { b.deniedMethods = nil; return b }

// AddAllowedHost adds a host to the allowed hosts. Hosts are exact domain
// strings or IP literals; they carry no wildcard semantics. Domains are
// IDNA-normalized before storage so unicode and punycoded spellings match
// the same rule.
func (b *Builder) AddAllowedHost(host string) error {
	normalized, ok := authority.NormalizeHost(host)
	if !ok {
		return invalidEntity(DimHost, host, "")
	}
	host = normalized
	if slices.Contains(b.deniedHosts, host) {
		return alreadyDenied(DimHost, host)
	}
	if slices.Contains(b.allowedHosts, host) {
		return alreadyAllowed(DimHost, host)
	}
	b.allowedHosts = append(b.allowedHosts, host)
	return nil
}

// AddDeniedHost adds a host to the denied hosts.
func (b *Builder) AddDeniedHost(host string) error {
	normalized, ok := authority.NormalizeHost(host)
	if !ok {
		return invalidEntity(DimHost, host, "")
	}
	host = normalized
	if slices.Contains(b.allowedHosts, host) {
		return alreadyAllowed(DimHost, host)
	}
	if slices.Contains(b.deniedHosts, host) {
		return alreadyDenied(DimHost, host)
	}
	b.deniedHosts = append(b.deniedHosts, host)
	return nil
}

// RemoveAllowedHost removes a host from the allowed hosts.
func (b *Builder) RemoveAllowedHost(host string) *Builder {
	if normalized, ok := authority.NormalizeHost(host); ok {
		host = normalized
	}
	b.allowedHosts = remove(b.allowedHosts, host)
	return b
}

// RemoveDeniedHost removes a host from the denied hosts.
func (b *Builder) RemoveDeniedHost(host string) *Builder {
	if normalized, ok := authority.NormalizeHost(host); ok {
		host = normalized
	}
	b.deniedHosts = remove(b.deniedHosts, host)
	return b
}

// SetAllowedHosts atomically replaces the allowed hosts.
func (b *Builder) SetAllowedHosts(hosts []string) error {
	cleaned := make([]string, 0, len(hosts))
	for _, h := range hosts {
		normalized, ok := authority.NormalizeHost(h)
		if !ok {
			return invalidEntity(DimHost, h, "")
		}
		if slices.Contains(b.deniedHosts, normalized) {
			return alreadyDenied(DimHost, normalized)
		}
		if slices.Contains(cleaned, normalized) {
			return notUnique(DimHost, normalized)
		}
		cleaned = append(cleaned, normalized)
	}
	b.allowedHosts = cleaned
	return nil
}

// SetDeniedHosts atomically replaces the denied hosts.
func (b *Builder) SetDeniedHosts(hosts []string) error {
	cleaned := make([]string, 0, len(hosts))
	for _, h := range hosts {
		normalized, ok := authority.NormalizeHost(h)
		if !ok {
			return invalidEntity(DimHost, h, "")
		}
		if slices.Contains(b.allowedHosts, normalized) {
			return alreadyAllowed(DimHost, normalized)
		}
		if slices.Contains(cleaned, normalized) {
			return notUnique(DimHost, normalized)
		}
		cleaned = append(cleaned, normalized)
	}
	b.deniedHosts = cleaned
	return nil
}

// ClearAllowedHosts clears the allowed hosts.
func (b *Builder) ClearAllowedHosts() *Builder { b.allowedHosts = nil; return b }

// ClearDeniedHosts clears the denied hosts.
func (b *Builder) ClearDeniedHosts() *Builder { b.deniedHosts = nil; return b }

// AddAllowedPortRange adds an inclusive port range to the allowed ranges.
func (b *Builder) AddAllowedPortRange(r netutil.PortRange) error {
	if !r.Valid() {
		return invalidEntity(DimPortRange, r.String(), "start after end")
	}
	if slices.Contains(b.deniedPortRanges, r) {
		return alreadyDenied(DimPortRange, r.String())
	}
	if slices.Contains(b.allowedPortRanges, r) {
		return alreadyAllowed(DimPortRange, r.String())
	}
	if netutil.PortOverlaps(b.allowedPortRanges, r, -1) || netutil.PortOverlaps(b.deniedPortRanges, r, -1) {
		return overlaps(DimPortRange, r.String())
	}
	b.allowedPortRanges = append(b.allowedPortRanges, r)
	return nil
}

// AddDeniedPortRange adds an inclusive port range to the denied ranges.
func (b *Builder) AddDeniedPortRange(r netutil.PortRange) error {
	if !r.Valid() {
		return invalidEntity(DimPortRange, r.String(), "start after end")
	}
	if slices.Contains(b.allowedPortRanges, r) {
		return alreadyAllowed(DimPortRange, r.String())
	}
	if slices.Contains(b.deniedPortRanges, r) {
		return alreadyDenied(DimPortRange, r.String())
	}
	if netutil.PortOverlaps(b.allowedPortRanges, r, -1) || netutil.PortOverlaps(b.deniedPortRanges, r, -1) {
		return overlaps(DimPortRange, r.String())
	}
	b.deniedPortRanges = append(b.deniedPortRanges, r)
	return nil
}

// RemoveAllowedPortRange removes a port range from the allowed ranges.
func (b *Builder) RemoveAllowedPortRange(r netutil.PortRange) *Builder {
	b.allowedPortRanges = remove(b.allowedPortRanges, r)
	return b
}

// RemoveDeniedPortRange removes a port range from the denied ranges.
func (b *Builder) RemoveDeniedPortRange(r netutil.PortRange) *Builder {
	b.deniedPortRanges = remove(b.deniedPortRanges, r)
	return b
}

// SetAllowedPortRanges atomically replaces the allowed port ranges.
func (b *Builder) SetAllowedPortRanges(ranges []netutil.PortRange) error {
	for i, r := range ranges {
		if !r.Valid() {
			return invalidEntity(DimPortRange, r.String(), "start after end")
		}
		if slices.Contains(b.deniedPortRanges, r) {
			return alreadyDenied(DimPortRange, r.String())
		}
		if netutil.PortOverlaps(ranges, r, i) || netutil.PortOverlaps(b.deniedPortRanges, r, -1) {
			return overlaps(DimPortRange, r.String())
		}
	}
	b.allowedPortRanges = slices.Clone(ranges)
	return nil
}

// SetDeniedPortRanges atomically replaces the denied port ranges.
func (b *Builder) SetDeniedPortRanges(ranges []netutil.PortRange) error {
	for i, r := range ranges {
		if !r.Valid() {
			return invalidEntity(DimPortRange, r.String(), "start after end")
		}
		if slices.Contains(b.allowedPortRanges, r) {
			return alreadyAllowed(DimPortRange, r.String())
		}
		if netutil.PortOverlaps(ranges, r, i) || netutil.PortOverlaps(b.allowedPortRanges, r, -1) {
			return overlaps(DimPortRange, r.String())
		}
	}
	b.deniedPortRanges = slices.Clone(ranges)
	return nil
}

// ClearAllowedPortRanges clears the allowed port ranges.
func (b *Builder) ClearAllowedPortRanges() *Builder { b.allowedPortRanges = nil; return b }

// ClearDeniedPortRanges clears the denied port ranges.
func (b *Builder) ClearDeniedPortRanges() *Builder { b.deniedPortRanges = nil; return b }

// AddAllowedIPRange adds an inclusive IP range to the allowed ranges. A
// single range never crosses address families.
func (b *Builder) AddAllowedIPRange(r netutil.IPRange) error {
	if !r.Valid() {
		return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
	}
	if slices.Contains(b.deniedIPRanges, r) {
		return alreadyDenied(DimIPRange, r.String())
	}
	if slices.Contains(b.allowedIPRanges, r) {
		return alreadyAllowed(DimIPRange, r.String())
	}
	if netutil.IPOverlaps(b.allowedIPRanges, r, -1) || netutil.IPOverlaps(b.deniedIPRanges, r, -1) {
		return overlaps(DimIPRange, r.String())
	}
	b.allowedIPRanges = append(b.allowedIPRanges, r)
	return nil
}

// AddDeniedIPRange adds an inclusive IP range to the denied ranges.
func (b *Builder) AddDeniedIPRange(r netutil.IPRange) error {
	if !r.Valid() {
		return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
	}
	if slices.Contains(b.allowedIPRanges, r) {
		return alreadyAllowed(DimIPRange, r.String())
	}
	if slices.Contains(b.deniedIPRanges, r) {
		return alreadyDenied(DimIPRange, r.String())
	}
	if netutil.IPOverlaps(b.allowedIPRanges, r, -1) || netutil.IPOverlaps(b.deniedIPRanges, r, -1) {
		return overlaps(DimIPRange, r.String())
	}
	b.deniedIPRanges = append(b.deniedIPRanges, r)
	return nil
}

// AddAllowedIPNet adds a CIDR prefix to the allowed IP ranges.
func (b *Builder) AddAllowedIPNet(p netip.Prefix) error {
	return b.AddAllowedIPRange(netutil.IPRangeFromPrefix(p))
}

// AddDeniedIPNet adds a CIDR prefix to the denied IP ranges.
func (b *Builder) AddDeniedIPNet(p netip.Prefix) error {
	return b.AddDeniedIPRange(netutil.IPRangeFromPrefix(p))
}

// RemoveAllowedIPRange removes an IP range from the allowed ranges.
func (b *Builder) RemoveAllowedIPRange(r netutil.IPRange) *Builder {
	b.allowedIPRanges = remove(b.allowedIPRanges, r)
	return b
}

// RemoveDeniedIPRange removes an IP range from the denied ranges.
func (b *Builder) RemoveDeniedIPRange(r netutil.IPRange) *Builder {
	b.deniedIPRanges = remove(b.deniedIPRanges, r)
	return b
}

// SetAllowedIPRanges atomically replaces the allowed IP ranges.
func (b *Builder) SetAllowedIPRanges(ranges []netutil.IPRange) error {
	for i, r := range ranges {
		if !r.Valid() {
			return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
		}
		if slices.Contains(b.deniedIPRanges, r) {
			return alreadyDenied(DimIPRange, r.String())
		}
		if netutil.IPOverlaps(ranges, r, i) || netutil.IPOverlaps(b.deniedIPRanges, r, -1) {
			return overlaps(DimIPRange, r.String())
		}
	}
	b.allowedIPRanges = slices.Clone(ranges)
	return nil
}

// SetDeniedIPRanges atomically replaces the denied IP ranges.
func (b *Builder) SetDeniedIPRanges(ranges []netutil.IPRange) error {
	for i, r := range ranges {
		if !r.Valid() {
			return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
		}
		if slices.Contains(b.allowedIPRanges, r) {
			return alreadyAllowed(DimIPRange, r.String())
		}
		if netutil.IPOverlaps(ranges, r, i) || netutil.IPOverlaps(b.allowedIPRanges, r, -1) {
			return overlaps(DimIPRange, r.String())
		}
	}
	b.deniedIPRanges = slices.Clone(ranges)
	return nil
}

// ClearAllowedIPRanges clears the allowed IP ranges.
func (b *Builder) ClearAllowedIPRanges() *Builder { b.allowedIPRanges = nil; return b }

// ClearDeniedIPRanges clears the denied IP ranges.
func (b *Builder) ClearDeniedIPRanges() *Builder { b.deniedIPRanges = nil; return b }

// AddStaticDNSMapping pins host to a fixed socket address. The mapping is
// stored and exposed for enforcement collaborators; the decision engine
// itself does not evaluate it.
func (b *Builder) AddStaticDNSMapping(host string, addr netip.AddrPort) error {
	normalized, ok := authority.NormalizeHost(host)
	if !ok {
		return invalidEntity(DimStaticDNS, host, "")
	}
	if _, exists := b.staticDNS[normalized]; exists {
		return notUnique(DimStaticDNS, normalized)
	}
	b.staticDNS[normalized] = addr
	return nil
}

// RemoveStaticDNSMapping removes a pinned resolution.
func (b *Builder) RemoveStaticDNSMapping(host string) *Builder {
	if normalized, ok := authority.NormalizeHost(host); ok {
		host = normalized
	}
	delete(b.staticDNS, host)
	return b
}

// SetStaticDNSMappings merges mappings into the static DNS table. The whole
// map is validated before anything is applied; on error the builder is left
// unchanged.
func (b *Builder) SetStaticDNSMappings(mappings map[string]netip.AddrPort) error {
	staged := make(map[string]netip.AddrPort, len(mappings))
	for host, addr := range mappings {
		normalized, ok := authority.NormalizeHost(host)
		if !ok {
			return invalidEntity(DimStaticDNS, host, "")
		}
		if _, exists := b.staticDNS[normalized]; exists {
			return notUnique(DimStaticDNS, normalized)
		}
		if _, exists := staged[normalized]; exists {
			return notUnique(DimStaticDNS, normalized)
		}
		staged[normalized] = addr
	}
	maps.Copy(b.staticDNS, staged)
	return nil
}

// ClearStaticDNSMappings clears the static DNS table.
func (b *Builder) ClearStaticDNSMappings() *Builder {
	b.staticDNS = map[string]netip.AddrPort{}
	return b
}

// AddAllowedHeader adds a header rule to the allowed headers. A nil value
// matches any value of the header; a non-nil value matches exactly.
func (b *Builder) AddAllowedHeader(name string, value *string) error {
	if _, ok := b.deniedHeaders[name]; ok {
		return alreadyDenied(DimHeader, name)
	}
	if _, ok := b.allowedHeaders[name]; ok {
		return alreadyAllowed(DimHeader, name)
	}
	b.allowedHeaders[name] = cloneValue(value)
	return nil
}

// AddDeniedHeader adds a header rule to the denied headers.
func (b *Builder) AddDeniedHeader(name string, value *string) error {
	if _, ok := b.allowedHeaders[name]; ok {
		return alreadyAllowed(DimHeader, name)
	}
	if _, ok := b.deniedHeaders[name]; ok {
		return alreadyDenied(DimHeader, name)
	}
	b.deniedHeaders[name] = cloneValue(value)
	return nil
}

// RemoveAllowedHeader removes a header rule from the allowed headers.
func (b *Builder) RemoveAllowedHeader(name string) *Builder {
	delete(b.allowedHeaders, name)
	return b
}

// RemoveDeniedHeader removes a header rule from the denied headers.
func (b *Builder) RemoveDeniedHeader(name string) *Builder {
	delete(b.deniedHeaders, name)
	return b
}

// SetAllowedHeaders atomically replaces the allowed headers.
func (b *Builder) SetAllowedHeaders(headers map[string]*string) error {
	for name := range headers {
		if _, ok := b.deniedHeaders[name]; ok {
			return alreadyDenied(DimHeader, name)
		}
	}
	replacement := make(map[string]*string, len(headers))
	for name, value := range headers {
		replacement[name] = cloneValue(value)
	}
	b.allowedHeaders = replacement
	return nil
}

// SetDeniedHeaders atomically replaces the denied headers.
func (b *Builder) SetDeniedHeaders(headers map[string]*string) error {
	for name := range headers {
		if _, ok := b.allowedHeaders[name]; ok {
			return alreadyAllowed(DimHeader, name)
		}
	}
	replacement := make(map[string]*string, len(headers))
	for name, value := range headers {
		replacement[name] = cloneValue(value)
	}
	b.deniedHeaders = replacement
	return nil
}

// ClearAllowedHeaders clears the allowed headers.
func (b *Builder) ClearAllowedHeaders() *Builder {
	b.allowedHeaders = map[string]*string{}
	return b
}

// ClearDeniedHeaders clears the denied headers.
func (b *Builder) ClearDeniedHeaders() *Builder {
	b.deniedHeaders = map[string]*string{}
	return b
}

// AddAllowedURLPath adds a path template to the allowed URL paths. Templates
// that would structurally collide with an already-registered template in
// either table are rejected, probing each table with the template itself.
func (b *Builder) AddAllowedURLPath(template string) error {
	if slices.Contains(b.deniedPaths.Templates(), template) || b.deniedPaths.Match(template) {
		return alreadyDenied(DimURLPath, template)
	}
	if slices.Contains(b.allowedPaths.Templates(), template) || b.allowedPaths.Match(template) {
		return alreadyAllowed(DimURLPath, template)
	}
	if err := b.allowedPaths.Add(template); err != nil {
		return invalidEntity(DimURLPath, template, err.Error())
	}
	return nil
}

// AddDeniedURLPath adds a path template to the denied URL paths.
func (b *Builder) AddDeniedURLPath(template string) error {
	if slices.Contains(b.allowedPaths.Templates(), template) || b.allowedPaths.Match(template) {
		return alreadyAllowed(DimURLPath, template)
	}
	if slices.Contains(b.deniedPaths.Templates(), template) || b.deniedPaths.Match(template) {
		return alreadyDenied(DimURLPath, template)
	}
	if err := b.deniedPaths.Add(template); err != nil {
		return invalidEntity(DimURLPath, template, err.Error())
	}
	return nil
}

// RemoveAllowedURLPath removes a template from the allowed URL paths and
// rebuilds the routing table from the remaining list.
func (b *Builder) RemoveAllowedURLPath(template string) *Builder {
	b.allowedPaths.Remove(template)
	return b
}

// RemoveDeniedURLPath removes a template from the denied URL paths.
func (b *Builder) RemoveDeniedURLPath(template string) *Builder {
	b.deniedPaths.Remove(template)
	return b
}

// SetAllowedURLPaths atomically replaces the allowed URL paths.
func (b *Builder) SetAllowedURLPaths(templates []string) error {
	replacement := pathroute.New()
	for _, tpl := range templates {
		if slices.Contains(b.deniedPaths.Templates(), tpl) || b.deniedPaths.Match(tpl) {
			return alreadyDenied(DimURLPath, tpl)
		}
		if slices.Contains(replacement.Templates(), tpl) {
			return notUnique(DimURLPath, tpl)
		}
		if err := replacement.Add(tpl); err != nil {
			return invalidEntity(DimURLPath, tpl, err.Error())
		}
	}
	b.allowedPaths = replacement
	return nil
}

// SetDeniedURLPaths atomically replaces the denied URL paths.
func (b *Builder) SetDeniedURLPaths(templates []string) error {
	replacement := pathroute.New()
	for _, tpl := range templates {
		if slices.Contains(b.allowedPaths.Templates(), tpl) || b.allowedPaths.Match(tpl) {
			return alreadyAllowed(DimURLPath, tpl)
		}
		if slices.Contains(replacement.Templates(), tpl) {
			return notUnique(DimURLPath, tpl)
		}
		if err := replacement.Add(tpl); err != nil {
			return invalidEntity(DimURLPath, tpl, err.Error())
		}
	}
	b.deniedPaths = replacement
	return nil
}

// ClearAllowedURLPaths clears the allowed URL paths.
func (b *Builder) ClearAllowedURLPaths() *Builder {
	b.allowedPaths = pathroute.New()
	return b
}

// ClearDeniedURLPaths clears the denied URL paths.
func (b *Builder) ClearDeniedURLPaths() *Builder {
	b.deniedPaths = pathroute.New()
	return b
}

// Build produces the immutable Policy without running the full validation
// pass. It is intended for trusted, previously validated inputs; invariants
// such as allow/deny disjointness are not re-checked, and an engine built
// from conflicting state resolves deny-first at decision time.
func (b *Builder) Build() *Policy {
	return b.BuildFull(nil)
}

// BuildFull is Build with a validate hook attached to the policy.
func (b *Builder) BuildFull(fn ValidateFunc) *Policy {
	p := &Policy{
		allowHTTP:         b.allowHTTP,
		allowHTTPS:        b.allowHTTPS,
		allowedMethods:    toSet(b.allowedMethods),
		deniedMethods:     toSet(b.deniedMethods),
		allowedHosts:      toSet(b.allowedHosts),
		deniedHosts:       toSet(b.deniedHosts),
		allowedPortRanges: slices.Clone(b.allowedPortRanges),
		deniedPortRanges:  slices.Clone(b.deniedPortRanges),
		allowedIPRanges:   slices.Clone(b.allowedIPRanges),
		deniedIPRanges:    slices.Clone(b.deniedIPRanges),
		staticDNS:         maps.Clone(b.staticDNS),
		allowedHeaders:    cloneHeaders(b.allowedHeaders),
		deniedHeaders:     cloneHeaders(b.deniedHeaders),
		allowedPaths:      b.allowedPaths.Clone(),
		deniedPaths:       b.deniedPaths.Clone(),
		allowNonGlobalIPs: b.allowNonGlobalIPs,
		allowPrivateIPs:   b.allowPrivateIPs,
		splitPrivateIPs:   b.splitPrivateIPs,
		methodDefault:     b.methodDefault,
		hostDefault:       b.hostDefault,
		portDefault:       b.portDefault,
		ipDefault:         b.ipDefault,
		headerDefault:     b.headerDefault,
		pathDefault:       b.pathDefault,
		validateFn:        fn,
	}
	return p
}

// TryBuild runs the full validation pass over every dimension and produces
// the immutable Policy. Required for deserialized configurations, whose
// routing tables are rebuilt here.
func (b *Builder) TryBuild() (*Policy, error) {
	return b.TryBuildFull(nil)
}

// TryBuildFull is TryBuild with a validate hook attached to the policy.
func (b *Builder) TryBuildFull(fn ValidateFunc) (*Policy, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b.BuildFull(fn), nil
}

func (b *Builder) validate() error {
	if m, ok := firstDuplicate(b.allowedMethods); ok {
		return notUnique(DimMethod, string(m))
	}
	if m, ok := firstDuplicate(b.deniedMethods); ok {
		return notUnique(DimMethod, string(m))
	}
	for _, m := range b.allowedMethods {
		if slices.Contains(b.deniedMethods, m) {
			return bothAllowedAndDenied(DimMethod, string(m))
		}
	}

	if h, ok := firstDuplicate(b.allowedHosts); ok {
		return notUnique(DimHost, h)
	}
	if h, ok := firstDuplicate(b.deniedHosts); ok {
		return notUnique(DimHost, h)
	}
	for _, h := range b.allowedHosts {
		if !authority.IsValidHost(h) {
			return invalidEntity(DimHost, h, "")
		}
		if slices.Contains(b.deniedHosts, h) {
			return bothAllowedAndDenied(DimHost, h)
		}
	}
	for _, h := range b.deniedHosts {
		if !authority.IsValidHost(h) {
			return invalidEntity(DimHost, h, "")
		}
	}

	if r, ok := firstDuplicate(b.allowedPortRanges); ok {
		return notUnique(DimPortRange, r.String())
	}
	if r, ok := firstDuplicate(b.deniedPortRanges); ok {
		return notUnique(DimPortRange, r.String())
	}
	if netutil.HasOverlappingPortRanges(b.allowedPortRanges) {
		return overlaps(DimPortRange, "allowed")
	}
	if netutil.HasOverlappingPortRanges(b.deniedPortRanges) {
		return overlaps(DimPortRange, "denied")
	}
	for _, r := range b.allowedPortRanges {
		if !r.Valid() {
			return invalidEntity(DimPortRange, r.String(), "start after end")
		}
		if slices.Contains(b.deniedPortRanges, r) {
			return bothAllowedAndDenied(DimPortRange, r.String())
		}
		if netutil.PortOverlaps(b.deniedPortRanges, r, -1) {
			return overlaps(DimPortRange, r.String())
		}
	}
	for _, r := range b.deniedPortRanges {
		if !r.Valid() {
			return invalidEntity(DimPortRange, r.String(), "start after end")
		}
	}

	if r, ok := firstDuplicate(b.allowedIPRanges); ok {
		return notUnique(DimIPRange, r.String())
	}
	if r, ok := firstDuplicate(b.deniedIPRanges); ok {
		return notUnique(DimIPRange, r.String())
	}
	if netutil.HasOverlappingIPRanges(b.allowedIPRanges) {
		return overlaps(DimIPRange, "allowed")
	}
	if netutil.HasOverlappingIPRanges(b.deniedIPRanges) {
		return overlaps(DimIPRange, "denied")
	}
	for _, r := range b.allowedIPRanges {
		if !r.Valid() {
			return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
		}
		if slices.Contains(b.deniedIPRanges, r) {
			return bothAllowedAndDenied(DimIPRange, r.String())
		}
		if netutil.IPOverlaps(b.deniedIPRanges, r, -1) {
			return overlaps(DimIPRange, r.String())
		}
	}
	for _, r := range b.deniedIPRanges {
		if !r.Valid() {
			return invalidEntity(DimIPRange, r.String(), "start after end or mixed families")
		}
	}

	for host := range b.staticDNS {
		if !authority.IsValidHost(host) {
			return invalidEntity(DimStaticDNS, host, "")
		}
	}

	for name := range b.allowedHeaders {
		if _, ok := b.deniedHeaders[name]; ok {
			return bothAllowedAndDenied(DimHeader, name)
		}
	}

	for _, tpl := range b.allowedPaths.Templates() {
		if slices.Contains(b.deniedPaths.Templates(), tpl) || b.deniedPaths.Match(tpl) {
			return bothAllowedAndDenied(DimURLPath, tpl)
		}
	}
	for _, tpl := range b.deniedPaths.Templates() {
		if b.allowedPaths.Match(tpl) {
			return bothAllowedAndDenied(DimURLPath, tpl)
		}
	}
	return nil
}

func toSet[T comparable](items []T) map[T]struct{} {
	set := make(map[T]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func remove[T comparable](items []T, item T) []T {
	return slices.DeleteFunc(items, func(x T) bool { return x == item })
}

func firstDuplicate[T comparable](items []T) (T, bool) {
	seen := make(map[T]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			return item, true
		}
		seen[item] = struct{}{}
	}
	var zero T
	return zero, false
}

func cloneValue(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneHeaders(h map[string]*string) map[string]*string {
	out := make(map[string]*string, len(h))
	for name, value := range h {
		out[name] = cloneValue(value)
	}
	return out
}
