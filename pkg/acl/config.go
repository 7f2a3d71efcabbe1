package acl

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/httpacl/httpacl/internal/netutil"
)

// Config is the persisted form of a Builder. Compiled routing tables cannot
// be serialized, so a loaded Config must be round-tripped through TryBuild
// to reconstruct and re-validate them before use.
type Config struct {
	AllowHTTP  *bool `yaml:"allow_http,omitempty"`
	AllowHTTPS *bool `yaml:"allow_https,omitempty"`

	AllowedMethods []string `yaml:"allowed_methods,omitempty"`
	DeniedMethods  []string `yaml:"denied_methods,omitempty"`

	AllowedHosts []string `yaml:"allowed_hosts,omitempty"`
	DeniedHosts  []string `yaml:"denied_hosts,omitempty"`

	AllowedPortRanges []PortRangeConfig `yaml:"allowed_port_ranges,omitempty"`
	DeniedPortRanges  []PortRangeConfig `yaml:"denied_port_ranges,omitempty"`

	// IP ranges are written as CIDR prefixes, "lo-hi" spans, or single
	// addresses.
	AllowedIPRanges []string `yaml:"allowed_ip_ranges,omitempty"`
	DeniedIPRanges  []string `yaml:"denied_ip_ranges,omitempty"`

	// StaticDNSMappings pins hostnames to "ip:port" socket addresses.
	StaticDNSMappings map[string]string `yaml:"static_dns_mappings,omitempty"`

	AllowedHeaders []HeaderConfig `yaml:"allowed_headers,omitempty"`
	DeniedHeaders  []HeaderConfig `yaml:"denied_headers,omitempty"`

	AllowedURLPaths []string `yaml:"allowed_url_paths,omitempty"`
	DeniedURLPaths  []string `yaml:"denied_url_paths,omitempty"`

	AllowNonGlobalIPRanges bool  `yaml:"allow_non_global_ip_ranges,omitempty"`
	AllowPrivateIPRanges   bool  `yaml:"allow_private_ip_ranges,omitempty"`
	SplitPrivateIPRanges   *bool `yaml:"split_private_ip_ranges,omitempty"`

	MethodACLDefault  bool  `yaml:"method_acl_default,omitempty"`
	HostACLDefault    bool  `yaml:"host_acl_default,omitempty"`
	PortACLDefault    bool  `yaml:"port_acl_default,omitempty"`
	IPACLDefault      bool  `yaml:"ip_acl_default,omitempty"`
	HeaderACLDefault  *bool `yaml:"header_acl_default,omitempty"`
	URLPathACLDefault *bool `yaml:"url_path_acl_default,omitempty"`
}

// PortRangeConfig is an inclusive port range in persisted form.
type PortRangeConfig struct {
	From uint16 `yaml:"from"`
	To   uint16 `yaml:"to"`
}

// HeaderConfig is one header rule in persisted form. A missing value means
// the rule matches any value of the header.
type HeaderConfig struct {
	Name  string  `yaml:"name"`
	Value *string `yaml:"value,omitempty"`
}

// Config snapshots the builder state in persisted form. The snapshot holds
// everything needed to reconstruct an equivalent builder with FromConfig.
func (b *Builder) Config() Config {
	cfg := Config{
		AllowHTTP:              boolPtr(b.allowHTTP),
		AllowHTTPS:             boolPtr(b.allowHTTPS),
		AllowedMethods:         methodStrings(b.allowedMethods),
		DeniedMethods:          methodStrings(b.deniedMethods),
		AllowedHosts:           append([]string(nil), b.allowedHosts...),
		DeniedHosts:            append([]string(nil), b.deniedHosts...),
		AllowedPortRanges:      portRangeConfigs(b.allowedPortRanges),
		DeniedPortRanges:       portRangeConfigs(b.deniedPortRanges),
		AllowedIPRanges:        ipRangeStrings(b.allowedIPRanges),
		DeniedIPRanges:         ipRangeStrings(b.deniedIPRanges),
		AllowedURLPaths:        b.allowedPaths.Templates(),
		DeniedURLPaths:         b.deniedPaths.Templates(),
		AllowNonGlobalIPRanges: b.allowNonGlobalIPs,
		AllowPrivateIPRanges:   b.allowPrivateIPs,
		SplitPrivateIPRanges:   boolPtr(b.splitPrivateIPs),
		MethodACLDefault:       b.methodDefault,
		HostACLDefault:         b.hostDefault,
		PortACLDefault:         b.portDefault,
		IPACLDefault:           b.ipDefault,
		HeaderACLDefault:       boolPtr(b.headerDefault),
		URLPathACLDefault:      boolPtr(b.pathDefault),
	}
	if len(b.staticDNS) > 0 {
		cfg.StaticDNSMappings = make(map[string]string, len(b.staticDNS))
		for host, addr := range b.staticDNS {
			cfg.StaticDNSMappings[host] = addr.String()
		}
	}
	cfg.AllowedHeaders = headerConfigs(b.allowedHeaders)
	cfg.DeniedHeaders = headerConfigs(b.deniedHeaders)
	return cfg
}

// FromConfig reconstructs a Builder from a persisted configuration. Absent
// toggle fields take the default-policy values; list fields replace the
// defaults outright when present. The result still needs TryBuild.
func FromConfig(cfg Config) (*Builder, error) {
	b := NewBuilder()
	if cfg.AllowHTTP != nil {
		b.HTTP(*cfg.AllowHTTP)
	}
	if cfg.AllowHTTPS != nil {
		b.HTTPS(*cfg.AllowHTTPS)
	}
	b.NonGlobalIPRanges(cfg.AllowNonGlobalIPRanges)
	b.PrivateIPRanges(cfg.AllowPrivateIPRanges)
	if cfg.SplitPrivateIPRanges != nil {
		b.SplitPrivateIPRanges(*cfg.SplitPrivateIPRanges)
	}
	b.MethodACLDefault(cfg.MethodACLDefault)
	b.HostACLDefault(cfg.HostACLDefault)
	b.PortACLDefault(cfg.PortACLDefault)
	b.IPACLDefault(cfg.IPACLDefault)
	if cfg.HeaderACLDefault != nil {
		b.HeaderACLDefault(*cfg.HeaderACLDefault)
	}
	if cfg.URLPathACLDefault != nil {
		b.URLPathACLDefault(*cfg.URLPathACLDefault)
	}

	if cfg.AllowedMethods != nil {
		if err := b.ClearAllowedMethods().SetAllowedMethods(toMethods(cfg.AllowedMethods)); err != nil {
			return nil, err
		}
	}
	if err := b.SetDeniedMethods(toMethods(cfg.DeniedMethods)); err != nil {
		return nil, err
	}
	if err := b.SetAllowedHosts(cfg.AllowedHosts); err != nil {
		return nil, err
	}
	if err := b.SetDeniedHosts(cfg.DeniedHosts); err != nil {
		return nil, err
	}
	if cfg.AllowedPortRanges != nil {
		b.ClearAllowedPortRanges()
		if err := b.SetAllowedPortRanges(toPortRanges(cfg.AllowedPortRanges)); err != nil {
			return nil, err
		}
	}
	if err := b.SetDeniedPortRanges(toPortRanges(cfg.DeniedPortRanges)); err != nil {
		return nil, err
	}
	allowedIPs, err := toIPRanges(cfg.AllowedIPRanges)
	if err != nil {
		return nil, err
	}
	if err := b.SetAllowedIPRanges(allowedIPs); err != nil {
		return nil, err
	}
	deniedIPs, err := toIPRanges(cfg.DeniedIPRanges)
	if err != nil {
		return nil, err
	}
	if err := b.SetDeniedIPRanges(deniedIPs); err != nil {
		return nil, err
	}
	for host, addr := range cfg.StaticDNSMappings {
		ap, err := netip.ParseAddrPort(addr)
		if err != nil {
			return nil, invalidEntity(DimStaticDNS, host, fmt.Sprintf("bad socket address %q", addr))
		}
		if err := b.AddStaticDNSMapping(host, ap); err != nil {
			return nil, err
		}
	}
	if err := b.SetAllowedHeaders(toHeaders(cfg.AllowedHeaders)); err != nil {
		return nil, err
	}
	if err := b.SetDeniedHeaders(toHeaders(cfg.DeniedHeaders)); err != nil {
		return nil, err
	}
	if err := b.SetAllowedURLPaths(cfg.AllowedURLPaths); err != nil {
		return nil, err
	}
	if err := b.SetDeniedURLPaths(cfg.DeniedURLPaths); err != nil {
		return nil, err
	}
	return b, nil
}

// LoadFile reads a YAML policy configuration and reconstructs its Builder.
// Unknown fields are rejected.
func LoadFile(path string) (*Builder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return FromConfig(cfg)
}

func boolPtr(v bool) *bool { return &v }

func methodStrings(methods []Method) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

func toMethods(names []string) []Method {
	out := make([]Method, len(names))
	for i, n := range names {
		out[i] = Method(strings.ToUpper(n))
	}
	return out
}

func portRangeConfigs(ranges []netutil.PortRange) []PortRangeConfig {
	out := make([]PortRangeConfig, len(ranges))
	for i, r := range ranges {
		out[i] = PortRangeConfig{From: r.Lo, To: r.Hi}
	}
	return out
}

func toPortRanges(cfgs []PortRangeConfig) []netutil.PortRange {
	out := make([]netutil.PortRange, len(cfgs))
	for i, c := range cfgs {
		out[i] = netutil.PortRange{Lo: c.From, Hi: c.To}
	}
	return out
}

func ipRangeStrings(ranges []netutil.IPRange) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.String()
	}
	return out
}

func toIPRanges(texts []string) ([]netutil.IPRange, error) {
	out := make([]netutil.IPRange, len(texts))
	for i, t := range texts {
		r, err := netutil.ParseIPRange(t)
		if err != nil {
			return nil, invalidEntity(DimIPRange, t, err.Error())
		}
		out[i] = r
	}
	return out, nil
}

func headerConfigs(headers map[string]*string) []HeaderConfig {
	out := make([]HeaderConfig, 0, len(headers))
	for name, value := range headers {
		out = append(out, HeaderConfig{Name: name, Value: cloneValue(value)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func toHeaders(cfgs []HeaderConfig) map[string]*string {
	out := make(map[string]*string, len(cfgs))
	for _, c := range cfgs {
		out[c.Name] = cloneValue(c.Value)
	}
	return out
}
