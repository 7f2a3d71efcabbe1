// Package authority parses the host-plus-optional-port portion of a request
// target and distinguishes literal-IP connections from domain connections.
package authority

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidHost is returned when neither IP-literal nor domain-syntax
// parsing succeeds.
var ErrInvalidHost = errors.New("invalid host")

// Host is either a domain name or an IP address.
type Host struct {
	// Domain is set when the host is a domain name.
	Domain string
	// IP is set when the host is an IP literal.
	IP netip.Addr
}

// IsIP reports whether the host is an IP literal.
func (h Host) IsIP() bool { return h.IP.IsValid() }

func (h Host) String() string {
	if h.IsIP() {
		if h.IP.Is6() {
			return "[" + h.IP.String() + "]"
		}
		return h.IP.String()
	}
	return h.Domain
}

// Authority is a parsed host[:port] pair. Port 0 means no port was given.
type Authority struct {
	Host Host
	Port uint16
}

func (a Authority) String() string {
	if a.Port == 0 {
		return a.Host.String()
	}
	return a.Host.String() + ":" + strconv.Itoa(int(a.Port))
}

// Domain returns an Authority for a domain name without a port. Intended for
// constructing validate-hook inputs in tests and call sites that already
// hold a parsed host.
func Domain(domain string) Authority {
	return Authority{Host: Host{Domain: domain}}
}

// IP returns an Authority for an IP address without a port.
func IP(ip netip.Addr) Authority {
	return Authority{Host: Host{IP: ip.Unmap()}}
}

// Parse parses an authority string. Accepted forms: "host", "host:port",
// bare IPv4/IPv6 literals, "[v6]", and "[v6]:port".
func Parse(text string) (Authority, error) {
	if ap, err := netip.ParseAddrPort(text); err == nil {
		return Authority{Host: Host{IP: ap.Addr().Unmap()}, Port: ap.Port()}, nil
	}
	if ip, ok := parseIPLiteral(text); ok {
		return Authority{Host: Host{IP: ip}}, nil
	}
	if host, portStr, ok := strings.Cut(text, ":"); ok {
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return Authority{}, ErrInvalidHost
		}
		domain, ok := normalizeDomain(host)
		if !ok {
			return Authority{}, ErrInvalidHost
		}
		return Authority{Host: Host{Domain: domain}, Port: uint16(port)}, nil
	}
	domain, ok := normalizeDomain(text)
	if !ok {
		return Authority{}, ErrInvalidHost
	}
	return Authority{Host: Host{Domain: domain}}, nil
}

// IsValidHost reports whether s is a syntactically valid hostname or IP
// literal. Used by the ACL builder to validate host rules and static DNS
// mapping keys.
func IsValidHost(s string) bool {
	_, ok := NormalizeHost(s)
	return ok
}

// NormalizeHost canonicalizes a host for rule storage and lookup: IP
// literals are parsed and reprinted, domains go through the same IDNA
// mapping as Parse. Both the builder and the decision engine use this, so a
// rule written as a unicode name and a request carrying its punycoded form
// land on the same key.
func NormalizeHost(s string) (string, bool) {
	if ip, ok := parseIPLiteral(s); ok {
		return ip.String(), true
	}
	return normalizeDomain(s)
}

func parseIPLiteral(s string) (netip.Addr, bool) {
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return ip.Unmap(), true
}

// normalizeDomain lowercases and IDNA-normalizes a domain name, rejecting
// anything that is not valid hostname syntax.
func normalizeDomain(s string) (string, bool) {
	s = strings.TrimSuffix(strings.ToLower(s), ".")
	if s == "" {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return "", false
	}
	return ascii, true
}
