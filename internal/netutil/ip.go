// Package netutil provides the address-classification and range primitives
// used by the ACL builder and decision engine.
package netutil

import "net/netip"

// Special-use IPv4 blocks that are not routable on the public internet.
var nonGlobalV4 = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),          // "this network"
	netip.MustParsePrefix("10.0.0.0/8"),         // private
	netip.MustParsePrefix("100.64.0.0/10"),      // shared address space (CGN)
	netip.MustParsePrefix("127.0.0.0/8"),        // loopback
	netip.MustParsePrefix("169.254.0.0/16"),     // link-local
	netip.MustParsePrefix("172.16.0.0/12"),      // private
	netip.MustParsePrefix("192.0.0.0/24"),       // IETF protocol assignments
	netip.MustParsePrefix("192.0.2.0/24"),       // documentation (TEST-NET-1)
	netip.MustParsePrefix("192.88.99.0/24"),     // 6to4 relay anycast
	netip.MustParsePrefix("192.168.0.0/16"),     // private
	netip.MustParsePrefix("198.18.0.0/15"),      // benchmarking
	netip.MustParsePrefix("198.51.100.0/24"),    // documentation (TEST-NET-2)
	netip.MustParsePrefix("203.0.113.0/24"),     // documentation (TEST-NET-3)
	netip.MustParsePrefix("224.0.0.0/4"),        // multicast
	netip.MustParsePrefix("240.0.0.0/4"),        // reserved
	netip.MustParsePrefix("255.255.255.255/32"), // broadcast
}

// Special-use IPv6 blocks that are not routable on the public internet.
var nonGlobalV6 = []netip.Prefix{
	netip.MustParsePrefix("::/128"),         // unspecified
	netip.MustParsePrefix("::1/128"),        // loopback
	netip.MustParsePrefix("::ffff:0:0/96"),  // IPv4-mapped
	netip.MustParsePrefix("100::/64"),       // discard-only
	netip.MustParsePrefix("2001:db8::/32"),  // documentation
	netip.MustParsePrefix("2002::/16"),      // 6to4
	netip.MustParsePrefix("fc00::/7"),       // unique local
	netip.MustParsePrefix("fe80::/10"),      // link-local
	netip.MustParsePrefix("ff00::/8"),       // multicast
}

var privateV4 = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

var privateV6 = []netip.Prefix{
	netip.MustParsePrefix("fc00::/7"),
}

// IsGlobalIP reports whether ip is routable on the public internet. IPv4-mapped
// IPv6 addresses are classified by their embedded IPv4 address.
func IsGlobalIP(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	ip = ip.Unmap()
	table := nonGlobalV6
	if ip.Is4() {
		table = nonGlobalV4
	}
	for _, p := range table {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

// IsPrivateIP reports whether ip is in RFC1918 private-use space (IPv4) or
// ULA space fc00::/7 (IPv6).
func IsPrivateIP(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	ip = ip.Unmap()
	table := privateV6
	if ip.Is4() {
		table = privateV4
	}
	for _, p := range table {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// IsLoopbackIP reports whether ip is a loopback address.
func IsLoopbackIP(ip netip.Addr) bool {
	return ip.IsValid() && ip.Unmap().IsLoopback()
}
