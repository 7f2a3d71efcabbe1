package netutil

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// PortRange is an inclusive port interval.
type PortRange struct {
	Lo uint16
	Hi uint16
}

// Valid reports whether the range is well formed.
func (r PortRange) Valid() bool { return r.Lo <= r.Hi }

// Contains reports whether port falls inside the range.
func (r PortRange) Contains(port uint16) bool { return r.Lo <= port && port <= r.Hi }

func (r PortRange) String() string {
	if r.Lo == r.Hi {
		return fmt.Sprintf("%d", r.Lo)
	}
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}

func (r PortRange) overlaps(other PortRange) bool {
	return r.Lo <= other.Hi && other.Lo <= r.Hi
}

// PortOverlaps reports whether candidate intersects any range in ranges other
// than the one at exclude (pass -1 to compare against all of them).
func PortOverlaps(ranges []PortRange, candidate PortRange, exclude int) bool {
	for i, r := range ranges {
		if i == exclude {
			continue
		}
		if r.overlaps(candidate) {
			return true
		}
	}
	return false
}

// HasOverlappingPortRanges reports whether any two ranges in the list
// intersect. Sorts a copy by range start and checks adjacent pairs.
func HasOverlappingPortRanges(ranges []PortRange) bool {
	if len(ranges) < 2 {
		return false
	}
	sorted := make([]PortRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo < sorted[j].Lo })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Lo <= sorted[i-1].Hi {
			return true
		}
	}
	return false
}

// IPRange is an inclusive IP address interval. Lo and Hi are always of the
// same address family.
type IPRange struct {
	Lo netip.Addr
	Hi netip.Addr
}

// Valid reports whether the range is well formed: both ends set, same
// address family, and Lo <= Hi.
func (r IPRange) Valid() bool {
	return r.Lo.IsValid() && r.Hi.IsValid() &&
		r.Lo.Is4() == r.Hi.Is4() &&
		r.Lo.Compare(r.Hi) <= 0
}

// Contains reports whether ip falls inside the range. Addresses of the other
// family never match.
func (r IPRange) Contains(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.Is4() != r.Lo.Is4() {
		return false
	}
	return r.Lo.Compare(ip) <= 0 && ip.Compare(r.Hi) <= 0
}

func (r IPRange) String() string {
	if r.Lo == r.Hi {
		return r.Lo.String()
	}
	return r.Lo.String() + "-" + r.Hi.String()
}

func (r IPRange) overlaps(other IPRange) bool {
	if r.Lo.Is4() != other.Lo.Is4() {
		return false
	}
	return r.Lo.Compare(other.Hi) <= 0 && other.Lo.Compare(r.Hi) <= 0
}

// IPOverlaps reports whether candidate intersects any range in ranges other
// than the one at exclude (pass -1 to compare against all of them).
func IPOverlaps(ranges []IPRange, candidate IPRange, exclude int) bool {
	for i, r := range ranges {
		if i == exclude {
			continue
		}
		if r.overlaps(candidate) {
			return true
		}
	}
	return false
}

// HasOverlappingIPRanges reports whether any two ranges in the list
// intersect.
func HasOverlappingIPRanges(ranges []IPRange) bool {
	if len(ranges) < 2 {
		return false
	}
	sorted := make([]IPRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Lo.Compare(sorted[j].Lo) < 0 })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].overlaps(sorted[i-1]) {
			return true
		}
	}
	return false
}

// IPRangeFromPrefix converts a CIDR prefix into the inclusive range covering
// its network and broadcast addresses.
func IPRangeFromPrefix(p netip.Prefix) IPRange {
	p = p.Masked()
	lo := p.Addr()
	hi := lastAddr(p)
	return IPRange{Lo: lo, Hi: hi}
}

func lastAddr(p netip.Prefix) netip.Addr {
	addr := p.Addr()
	if addr.Is4() {
		b := addr.As4()
		for i := p.Bits(); i < 32; i++ {
			b[i/8] |= 1 << (7 - i%8)
		}
		return netip.AddrFrom4(b)
	}
	b := addr.As16()
	for i := p.Bits(); i < 128; i++ {
		b[i/8] |= 1 << (7 - i%8)
	}
	return netip.AddrFrom16(b)
}

// ParseIPRange parses a CIDR ("10.0.0.0/8"), an explicit interval
// ("10.0.0.1-10.0.0.9"), or a single address ("10.0.0.1").
func ParseIPRange(s string) (IPRange, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return IPRange{}, fmt.Errorf("parse ip range %q: %w", s, err)
		}
		return IPRangeFromPrefix(p), nil
	}
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		start, err := netip.ParseAddr(strings.TrimSpace(lo))
		if err != nil {
			return IPRange{}, fmt.Errorf("parse ip range %q: %w", s, err)
		}
		end, err := netip.ParseAddr(strings.TrimSpace(hi))
		if err != nil {
			return IPRange{}, fmt.Errorf("parse ip range %q: %w", s, err)
		}
		r := IPRange{Lo: start.Unmap(), Hi: end.Unmap()}
		if !r.Valid() {
			return IPRange{}, fmt.Errorf("parse ip range %q: start after end or mixed families", s)
		}
		return r, nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return IPRange{}, fmt.Errorf("parse ip range %q: %w", s, err)
	}
	addr = addr.Unmap()
	return IPRange{Lo: addr, Hi: addr}, nil
}
