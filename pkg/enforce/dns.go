package enforce

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

const defaultUpstream = "8.8.8.8:53"

// DNSResolver is an AddrResolver that queries an upstream DNS server
// directly instead of going through the system resolver. Useful when the
// host's stub resolver is itself untrusted or intercepted.
type DNSResolver struct {
	upstream string
	client   *dns.Client
}

// NewDNSResolver returns a resolver querying upstream ("host:port"). An
// empty upstream falls back to 8.8.8.8:53.
func NewDNSResolver(upstream string) *DNSResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSResolver{
		upstream: upstream,
		client: &dns.Client{
			Net:          "udp",
			Timeout:      2 * time.Second,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		},
	}
}

// LookupAddrs queries A and AAAA records for host and returns every answer
// address. A failure of one query type is tolerated as long as the other
// yields answers.
func (d *DNSResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	var addrs []netip.Addr
	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(host), qtype)
		resp, _, err := d.client.ExchangeContext(ctx, msg, d.upstream)
		if err != nil {
			lastErr = err
			continue
		}
		for _, ans := range resp.Answer {
			switch rr := ans.(type) {
			case *dns.A:
				if ip, ok := netip.AddrFromSlice(rr.A); ok {
					addrs = append(addrs, ip.Unmap())
				}
			case *dns.AAAA:
				if ip, ok := netip.AddrFromSlice(rr.AAAA); ok {
					addrs = append(addrs, ip.Unmap())
				}
			}
		}
	}
	if len(addrs) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("resolve %s via %s: %w", host, d.upstream, lastErr)
		}
		return nil, fmt.Errorf("resolve %s via %s: no addresses", host, d.upstream)
	}
	return addrs, nil
}
