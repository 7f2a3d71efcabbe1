package enforce

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/httpacl/httpacl/pkg/acl"
)

// AddrResolver turns a hostname into candidate addresses. *net.Resolver is
// adapted by StdResolver; DNSResolver queries an upstream directly.
type AddrResolver interface {
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
}

// StdResolver adapts the standard library resolver. The zero value uses
// net.DefaultResolver.
type StdResolver struct {
	R *net.Resolver
}

func (s *StdResolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	r := s.R
	if r == nil {
		r = net.DefaultResolver
	}
	addrs, err := r.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	for i := range addrs {
		addrs[i] = addrs[i].Unmap()
	}
	return addrs, nil
}

// Resolver wraps a delegate resolver with policy enforcement. A hostname that
// fails host classification is rejected before the delegate is consulted, and
// every address the delegate returns is independently re-checked, so a name
// that rebinds to a forbidden address after the host-level check still cannot
// reach it.
type Resolver struct {
	policy   *acl.Policy
	delegate AddrResolver
	log      *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDelegate sets the underlying resolver. Defaults to the system
// resolver.
func WithDelegate(d AddrResolver) ResolverOption {
	return func(r *Resolver) { r.delegate = d }
}

// WithResolverLogger sets the structured logger for filtered-address
// logging.
func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.log = log }
}

// NewResolver wraps a policy around a delegate resolver.
func NewResolver(policy *acl.Policy, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		policy:   policy,
		delegate: &StdResolver{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LookupAddrs resolves host and filters the candidates down to addresses the
// policy allows. A denied hostname is a hard failure; an empty result after
// filtering is not, the transport simply has nothing to connect to.
func (r *Resolver) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if cls := r.policy.IsHostAllowed(host); cls.IsDenied() {
		return nil, denied(acl.DimHost, host, cls)
	}
	if pinned, ok := r.policy.ResolveStaticDNSMapping(host); ok {
		return r.filter(ctx, host, []netip.Addr{pinned.Addr()}), nil
	}
	addrs, err := r.delegate.LookupAddrs(ctx, host)
	if err != nil {
		return nil, err
	}
	return r.filter(ctx, host, addrs), nil
}

// LookupAddrPorts is LookupAddrs with a destination port attached to each
// candidate; candidates whose port the policy denies are filtered as well. A
// pinned static mapping contributes its own port instead.
func (r *Resolver) LookupAddrPorts(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if cls := r.policy.IsHostAllowed(host); cls.IsDenied() {
		return nil, denied(acl.DimHost, host, cls)
	}
	var candidates []netip.AddrPort
	if pinned, ok := r.policy.ResolveStaticDNSMapping(host); ok {
		candidates = []netip.AddrPort{pinned}
	} else {
		addrs, err := r.delegate.LookupAddrs(ctx, host)
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			candidates = append(candidates, netip.AddrPortFrom(addr, port))
		}
	}
	filtered := candidates[:0]
	for _, ap := range candidates {
		if r.policy.IsIPAllowed(ap.Addr()).IsAllowed() && r.policy.IsPortAllowed(ap.Port()).IsAllowed() {
			filtered = append(filtered, ap)
			continue
		}
		r.log.LogAttrs(ctx, slog.LevelDebug, "resolved address filtered",
			slog.String("host", host),
			slog.String("addr", ap.String()),
		)
	}
	return filtered, nil
}

func (r *Resolver) filter(ctx context.Context, host string, addrs []netip.Addr) []netip.Addr {
	filtered := addrs[:0]
	for _, addr := range addrs {
		if r.policy.IsIPAllowed(addr).IsAllowed() {
			filtered = append(filtered, addr)
			continue
		}
		r.log.LogAttrs(ctx, slog.LevelDebug, "resolved address filtered",
			slog.String("host", host),
			slog.String("addr", addr.String()),
		)
	}
	return filtered
}
