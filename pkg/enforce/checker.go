// Package enforce applies a compiled ACL policy at the HTTP client boundary:
// a pre-send request checker, an http.RoundTripper wrapper, and a resolver
// wrapper that re-checks every address a permitted hostname resolves to.
package enforce

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/httpacl/httpacl/pkg/acl"
	"github.com/httpacl/httpacl/pkg/authority"
)

// DeniedError reports which dimension rejected a request and why.
type DeniedError struct {
	Dimension      acl.Dimension
	Value          string
	Classification acl.Classification
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s %q is denied: %s", e.Dimension, e.Value, e.Classification)
}

// DimScheme is the dimension reported when the URL scheme is rejected.
// Scheme rejection only surfaces at enforcement time, so the constant lives
// here rather than with the builder error dimensions.
const DimScheme acl.Dimension = "scheme"

func denied(dim acl.Dimension, value string, c acl.Classification) *DeniedError {
	return &DeniedError{Dimension: dim, Value: value, Classification: c}
}

// Checker evaluates fully-formed outbound requests against a policy before
// they reach the transport. It is safe for concurrent use.
type Checker struct {
	policy   *acl.Policy
	resolver AddrResolver
	log      *slog.Logger
	emitter  Emitter
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithResolver sets the resolver used for the defense-in-depth lookup of
// domain hosts. Defaults to the system resolver.
func WithResolver(r AddrResolver) CheckerOption {
	return func(c *Checker) { c.resolver = r }
}

// WithLogger sets the structured logger for decision logging.
func WithLogger(log *slog.Logger) CheckerOption {
	return func(c *Checker) { c.log = log }
}

// WithEmitter attaches an audit event emitter; every denial produces one
// event.
func WithEmitter(e Emitter) CheckerOption {
	return func(c *Checker) { c.emitter = e }
}

// NewChecker wraps a policy in a pre-send request checker.
func NewChecker(policy *acl.Policy, opts ...CheckerOption) *Checker {
	c := &Checker{
		policy:   policy,
		resolver: &StdResolver{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the shared policy handle.
func (c *Checker) Policy() *acl.Policy { return c.policy }

// CheckRequest evaluates req dimension by dimension: scheme, method,
// host-or-IP, port, path, headers, then the validate hook. The first denial
// aborts with a DeniedError; a nil return means the request may proceed
// unmodified to the transport.
func (c *Checker) CheckRequest(ctx context.Context, req *http.Request) error {
	scheme := req.URL.Scheme
	if cls := c.policy.IsSchemeAllowed(scheme); cls.IsDenied() {
		return c.deny(ctx, DimScheme, scheme, cls)
	}

	method := acl.MethodFromString(req.Method)
	if cls := c.policy.IsMethodAllowed(method); cls.IsDenied() {
		return c.deny(ctx, acl.DimMethod, req.Method, cls)
	}

	host := req.URL.Hostname()
	if host == "" {
		return c.deny(ctx, acl.DimHost, "", acl.Deny("the request has no host"))
	}
	auth, err := authority.Parse(host)
	if err != nil {
		return c.deny(ctx, acl.DimHost, host, acl.Deny("the host is not a valid authority"))
	}
	if auth.Host.IsIP() {
		if cls := c.policy.IsIPAllowed(auth.Host.IP); cls.IsDenied() {
			return c.deny(ctx, acl.DimIPRange, auth.Host.IP.String(), cls)
		}
	} else {
		domain := auth.Host.Domain
		if cls := c.policy.IsHostAllowed(domain); cls.IsDenied() {
			return c.deny(ctx, acl.DimHost, domain, cls)
		}
		// The name still resolves at connect time, so every candidate
		// address is checked too. A pinned static mapping short-circuits
		// the lookup.
		if err := c.checkResolved(ctx, domain); err != nil {
			return err
		}
	}

	if cls := c.policy.IsPortAllowed(requestPort(req)); cls.IsDenied() {
		return c.deny(ctx, acl.DimPortRange, req.URL.Port(), cls)
	}

	path := req.URL.Path
	if path == "" {
		path = "/"
	}
	if cls := c.policy.IsURLPathAllowed(path); cls.IsDenied() {
		return c.deny(ctx, acl.DimURLPath, path, cls)
	}

	for name, values := range req.Header {
		for _, value := range values {
			if cls := c.policy.IsHeaderAllowed(name, value); cls.IsDenied() {
				return c.deny(ctx, acl.DimHeader, name, cls)
			}
		}
	}

	body, err := requestBody(req)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if cls := c.policy.IsValid(scheme, auth, headerSeq(req.Header), body); cls.IsDenied() {
		return c.deny(ctx, acl.DimHost, auth.String(), cls)
	}
	return nil
}

func (c *Checker) checkResolved(ctx context.Context, domain string) error {
	if pinned, ok := c.policy.ResolveStaticDNSMapping(domain); ok {
		if cls := c.policy.IsIPAllowed(pinned.Addr()); cls.IsDenied() {
			return c.deny(ctx, acl.DimIPRange, pinned.Addr().String(), cls)
		}
		return nil
	}
	addrs, err := c.resolver.LookupAddrs(ctx, domain)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", domain, err)
	}
	for _, addr := range addrs {
		if cls := c.policy.IsIPAllowed(addr); cls.IsDenied() {
			return c.deny(ctx, acl.DimIPRange, addr.String(), cls)
		}
	}
	return nil
}

func (c *Checker) deny(ctx context.Context, dim acl.Dimension, value string, cls acl.Classification) error {
	c.log.LogAttrs(ctx, slog.LevelWarn, "request denied",
		slog.String("dimension", string(dim)),
		slog.String("value", value),
		slog.String("classification", cls.String()),
	)
	if c.emitter != nil {
		c.emitter.Emit(ctx, newDecisionEvent(dim, value, cls))
	}
	return denied(dim, value, cls)
}

// requestPort returns the explicit port or the scheme's well-known default.
func requestPort(req *http.Request) uint16 {
	if port := req.URL.Port(); port != "" {
		if ap, err := netip.ParseAddrPort("0.0.0.0:" + port); err == nil {
			return ap.Port()
		}
		return 0
	}
	if req.URL.Scheme == "https" {
		return 443
	}
	return 80
}

// requestBody snapshots the request body via GetBody, leaving the original
// body untouched for the transport. Requests without a replayable body are
// validated with a nil body.
func requestBody(req *http.Request) ([]byte, error) {
	if req.GetBody == nil {
		return nil, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func headerSeq(h http.Header) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for name, values := range h {
			for _, value := range values {
				if !yield(name, value) {
					return
				}
			}
		}
	}
}
