package enforce

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/httpacl/httpacl/pkg/enforce"

// Transport is an http.RoundTripper that runs the pre-send check before
// delegating to the base transport. Install it on an http.Client to enforce
// the policy on every outbound request.
type Transport struct {
	// Base performs the actual round trip. Nil means
	// http.DefaultTransport.
	Base http.RoundTripper
	// Checker evaluates each request. Required.
	Checker *Checker
}

// NewTransport wraps base with policy enforcement.
func NewTransport(base http.RoundTripper, checker *Checker) *Transport {
	return &Transport{Base: base, Checker: checker}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(req.Context(), "acl.check",
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("url.full", req.URL.Redacted()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	if err := t.Checker.CheckRequest(ctx, req); err != nil {
		var de *DeniedError
		if errors.As(err, &de) {
			span.SetAttributes(
				attribute.String("acl.dimension", string(de.Dimension)),
				attribute.String("acl.value", de.Value),
			)
		}
		span.SetStatus(codes.Error, "request denied by policy")
		span.End()
		return nil, err
	}
	span.SetAttributes(attribute.String("acl.decision", "allow"))
	span.End()

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
