package tracer

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	dErrors "hookgate/pkg/domain-errors"
)

// AttrErrorType carries the gateway error code of a failed span.
const AttrErrorType = "error.type"

// OTelTracer adapts an OpenTelemetry tracer to the Tracer interface.
type OTelTracer struct {
	tracer trace.Tracer
}

type OTelOption func(*OTelTracer)

// WithOTelTracer injects a pre-configured OpenTelemetry tracer.
func WithOTelTracer(t trace.Tracer) OTelOption {
	return func(o *OTelTracer) {
		o.tracer = t
	}
}

// NewOTel creates a tracer backed by the global provider under "hookgate/gateway".
func NewOTel(opts ...OTelOption) *OTelTracer {
	t := &OTelTracer{}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer("hookgate/gateway")
	}
	return t
}

// Start opens a span. The outbound webhook call is a client span; gateway
// handling spans are internal.
func (t *OTelTracer) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	kind := trace.SpanKindInternal
	if name == SpanForwardCall {
		kind = trace.SpanKindClient
	}
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(kind),
		trace.WithAttributes(toOTelAttributes(attrs)...),
	)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
	// failure is set when the attributes describe an upstream failure that
	// never surfaced as an error (non-2xx answers, success=false envelopes).
	failure string
}

// End closes the span. A non-nil err wins over any failure seen in the
// attributes; otherwise the span is marked Ok.
func (s *otelSpan) End(err error) {
	switch {
	case err != nil:
		s.span.RecordError(err)
		s.span.SetAttributes(attribute.String(AttrErrorType, errorType(err)))
		s.span.SetStatus(codes.Error, err.Error())
	case s.failure != "":
		s.span.SetStatus(codes.Error, s.failure)
	default:
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// SetAttributes forwards attrs and notes upstream failures for End.
func (s *otelSpan) SetAttributes(attrs ...Attribute) {
	for _, a := range attrs {
		switch a.Key {
		case AttrUpstreamStatus:
			if status, ok := a.Value.(int); ok && (status < 200 || status > 299) {
				s.failure = fmt.Sprintf("upstream returned %d", status)
			}
		case AttrSuccess:
			if ok, isBool := a.Value.(bool); isBool && !ok && s.failure == "" {
				s.failure = "request not successful"
			}
		}
	}
	s.span.SetAttributes(toOTelAttributes(attrs)...)
}

// AddEvent records a named event on the span.
func (s *otelSpan) AddEvent(name string, attrs ...Attribute) {
	s.span.AddEvent(name, trace.WithAttributes(toOTelAttributes(attrs)...))
}

func errorType(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	if errors.Is(err, dErrors.New(dErrors.CodeNetwork, "")) {
		return string(dErrors.CodeNetwork)
	}
	return "_OTHER"
}

func toOTelAttributes(attrs []Attribute) []attribute.KeyValue {
	if len(attrs) == 0 {
		return nil
	}
	result := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case string:
			result = append(result, attribute.String(a.Key, v))
		case bool:
			result = append(result, attribute.Bool(a.Key, v))
		case int64:
			result = append(result, attribute.Int64(a.Key, v))
		case int:
			result = append(result, attribute.Int(a.Key, v))
		case float64:
			result = append(result, attribute.Float64(a.Key, v))
		}
	}
	return result
}

var (
	_ Tracer = (*OTelTracer)(nil)
	_ Span   = (*otelSpan)(nil)
)
