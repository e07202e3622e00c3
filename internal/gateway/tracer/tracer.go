// Package tracer provides a lightweight tracing abstraction for the gateway.
//
// Forwarding code depends on the Tracer interface only, so tests run with
// NoopTracer and production wires OTelTracer against the global provider.
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanGatewayChat   = "gateway.chat"
	SpanGatewayUpload = "gateway.upload"
	SpanForwardCall   = "gateway.forward.call"
)

// Attribute keys.
const (
	AttrChannel        = "gateway.channel"
	AttrDestination    = "gateway.destination_host"
	AttrPayloadBytes   = "gateway.payload_bytes"
	AttrUpstreamStatus = "http.response.status_code"
	AttrSuccess        = "gateway.success"
	AttrPlainText      = "gateway.upstream_plain_text"
)

// Event names.
const (
	EventUpstreamFailed = "upstream.failed"
)
