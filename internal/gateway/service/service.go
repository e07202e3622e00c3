// Package service is the transport-agnostic core of the gateway: validate,
// forward, normalize. Both the HTTP server and the one-shot handlers call it,
// so all I/O (forwarder, clock, metrics, tracer) is injected.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"hookgate/internal/gateway/forwarder"
	"hookgate/internal/gateway/metrics"
	"hookgate/internal/gateway/models"
	"hookgate/internal/gateway/normalizer"
	"hookgate/internal/gateway/policy"
	"hookgate/internal/gateway/tracer"
	dErrors "hookgate/pkg/domain-errors"
	"hookgate/pkg/requestcontext"
)

// TimestampLayout is ISO-8601 with millisecond precision, always in UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// NetworkErrorMessage is the envelope error for a failed outbound call.
const NetworkErrorMessage = "internal error while forwarding"

// Forwarder sends validated requests upstream.
type Forwarder interface {
	ForwardChat(ctx context.Context, req models.ChatRequest) (*models.UpstreamOutcome, error)
	ForwardUpload(ctx context.Context, req models.UploadRequest) (*models.UpstreamOutcome, error)
}

// ChatInput is the inbound chat request as received from the client.
type ChatInput struct {
	Message    string
	Timestamp  string
	Source     string
	WebhookURL string
}

// UploadInput is the inbound upload as received from the client.
type UploadInput struct {
	Kind         models.Channel
	Payload      []byte
	DeclaredMime string
	FileName     string
	WebhookURL   string
	Timestamp    string
	Source       string
}

// Gateway orchestrates one request at a time. It holds no per-request state.
type Gateway struct {
	forwarder Forwarder
	policy    *policy.Table
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	logger    *slog.Logger
	now       func() time.Time
	instance  string
}

type Option func(*Gateway)

func WithPolicy(t *policy.Table) Option {
	return func(g *Gateway) {
		if t != nil {
			g.policy = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithClock overrides the time source used for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// WithInstance sets the prefix of the envelope source tag.
func WithInstance(name string) Option {
	return func(g *Gateway) {
		if name != "" {
			g.instance = name
		}
	}
}

func New(fwd Forwarder, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		forwarder: fwd,
		policy:    policy.Default(),
		tracer:    tracer.NewNoop(),
		logger:    logger,
		now:       time.Now,
		instance:  "hookgate",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Policy exposes the media policy table, e.g. for body limits.
func (g *Gateway) Policy() *policy.Table {
	return g.policy
}

// Instance is the configured gateway name.
func (g *Gateway) Instance() string {
	return g.instance
}

// Source is the fixed tag identifying this gateway and channel.
func (g *Gateway) Source(ch models.Channel) string {
	return g.instance + "-" + ch.String() + "-proxy"
}

// Timestamp returns the gateway's current time in envelope format.
func (g *Gateway) Timestamp() string {
	return g.now().UTC().Format(TimestampLayout)
}

// Chat validates and forwards a chat message. The returned error is always a
// validation error; upstream and network failures are reported in the envelope.
func (g *Gateway) Chat(ctx context.Context, in ChatInput) (*models.Envelope, error) {
	if err := policy.ValidateChat(in.Message, in.WebhookURL); err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, tracer.SpanGatewayChat,
		tracer.String(tracer.AttrChannel, models.ChannelChat.String()))

	req := models.ChatRequest{
		Message:        in.Message,
		Timestamp:      g.outboundTimestamp(in.Timestamp),
		ClientTag:      g.outboundSource(models.ChannelChat, in.Source),
		DestinationURL: in.WebhookURL,
	}

	start := time.Now()
	outcome, err := g.forwarder.ForwardChat(ctx, req)
	env := g.finish(ctx, models.ChannelChat, in.WebhookURL, outcome, err, time.Since(start))

	span.SetAttributes(tracer.Bool(tracer.AttrSuccess, env.Success))
	span.End(nil)
	return env, nil
}

// Upload validates and forwards a media file. Error semantics match Chat.
func (g *Gateway) Upload(ctx context.Context, in UploadInput) (*models.Envelope, error) {
	size := int64(len(in.Payload))
	mime := policy.ResolveMime(in.DeclaredMime, in.Payload)
	if err := g.policy.ValidateUpload(in.Kind, mime, size, in.WebhookURL); err != nil {
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, tracer.SpanGatewayUpload,
		tracer.String(tracer.AttrChannel, in.Kind.String()),
		tracer.Int64(tracer.AttrPayloadBytes, size))

	if g.metrics != nil {
		g.metrics.ObserveUploadBytes(in.Kind.String(), size)
	}

	req := models.UploadRequest{
		Kind:           in.Kind,
		Payload:        in.Payload,
		DeclaredMime:   mime,
		FileName:       in.FileName,
		DestinationURL: in.WebhookURL,
		Timestamp:      g.outboundTimestamp(in.Timestamp),
		ClientTag:      g.outboundSource(in.Kind, in.Source),
	}

	start := time.Now()
	outcome, err := g.forwarder.ForwardUpload(ctx, req)
	env := g.finish(ctx, in.Kind, in.WebhookURL, outcome, err, time.Since(start))
	env.FileName = in.FileName
	env.FileSize = &size

	span.SetAttributes(tracer.Bool(tracer.AttrSuccess, env.Success))
	span.End(nil)
	return env, nil
}

// Reject builds the 400 body for a request that failed validation or could
// not be parsed. received echoes the offending fields back to the caller.
func (g *Gateway) Reject(ctx context.Context, ch models.Channel, err error, received map[string]any) *models.ValidationEnvelope {
	code := string(dErrors.CodeValidation)
	var de *dErrors.Error
	if errors.As(err, &de) {
		code = string(de.Code)
	}
	if g.metrics != nil {
		g.metrics.RecordValidationFailure(ch.String(), code)
	}
	g.logger.WarnContext(ctx, "request rejected",
		"channel", ch,
		"code", code,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	if received == nil {
		received = map[string]any{}
	}
	return &models.ValidationEnvelope{
		Success:   false,
		Error:     err.Error(),
		Code:      code,
		Received:  received,
		Timestamp: g.Timestamp(),
		Source:    g.Source(ch),
	}
}

func (g *Gateway) finish(ctx context.Context, ch models.Channel, destination string, outcome *models.UpstreamOutcome, fwdErr error, elapsed time.Duration) *models.Envelope {
	env := &models.Envelope{
		Timestamp:  g.Timestamp(),
		Source:     g.Source(ch),
		WebhookURL: destination,
	}
	requestID := requestcontext.RequestID(ctx)

	if g.metrics != nil {
		g.metrics.ObserveUpstreamLatency(ch.String(), elapsed.Seconds())
	}

	if fwdErr != nil {
		g.logger.ErrorContext(ctx, "forward failed",
			"channel", ch,
			"destination", destination,
			"error", fwdErr,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
		)
		g.record(ch, metrics.OutcomeNetworkError)
		env.Success = false
		env.Error = NetworkErrorMessage
		env.Details = fwdErr.Error()
		return env
	}

	if g.metrics != nil {
		g.metrics.RecordUpstreamStatus(ch.String(), strconv.Itoa(outcome.HTTPStatus))
	}

	res := normalizer.Normalize(*outcome, destination)
	env.Success = res.Success
	env.Data = res.Data
	if res.Success {
		if res.PlainText && g.metrics != nil {
			g.metrics.RecordPlainText(ch.String())
		}
		g.record(ch, metrics.OutcomeSuccess)
		g.logger.InfoContext(ctx, "forward succeeded",
			"channel", ch,
			"status", outcome.HTTPStatus,
			"plain_text", res.PlainText,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", requestID,
		)
		return env
	}

	env.Error = res.Error
	env.Details = res.Details
	g.record(ch, metrics.OutcomeUpstreamFailure)
	g.logger.WarnContext(ctx, "upstream rejected forward",
		"channel", ch,
		"status", outcome.HTTPStatus,
		"destination", destination,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestID,
	)
	return env
}

func (g *Gateway) record(ch models.Channel, outcome string) {
	if g.metrics != nil {
		g.metrics.RecordForward(ch.String(), outcome)
	}
}

func (g *Gateway) outboundTimestamp(client string) string {
	if client != "" {
		return client
	}
	return g.Timestamp()
}

func (g *Gateway) outboundSource(ch models.Channel, client string) string {
	if client != "" {
		return client
	}
	return g.Source(ch)
}

var _ Forwarder = (*forwarder.Client)(nil)
