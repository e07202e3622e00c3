// Package forwarder sends validated chat messages and uploads to the
// automation webhook and returns what it answered.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hookgate/internal/gateway/models"
	"hookgate/internal/gateway/tracer"
	dErrors "hookgate/pkg/domain-errors"
)

//go:generate mockgen -source=forwarder.go -destination=mocks/forwarder_mock.go -package=mocks HTTPDoer

const (
	DefaultUserAgent = "hookgate-proxy/1.0"
	chatAccept       = "application/json, text/plain, */*"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NetworkError reports that the outbound call itself failed: DNS, refused
// connection, reset, or a body that could not be read. A non-2xx answer is
// not a NetworkError.
type NetworkError struct {
	Destination string
	Err         error
}

func (e *NetworkError) Error() string {
	return e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a NetworkError against a CodeNetwork domain error.
func (e *NetworkError) Is(target error) bool {
	t, ok := target.(*dErrors.Error)
	return ok && t.Code == dErrors.CodeNetwork
}

// Client forwards requests to the automation endpoint. One call per
// invocation, no retries, no client-side timeout.
type Client struct {
	doer      HTTPDoer
	userAgent string
	tracer    tracer.Tracer
}

type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		doer:      &http.Client{},
		userAgent: DefaultUserAgent,
		tracer:    tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatBody struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// ForwardChat posts the message as JSON.
func (c *Client) ForwardChat(ctx context.Context, req models.ChatRequest) (*models.UpstreamOutcome, error) {
	body, err := json.Marshal(chatBody{
		Message:   req.Message,
		Timestamp: req.Timestamp,
		Source:    req.ClientTag,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode chat body")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", chatAccept)

	return c.post(ctx, models.ChannelChat, req.DestinationURL, header, body)
}

// ForwardUpload posts the file as multipart/form-data with the fields
// file, fileName, timestamp and source.
func (c *Client) ForwardUpload(ctx context.Context, req models.UploadRequest) (*models.UpstreamOutcome, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(filePartHeader(req.FileName, req.DeclaredMime))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create file part")
	}
	if _, err := part.Write(req.Payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write file part")
	}
	for _, f := range [][2]string{
		{"fileName", req.FileName},
		{"timestamp", req.Timestamp},
		{"source", req.ClientTag},
	} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to write form field")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close multipart body")
	}

	// The boundary comes from the encoder; nothing else is set explicitly.
	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())

	return c.post(ctx, req.Kind, req.DestinationURL, header, buf.Bytes())
}

func (c *Client) post(ctx context.Context, ch models.Channel, destination string, header http.Header, body []byte) (*models.UpstreamOutcome, error) {
	// The forward runs to completion even if the inbound caller goes away.
	ctx = context.WithoutCancel(ctx)

	ctx, span := c.tracer.Start(ctx, tracer.SpanForwardCall,
		tracer.String(tracer.AttrChannel, ch.String()),
		tracer.String(tracer.AttrDestination, hostOf(destination)),
		tracer.Int(tracer.AttrPayloadBytes, len(body)),
	)
	start := time.Now()

	outcome, err := c.do(ctx, destination, header, body)
	span.SetAttributes(tracer.Duration("gateway.forward_ms", time.Since(start)))
	if err != nil {
		span.End(err)
		return nil, err
	}
	span.SetAttributes(tracer.Int(tracer.AttrUpstreamStatus, outcome.HTTPStatus))
	span.End(nil)
	return outcome, nil
}

func (c *Client) do(ctx context.Context, destination string, header http.Header, body []byte) (*models.UpstreamOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Destination: destination, Err: err}
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, &NetworkError{Destination: destination, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Destination: destination, Err: fmt.Errorf("reading upstream response: %w", err)}
	}

	return &models.UpstreamOutcome{
		HTTPStatus: resp.StatusCode,
		StatusText: statusText(resp),
		RawBody:    string(raw),
	}, nil
}

// statusText returns the reason phrase the upstream sent, falling back to
// the standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		return http.StatusText(resp.StatusCode)
	}
	return text
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(fileName, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(fileName)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
