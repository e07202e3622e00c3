package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hookgate/internal/gateway/forwarder"
	"hookgate/internal/gateway/metrics"
	"hookgate/internal/gateway/models"
	dErrors "hookgate/pkg/domain-errors"
)

const hook = "https://n8n.example.test/webhook/abc"

var fixedTime = time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

// =============================================================================
// Stub Implementations
// =============================================================================

type stubForwarder struct {
	chatFunc   func(ctx context.Context, req models.ChatRequest) (*models.UpstreamOutcome, error)
	uploadFunc func(ctx context.Context, req models.UploadRequest) (*models.UpstreamOutcome, error)

	chatCalls   []models.ChatRequest
	uploadCalls []models.UploadRequest
}

func (s *stubForwarder) ForwardChat(ctx context.Context, req models.ChatRequest) (*models.UpstreamOutcome, error) {
	s.chatCalls = append(s.chatCalls, req)
	if s.chatFunc != nil {
		return s.chatFunc(ctx, req)
	}
	return &models.UpstreamOutcome{HTTPStatus: 200, StatusText: "OK", RawBody: `{"output":"hello"}`}, nil
}

func (s *stubForwarder) ForwardUpload(ctx context.Context, req models.UploadRequest) (*models.UpstreamOutcome, error) {
	s.uploadCalls = append(s.uploadCalls, req)
	if s.uploadFunc != nil {
		return s.uploadFunc(ctx, req)
	}
	return &models.UpstreamOutcome{HTTPStatus: 200, StatusText: "OK", RawBody: "stored"}, nil
}

func replying(status int, text, body string) *stubForwarder {
	out := &models.UpstreamOutcome{HTTPStatus: status, StatusText: text, RawBody: body}
	return &stubForwarder{
		chatFunc: func(context.Context, models.ChatRequest) (*models.UpstreamOutcome, error) { return out, nil },
		uploadFunc: func(context.Context, models.UploadRequest) (*models.UpstreamOutcome, error) {
			return out, nil
		},
	}
}

func newTestGateway(fwd Forwarder, opts ...Option) *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return New(fwd, logger, opts...)
}

// =============================================================================
// Chat
// =============================================================================

func TestChat_JSONPassthrough(t *testing.T) {
	fwd := &stubForwarder{}
	gw := newTestGateway(fwd)

	env, err := gw.Chat(context.Background(), ChatInput{Message: "hi", WebhookURL: hook})
	require.NoError(t, err)

	assert.True(t, env.Success)
	assert.JSONEq(t, `{"output":"hello"}`, string(env.Data))
	assert.Empty(t, env.Error)
	assert.Nil(t, env.Details)
	assert.Equal(t, "2026-03-04T05:06:07.890Z", env.Timestamp)
	assert.Equal(t, "hookgate-chat-proxy", env.Source)
	assert.Equal(t, hook, env.WebhookURL)
	assert.Nil(t, env.FileSize)
}

func TestChat_OutboundMetadata(t *testing.T) {
	t.Run("gateway fills timestamp and source", func(t *testing.T) {
		fwd := &stubForwarder{}
		gw := newTestGateway(fwd, WithInstance("edge"))

		_, err := gw.Chat(context.Background(), ChatInput{Message: "hi", WebhookURL: hook})
		require.NoError(t, err)

		require.Len(t, fwd.chatCalls, 1)
		assert.Equal(t, "2026-03-04T05:06:07.890Z", fwd.chatCalls[0].Timestamp)
		assert.Equal(t, "edge-chat-proxy", fwd.chatCalls[0].ClientTag)
		assert.Equal(t, hook, fwd.chatCalls[0].DestinationURL)
	})

	t.Run("client values are forwarded as given", func(t *testing.T) {
		fwd := &stubForwarder{}
		gw := newTestGateway(fwd)

		env, err := gw.Chat(context.Background(), ChatInput{
			Message: "hi", WebhookURL: hook, Timestamp: "2025-01-01T00:00:00.000Z", Source: "react-frontend",
		})
		require.NoError(t, err)

		assert.Equal(t, "2025-01-01T00:00:00.000Z", fwd.chatCalls[0].Timestamp)
		assert.Equal(t, "react-frontend", fwd.chatCalls[0].ClientTag)
		assert.Equal(t, "2026-03-04T05:06:07.890Z", env.Timestamp, "envelope timestamp is always the gateway's")
	})
}

func TestChat_ValidationErrorsAreReturned(t *testing.T) {
	fwd := &stubForwarder{}
	gw := newTestGateway(fwd)

	_, err := gw.Chat(context.Background(), ChatInput{Message: "", WebhookURL: hook})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingMessage))

	_, err = gw.Chat(context.Background(), ChatInput{Message: "hi"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeMissingDestination))

	assert.Empty(t, fwd.chatCalls, "nothing is forwarded when validation fails")
}

func TestChat_PlainTextWrapped(t *testing.T) {
	gw := newTestGateway(replying(200, "OK", "plain text ok"))

	env, err := gw.Chat(context.Background(), ChatInput{Message: "hi", WebhookURL: hook})
	require.NoError(t, err)

	assert.True(t, env.Success)
	assert.JSONEq(t, `{"message":"plain text ok","raw":"plain text ok"}`, string(env.Data))
}

func TestChat_UpstreamFailureInEnvelope(t *testing.T) {
	gw := newTestGateway(replying(503, "Service Unavailable", ""))

	env, err := gw.Chat(context.Background(), ChatInput{Message: "hi", WebhookURL: hook})
	require.NoError(t, err, "upstream failures are not errors")

	assert.False(t, env.Success)
	assert.Equal(t, "upstream returned 503: Service Unavailable", env.Error)

	b, err := json.Marshal(env.Details)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":503,"statusText":"Service Unavailable","destinationUrl":"`+hook+`"}`, string(b))
}

func TestChat_NetworkErrorInEnvelope(t *testing.T) {
	fwd := &stubForwarder{
		chatFunc: func(context.Context, models.ChatRequest) (*models.UpstreamOutcome, error) {
			return nil, &forwarder.NetworkError{Destination: hook, Err: errors.New("dial tcp 127.0.0.1:9: connect: connection refused")}
		},
	}
	gw := newTestGateway(fwd)

	env, err := gw.Chat(context.Background(), ChatInput{Message: "hi", WebhookURL: hook})
	require.NoError(t, err)

	assert.False(t, env.Success)
	assert.Equal(t, NetworkErrorMessage, env.Error)
	assert.Equal(t, "dial tcp 127.0.0.1:9: connect: connection refused", env.Details)
	assert.Equal(t, "2026-03-04T05:06:07.890Z", env.Timestamp)
	assert.Nil(t, env.Data)
}

// =============================================================================
// Upload
// =============================================================================

func TestUpload_FileMetadataRoundTrip(t *testing.T) {
	fwd := &stubForwarder{}
	gw := newTestGateway(fwd)
	payload := []byte("\x89PNG\r\n\x1a\nimage-bytes")

	env, err := gw.Upload(context.Background(), UploadInput{
		Kind: models.ChannelImage, Payload: payload, DeclaredMime: "image/png",
		FileName: "cat.png", WebhookURL: hook,
	})
	require.NoError(t, err)

	assert.True(t, env.Success)
	assert.Equal(t, "cat.png", env.FileName)
	require.NotNil(t, env.FileSize)
	assert.Equal(t, int64(len(payload)), *env.FileSize)
	assert.Equal(t, "hookgate-image-proxy", env.Source)

	require.Len(t, fwd.uploadCalls, 1)
	call := fwd.uploadCalls[0]
	assert.Equal(t, payload, call.Payload)
	assert.Equal(t, "image/png", call.DeclaredMime)
	assert.Equal(t, "cat.png", call.FileName)
	assert.Equal(t, "hookgate-image-proxy", call.ClientTag)
}

func TestUpload_SniffsUndeclaredType(t *testing.T) {
	fwd := &stubForwarder{}
	gw := newTestGateway(fwd)

	_, err := gw.Upload(context.Background(), UploadInput{
		Kind: models.ChannelDocument, Payload: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"),
		FileName: "a.pdf", WebhookURL: hook,
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", fwd.uploadCalls[0].DeclaredMime)
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name string
		in   UploadInput
		code dErrors.Code
	}{
		{"no payload", UploadInput{Kind: models.ChannelAudio, DeclaredMime: "audio/mpeg", WebhookURL: hook}, dErrors.CodeMissingPayload},
		{"no webhook", UploadInput{Kind: models.ChannelAudio, Payload: []byte{1}, DeclaredMime: "audio/mpeg"}, dErrors.CodeMissingDestination},
		{"wrong type", UploadInput{Kind: models.ChannelVideo, Payload: []byte{1}, DeclaredMime: "audio/mpeg", WebhookURL: hook}, dErrors.CodeUnsupportedMediaType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fwd := &stubForwarder{}
			_, err := newTestGateway(fwd).Upload(context.Background(), tt.in)
			assert.True(t, dErrors.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, fwd.uploadCalls)
		})
	}
}

func TestUpload_NetworkErrorKeepsFileMetadata(t *testing.T) {
	fwd := &stubForwarder{
		uploadFunc: func(context.Context, models.UploadRequest) (*models.UpstreamOutcome, error) {
			return nil, &forwarder.NetworkError{Err: errors.New("EOF")}
		},
	}
	env, err := newTestGateway(fwd).Upload(context.Background(), UploadInput{
		Kind: models.ChannelAudio, Payload: []byte("ID3"), DeclaredMime: "audio/mpeg", FileName: "a.mp3", WebhookURL: hook,
	})
	require.NoError(t, err)
	assert.False(t, env.Success)
	assert.Equal(t, NetworkErrorMessage, env.Error)
	assert.Equal(t, "a.mp3", env.FileName)
	assert.Equal(t, int64(3), *env.FileSize)
}

// =============================================================================
// Cross-cutting properties
// =============================================================================

func TestIdempotentExceptTimestamp(t *testing.T) {
	tick := fixedTime
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	gw := newTestGateway(replying(200, "OK", `{"b":2,"a":1}`), WithClock(clock))
	in := UploadInput{Kind: models.ChannelImage, Payload: []byte("img"), DeclaredMime: "image/jpeg", FileName: "x.jpg", WebhookURL: hook}

	first, err := gw.Upload(context.Background(), in)
	require.NoError(t, err)
	second, err := gw.Upload(context.Background(), in)
	require.NoError(t, err)

	assert.NotEqual(t, first.Timestamp, second.Timestamp)
	first.Timestamp, second.Timestamp = "", ""

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestEnvelopeInvariants(t *testing.T) {
	outcomes := []*stubForwarder{
		replying(200, "OK", ""),
		replying(200, "OK", "text"),
		replying(201, "Created", `{"id":1}`),
		replying(200, "OK", "null"),
		replying(404, "Not Found", `{"message":"nope"}`),
		replying(500, "Internal Server Error", "boom"),
		{chatFunc: func(context.Context, models.ChatRequest) (*models.UpstreamOutcome, error) {
			return nil, &forwarder.NetworkError{Err: errors.New("reset")}
		}},
	}
	for _, fwd := range outcomes {
		env, err := newTestGateway(fwd).Chat(context.Background(), ChatInput{Message: "m", WebhookURL: hook})
		require.NoError(t, err)
		if env.Success {
			require.NotEmpty(t, env.Data)
			var data any
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.NotNil(t, data)
			assert.Empty(t, env.Error)
		} else {
			assert.NotEmpty(t, env.Error)
		}
		assert.NotEmpty(t, env.Timestamp)
		assert.NotEmpty(t, env.Source)
		assert.Equal(t, hook, env.WebhookURL)
	}
}

func TestReject(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	gw := newTestGateway(&stubForwarder{}, WithMetrics(m))

	body := gw.Reject(context.Background(), models.ChannelVideo,
		dErrors.New(dErrors.CodePayloadTooLarge, "file too large"),
		map[string]any{"fileName": "big.mp4"})

	assert.False(t, body.Success)
	assert.Equal(t, "file too large", body.Error)
	assert.Equal(t, "payload_too_large", body.Code)
	assert.Equal(t, "big.mp4", body.Received["fileName"])
	assert.Equal(t, "hookgate-video-proxy", body.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues("video", "payload_too_large")))

	plain := gw.Reject(context.Background(), models.ChannelChat, errors.New("bad json"), nil)
	assert.Equal(t, "validation_failed", plain.Code)
	assert.NotNil(t, plain.Received)
}

func TestMetricsRecordedPerOutcome(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())

	_, _ = newTestGateway(replying(200, "OK", "plain"), WithMetrics(m)).
		Chat(context.Background(), ChatInput{Message: "m", WebhookURL: hook})
	_, _ = newTestGateway(replying(502, "Bad Gateway", ""), WithMetrics(m)).
		Chat(context.Background(), ChatInput{Message: "m", WebhookURL: hook})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForwardsTotal.WithLabelValues("chat", metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForwardsTotal.WithLabelValues("chat", metrics.OutcomeUpstreamFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlainTextResponses.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamStatusByCode.WithLabelValues("chat", "502")))
}
