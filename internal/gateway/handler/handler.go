package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"hookgate/internal/gateway/mode"
	"hookgate/internal/gateway/models"
	"hookgate/internal/gateway/policy"
	"hookgate/internal/gateway/service"
	dErrors "hookgate/pkg/domain-errors"
	"hookgate/pkg/platform/httputil"
	"hookgate/pkg/platform/middleware/request"
	"hookgate/pkg/requestcontext"
)

const (
	// ChatBodyLimit caps the chat JSON body.
	ChatBodyLimit int64 = 1 * policy.MB
	// MultipartOverhead is added to each kind's file limit to leave room for
	// boundaries and the text parts.
	MultipartOverhead int64 = 1 * policy.MB
)

// Service is the transport-agnostic gateway core.
type Service interface {
	Chat(ctx context.Context, in service.ChatInput) (*models.Envelope, error)
	Upload(ctx context.Context, in service.UploadInput) (*models.Envelope, error)
	Reject(ctx context.Context, ch models.Channel, err error, received map[string]any) *models.ValidationEnvelope
	Policy() *policy.Table
	Instance() string
	Timestamp() string
}

// Handler serves one POST endpoint per channel.
type Handler struct {
	gateway  Service
	resolver *mode.Resolver
	logger   *slog.Logger

	routes map[string]models.Channel
}

// New creates a gateway Handler. resolver may be nil, in which case the
// webhook listing endpoint is not mounted.
func New(gateway Service, resolver *mode.Resolver, logger *slog.Logger) *Handler {
	return &Handler{
		gateway:  gateway,
		resolver: resolver,
		logger:   logger,
		routes:   make(map[string]models.Channel),
	}
}

// Register mounts the channel routes, their legacy "-proxy" aliases and the
// webhook listing.
func (h *Handler) Register(r chi.Router) {
	h.post(r, ChatBodyLimit, h.handleChat, models.ChannelChat, "/api/chat", "/api/chat-proxy")

	for _, kind := range models.MediaKinds {
		limit := h.gateway.Policy().MaxBytes(kind) + MultipartOverhead
		h.post(r, limit, h.handleUpload(kind), kind,
			"/api/upload/"+kind.String(), "/api/"+kind.String()+"-proxy")
	}

	if h.resolver != nil {
		r.Get("/api/webhooks", h.handleWebhooks)
	}
}

func (h *Handler) post(r chi.Router, limit int64, fn http.HandlerFunc, ch models.Channel, paths ...string) {
	for _, p := range paths {
		h.routes[p] = ch
		r.With(request.BodyLimit(limit)).Post(p, fn)
	}
}

type chatBody struct {
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
	WebhookURL string `json:"webhookUrl"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := httputil.DecodeJSON[chatBody](r)
	if err != nil {
		h.reject(w, r, models.ChannelChat, err, rawReceived(r))
		return
	}

	env, err := h.gateway.Chat(ctx, service.ChatInput{
		Message:    body.Message,
		Timestamp:  body.Timestamp,
		Source:     body.Source,
		WebhookURL: strings.TrimSpace(body.WebhookURL),
	})
	if err != nil {
		h.reject(w, r, models.ChannelChat, err, map[string]any{
			"message":    body.Message,
			"webhookUrl": body.WebhookURL,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, env)
}

func (h *Handler) handleUpload(kind models.Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		in, err := h.readUpload(r, kind)
		if err != nil {
			h.reject(w, r, kind, err, rawReceived(r))
			return
		}

		env, err := h.gateway.Upload(ctx, *in)
		if err != nil {
			h.reject(w, r, kind, err, map[string]any{
				"fileName":   in.FileName,
				"fileType":   in.DeclaredMime,
				"fileSize":   len(in.Payload),
				"webhookUrl": in.WebhookURL,
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, env)
	}
}

// rawReceived echoes what is known about a body that could not be parsed.
func rawReceived(r *http.Request) map[string]any {
	return map[string]any{
		"contentLength": r.ContentLength,
		"contentType":   r.Header.Get("Content-Type"),
	}
}

// readUpload parses the multipart body fully into memory. A missing file part
// is not an error here; the validator reports it with the other field checks.
// Text fields are read from the multipart body only, never the query string.
func (h *Handler) readUpload(r *http.Request, kind models.Channel) (*service.UploadInput, error) {
	limit := h.gateway.Policy().MaxBytes(kind) + MultipartOverhead
	if r.ContentLength > limit {
		return nil, h.parseError(kind, &http.MaxBytesError{Limit: limit})
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, h.parseError(kind, err)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	form := r.MultipartForm
	in := &service.UploadInput{
		Kind:       kind,
		FileName:   partValue(form, "fileName"),
		WebhookURL: strings.TrimSpace(partValue(form, "webhookUrl")),
		Timestamp:  partValue(form, "timestamp"),
		Source:     partValue(form, "source"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return nil, h.parseError(kind, err)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, h.parseError(kind, err)
	}
	in.Payload = payload
	in.DeclaredMime = header.Header.Get("Content-Type")
	if in.FileName == "" {
		in.FileName = header.Filename
	}
	return in, nil
}

func partValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (h *Handler) parseError(kind models.Channel, err error) error {
	if httputil.BodyTooLarge(err) != nil || errors.Is(err, multipart.ErrMessageTooLarge) {
		if entry, ok := h.gateway.Policy().Entry(kind); ok {
			return policy.TooLarge(entry)
		}
	}
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart body: "+err.Error())
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, ch models.Channel, err error, received map[string]any) {
	status := httputil.StatusFor(err)
	if status == http.StatusOK {
		status = http.StatusBadRequest
	}
	httputil.WriteJSON(w, status, h.gateway.Reject(r.Context(), ch, err, received))
}

// WebhooksResponse lists the resolved destination of every channel.
type WebhooksResponse struct {
	Success   bool              `json:"success"`
	Mode      string            `json:"mode"`
	Webhooks  map[string]string `json:"webhooks"`
	Timestamp string            `json:"timestamp"`
	Source    string            `json:"source"`
}

func (h *Handler) handleWebhooks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("mode")
	isProduction, err := mode.ParseMode(raw)
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid webhook mode",
			"mode", raw,
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, &models.ValidationEnvelope{
			Success:   false,
			Error:     err.Error(),
			Code:      string(dErrors.CodeBadRequest),
			Received:  map[string]any{"mode": raw},
			Timestamp: h.gateway.Timestamp(),
			Source:    h.gateway.Instance(),
		})
		return
	}

	table := h.resolver.Snapshot(isProduction)
	hooks := make(map[string]string, len(table))
	for ch, url := range table {
		hooks[ch.String()] = url
	}
	httputil.WriteJSON(w, http.StatusOK, WebhooksResponse{
		Success:   true,
		Mode:      mode.Name(isProduction),
		Webhooks:  hooks,
		Timestamp: h.gateway.Timestamp(),
		Source:    h.gateway.Instance(),
	})
}

// MethodNotAllowed answers 405 for the router. Channel endpoints get the
// validation envelope and "Allow: POST"; every other route is GET only.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	ch, ok := h.routes[r.URL.Path]
	if !ok {
		w.Header().Set("Allow", http.MethodGet)
		httputil.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"success":   false,
			"error":     fmt.Sprintf("method %s not allowed", r.Method),
			"timestamp": h.gateway.Timestamp(),
		})
		return
	}

	w.Header().Set("Allow", http.MethodPost)
	err := dErrors.New(dErrors.CodeMethodNotAllowed,
		fmt.Sprintf("method %s not allowed: use POST", r.Method))
	httputil.WriteJSON(w, httputil.DomainCodeToHTTPStatus(dErrors.CodeMethodNotAllowed),
		h.gateway.Reject(r.Context(), ch, err, map[string]any{"method": r.Method}))
}
