package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hookgate/internal/gateway/handler"
	"hookgate/internal/gateway/models"
	"hookgate/internal/platform/health"
	"hookgate/pkg/platform/httputil"
	"hookgate/pkg/platform/middleware/metadata"
	"hookgate/pkg/platform/middleware/request"
)

// Config carries everything NewRouter wires together.
type Config struct {
	Logger   *slog.Logger
	Gateway  *handler.Handler
	Health   *health.Handler
	Metadata *metadata.Middleware
	Metrics  *request.Metrics
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Instance    string
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(cfg.Logger))
	if cfg.Metadata != nil {
		r.Use(cfg.Metadata.Handler)
	}
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Get("/", serviceInfo(cfg.Instance))
	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.Gateway != nil {
		cfg.Gateway.Register(r)
		r.MethodNotAllowed(cfg.Gateway.MethodNotAllowed)
	}

	return r
}

// InfoResponse describes the running gateway at "/".
type InfoResponse struct {
	Service   string   `json:"service"`
	Version   string   `json:"version"`
	Channels  []string `json:"channels"`
	Endpoints []string `json:"endpoints"`
}

func serviceInfo(instance string) http.HandlerFunc {
	info := InfoResponse{
		Service:   instance,
		Version:   health.Version,
		Endpoints: []string{"/api/chat", "/api/webhooks", "/health", "/metrics"},
	}
	for _, ch := range models.Channels {
		info.Channels = append(info.Channels, ch.String())
	}
	for _, kind := range models.MediaKinds {
		info.Endpoints = append(info.Endpoints, "/api/upload/"+kind.String())
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, info)
	}
}
