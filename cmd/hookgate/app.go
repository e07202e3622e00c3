package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"hookgate/internal/gateway/forwarder"
	"hookgate/internal/gateway/handler"
	"hookgate/internal/gateway/metrics"
	"hookgate/internal/gateway/mode"
	"hookgate/internal/gateway/service"
	"hookgate/internal/gateway/tracer"
	"hookgate/internal/platform/config"
	"hookgate/internal/platform/health"
	httptransport "hookgate/internal/transport/http"
	"hookgate/pkg/platform/middleware/metadata"
	"hookgate/pkg/platform/middleware/request"
)

// app holds the wired process. Everything in it is read-only once built.
type app struct {
	cfg      config.Server
	log      *slog.Logger
	registry *prometheus.Registry
	gateway  *service.Gateway
	resolver *mode.Resolver
	router   http.Handler
}

func newApp(cfg config.Server, log *slog.Logger) (*app, error) {
	resolver, err := mode.New(cfg.Webhooks.Pairs())
	if err != nil {
		return nil, fmt.Errorf("webhook table: %w", err)
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	trc := tracer.NewOTel()
	gw := service.New(
		forwarder.New(forwarder.WithTracer(trc)),
		log,
		service.WithMetrics(metrics.NewWithRegisterer(registry)),
		service.WithTracer(trc),
		service.WithInstance(cfg.Instance),
	)

	hh := health.New(cfg.Environment, cfg.Instance)
	hh.RegisterCheck("webhooks", func(context.Context) error {
		if len(resolver.Snapshot(true)) == 0 {
			return fmt.Errorf("no webhook destinations configured")
		}
		return nil
	})

	router := httptransport.NewRouter(httptransport.Config{
		Logger:      log,
		Gateway:     handler.New(gw, resolver, log),
		Health:      hh,
		Metadata:    metadata.NewMiddleware(&metadata.Config{TrustedProxies: proxies}),
		Metrics:     request.NewMetricsWithRegisterer(registry),
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
		Instance:    cfg.Instance,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		gateway:  gw,
		resolver: resolver,
		router:   router,
	}, nil
}
