package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecomonitor/ecomonitor-stack/internal/handlers"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

// NewRouter wires the HTTP routes. Metrics are served from gatherer, or from
// the default registry when gatherer is nil.
func NewRouter(h *handlers.EventHandler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/events", h.Events)

	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	if gatherer == nil {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return logging.RequestIDMiddleware(mux)
}
