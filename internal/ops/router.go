// Package ops serves the operational HTTP endpoints: probes and Prometheus metrics.
package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/storefront-bot/internal/lifecycle"
	"github.com/Proton-105/storefront-bot/internal/middleware"
	"github.com/Proton-105/storefront-bot/pkg/logger"
)

type probeResponse struct {
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// NewRouter mounts /healthz, /readyz and /metrics.
func NewRouter(probes lifecycle.HealthChecker, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.New(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := probes.Liveness(req.Context()); err != nil {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "down", Error: err.Error()})
			return
		}
		writeProbe(w, http.StatusOK, probeResponse{Status: "up"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		report, err := probes.Readiness(req.Context())
		if err != nil {
			writeProbe(w, http.StatusServiceUnavailable, probeResponse{Status: "not ready", Error: err.Error(), Components: report})
			return
		}
		writeProbe(w, http.StatusOK, probeResponse{Status: "ready", Components: report})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	return r
}

func writeProbe(w http.ResponseWriter, status int, body probeResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
