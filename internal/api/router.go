package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func Router(h *Handler, reg *prometheus.Registry, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(log))

	r.Get("/v1/health", h.Health)

	r.Get("/v1/engine/status", h.EngineStatus)
	r.Post("/v1/engine/start", h.EngineStart)
	r.Post("/v1/engine/stop", h.EngineStop)

	r.Get("/v1/dispatches/{id}", h.GetDispatch)
	r.Post("/v1/dispatches/{id}/start", h.StartDispatch)
	r.Post("/v1/dispatches/{id}/pause", h.PauseDispatch)
	r.Post("/v1/dispatches/{id}/resume", h.ResumeDispatch)
	r.Get("/v1/dispatches/{id}/receipts/{index}", h.GetReceipt)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
