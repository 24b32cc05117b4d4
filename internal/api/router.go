package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is the health-check surface of the database.
type Pinger interface {
	Ping() error
}

// NewRouter wires the JSON API, health checks and the metrics endpoint.
func NewRouter(h *Handler, db Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "chango"})
	})
	r.Get("/health/db", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": "postgres unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "postgres": "connected"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/campaigns", func(r chi.Router) {
		r.Post("/", h.createCampaign)
		r.Get("/{id}", h.getCampaign)
		r.Get("/{id}/donations", h.listDonations)
		r.Post("/{id}/donations", h.donate)
		r.Get("/{id}/events", h.listEvents)
		r.Get("/{id}/payouts", h.listPayouts)
		r.Post("/{id}/refunds", h.requestRefund)
		r.Get("/{id}/milestones/{index}", h.getMilestone)
		r.Post("/{id}/milestones/{index}/proposal", h.proposeRelease)
		r.Post("/{id}/milestones/{index}/votes", h.vote)
		r.Post("/{id}/milestones/{index}/finalize", h.finalize)
	})

	return r
}

// requestLogger logs one line per request with method, path, status and
// duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
