package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get(s.hub.cfg.Path, s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Get("/{id}", s.handleGetDevice)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	return r
}

// Health statuses reported by /api/v1/health.
const (
	healthOK       = "ok"
	healthDegraded = "degraded"
)

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status            string     `json:"status"`
	Version           string     `json:"version"`
	UptimeSeconds     int64      `json:"uptime_seconds"`
	Devices           int        `json:"devices"`
	LastUpdateSuccess bool       `json:"last_update_success"`
	LastPoll          *time.Time `json:"last_poll,omitempty"`
	StreamConnected   bool       `json:"stream_connected"`
	StreamStatus      string     `json:"stream_status"`
	StreamAttempts    int        `json:"stream_attempts"`
	MQTTConnected     *bool      `json:"mqtt_connected,omitempty"`
}

// handleHealth reports "ok" when the table is fresh and the push stream is
// open, "degraded" otherwise. Both return 200 so the endpoint doubles as a
// liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.source.StreamState()
	resp := HealthResponse{
		Status:            healthOK,
		Version:           s.version,
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
		Devices:           len(s.source.Table()),
		LastUpdateSuccess: s.source.LastUpdateSuccess(),
		StreamConnected:   st.Connected(),
		StreamStatus:      st.Status.String(),
		StreamAttempts:    st.Attempts,
	}
	if lp := s.source.LastPoll(); !lp.IsZero() {
		lp = lp.UTC()
		resp.LastPoll = &lp
	}
	if s.mqtt != nil {
		connected := s.mqtt.IsConnected()
		resp.MQTTConnected = &connected
	}
	if !resp.LastUpdateSuccess || !resp.StreamConnected {
		resp.Status = healthDegraded
	}
	writeJSON(w, http.StatusOK, resp)
}
