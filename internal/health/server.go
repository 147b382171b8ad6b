package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the monitor report and Prometheus metrics over HTTP.
type Server struct {
	monitor *Monitor
	http    *http.Server
}

// NewServer creates a health server listening on port.
func NewServer(monitor *Monitor, port int) *Server {
	s := &Server{monitor: monitor}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler routes:
//
//	GET /health               overall status only
//	GET /health/detailed      full report
//	GET /health/cities/{city} freshness of one city's history
//	GET /metrics              Prometheus
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.summary)
	mux.HandleFunc("GET /health/detailed", s.detailed)
	mux.HandleFunc("GET /health/cities/{city}", s.city)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	return s.http.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, statusCode(report.SystemStatus), map[string]SystemStatus{"status": report.SystemStatus})
}

func (s *Server) detailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	writeJSON(w, statusCode(report.SystemStatus), report)
}

func (s *Server) city(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("city")
	for _, c := range s.monitor.CheckHealth(r.Context()).Cities {
		if c.City == name {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "city not watched: " + name})
}

// statusCode maps a system status to the HTTP code load balancers act on.
// Degraded still serves traffic.
func statusCode(status SystemStatus) int {
	if status == StatusCritical {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write health response", "error", err)
	}
}
