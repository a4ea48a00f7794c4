package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReportSource returns the most recent pipeline report, if any.
type ReportSource interface {
	LastReport() (domain.Report, bool)
}

// Server exposes health, readiness, metrics, and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /tracts report routes.
func NewServer(addr string, ready ReadinessChecker, reports ReportSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /tracts", handleTracts(reports))
	mux.HandleFunc("GET /tracts/{id}", handleTract(reports))
	mux.HandleFunc("GET /files", handleFiles(reports))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// withReport answers 503 until the first report exists.
func withReport(src ReportSource, next func(http.ResponseWriter, *http.Request, domain.Report)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := src.LastReport()
		if !ok {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no report yet"})
			return
		}
		next(w, r, report)
	}
}

func handleTracts(src ReportSource) http.HandlerFunc {
	return withReport(src, func(w http.ResponseWriter, _ *http.Request, report domain.Report) {
		writeJSON(w, http.StatusOK, struct {
			GeneratedAt time.Time               `json:"generated_at"`
			Tracts      []domain.TractAggregate `json:"tracts"`
		}{report.GeneratedAt, report.Tracts})
	})
}

func handleTract(src ReportSource) http.HandlerFunc {
	return withReport(src, func(w http.ResponseWriter, r *http.Request, report domain.Report) {
		id := r.PathValue("id")
		for _, row := range report.Tracts {
			if row.TractID == id {
				writeJSON(w, http.StatusOK, row)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tract " + id})
	})
}

func handleFiles(src ReportSource) http.HandlerFunc {
	return withReport(src, func(w http.ResponseWriter, _ *http.Request, report domain.Report) {
		writeJSON(w, http.StatusOK, report.Files)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
