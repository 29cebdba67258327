package api

import (
	"net/http"
	"time"

	"github.com/patrickariel/semicolon-web-sub000/internal/health"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	checks *health.Registry
}

// NewHealthHandlers creates health handlers. checks may be nil when no
// external dependency is configured.
func NewHealthHandlers(checks *health.Registry) *HealthHandlers {
	return &HealthHandlers{checks: checks}
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Register adds /health and /ready to mux.
func (h *HealthHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
}

// Health handles GET /health. It reports the process as alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready. Any failing dependency makes it 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	report := health.Report{Healthy: true, Checks: map[string]string{}}
	if h.checks != nil {
		report = h.checks.Run(r.Context())
	}

	status, code := "healthy", http.StatusOK
	if !report.Healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	WriteJSON(w, r.Context(), code, HealthResponse{
		Status:    status,
		Checks:    report.Checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
