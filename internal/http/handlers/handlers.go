package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// Check probes one backing dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handlers serves the service-level endpoints: liveness, readiness and the
// JSON 404.
type Handlers struct {
	Logger       logx.Logger
	checks       []Check
	probeTimeout time.Duration
}

func New(logger logx.Logger, checks ...Check) *Handlers {
	return &Handlers{Logger: logger, checks: checks, probeTimeout: 2 * time.Second}
}

// Ping handles GET /ping.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(h.Logger, w, r, http.StatusOK, map[string]string{"message": "pong"})
}

// HealthcheckHead handles HEAD /healthcheck.
func (h *Handlers) HealthcheckHead(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type readyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Ready handles GET /readyz. Every check runs; any failure answers 503.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.probeTimeout)
	defer cancel()

	resp := readyResponse{Status: "ok"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			if h.Logger != nil {
				h.Logger.Warn("readiness check failed", logx.String("check", c.Name), logx.Err(err))
			}
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(h.Logger, w, r, status, resp)
}

// NotFound answers unknown routes with a JSON error.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusNotFound, "route not found")
}

// MethodNotAllowed answers known routes hit with the wrong verb.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(h.Logger, w, r, http.StatusMethodNotAllowed, "method not allowed")
}
