package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthCheck reports the health of one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler aggregates dependency checks
type HealthHandler struct {
	service string
	checks  map[string]HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(service string) *HealthHandler {
	return &HealthHandler{
		service: service,
		checks:  make(map[string]HealthCheck),
		timeout: 3 * time.Second,
	}
}

// Register adds a named dependency check
func (h *HealthHandler) Register(name string, check HealthCheck) *HealthHandler {
	h.checks[name] = check
	return h
}

// Health returns server and dependency health
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	respondJSON(w, code, map[string]any{
		"status":  status,
		"service": h.service,
		"checks":  results,
	})
}
