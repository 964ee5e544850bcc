// Package health provides health check endpoints for the write proxy.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is a dependency the proxy needs to serve writes
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck manages health check functionality.
type HealthCheck struct {
	deps    map[string]Pinger
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.RWMutex
	draining bool
}

// NewHealthCheck creates a health check over the named dependencies.
func NewHealthCheck(deps map[string]Pinger, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		deps:    deps,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "healthy"})
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK when every dependency answers its ping.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if hc.isDraining() {
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{Status: "draining"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), hc.timeout)
	defer cancel()

	checks, failed := hc.check(ctx)
	if len(failed) > 0 {
		hc.logger.Warn("readiness check failed", zap.Strings("dependencies", failed))
		writeJSON(w, http.StatusServiceUnavailable, ReadinessResponse{
			Status: "not_ready",
			Checks: checks,
			Error:  "unhealthy dependencies",
		})
		return
	}

	writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready", Checks: checks})
}

func (hc *HealthCheck) check(ctx context.Context) (map[string]string, []string) {
	checks := make(map[string]string, len(hc.deps))
	failed := make([]string, 0)
	for name, dep := range hc.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = "unhealthy"
			failed = append(failed, name)
			continue
		}
		checks[name] = "healthy"
	}
	sort.Strings(failed)
	return checks, failed
}

// SetDraining makes readiness fail while the server shuts down.
func (hc *HealthCheck) SetDraining(draining bool) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.draining = draining
}

func (hc *HealthCheck) isDraining() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.draining
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
