package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

const healthResponse = `{"status":"ok"}`

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// HealthChecker reports the reachability of backing services.
type HealthChecker interface {
	Check(ctx context.Context) model.HealthReport
}

// readinessHandler reports store and broker reachability; degraded answers 503.
func readinessHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())
		status := http.StatusOK
		if !report.Healthy() {
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, report)
	}
}
