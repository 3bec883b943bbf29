package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

func TestHealthHandlerGET(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	resp := rec.Result()
	t.Cleanup(func() { _ = resp.Body.Close() })

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %q", ct)
	}
	if body := rec.Body.String(); body != `{"status":"ok"}` {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestHealthHandlerHEAD(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/healthz", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if bodyLen := rec.Body.Len(); bodyLen != 0 {
		t.Fatalf("expected empty body for HEAD request, got %d bytes", bodyLen)
	}
}

type staticHealth model.HealthReport

func (s staticHealth) Check(context.Context) model.HealthReport { return model.HealthReport(s) }

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		report model.HealthReport
		status int
	}{
		{
			name: "healthy",
			report: model.HealthReport{Status: model.HealthHealthy, Services: map[string]string{
				"store": model.ServiceUp, "broker": model.ServiceUp,
			}},
			status: http.StatusOK,
		},
		{
			name: "degraded",
			report: model.HealthReport{Status: model.HealthDegraded, Services: map[string]string{
				"store": model.ServiceUp, "broker": model.ServiceDown,
			}},
			status: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, withHealth(staticHealth(tt.report)))

			rec := a.do(t, http.MethodGet, "/api/health", nil)

			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.report, decodeBody[model.HealthReport](t, rec))
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	a := newTestAPI(t)
	submit(t, a, "u1", "voice")

	rec := a.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `analysis_jobs_submitted_total{data_type="voice"} 1`))
}
