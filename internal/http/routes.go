package httpx

import (
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/vitalsense/analysis-jobs/internal/domain/auth"
	"github.com/vitalsense/analysis-jobs/internal/observability/metrics"
	"github.com/vitalsense/analysis-jobs/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Submission *service.SubmissionService
	Ingestion  *service.IngestionService
	Query      *service.QueryService
	Health     HealthChecker
	// Optional: serves /metrics when set
	Metrics *metrics.Recorder
	// Optional: bearer authentication for /api routes except /api/health
	Auth *AuthConfig

	StrictNotFound bool
	MaxWait        time.Duration
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router with logging and panic recovery.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{
		Submission:     services.Submission,
		Query:          services.Query,
		StrictNotFound: services.StrictNotFound,
		MaxWait:        services.MaxWait,
		Logger:         logger,
	}
	resultHandlers := &ResultHandlers{Ingestion: services.Ingestion, Logger: logger}

	registerJobRoutes(mux, jobHandlers, services.Auth)
	registerResultRoutes(mux, resultHandlers, services.Auth)

	if services.Health != nil {
		mux.Handle("GET /api/health", readinessHandler(services.Health))
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics.Handler())
	}

	return chain(mux, Recover(logger), Logging(logger))
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers, auth *AuthConfig) {
	clients := protect(auth, domainauth.RoleUser)
	readers := protect(auth, domainauth.RoleUser, domainauth.RoleWorker)

	mux.Handle("POST /api/jobs", chain(http.HandlerFunc(h.SubmitJob), clients...))
	mux.Handle("GET /api/jobs", chain(http.HandlerFunc(h.ListJobs), clients...))
	mux.Handle("GET /api/jobs/{id}", chain(http.HandlerFunc(h.GetJob), readers...))
}

func registerResultRoutes(mux *http.ServeMux, h *ResultHandlers, auth *AuthConfig) {
	workers := protect(auth, domainauth.RoleWorker)

	mux.Handle("POST /api/results", chain(http.HandlerFunc(h.IngestResult), workers...))
	mux.Handle("POST /api/jobs/{id}/result", chain(http.HandlerFunc(h.IngestJobResult), workers...))
}

// protect returns the auth middlewares for a route, or none when auth is disabled.
func protect(auth *AuthConfig, roles ...domainauth.Role) []func(http.Handler) http.Handler {
	if auth == nil || auth.Verifier == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{RequireBearer(*auth), RequireRole(roles...)}
}
