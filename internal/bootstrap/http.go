package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/net/netutil"

	"github.com/vitalsense/analysis-jobs/config"
	httpx "github.com/vitalsense/analysis-jobs/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives the serve error if the server stops on its own. Optional.
	ErrCh chan<- error
}

// StartHTTPServer binds the listener and serves the API in the background.
// Bind errors are returned directly; later serve errors go to ErrCh.
func StartHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil {
		return nil, errors.New("http server config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := BuildHTTPHandler(appCfg, cfg.Services, logger)
	server := newServer(appCfg.HTTP, handler)

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", server.Addr, err)
	}
	if appCfg.HTTP.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, appCfg.HTTP.MaxConnections)
	}

	go func() {
		logger.Info("starting HTTP server", "addr", ln.Addr().String(), "max_connections", appCfg.HTTP.MaxConnections)
		if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", serveErr)
			if cfg.ErrCh != nil {
				select {
				case cfg.ErrCh <- fmt.Errorf("http server: %w", serveErr):
				default:
				}
			}
		}
	}()

	return server, nil
}

// BuildHTTPHandler assembles the API router from the service container.
func BuildHTTPHandler(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) http.Handler {
	rs := httpx.RouterServices{
		Submission:     services.Submission,
		Ingestion:      services.Ingestion,
		Query:          services.Query,
		Auth:           services.Auth,
		StrictNotFound: cfg.Jobs.StrictNotFound,
		MaxWait:        cfg.Jobs.MaxWait,
		Logger:         logger,
	}
	// Avoid storing a typed nil in the HealthChecker interface.
	if services.Health != nil {
		rs.Health = services.Health
	}
	if cfg.Observability.MetricsEnabled {
		rs.Metrics = services.Metrics
	}
	return httpx.NewRouter(rs)
}

func newServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context  context.Context
	Server   *http.Server
	Notifier interface{ StopAll() }
	Logger   *slog.Logger
}

// ShutdownHTTPServer stops the completion listeners and then drains the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}

	// Wake long-polling readers first so Shutdown does not wait for their timeouts.
	if cfg.Notifier != nil {
		cfg.Notifier.StopAll()
	}

	if err := cfg.Server.Shutdown(cfg.Context); err != nil {
		return err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}

	return nil
}
