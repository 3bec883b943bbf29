package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsense/analysis-jobs/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func memoryConfig(services string) *config.AppConfig {
	cfg := &config.AppConfig{
		Services: services,
		Backends: config.BackendConfig{
			Store:  config.StoreBackendMemory,
			Broker: config.BrokerBackendMemory,
		},
		HTTP: config.HTTPConfig{Addr: "127.0.0.1:0"},
		Sweeper: config.SweeperConfig{
			Schedule:      "@every 1h",
			PendingMaxAge: time.Hour,
			BatchSize:     10,
		},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
		Auth:          config.AuthConfig{Mode: config.AuthModeNone},
	}
	cfg.Sanitize()
	return cfg
}

func newMemoryServices(t *testing.T, cfg *config.AppConfig) (ServiceContainer, *Infrastructure) {
	t.Helper()
	infra, err := OpenInfrastructure(context.Background(), InfraDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = infra.Close() })

	svcs, err := NewServices(&ServiceDeps{Config: cfg, Infra: infra, Logger: discardLogger()})
	require.NoError(t, err)
	t.Cleanup(svcs.Notifier.StopAll)
	return svcs, infra
}

func TestErrorChannelCapacity(t *testing.T) {
	tests := []struct {
		name  string
		modes []config.ServiceMode
		want  int
	}{
		{
			name: "no services enabled",
			want: 0,
		},
		{
			name:  "http only",
			modes: []config.ServiceMode{config.ServiceModeHTTP},
			want:  1,
		},
		{
			name:  "http and sweeper",
			modes: []config.ServiceMode{config.ServiceModeHTTP, config.ServiceModeSweeper},
			want:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enabled := make(map[config.ServiceMode]bool, len(tt.modes))
			for _, mode := range tt.modes {
				enabled[mode] = true
			}

			if got := errorChannelCapacity(enabled); got != tt.want {
				t.Fatalf("errorChannelCapacity(%v) = %d, want %d", tt.modes, got, tt.want)
			}
			if got := errorChannelBufferSize(enabled); got != tt.want+1 {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.modes, got, tt.want+1)
			}
		})
	}
}

func TestValidateServiceConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "memory backends with http"},
		{
			name:    "invalid service",
			mutate:  func(c *config.AppConfig) { c.Services = "worker" },
			wantErr: "invalid service configuration",
		},
		{
			name:    "memory store without http",
			mutate:  func(c *config.AppConfig) { c.Services = "sweeper" },
			wantErr: "memory store",
		},
		{
			name:    "oidc without issuer",
			mutate:  func(c *config.AppConfig) { c.Auth.Mode = config.AuthModeOIDC },
			wantErr: "OIDC_ISSUER",
		},
		{
			name:    "mock auth outside dev",
			mutate:  func(c *config.AppConfig) { c.Auth.Mode = config.AuthModeMock },
			wantErr: "development",
		},
		{
			name: "mock auth in dev",
			mutate: func(c *config.AppConfig) {
				c.Auth.Mode = config.AuthModeMock
				c.IsDev = true
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig("http")
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := ValidateServiceConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	require.Error(t, ValidateServiceConfig(nil))
}

func TestGetEnabledServices(t *testing.T) {
	assert.Equal(t, []string{"http", "sweeper"}, GetEnabledServices(memoryConfig("sweeper,http")))
	assert.Empty(t, GetEnabledServices(memoryConfig("nope")))
	assert.Empty(t, GetEnabledServices(nil))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := memoryConfig("http")
	cfg.Observability.LogFormat = "json"
	cfg.Observability.LogLevel = "warn"

	logger := newLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := memoryConfig("http")
	cfg.Observability.LogFormat = "text"

	newLogger(&buf, cfg).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestOpenInfrastructure_Memory(t *testing.T) {
	_, infra := newMemoryServices(t, memoryConfig("http"))

	assert.Nil(t, infra.DB)
	assert.Nil(t, infra.Redis)
	require.NotNil(t, infra.Store)
	require.NotNil(t, infra.Broker)
	assert.NoError(t, infra.Store.Ping(context.Background()))
	assert.NoError(t, infra.Broker.Ping(context.Background()))
}

func TestOpenInfrastructure_Errors(t *testing.T) {
	_, err := OpenInfrastructure(context.Background(), InfraDeps{})
	require.Error(t, err)

	cfg := memoryConfig("http")
	cfg.Backends.Store = config.StoreBackend("cassandra")
	infra, err := OpenInfrastructure(context.Background(), InfraDeps{Config: cfg, Logger: discardLogger()})
	require.Error(t, err)
	assert.Nil(t, infra)
	assert.Contains(t, err.Error(), "unknown store backend")
}

func TestOpenInfrastructure_SQLite(t *testing.T) {
	cfg := memoryConfig("http")
	cfg.Backends.Store = config.StoreBackendSQLite
	cfg.SQLite.Path = t.TempDir() + "/jobs.db"

	infra, err := OpenInfrastructure(context.Background(), InfraDeps{Config: cfg, Logger: discardLogger()})
	require.NoError(t, err)
	assert.NoError(t, infra.Store.Ping(context.Background()))
	assert.NoError(t, infra.Close())
	assert.NoError(t, infra.Close(), "second close is a no-op")
}

func TestNewServices_RequiresInfrastructure(t *testing.T) {
	_, err := NewServices(nil)
	require.Error(t, err)

	_, err = NewServices(&ServiceDeps{Config: memoryConfig("http"), Infra: &Infrastructure{}})
	require.Error(t, err)
}

func TestNewServices_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig("http")
	cfg.Observability.MetricsEnabled = false
	svcs, _ := newMemoryServices(t, cfg)
	assert.Nil(t, svcs.Metrics)

	rec := httptest.NewRecorder()
	BuildHTTPHandler(cfg, svcs, discardLogger()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuildHTTPHandler_SubmitAndStatus(t *testing.T) {
	cfg := memoryConfig("http")
	svcs, _ := newMemoryServices(t, cfg)
	h := BuildHTTPHandler(cfg, svcs, discardLogger())

	body := strings.NewReader(`{"userId":"u1","dataType":"rppg","dataRef":"s3://bucket/a"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs", body))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var submitted struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.JobID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/"+submitted.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildAuth(t *testing.T) {
	ctx := context.Background()

	auth, err := BuildAuth(ctx, AuthConfig{Auth: config.AuthConfig{Mode: config.AuthModeNone}, Logger: discardLogger()})
	require.NoError(t, err)
	assert.Nil(t, auth)

	auth, err = BuildAuth(ctx, AuthConfig{
		Auth: config.AuthConfig{
			Mode:        config.AuthModeMock,
			AdminGroup:  "admins",
			WorkerGroup: "workers",
			UserGroup:   "users",
			DevAuth: config.DevAuthConfig{
				Token:   "dev-token",
				Subject: "dev",
				Email:   "dev@example.com",
				Groups:  []string{"workers"},
			},
		},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	require.NotNil(t, auth)
	id, err := auth.Verifier.Verify(ctx, "dev-token")
	require.NoError(t, err)
	assert.Equal(t, "dev", id.Subject)
	assert.Equal(t, "worker", string(auth.Roles.Map(id.Groups)))

	_, err = BuildAuth(ctx, AuthConfig{Auth: config.AuthConfig{Mode: config.AuthModeMock}})
	require.Error(t, err, "dev auth without a token")

	_, err = BuildAuth(ctx, AuthConfig{Auth: config.AuthConfig{Mode: config.AuthModeOIDC}})
	require.Error(t, err, "oidc without an issuer")
}

func TestRunServicesWithShutdown_Signal(t *testing.T) {
	cfg := memoryConfig("http,sweeper")
	svcs, _ := newMemoryServices(t, cfg)

	signals := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunServicesWithShutdown(&ServiceOrchestrationConfig{
			Config:   cfg,
			Services: svcs,
			Logger:   discardLogger(),
			Signals:  signals,
		})
	}()

	signals <- syscall.SIGTERM
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("services did not stop after signal")
	}
}

func TestRunServicesWithShutdown_BindError(t *testing.T) {
	cfg := memoryConfig("http")
	cfg.HTTP.Addr = "127.0.0.1:99999"
	svcs, _ := newMemoryServices(t, cfg)

	err := RunServicesWithShutdown(&ServiceOrchestrationConfig{Config: cfg, Services: svcs, Logger: discardLogger()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
}

func TestRunServicesWithShutdown_BackgroundFailure(t *testing.T) {
	cfg := memoryConfig("sweeper")
	svcs, _ := newMemoryServices(t, cfg)
	svcs.Sweeper = nil

	err := RunServicesWithShutdown(&ServiceOrchestrationConfig{
		Config:   cfg,
		Services: svcs,
		Logger:   discardLogger(),
		Signals:  make(chan os.Signal),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweeper")
}
