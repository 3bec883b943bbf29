package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - sweeper",
			input:    "sweeper",
			expected: map[ServiceMode]bool{ServiceModeSweeper: true},
		},
		{
			name:     "both with whitespace",
			input:    " http , sweeper ",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeSweeper: true},
		},
		{
			name:     "trailing comma ignored",
			input:    "http,",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "invalid service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := &AppConfig{Services: "http,sweeper"}
	if !cfg.IsHTTPServerEnabled() || !cfg.IsSweeperEnabled() {
		t.Fatalf("expected both services enabled")
	}

	cfg = &AppConfig{Services: "http"}
	if cfg.IsSweeperEnabled() {
		t.Fatalf("sweeper should be disabled")
	}

	cfg = &AppConfig{Services: "bogus"}
	if cfg.IsHTTPServerEnabled() {
		t.Fatalf("invalid services should enable nothing")
	}
}

func TestValidServiceModes(t *testing.T) {
	modes := ValidServiceModes()
	if len(modes) != 2 {
		t.Fatalf("expected 2 modes, got %d", len(modes))
	}
	for _, m := range modes {
		if _, err := ParseServices(string(m)); err != nil {
			t.Errorf("mode %q should parse: %v", m, err)
		}
	}
}

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Backends.Store != StoreBackendPostgres || cfg.Backends.Broker != BrokerBackendRedis {
		t.Fatalf("unexpected backends: %+v", cfg.Backends)
	}
	if cfg.Backends.Topic != "analysis.jobs.dispatch" {
		t.Fatalf("unexpected topic %q", cfg.Backends.Topic)
	}
	if cfg.Jobs.MaxWait != 30*time.Second || cfg.Jobs.StrictNotFound {
		t.Fatalf("unexpected jobs config: %+v", cfg.Jobs)
	}
	want := map[model.DataType]time.Duration{
		model.DataTypeRPPG:   30 * time.Second,
		model.DataTypeVoice:  20 * time.Second,
		model.DataTypeFusion: 45 * time.Second,
	}
	if got := cfg.Jobs.Estimates(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected estimates: %v", got)
	}
	if cfg.Auth.Enabled() {
		t.Fatalf("auth should be off by default")
	}
	if !cfg.NeedsPostgres() || !cfg.NeedsRedis() {
		t.Fatalf("defaults use postgres and redis")
	}
	if cfg.HTTP.ShutdownTimeout != 15*time.Second {
		t.Fatalf("unexpected shutdown timeout %v", cfg.HTTP.ShutdownTimeout)
	}
	if cfg.Postgres.Name != "analysis_jobs" {
		t.Fatalf("unexpected db name %q", cfg.Postgres.Name)
	}
}

func TestAppConfig_ParseBackendsEnv(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("BROKER_BACKEND", "memory")
	t.Setenv("SQLITE_PATH", "/tmp/jobs.db")
	t.Setenv("BROKER_TOPIC", "  custom.topic ")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Backends.Store != StoreBackendSQLite || cfg.Backends.Broker != BrokerBackendMemory {
		t.Fatalf("unexpected backends: %+v", cfg.Backends)
	}
	if cfg.SQLite.Path != "/tmp/jobs.db" {
		t.Fatalf("unexpected sqlite path %q", cfg.SQLite.Path)
	}
	if cfg.Backends.Topic != "custom.topic" {
		t.Fatalf("unexpected topic %q", cfg.Backends.Topic)
	}
	if cfg.NeedsPostgres() || cfg.NeedsRedis() {
		t.Fatalf("sqlite+memory needs no network backends")
	}
}

func TestAppConfig_InvalidBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "mongo")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for invalid store backend")
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "OIDC")
	t.Setenv("OIDC_ISSUER", " https://login.example.com ")
	t.Setenv("OIDC_AUDIENCE", "jobs-api")
	t.Setenv("OIDC_CLIENT_ID", "admin-cli")
	t.Setenv("OIDC_CLIENT_SECRET", "super-secret")
	t.Setenv("OIDC_TOKEN_URL", "https://login.example.com/token")
	t.Setenv("OIDC_SCOPES", "jobs.read jobs.write")
	t.Setenv("DEV_AUTH_GROUPS", "admins;devs")
	t.Setenv("AUTH_WORKER_GROUP", "gpu-workers")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	expected := AuthConfig{
		Mode: AuthModeOIDC,
		OIDC: OIDCConfig{
			Issuer:       "https://login.example.com",
			Audience:     "jobs-api",
			ClientID:     "admin-cli",
			ClientSecret: "super-secret",
			TokenURL:     "https://login.example.com/token",
			Scopes:       []string{"jobs.read", "jobs.write"},
		},
		DevAuth: DevAuthConfig{
			Token:   "dev-token",
			Subject: "dev-user",
			Email:   "dev@example.com",
			Groups:  []string{"admins", "devs"},
		},
		AdminGroup:  "admins",
		WorkerGroup: "gpu-workers",
		UserGroup:   "users",
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
	if !cfg.Auth.Enabled() || !cfg.Auth.OIDC.HasClientCredentials() {
		t.Fatalf("expected auth and client credentials enabled")
	}
}

func TestJobsConfig_Sanitize(t *testing.T) {
	j := JobsConfig{EstimateVoice: -time.Second, MaxWait: 5 * time.Minute}
	j.Sanitize()
	if j.EstimateVoice != 0 {
		t.Fatalf("negative estimate should clamp to 0")
	}
	if j.MaxWait != 30*time.Second {
		t.Fatalf("max wait should clamp to 30s, got %v", j.MaxWait)
	}
}

func TestSweeperConfig_Sanitize(t *testing.T) {
	s := SweeperConfig{Schedule: "  ", PendingMaxAge: time.Second, BatchSize: 0}
	s.Sanitize()
	if s.Schedule != "@every 1m" || s.PendingMaxAge != time.Minute || s.BatchSize != 1 {
		t.Fatalf("unexpected sanitized sweeper config: %+v", s)
	}
}

func TestObservabilityConfig_Sanitize(t *testing.T) {
	c := ObservabilityConfig{LogLevel: " DEBUG ", LogFormat: "yaml"}
	c.Sanitize()
	if c.LogLevel != "debug" || c.LogFormat != "json" {
		t.Fatalf("unexpected observability config: %+v", c)
	}
	if c.Level().String() != "DEBUG" {
		t.Fatalf("unexpected level %v", c.Level())
	}

	c = ObservabilityConfig{LogLevel: "chatty"}
	c.Sanitize()
	if c.LogLevel != "info" {
		t.Fatalf("unknown level should fall back to info")
	}
}
