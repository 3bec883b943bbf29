package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: API authentication configuration
//   - database.go: Postgres, Redis and SQLite configuration
//   - backends.go: job store and broker selection
//   - http.go: HTTP server configuration
//   - jobs.go: submission, status and sweeper behavior
//   - services.go: service mode configuration
//   - observability.go: logging and metrics
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, dev auth).
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Authentication configuration
	Auth AuthConfig

	// Backing services
	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	SQLite   SQLiteConfig `envPrefix:"SQLITE_"`

	// Store and broker selection
	Backends BackendConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Job behavior
	Jobs    JobsConfig
	Sweeper SweeperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Jobs.Sanitize()
	c.Sweeper.Sanitize()
	c.Backends.Sanitize()
	c.Observability.Sanitize()
	c.Auth.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	return c.isEnabled(ServiceModeHTTP)
}

// IsSweeperEnabled returns true if the stale job sweeper service is enabled.
func (c *AppConfig) IsSweeperEnabled() bool {
	return c.isEnabled(ServiceModeSweeper)
}

func (c *AppConfig) isEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// NeedsPostgres reports whether any selected backend uses Postgres.
func (c *AppConfig) NeedsPostgres() bool {
	return c.Backends.Store == StoreBackendPostgres || c.Backends.Broker == BrokerBackendPostgres
}

// NeedsRedis reports whether any selected backend uses Redis.
func (c *AppConfig) NeedsRedis() bool {
	return c.Backends.Store == StoreBackendRedis || c.Backends.Broker == BrokerBackendRedis
}
