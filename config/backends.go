package config

import (
	"fmt"
	"strings"
	"time"
)

// StoreBackend selects the job store implementation.
type StoreBackend string

// BrokerBackend selects the broker implementation.
type BrokerBackend string

const (
	StoreBackendMemory   StoreBackend = "memory"
	StoreBackendPostgres StoreBackend = "postgres"
	StoreBackendRedis    StoreBackend = "redis"
	StoreBackendSQLite   StoreBackend = "sqlite"

	BrokerBackendMemory   BrokerBackend = "memory"
	BrokerBackendPostgres BrokerBackend = "postgres"
	BrokerBackendRedis    BrokerBackend = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for StoreBackend.
func (s *StoreBackend) UnmarshalText(text []byte) error {
	v := StoreBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case StoreBackendMemory, StoreBackendPostgres, StoreBackendRedis, StoreBackendSQLite:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid StoreBackend: %q (valid options: memory, postgres, redis, sqlite)", v)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for BrokerBackend.
func (b *BrokerBackend) UnmarshalText(text []byte) error {
	v := BrokerBackend(strings.ToLower(strings.TrimSpace(string(text))))
	switch v {
	case BrokerBackendMemory, BrokerBackendPostgres, BrokerBackendRedis:
		*b = v
		return nil
	default:
		return fmt.Errorf("invalid BrokerBackend: %q (valid options: memory, postgres, redis)", v)
	}
}

// BackendConfig chooses where jobs are stored and how messages travel.
type BackendConfig struct {
	Store  StoreBackend  `env:"STORE_BACKEND"  envDefault:"postgres"`
	Broker BrokerBackend `env:"BROKER_BACKEND" envDefault:"redis"`

	// Topic carries dispatch messages to workers.
	Topic string `env:"BROKER_TOPIC" envDefault:"analysis.jobs.dispatch"`
	// CompletionTopic carries completion events between API instances.
	CompletionTopic string `env:"BROKER_COMPLETION_TOPIC" envDefault:"analysis.jobs.completed"`
	// PublishTimeout bounds a single dispatch publish.
	PublishTimeout time.Duration `env:"BROKER_PUBLISH_TIMEOUT" envDefault:"5s"`
	// Buffer is the per-subscriber queue of the in-memory broker.
	Buffer int `env:"BROKER_MEMORY_BUFFER" envDefault:"64"`
}

// Sanitize applies guardrails to backend configuration values.
func (b *BackendConfig) Sanitize() {
	b.Topic = strings.TrimSpace(b.Topic)
	if b.Topic == "" {
		b.Topic = "analysis.jobs.dispatch"
	}
	b.CompletionTopic = strings.TrimSpace(b.CompletionTopic)
	if b.CompletionTopic == "" {
		b.CompletionTopic = "analysis.jobs.completed"
	}
	if b.PublishTimeout <= 0 {
		b.PublishTimeout = 5 * time.Second
	}
	if b.Buffer < 1 {
		b.Buffer = 1
	}
}
