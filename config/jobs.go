package config

import (
	"strings"
	"time"

	"github.com/vitalsense/analysis-jobs/internal/domain/model"
)

const maxLongPoll = 30 * time.Second

// JobsConfig contains submission and status query behavior.
type JobsConfig struct {
	// Advertised processing times returned as estimatedTime.
	EstimateRPPG   time.Duration `env:"JOBS_ESTIMATE_RPPG"   envDefault:"30s"`
	EstimateVoice  time.Duration `env:"JOBS_ESTIMATE_VOICE"  envDefault:"20s"`
	EstimateFusion time.Duration `env:"JOBS_ESTIMATE_FUSION" envDefault:"45s"`

	// StrictNotFound makes GET /api/jobs/{id} answer 404 for unknown ids.
	StrictNotFound bool `env:"JOBS_STRICT_NOT_FOUND" envDefault:"false"`

	// MaxWait caps ?wait= long-polls. Values above 30s are clamped.
	MaxWait time.Duration `env:"JOBS_MAX_WAIT" envDefault:"30s"`
}

// Sanitize applies guardrails to job configuration values.
func (j *JobsConfig) Sanitize() {
	if j.EstimateRPPG < 0 {
		j.EstimateRPPG = 0
	}
	if j.EstimateVoice < 0 {
		j.EstimateVoice = 0
	}
	if j.EstimateFusion < 0 {
		j.EstimateFusion = 0
	}
	if j.MaxWait < 0 {
		j.MaxWait = 0
	}
	if j.MaxWait > maxLongPoll {
		j.MaxWait = maxLongPoll
	}
}

// Estimates returns the configured processing estimate per data type.
func (j JobsConfig) Estimates() map[model.DataType]time.Duration {
	return map[model.DataType]time.Duration{
		model.DataTypeRPPG:   j.EstimateRPPG,
		model.DataTypeVoice:  j.EstimateVoice,
		model.DataTypeFusion: j.EstimateFusion,
	}
}

// SweeperConfig contains stale pending job sweeper configuration.
type SweeperConfig struct {
	// Schedule is a cron spec (seconds field allowed) or a descriptor such as "@every 1m".
	Schedule string `env:"SWEEPER_SCHEDULE" envDefault:"@every 1m"`

	// PendingMaxAge is how long a job may stay pending before it is marked failed.
	PendingMaxAge time.Duration `env:"SWEEPER_PENDING_MAX_AGE" envDefault:"1h"`

	// BatchSize bounds jobs failed per store call.
	BatchSize int `env:"SWEEPER_BATCH_SIZE" envDefault:"100"`
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	s.Schedule = strings.TrimSpace(s.Schedule)
	if s.Schedule == "" {
		s.Schedule = "@every 1m"
	}
	if s.PendingMaxAge < time.Minute {
		s.PendingMaxAge = time.Minute
	}
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.BatchSize > 10000 {
		s.BatchSize = 10000
	}
}
