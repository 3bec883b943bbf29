package data

import "errors"

// Shared sentinel errors for the job store backends.
var (
	// ErrJobNotFound is returned when no JobRequest exists for an id.
	ErrJobNotFound = errors.New("job not found")
	// ErrResultNotFound is returned when no JobResult has been ingested for an id.
	ErrResultNotFound = errors.New("job result not found")
	// ErrJobExists is returned when creating a JobRequest whose id is already stored.
	ErrJobExists = errors.New("job already exists")
	// ErrJobIDRequired is returned when an operation receives an empty job id.
	ErrJobIDRequired = errors.New("job id is required")
	// ErrUserIDRequired is returned when a history scan receives an empty user id.
	ErrUserIDRequired = errors.New("user id is required")
)
