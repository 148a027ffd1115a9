package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrRunInProgress is returned when a manual run is requested while another one is executing in this process
	ErrRunInProgress = errors.New("billing run already in progress")
)
