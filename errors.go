package workq

import "errors"

var (
	// Worker pool errors.
	ErrNilHandler  = errors.New("workq: nil handler")
	ErrPoolRunning = errors.New("workq: worker pool already running")
)
