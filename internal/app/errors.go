package service

import "errors"

var (
	// ErrRunInProgress is returned when Run is called while another run is active.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrNoProvider is returned by New without a fixture and absence provider.
	ErrNoProvider = errors.New("provider is required")
)
