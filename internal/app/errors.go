package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("event sync service not started")
	ErrStopped    = errors.New("event sync service stopped")
)
