package seed

import "errors"

// Sentinel errors for seed runs.
var (
	ErrUnhealthy  = errors.New("service is not healthy")
	ErrNotSettled = errors.New("snapshot did not reflect the accepted submissions")
)
