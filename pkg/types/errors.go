package types

import "errors"

// Domain error kinds. Handlers translate these to API status codes;
// the retry path treats dispatch and execution failures uniformly.
var (
	ErrNodeNotFound     = errors.New("node not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrJobNotFound      = errors.New("job not found")
	ErrClusterNotFound  = errors.New("cluster not found")
	ErrNoSuitableNode   = errors.New("no suitable node")
	ErrDispatchFailure  = errors.New("dispatch failure")
	ErrExecutionFailure = errors.New("execution failure")
	ErrDeadlineExceeded = errors.New("task deadline exceeded")
	ErrInvalidSpec      = errors.New("invalid spec")
	ErrNotStarted       = errors.New("coordinator not started")
)
