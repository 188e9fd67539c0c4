package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidRequest is returned before any work when a request is malformed.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAllBackendsFailed is returned when no backend produced a response.
	ErrAllBackendsFailed = errors.New("all backends failed")
	// ErrCacheTierUnavailable marks a durable cache failure. It never escapes the cache.
	ErrCacheTierUnavailable = errors.New("cache tier unavailable")
	ErrUnknownModel         = errors.New("unknown model")
	ErrUnknownTool          = errors.New("unknown tool")
	ErrUnknownTask          = errors.New("unknown task")
	ErrBackendInvocation    = errors.New("backend invocation failed")
)

// InvocationError is a single backend failure. It matches both
// ErrBackendInvocation and its cause under errors.Is.
type InvocationError struct {
	ModelID   string
	ElapsedMs int64
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.ModelID, e.Err)
}

func (e *InvocationError) Unwrap() []error {
	return []error{ErrBackendInvocation, e.Err}
}

// AllBackendsFailedError carries every per-backend failure of a task.
type AllBackendsFailedError struct {
	TaskID   string
	Failures []*InvocationError
}

func (e *AllBackendsFailedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("task %s: %v: no backends selected", e.TaskID, ErrAllBackendsFailed)
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("task %s: %v: %s", e.TaskID, ErrAllBackendsFailed, strings.Join(parts, "; "))
}

func (e *AllBackendsFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrAllBackendsFailed)
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
