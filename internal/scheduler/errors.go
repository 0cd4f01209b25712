package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError lets the scheduler classify a failure without knowing the
// provider's error types. Classification is done with errors.As, so
// implementations may be wrapped freely.
type ProviderError interface {
	error

	// Unauthorized reports a credential or permission failure. These abort
	// the whole run.
	Unauthorized() bool

	// RateLimited reports that the provider is throttling us.
	RateLimited() bool

	// Temporary reports a failure worth a single retry, such as a 5xx or a
	// dropped connection.
	Temporary() bool
}

// FatalError is returned by Run when an authorization failure stopped the
// run before all tasks were dispatched.
type FatalError struct {
	Task Task
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("run aborted by %s %q: %v", e.Task.Kind, e.Task.Target(), e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

type errorClass int

const (
	classOther errorClass = iota
	classAuth
	classRateLimit
	classTransient
)

func classify(err error) errorClass {
	var pe ProviderError
	if !errors.As(err, &pe) {
		return classOther
	}
	switch {
	case pe.RateLimited():
		return classRateLimit
	case pe.Unauthorized():
		return classAuth
	case pe.Temporary():
		return classTransient
	default:
		return classOther
	}
}

// retryAfterOf extracts the provider's requested wait, if the error carries
// one (e.g. a Retry-After header).
func retryAfterOf(err error) time.Duration {
	var ra interface{ RetryAfter() time.Duration }
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}
