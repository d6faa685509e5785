package engine

import (
	"errors"
	"fmt"
)

// ErrEngineUnavailable indicates the backend's runtime dependency is not
// installed or not reachable. Recoverable by falling back to the primary
// engine.
var ErrEngineUnavailable = errors.New("engine unavailable")

// ErrModelLoadFailed indicates the backend runtime could not fetch or load
// the requested model weights. Recoverable by falling back to the primary
// engine.
var ErrModelLoadFailed = errors.New("model load failed")

// Recoverable reports whether an initialization error may be recovered by
// retrying with the fallback target.
func Recoverable(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) || errors.Is(err, ErrModelLoadFailed)
}

// FallbackExhaustedError is returned when the requested backend failed and
// the single fallback attempt with the primary engine failed too. It is
// fatal: no further automatic recovery happens.
type FallbackExhaustedError struct {
	Requested    Backend
	RequestedErr error
	FallbackErr  error
}

func (e *FallbackExhaustedError) Error() string {
	if e.Requested == FallbackTarget || e.RequestedErr == nil {
		return fmt.Sprintf("primary engine %q failed to initialize: %v", FallbackTarget, e.FallbackErr)
	}
	return fmt.Sprintf("backend %q failed (%v) and fallback to %q failed too: %v",
		e.Requested, e.RequestedErr, FallbackTarget, e.FallbackErr)
}

func (e *FallbackExhaustedError) Unwrap() error { return e.FallbackErr }
