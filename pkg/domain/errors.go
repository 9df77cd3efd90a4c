package domain

import (
	"errors"
	"fmt"
)

// ErrStateNotFound is returned when no conversation state is stored for a user/client.
var ErrStateNotFound = errors.New("conversation state not found")

// ErrHandlerNotFound is returned when no loaded handler matches an identity or domain.
var ErrHandlerNotFound = errors.New("handler not found")

// ErrReadOnlyStore is returned when writing to a protected data store.
var ErrReadOnlyStore = errors.New("data store is read-only")

// ErrCacheMiss is returned when a keyed cache has no live entry for a key.
var ErrCacheMiss = errors.New("cache miss")

// ErrUnknownNode is returned when a stored state points at a node the graph does not have.
var ErrUnknownNode = errors.New("unknown conversation node")

// Orchestration failures. These abort the turn.
var (
	ErrStoreTooLarge           = errors.New("store exceeds size ceiling")
	ErrCrossDomainRejected     = errors.New("cross-domain hand-off rejected")
	ErrInvalidInvokedAction    = errors.New("invalid invoked action")
	ErrRecursionLimit          = errors.New("turn recursion limit exceeded")
	ErrDisambiguationSelection = errors.New("invalid disambiguation selection")
)

// OrchestrationError is a turn-fatal error. The turn that raised it commits
// no state.
type OrchestrationError struct {
	Op      string
	Handler string
	Err     error
}

func (e *OrchestrationError) Error() string {
	if e.Handler != "" {
		return fmt.Sprintf("orchestration: %s (%s): %v", e.Op, e.Handler, e.Err)
	}
	return fmt.Sprintf("orchestration: %s: %v", e.Op, e.Err)
}

func (e *OrchestrationError) Unwrap() error { return e.Err }

// IsOrchestrationError reports whether err is or wraps an OrchestrationError.
func IsOrchestrationError(err error) bool {
	var oe *OrchestrationError
	return errors.As(err, &oe)
}
