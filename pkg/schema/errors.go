package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a single slot or field validation failure.
type ValidationError struct {
	Key    string // Slot or field name
	Reason string // Human-readable reason for failure
	Value  string // The raw value that failed, if any
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("%q: %s (got %q)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// ValidationErrors returns all validation errors if err is or wraps an
// AggregateError. Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
