package fetchstate

import (
	"errors"
	"fmt"
)

var (
	errNoFetcher = errors.New("fetch function is not configured")
	errUnknown   = errors.New("fetch failed without a cause")
)

// PanicError wraps a value recovered from a panicking fetch.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fetch panicked: %v", e.Value)
}
