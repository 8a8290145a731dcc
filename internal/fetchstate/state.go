package fetchstate

import (
	"fmt"
	"time"
)

// Status tags the active variant of a State.
type Status int

const (
	StatusLoading Status = iota
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// State is the result of the most recent fetch attempt: Loading, Success(value)
// or Error(cause). The zero value is Loading.
type State[T any] struct {
	status  Status
	value   T
	err     error
	attempt string
	at      time.Time
}

// Loading returns the in-flight variant.
func Loading[T any]() State[T] {
	return State[T]{status: StatusLoading, at: time.Now()}
}

// LoadingFor returns the Loading variant published when attempt starts.
func LoadingFor[T any](attempt string) State[T] {
	return Loading[T]().withAttempt(attempt)
}

// Success returns the variant carrying a decoded value.
func Success[T any](v T) State[T] {
	return State[T]{status: StatusSuccess, value: v, at: time.Now()}
}

// Failure returns the error variant. A nil cause is replaced so Err never
// returns nil for StatusError.
func Failure[T any](cause error) State[T] {
	if cause == nil {
		cause = errUnknown
	}
	return State[T]{status: StatusError, err: cause, at: time.Now()}
}

func (s State[T]) withAttempt(id string) State[T] {
	s.attempt = id
	return s
}

func (s State[T]) Status() Status { return s.status }

// Value returns the payload and true only for StatusSuccess.
func (s State[T]) Value() (T, bool) {
	if s.status != StatusSuccess {
		var zero T
		return zero, false
	}
	return s.value, true
}

// Err returns the cause for StatusError and nil otherwise.
func (s State[T]) Err() error {
	if s.status != StatusError {
		return nil
	}
	return s.err
}

// Attempt is the ID of the fetch attempt that produced this state. Empty for
// the initial Loading state of a fresh cell.
func (s State[T]) Attempt() string { return s.attempt }

// At is when the state was recorded.
func (s State[T]) At() time.Time { return s.at }

func (s State[T]) IsLoading() bool { return s.status == StatusLoading }

// IsTerminal reports whether the state is Success or Error.
func (s State[T]) IsTerminal() bool {
	return s.status == StatusSuccess || s.status == StatusError
}

func (s State[T]) String() string {
	switch s.status {
	case StatusSuccess:
		return fmt.Sprintf("success(%v)", s.value)
	case StatusError:
		return fmt.Sprintf("error(%v)", s.err)
	default:
		return s.status.String()
	}
}
