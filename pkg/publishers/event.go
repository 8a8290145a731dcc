package publishers

import (
	"time"

	"github.com/sz-labs/randombark/internal/domain"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Event is the terminal outcome of one fetch attempt, as delivered downstream.
type Event struct {
	AttemptID  string             `json:"attempt_id"`
	Status     string             `json:"status"`
	Dog        *domain.DogPayload `json:"dog,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorKind  string             `json:"error_kind,omitempty"`
	SeenBefore bool               `json:"seen_before"`
	ObservedAt time.Time          `json:"observed_at"`
}

// NewSuccessEvent builds the event for a decoded dog.
func NewSuccessEvent(attemptID string, dog domain.DogPayload, seenBefore bool, at time.Time) Event {
	return Event{
		AttemptID:  attemptID,
		Status:     StatusSuccess,
		Dog:        &dog,
		SeenBefore: seenBefore,
		ObservedAt: at.UTC(),
	}
}

// NewFailureEvent builds the event for a failed attempt. kind is the error
// classification ("transport", "decode") or empty.
func NewFailureEvent(attemptID string, err error, kind string, at time.Time) Event {
	evt := Event{
		AttemptID:  attemptID,
		Status:     StatusError,
		ErrorKind:  kind,
		ObservedAt: at.UTC(),
	}
	if err != nil {
		evt.Error = err.Error()
	}
	return evt
}

// attributes are the message attributes queue-style sinks attach for routing.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{
		"status":     e.Status,
		"attempt_id": e.AttemptID,
	}
	if e.Dog != nil && e.Dog.Breed != "" {
		attrs["breed"] = e.Dog.Breed
	}
	if e.ErrorKind != "" {
		attrs["error_kind"] = e.ErrorKind
	}
	return attrs
}
