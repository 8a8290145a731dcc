package app

import (
	"context"

	"github.com/sz-labs/randombark/internal/metrics"
	"github.com/sz-labs/randombark/pkg/dogapi"
	"github.com/sz-labs/randombark/pkg/publishers"
)

// enqueue hands terminal states to the sink goroutine without ever blocking
// the state machine. When the buffer is full the state is dropped.
func (s *Screen) enqueue(sink chan<- DogState, st DogState) {
	if !st.IsTerminal() {
		return
	}
	select {
	case sink <- st:
	default:
		metrics.RecordSinkEvent(metrics.SinkDropped)
		s.log.WarnObj("result sink full; dropping state", "sink_drop", map[string]any{
			"attempt": st.Attempt(),
			"status":  st.Status().String(),
		})
	}
}

// runSink records seen images and publishes one event per terminal state
// until sink is closed. Each publish is bounded by PublishTimeout so a stalled
// sink cannot hold up Detach.
func (s *Screen) runSink(ctx context.Context, sink <-chan DogState, done chan<- struct{}) {
	defer close(done)
	for st := range sink {
		evt := s.buildEvent(st)
		if s.deps.Fanout.Size() == 0 {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, s.deps.PublishTimeout)
		delivered, err := s.deps.Fanout.Publish(pctx, evt)
		cancel()
		if err != nil {
			metrics.RecordSinkEvent(metrics.SinkFailed)
			s.log.ErrorObj("result publish failed", "sink_error", map[string]any{
				"attempt":   evt.AttemptID,
				"delivered": delivered,
				"error":     err.Error(),
			})
			continue
		}
		metrics.RecordSinkEvent(metrics.SinkDelivered)
	}
}

// buildEvent converts a terminal state into an Event, consulting and updating
// the seen-image store for successes.
func (s *Screen) buildEvent(st DogState) publishers.Event {
	dog, ok := st.Value()
	if !ok {
		err := st.Err()
		return publishers.NewFailureEvent(st.Attempt(), err, dogapi.Kind(err), st.At())
	}

	seen, err := s.deps.Store.SeenImage(dog.ImageURL)
	if err != nil {
		s.log.WarnObj("seen-image lookup failed", "storage_error", map[string]any{
			"image_url": dog.ImageURL,
			"error":     err.Error(),
		})
	}
	if seen {
		metrics.RecordRepeatImage()
		s.log.InfoObj("repeat dog image", "repeat_image", map[string]any{
			"breed":     dog.Breed,
			"image_url": dog.ImageURL,
		})
	}
	if err := s.deps.Store.MarkImage(dog.ImageURL); err != nil {
		s.log.WarnObj("mark image failed", "storage_error", map[string]any{
			"image_url": dog.ImageURL,
			"error":     err.Error(),
		})
	}
	return publishers.NewSuccessEvent(st.Attempt(), dog, seen, st.At())
}
