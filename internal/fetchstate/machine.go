package fetchstate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sz-labs/randombark/internal/logger"
)

// FetchFunc performs one fetch attempt.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Hooks receive attempt lifecycle callbacks, e.g. for metrics. Nil fields are skipped.
type Hooks struct {
	Started  func(attempt string)
	Finished func(attempt string, status Status, err error, elapsed time.Duration)
}

// Machine drives a Cell through Loading -> Success | Error for each BeginFetch.
//
// Overlapping attempts are neither coalesced nor cancelled: each one writes its
// result when it resolves, so the attempt that finishes last owns the cell.
type Machine[T any] struct {
	cell    *Cell[T]
	fetch   FetchFunc[T]
	baseCtx context.Context
	hooks   Hooks
	log     logger.Logger

	latest   atomic.Value // string: attempt ID of the most recent BeginFetch
	inflight sync.WaitGroup
}

// Option customizes a Machine.
type Option[T any] func(*Machine[T])

// WithLogger sets the logger used for attempt lifecycle events.
func WithLogger[T any](log logger.Logger) Option[T] {
	return func(m *Machine[T]) { m.log = logger.Ensure(log) }
}

// WithHooks installs attempt lifecycle hooks.
func WithHooks[T any](h Hooks) Option[T] {
	return func(m *Machine[T]) { m.hooks = h }
}

// WithBaseContext sets the context whose values fetches inherit. Its
// cancellation is ignored: an attempt, once started, always runs to completion.
func WithBaseContext[T any](ctx context.Context) Option[T] {
	return func(m *Machine[T]) {
		if ctx != nil {
			m.baseCtx = ctx
		}
	}
}

// NewMachine returns a machine whose cell starts in Loading.
func NewMachine[T any](fetch FetchFunc[T], opts ...Option[T]) *Machine[T] {
	m := &Machine[T]{
		cell:    NewCell(Loading[T]()),
		fetch:   fetch,
		baseCtx: context.Background(),
		log:     &logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.latest.Store("")
	return m
}

// BeginFetch moves the cell to Loading, then resolves the fetch on its own
// goroutine. It returns the attempt ID once Loading has been published.
func (m *Machine[T]) BeginFetch() string {
	attempt := uuid.NewString()
	m.latest.Store(attempt)

	m.inflight.Add(1)
	m.cell.Store(LoadingFor[T](attempt))
	if m.hooks.Started != nil {
		m.hooks.Started(attempt)
	}
	m.log.DebugObj("fetch started", "fetch_attempt", map[string]any{"attempt": attempt})

	ctx := context.WithoutCancel(m.baseCtx)
	go m.resolve(ctx, attempt)
	return attempt
}

func (m *Machine[T]) resolve(ctx context.Context, attempt string) {
	defer m.inflight.Done()

	start := time.Now()
	value, err := m.safeFetch(ctx)
	elapsed := time.Since(start)

	var next State[T]
	if err != nil {
		next = Failure[T](err).withAttempt(attempt)
	} else {
		next = Success(value).withAttempt(attempt)
	}

	superseded := m.latest.Load().(string) != attempt
	m.cell.Store(next)

	if m.hooks.Finished != nil {
		m.hooks.Finished(attempt, next.Status(), err, elapsed)
	}

	meta := map[string]any{
		"attempt":    attempt,
		"status":     next.Status().String(),
		"elapsed_ms": elapsed.Milliseconds(),
		"superseded": superseded,
	}
	if err != nil {
		meta["error"] = err.Error()
		m.log.WarnObj("fetch failed", "fetch_result", meta)
		return
	}
	m.log.DebugObj("fetch completed", "fetch_result", meta)
}

// safeFetch converts a panicking fetch into an error so the cell never stays
// Loading forever.
func (m *Machine[T]) safeFetch(ctx context.Context) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if m.fetch == nil {
		return value, errNoFetcher
	}
	return m.fetch(ctx)
}

// State returns the current state without blocking on in-flight fetches.
func (m *Machine[T]) State() State[T] {
	return m.cell.Load()
}

// Observe registers fn for every transition. See Cell.Observe.
func (m *Machine[T]) Observe(fn func(State[T])) (cancel func()) {
	return m.cell.Observe(fn)
}

// Subscribe returns a latest-value channel. See Cell.Subscribe.
func (m *Machine[T]) Subscribe() (<-chan State[T], func()) {
	return m.cell.Subscribe()
}

// Wait blocks until every started attempt has written its result.
func (m *Machine[T]) Wait() {
	m.inflight.Wait()
}
