package fetchstate

import (
	"slices"
	"sync"
)

// Cell is the single-slot holder of the current State. Every write replaces
// the previous value and is pushed to observers.
//
// Callback observers see every write in write order. Channel subscribers see
// the latest value only: a slow reader misses intermediate states but is
// never able to block a writer.
type Cell[T any] struct {
	// deliverMu serializes write+notify so observers see writes in order.
	deliverMu sync.Mutex

	mu      sync.RWMutex
	current State[T]
	nextID  uint64
	funcs   map[uint64]func(State[T])
	chans   map[uint64]chan State[T]
}

// NewCell returns a cell holding initial.
func NewCell[T any](initial State[T]) *Cell[T] {
	return &Cell[T]{
		current: initial,
		funcs:   make(map[uint64]func(State[T])),
		chans:   make(map[uint64]chan State[T]),
	}
}

// Load returns the current state.
func (c *Cell[T]) Load() State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Store overwrites the current state and notifies observers before returning.
// Observer callbacks must not call Store or a cancel func on this cell.
func (c *Cell[T]) Store(s State[T]) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.current = s
	funcs := make([]func(State[T]), 0, len(c.funcs))
	for _, id := range sortedKeys(c.funcs) {
		funcs = append(funcs, c.funcs[id])
	}
	chans := make([]chan State[T], 0, len(c.chans))
	for _, ch := range c.chans {
		chans = append(chans, ch)
	}
	c.mu.Unlock()

	for _, fn := range funcs {
		fn(s)
	}
	for _, ch := range chans {
		offerLatest(ch, s)
	}
}

// Observe registers fn for every subsequent write. The returned cancel func
// guarantees fn is not running and will not be called once it returns.
func (c *Cell[T]) Observe(fn func(State[T])) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.funcs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.deliverMu.Lock()
			defer c.deliverMu.Unlock()
			c.mu.Lock()
			delete(c.funcs, id)
			c.mu.Unlock()
		})
	}
}

// Subscribe returns a channel primed with the current state that then carries
// the latest state after each write. Cancel closes the channel.
func (c *Cell[T]) Subscribe() (<-chan State[T], func()) {
	ch := make(chan State[T], 1)

	c.deliverMu.Lock()
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.chans[id] = ch
	ch <- c.current
	c.mu.Unlock()
	c.deliverMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.deliverMu.Lock()
			defer c.deliverMu.Unlock()
			c.mu.Lock()
			delete(c.chans, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// offerLatest replaces any unread value in ch with s. Callers hold deliverMu,
// so no other sender can refill the slot between the drain and the send.
func offerLatest[T any](ch chan State[T], s State[T]) {
	select {
	case <-ch:
	default:
	}
	ch <- s
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
