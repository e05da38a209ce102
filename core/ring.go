package core

import "sync/atomic"

// Ring is a bounded single-producer/single-consumer FIFO.
//
// The producer (main loop) only advances tail, the consumer (timer context)
// only advances head. Cursors run over [0, 2*capacity) so a full ring can be
// told apart from an empty one without a spare slot, which also makes a
// capacity of 1 usable.
type Ring[T any] struct {
	buf  []T
	size uint32
	head atomic.Uint32
	tail atomic.Uint32
}

// MaxRingSize is the largest capacity NewRing accepts.
const MaxRingSize = 127

// NewRing allocates a ring with the given capacity (1..MaxRingSize).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	if capacity > MaxRingSize {
		capacity = MaxRingSize
	}
	return &Ring[T]{
		buf:  make([]T, capacity),
		size: uint32(capacity),
	}
}

func (r *Ring[T]) advance(c uint32) uint32 {
	c++
	if c == 2*r.size {
		c = 0
	}
	return c
}

func (r *Ring[T]) index(c uint32) uint32 {
	if c >= r.size {
		c -= r.size
	}
	return c
}

// Len returns the number of queued elements.
func (r *Ring[T]) Len() int {
	t, h := r.tail.Load(), r.head.Load()
	if t >= h {
		return int(t - h)
	}
	return int(2*r.size - h + t)
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return int(r.size)
}

// Empty reports whether no elements are queued.
func (r *Ring[T]) Empty() bool {
	return r.head.Load() == r.tail.Load()
}

// Full reports whether a Push would fail.
func (r *Ring[T]) Full() bool {
	return r.Len() == int(r.size)
}

// Push appends v. Returns false if the ring is full; nothing is dropped.
func (r *Ring[T]) Push(v T) bool {
	if r.Full() {
		return false
	}
	t := r.tail.Load()
	r.buf[r.index(t)] = v
	r.tail.Store(r.advance(t))
	return true
}

// Front returns a pointer to the oldest element without removing it.
// Only the consumer may call Front.
func (r *Ring[T]) Front() (*T, bool) {
	if r.Empty() {
		return nil, false
	}
	return &r.buf[r.index(r.head.Load())], true
}

// Pop removes and returns the oldest element.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.Empty() {
		return zero, false
	}
	h := r.head.Load()
	v := r.buf[r.index(h)]
	r.buf[r.index(h)] = zero
	r.head.Store(r.advance(h))
	return v, true
}

// Reset drops all queued elements. Both sides must be quiescent, so callers
// holding a consumer in timer context wrap this with interrupts disabled.
func (r *Ring[T]) Reset() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	r.head.Store(r.tail.Load())
}
