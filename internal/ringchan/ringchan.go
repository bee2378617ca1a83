// Package ringchan provides a bounded, drop-oldest channel for delivering
// notifications to consumers that may fall behind.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// Ring is a buffered channel that never blocks its producers: when the buffer
// is full the oldest element is discarded to make room.
//
//	r := ringchan.New[[]byte](4)
//	r.Push(value)           // never blocks
//	for v := range r.C() {  // consumer side is a plain channel
//	    ...
//	}
//
// Producers are serialized by a mutex so concurrent pushes cannot starve each
// other while evicting. Push after Close is a no-op rather than a panic, which
// lets a subscription be torn down while a notifier still holds it.
type Ring[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool
	stats  Stats
}

// New creates a Ring with the given capacity.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (r *Ring[T]) C() <-chan T { return r.ch }

// Push inserts v, evicting the oldest element when full. It reports whether an
// element was evicted. Pushing to a closed Ring drops v.
func (r *Ring[T]) Push(v T) (evicted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.stats.Rejected.Add(1)
		return false
	}

	for {
		select {
		case r.ch <- v:
			r.stats.Pushed.Add(1)
			return evicted
		default:
		}
		select {
		case <-r.ch:
			r.stats.Evicted.Add(1)
			evicted = true
		default:
			// A consumer drained the buffer in between; retry the send.
		}
	}
}

// TryPush inserts v only if there is room.
func (r *Ring[T]) TryPush(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.stats.Rejected.Add(1)
		return false
	}
	select {
	case r.ch <- v:
		r.stats.Pushed.Add(1)
		return true
	default:
		return false
	}
}

func (r *Ring[T]) Len() int { return len(r.ch) }

func (r *Ring[T]) Cap() int { return cap(r.ch) }

// Close closes the receive side. It is safe to call more than once.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

// Stats returns a snapshot of the counters.
func (r *Ring[T]) Stats() Snapshot {
	return Snapshot{
		Pushed:   r.stats.Pushed.Load(),
		Evicted:  r.stats.Evicted.Load(),
		Rejected: r.stats.Rejected.Load(),
	}
}

// Stats are the live counters of a Ring.
type Stats struct {
	Pushed   atomic.Int64
	Evicted  atomic.Int64
	Rejected atomic.Int64 // pushes after Close
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Pushed   int64
	Evicted  int64
	Rejected int64
}
