// Package eventbus provides a typed publish/subscribe bus used to fan out
// state transitions to observers.
package eventbus

import "sync"

const defaultBuffer = 8

// TypedBus is a type-safe publish/subscribe bus for events of type T.
// It remembers the last published event and hands it to new subscribers so
// late observers start from the current state.
type TypedBus[T any] struct {
	mu      sync.Mutex
	subs    []chan T
	last    T
	hasLast bool
	closed  bool
	buffer  int
}

// NewTyped creates a new TypedBus whose subscriber channels hold buffer
// events. A non-positive buffer uses the default.
func NewTyped[T any](buffer int) *TypedBus[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &TypedBus[T]{buffer: buffer}
}

// Publish sends the event to all subscribers. Delivery never blocks: when a
// subscriber is full its oldest pending event is dropped, so the newest
// event always gets through.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last, b.hasLast = e, true
	for _, ch := range b.subs {
		deliver(ch, e)
	}
}

func deliver[T any](ch chan T, e T) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

// Latest returns the last published event, if any.
func (b *TypedBus[T]) Latest() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.hasLast
}

// Subscribe registers a subscriber and returns its channel. The last
// published event, if any, is queued immediately.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		if b.hasLast {
			ch <- b.last
		}
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes the bus and all subscriber channels.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
