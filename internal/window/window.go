// Package window provides a fixed-capacity ring of recent values. When the
// ring is full the oldest value is evicted.
package window

import "github.com/pkg/errors"

var ErrWindowEmpty = errors.New("window is empty")

type Ring[T any] struct {
	items    []T
	start    int
	size     int
	capacity int
}

func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, errors.New("capacity must be greater than zero")
	}
	return &Ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}, nil
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring[T]) Push(v T) {
	if r.size < r.capacity {
		r.items[(r.start+r.size)%r.capacity] = v
		r.size++
		return
	}
	r.items[r.start] = v
	r.start = (r.start + 1) % r.capacity
}

// Items returns the values oldest first, most recent last.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.items[(r.start+i)%r.capacity]
	}
	return out
}

func (r *Ring[T]) Last() (T, error) {
	var zero T
	if r.size == 0 {
		return zero, ErrWindowEmpty
	}
	return r.items[(r.start+r.size-1)%r.capacity], nil
}

// Count returns how many values in the window satisfy match.
func (r *Ring[T]) Count(match func(T) bool) int {
	var n int
	for i := 0; i < r.size; i++ {
		if match(r.items[(r.start+i)%r.capacity]) {
			n++
		}
	}
	return n
}

func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.start = 0
	r.size = 0
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Capacity() int {
	return r.capacity
}

func (r *Ring[T]) Full() bool {
	return r.size == r.capacity
}
