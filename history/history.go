// Package history provides a fixed capacity buffer of the most recent values, such as the
// positions making up a trajectory.
package history

import (
	"fmt"
	"iter"
)

// Buffer holds up to Cap() of the most recently pushed values. Pushing onto a full buffer
// evicts the oldest value. A Buffer is not safe for concurrent use; it is expected to be
// owned by a single pipeline.
type Buffer[T any] struct {
	data []T
	// head is the index of the newest value.
	head int
	size int
}

// New returns an empty buffer holding at most capacity values. It panics if capacity < 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		panic(fmt.Sprintf("history buffer capacity must be at least 1, got %d", capacity))
	}
	return &Buffer[T]{data: make([]T, capacity), head: -1}
}

// Push inserts v as the newest value in O(1).
func (b *Buffer[T]) Push(v T) {
	b.head = (b.head + 1) % len(b.data)
	b.data[b.head] = v
	if b.size < len(b.data) {
		b.size++
	}
}

// Clear empties the buffer.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.data {
		b.data[i] = zero
	}
	b.head = -1
	b.size = 0
}

// Len returns the number of values currently held.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the maximum number of values held.
func (b *Buffer[T]) Cap() int {
	return len(b.data)
}

// Newest returns the most recently pushed value, if any.
func (b *Buffer[T]) Newest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.data[b.head], true
}

// at returns the i-th newest value, 0 being the newest.
func (b *Buffer[T]) at(i int) T {
	return b.data[(b.head-i+len(b.data))%len(b.data)]
}

// NewestFirst yields the current contents from newest to oldest. The sequence can be ranged
// over any number of times and never modifies the buffer.
func (b *Buffer[T]) NewestFirst() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < b.size; i++ {
			if !yield(b.at(i)) {
				return
			}
		}
	}
}

// OldestFirst yields the current contents from oldest to newest.
func (b *Buffer[T]) OldestFirst() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := b.size - 1; i >= 0; i-- {
			if !yield(b.at(i)) {
				return
			}
		}
	}
}
