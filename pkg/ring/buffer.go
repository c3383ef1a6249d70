// Package ring provides a fixed-capacity FIFO buffer shared by the toolkit's
// bounded histories (log entries, performance snapshots, tracked errors).
package ring

import "sync"

// Buffer is a goroutine-safe circular buffer. Once full, each Push evicts the
// oldest entry.
type Buffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	head     int // index of the oldest entry once the buffer is full
	capacity int
	total    int64
}

// New creates a buffer holding at most capacity entries (minimum 1).
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{
		entries:  make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v. It returns the evicted entry and true when the buffer was
// already at capacity.
func (b *Buffer[T]) Push(v T) (evicted T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total++
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, v)
		return evicted, false
	}
	evicted = b.entries[b.head]
	b.entries[b.head] = v
	b.head = (b.head + 1) % b.capacity
	return evicted, true
}

// Items returns a copy of the entries, oldest first.
func (b *Buffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.entries))
	n := copy(out, b.entries[b.head:])
	copy(out[n:], b.entries[:b.head])
	return out
}

// Last returns up to n of the newest entries, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	items := b.Items()
	if n <= 0 {
		return nil
	}
	if n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// Newest returns the most recently pushed entry.
func (b *Buffer[T]) Newest() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var zero T
	if len(b.entries) == 0 {
		return zero, false
	}
	if len(b.entries) < b.capacity {
		return b.entries[len(b.entries)-1], true
	}
	return b.entries[(b.head-1+b.capacity)%b.capacity], true
}

// Len returns the number of retained entries.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.capacity
}

// Total returns the number of entries ever pushed, including evicted ones.
func (b *Buffer[T]) Total() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// Clear drops all entries.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make([]T, 0, b.capacity)
	b.head = 0
}
