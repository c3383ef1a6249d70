package events

import (
	"fmt"
	"sync"
)

// Unsubscribe removes a previously registered handler.
// Calling it more than once is a no-op.
type Unsubscribe func()

// FailureFunc receives the value recovered from a handler that panicked.
type FailureFunc func(err error)

type registryEntry[T any] struct {
	id      int
	handler func(T)
}

// Registry is an ordered set of synchronous handlers for values of type T.
// Unlike the topic bus, Notify runs every handler on the caller's goroutine,
// in registration order, before returning. A handler that panics is reported
// through the failure hook and delivery continues with the next handler.
type Registry[T any] struct {
	mu        sync.RWMutex
	entries   []registryEntry[T]
	nextID    int
	onFailure FailureFunc
}

// NewRegistry creates an empty registry. onFailure may be nil.
func NewRegistry[T any](onFailure FailureFunc) *Registry[T] {
	return &Registry[T]{
		nextID:    1,
		onFailure: onFailure,
	}
}

// Add registers a handler and returns the function that removes it.
func (r *Registry[T]) Add(handler func(T)) Unsubscribe {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.entries = append(r.entries, registryEntry[T]{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

// Notify delivers v to every handler registered at the time of the call.
func (r *Registry[T]) Notify(v T) {
	r.mu.RLock()
	handlers := make([]registryEntry[T], len(r.entries))
	copy(handlers, r.entries)
	r.mu.RUnlock()

	for _, e := range handlers {
		r.call(e.handler, v)
	}
}

// Len returns the number of registered handlers.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all handlers.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// SetFailureHandler replaces the hook that receives handler panics.
func (r *Registry[T]) SetFailureHandler(fn FailureFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFailure = fn
}

func (r *Registry[T]) call(handler func(T), v T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.mu.RLock()
			onFailure := r.onFailure
			r.mu.RUnlock()
			if onFailure != nil {
				onFailure(RecoveredError(rec))
			}
		}
	}()
	handler(v)
}

// remove keeps the registration order of the remaining handlers.
func (r *Registry[T]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

// RecoveredError converts a value returned by recover() into an error.
func RecoveredError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}
