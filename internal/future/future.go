// Package future provides a single-assignment result handle and the
// combinators used to chain stages without holding a goroutine per stage.
//
// A Future completes exactly once. Continuations registered with Then, Map
// and Handle are not run by the goroutine that completed the future; they are
// handed to an Executor, so the stage that follows an I/O call resumes on
// whichever worker picks it up.
package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrPanicked is returned by a future whose stage panicked.
var ErrPanicked = errors.New("stage panicked")

// Executor runs continuations.
type Executor interface {
	Submit(task func())
}

// Inline runs continuations on the completing goroutine.
var Inline Executor = inline{}

type inline struct{}

func (inline) Submit(task func()) { task() }

// Future is the result of work that may not have finished yet.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	val       T
	err       error
	callbacks []func()
}

// New returns a pending future and the function that completes it.
// Only the first call to complete has an effect.
func New[T any]() (*Future[T], func(T, error)) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.complete
}

// Completed returns a future that already holds v.
func Completed[T any](v T) *Future[T] {
	f, complete := New[T]()
	complete(v, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed[T any](err error) *Future[T] {
	f, complete := New[T]()
	var zero T
	complete(zero, err)
	return f
}

// Go runs fn on its own goroutine and returns immediately.
// It is meant for calls that wait on I/O.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f, complete := New[T]()
	go func() {
		defer completeOnPanic(complete)
		complete(fn(ctx))
	}()
	return f
}

// Start schedules fn on ex and completes with the future fn returns.
func Start[T any](ex Executor, fn func() *Future[T]) *Future[T] {
	out, complete := New[T]()
	ex.Submit(func() {
		defer completeOnPanic(complete)
		fn().onComplete(complete)
	})
	return out
}

// completeOnPanic fails the future if the stage running it panics.
// It must be deferred directly.
func completeOnPanic[T any](complete func(T, error)) {
	if r := recover(); r != nil {
		var zero T
		complete(zero, fmt.Errorf("%w: %v", ErrPanicked, r))
	}
}

func (f *Future[T]) complete(v T, err error) {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return
	}
	f.completed = true
	f.val, f.err = v, err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// onComplete calls fn with the result once it is known, on the goroutine
// that completes f, or immediately if f is already complete.
func (f *Future[T]) onComplete(fn func(T, error)) {
	cb := func() { fn(f.val, f.err) }

	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	cb()
}

// Done is closed when the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Result returns the value and error. It must only be called after Done is closed.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	return f.val, f.err
}

// Await blocks until the future completes or ctx is done.
// Abandoning a future does not cancel the work behind it.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn after f. If f fails, fn is skipped and the error propagates.
func Then[A, B any](ex Executor, f *Future[A], fn func(A) *Future[B]) *Future[B] {
	out, complete := New[B]()
	f.onComplete(func(v A, err error) {
		if err != nil {
			var zero B
			complete(zero, err)
			return
		}
		ex.Submit(func() {
			defer completeOnPanic(complete)
			fn(v).onComplete(complete)
		})
	})
	return out
}

// Map transforms the value of f. If f fails, fn is skipped.
func Map[A, B any](ex Executor, f *Future[A], fn func(A) (B, error)) *Future[B] {
	return Then(ex, f, func(v A) *Future[B] {
		w, err := fn(v)
		if err != nil {
			return Failed[B](err)
		}
		return Completed(w)
	})
}

// Handle always runs fn with the outcome of f, success or failure.
func Handle[A, B any](ex Executor, f *Future[A], fn func(A, error) (B, error)) *Future[B] {
	out, complete := New[B]()
	f.onComplete(func(v A, err error) {
		ex.Submit(func() {
			defer completeOnPanic(complete)
			complete(fn(v, err))
		})
	})
	return out
}
