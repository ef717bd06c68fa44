package bridge

import (
	"sync"

	"github.com/juju/errors"
)

// ErrCancelled is what a caller observes after cancelling its own
// pending future. A result arriving later is dropped, never delivered.
var ErrCancelled = errors.New("future was cancelled")

type futureState int

const (
	statePending futureState = iota
	stateSettled
	stateCancelled
)

// Future carries one background outcome to the loop thread. It is
// settled at most once; cancellation and settlement race safely, and
// whichever happens first wins.
type Future[T any] struct {
	loop *Loop

	mu    sync.Mutex
	state futureState
	value T
	err   error
	done  chan struct{}
}

func NewFuture[T any](loop *Loop) *Future[T] {
	return &Future[T]{
		loop: loop,
		done: make(chan struct{}),
	}
}

// Deliver hands the outcome to the loop thread, where the future
// settles unless it was cancelled first. Safe to call from any
// goroutine; extra calls after the first settle are dropped.
func (f *Future[T]) Deliver(value T, err error) {
	scheduleErr := f.loop.CallSoonThreadsafe(func() {
		f.settle(value, err)
	})
	if scheduleErr != nil {
		// loop gone or saturated; settle directly so waiters unblock
		f.settle(value, err)
	}
}

func (f *Future[T]) settle(value T, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != statePending {
		// cancelled or already settled, drop silently
		return
	}
	f.state = stateSettled
	f.value = value
	f.err = err
	close(f.done)
}

// Cancel prevents any future delivery. Returns false when the future
// already settled. In-flight work is not aborted; only its result is
// discarded.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != statePending {
		return f.state == stateCancelled
	}
	f.state = stateCancelled
	f.err = errors.Trace(ErrCancelled)
	close(f.done)
	return true
}

// Done closes when the future settles or is cancelled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the future settles or is cancelled.
func (f *Future[T]) Result() (T, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Submit schedules op on the pool and returns the future that will
// carry its outcome to the loop.
func Submit[T any](loop *Loop, pool *Pool, op func() (T, error)) *Future[T] {
	f := NewFuture[T](loop)
	pool.Go(func() {
		f.Deliver(op())
	})
	return f
}
