// Package bridge relays the outcomes of operations running on
// background workers into a single-threaded cooperative event loop.
// The loop thread is the only place futures settle, so loop-side code
// never needs locks around future state it observes.
package bridge

import (
	"sync"

	"github.com/juju/errors"
	"github.com/ngaut/log"
)

// ErrLoopClosed reports a callback scheduled after the loop stopped.
var ErrLoopClosed = errors.New("event loop is closed")

// ErrLoopQueueFull reports a scheduling queue at capacity.
var ErrLoopQueueFull = errors.New("event loop queue is full")

// Loop is a single-goroutine callback executor. CallSoonThreadsafe is
// the only way in from other goroutines.
type Loop struct {
	tasks chan func()

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		tasks: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Run executes callbacks on the calling goroutine until Stop. That
// goroutine is the loop thread.
func (l *Loop) Run() {
	defer close(l.done)
	for task := range l.tasks {
		task()
	}
}

// Start runs the loop on its own goroutine.
func (l *Loop) Start() {
	go l.Run()
}

// CallSoonThreadsafe schedules fn on the loop thread. Safe to call
// from any goroutine. Never blocks; a saturated queue returns
// ErrLoopQueueFull.
func (l *Loop) CallSoonThreadsafe(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.Trace(ErrLoopClosed)
	}
	select {
	case l.tasks <- fn:
		return nil
	default:
		return errors.Trace(ErrLoopQueueFull)
	}
}

// Stop closes the loop after the already-queued callbacks drain.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.tasks)
	l.mu.Unlock()

	<-l.done
	log.Debug("event loop stopped")
}
