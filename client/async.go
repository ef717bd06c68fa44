package client

import (
	"sync"

	"github.com/elbaro/gomysql/bridge"
	"github.com/juju/errors"
)

// AsyncConn exposes a Backend to callers living on an event loop.
// Operations on one connection run strictly in submission order on a
// dedicated worker; cancelling a pending future only discards its
// result, the operation itself still runs to completion so the
// connection state stays clean for the operations queued behind it.
//
// Submissions after Close settle with ErrConnClosed.
type AsyncConn struct {
	backend Backend
	loop    *bridge.Loop

	mu     sync.Mutex
	closed bool
	ops    chan func()
}

// NewAsyncConn wraps backend. The worker draining this connection's
// queue is accounted against pool's concurrency limit.
func NewAsyncConn(backend Backend, loop *bridge.Loop, pool *bridge.Pool) *AsyncConn {
	ac := &AsyncConn{
		backend: backend,
		loop:    loop,
		ops:     make(chan func(), 128),
	}
	pool.Go(ac.run)
	return ac
}

func (ac *AsyncConn) run() {
	for op := range ac.ops {
		op()
	}
}

// submitConn queues op behind the operations already submitted to this
// connection and returns the future carrying its outcome. The send
// happens under the mutex, so no submission can race the channel close
// in Close.
func submitConn[T any](ac *AsyncConn, op func(Backend) (T, error)) *bridge.Future[T] {
	f := bridge.NewFuture[T](ac.loop)

	ac.mu.Lock()
	if ac.closed {
		ac.mu.Unlock()
		var zero T
		f.Deliver(zero, errors.Trace(ErrConnClosed))
		return f
	}
	ac.ops <- func() {
		f.Deliver(op(ac.backend))
	}
	ac.mu.Unlock()
	return f
}

func (ac *AsyncConn) Query(sql string) *bridge.Future[*Result] {
	return submitConn(ac, func(b Backend) (*Result, error) {
		return b.Query(sql)
	})
}

func (ac *AsyncConn) Exec(sql string, args ...interface{}) *bridge.Future[*Result] {
	return submitConn(ac, func(b Backend) (*Result, error) {
		return b.Exec(sql, args...)
	})
}

func (ac *AsyncConn) ExecBatch(sql string, batches [][]interface{}) *bridge.Future[*Result] {
	return submitConn(ac, func(b Backend) (*Result, error) {
		return b.ExecBatch(sql, batches)
	})
}

func (ac *AsyncConn) QueryFirst(sql string) *bridge.Future[Row] {
	return submitConn(ac, func(b Backend) (Row, error) {
		return QueryFirst(b, sql)
	})
}

func (ac *AsyncConn) ExecFirst(sql string, args ...interface{}) *bridge.Future[Row] {
	return submitConn(ac, func(b Backend) (Row, error) {
		return ExecFirst(b, sql, args...)
	})
}

func (ac *AsyncConn) Ping() *bridge.Future[struct{}] {
	return submitConn(ac, func(b Backend) (struct{}, error) {
		return struct{}{}, b.Ping()
	})
}

func (ac *AsyncConn) Reset() *bridge.Future[struct{}] {
	return submitConn(ac, func(b Backend) (struct{}, error) {
		return struct{}{}, b.Reset()
	})
}

// Close runs after every queued operation has finished, then shuts the
// underlying connection. Closing twice is fine; the second future
// settles immediately.
func (ac *AsyncConn) Close() *bridge.Future[struct{}] {
	f := bridge.NewFuture[struct{}](ac.loop)

	ac.mu.Lock()
	if ac.closed {
		ac.mu.Unlock()
		f.Deliver(struct{}{}, nil)
		return f
	}
	ac.closed = true
	ac.ops <- func() {
		f.Deliver(struct{}{}, ac.backend.Close())
	}
	close(ac.ops)
	ac.mu.Unlock()
	return f
}
