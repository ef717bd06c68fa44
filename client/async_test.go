package client

import (
	"sync"

	"github.com/elbaro/gomysql/bridge"
	"github.com/juju/errors"
	check "gopkg.in/check.v1"
)

// mockBackend scripts Backend responses and records the order calls
// arrive in.
type mockBackend struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*Result
	errs    map[string]error

	block chan struct{}
}

func newMockBackend() *mockBackend {
	return &mockBackend{
		results: make(map[string]*Result),
		errs:    make(map[string]error),
	}
}

func (m *mockBackend) record(call string) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockBackend) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) reply(sql string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errs[sql]; err != nil {
		return nil, err
	}
	if res := m.results[sql]; res != nil {
		return res, nil
	}
	return &Result{}, nil
}

func (m *mockBackend) Ping() error {
	m.record("ping")
	return nil
}

func (m *mockBackend) Query(sql string) (*Result, error) {
	m.record("query:" + sql)
	return m.reply(sql)
}

func (m *mockBackend) Exec(sql string, args ...interface{}) (*Result, error) {
	m.record("exec:" + sql)
	return m.reply(sql)
}

func (m *mockBackend) ExecBatch(sql string, batches [][]interface{}) (*Result, error) {
	m.record("batch:" + sql)
	return m.reply(sql)
}

func (m *mockBackend) Reset() error {
	m.record("reset")
	return nil
}

func (m *mockBackend) ConnectionID() uint32 { return 1 }
func (m *mockBackend) AffectedRows() uint64 { return 0 }
func (m *mockBackend) LastInsertID() uint64 { return 0 }

func (m *mockBackend) Close() error {
	m.record("close")
	return nil
}

var _ = check.Suite(&testAsyncSuite{})

type testAsyncSuite struct {
	loop *bridge.Loop
	pool *bridge.Pool
}

func (s *testAsyncSuite) SetUpTest(c *check.C) {
	s.loop = bridge.NewLoop(256)
	s.loop.Start()
	s.pool = bridge.NewPool(8)
}

func (s *testAsyncSuite) TearDownTest(c *check.C) {
	s.loop.Stop()
}

func (s *testAsyncSuite) TestQueryDelivers(c *check.C) {
	backend := newMockBackend()
	backend.results["SELECT 1"] = &Result{AffectedRows: 0, Sets: []*ResultSet{{}}}
	ac := NewAsyncConn(backend, s.loop, s.pool)

	res, err := ac.Query("SELECT 1").Result()
	c.Assert(err, check.IsNil)
	c.Assert(res.HasResultSet(), check.Equals, true)

	ac.Close().Result()
}

func (s *testAsyncSuite) TestErrorDelivers(c *check.C) {
	backend := newMockBackend()
	backend.errs["SELECT broken"] = errors.New("scripted failure")
	ac := NewAsyncConn(backend, s.loop, s.pool)

	_, err := ac.Query("SELECT broken").Result()
	c.Assert(err, check.ErrorMatches, ".*scripted failure.*")

	ac.Close().Result()
}

func (s *testAsyncSuite) TestSubmissionOrder(c *check.C) {
	backend := newMockBackend()
	ac := NewAsyncConn(backend, s.loop, s.pool)

	futures := []*bridge.Future[*Result]{
		ac.Query("a"),
		ac.Exec("b"),
		ac.Query("c"),
	}
	pingF := ac.Ping()

	for _, f := range futures {
		_, err := f.Result()
		c.Assert(err, check.IsNil)
	}
	_, err := pingF.Result()
	c.Assert(err, check.IsNil)

	c.Assert(backend.callLog(), check.DeepEquals, []string{
		"query:a", "exec:b", "query:c", "ping",
	})

	ac.Close().Result()
}

func (s *testAsyncSuite) TestCancelledOpStillRuns(c *check.C) {
	backend := newMockBackend()
	backend.block = make(chan struct{})
	ac := NewAsyncConn(backend, s.loop, s.pool)

	first := ac.Query("slow")
	second := ac.Query("after")

	// cancel while the backend is still blocked on the first call
	c.Assert(first.Cancel(), check.Equals, true)

	// a closed channel no longer blocks, so later calls pass through
	close(backend.block)

	_, err := first.Result()
	c.Assert(errors.Cause(err), check.Equals, bridge.ErrCancelled)

	// the queued operation behind the cancelled one is unaffected
	_, err = second.Result()
	c.Assert(err, check.IsNil)

	log := backend.callLog()
	c.Assert(log, check.DeepEquals, []string{"query:slow", "query:after"})

	ac.Close().Result()
}

func (s *testAsyncSuite) TestSubmitAfterClose(c *check.C) {
	backend := newMockBackend()
	ac := NewAsyncConn(backend, s.loop, s.pool)

	_, err := ac.Close().Result()
	c.Assert(err, check.IsNil)

	// every late submission settles with ErrConnClosed, never a panic
	// from racing the queue shutdown
	for i := 0; i < 200; i++ {
		_, err = ac.Query("late").Result()
		c.Assert(errors.Cause(err), check.Equals, ErrConnClosed)
	}

	// closing twice is fine
	_, err = ac.Close().Result()
	c.Assert(err, check.IsNil)
}

func (s *testAsyncSuite) TestConcurrentSubmitAndClose(c *check.C) {
	for i := 0; i < 50; i++ {
		backend := newMockBackend()
		ac := NewAsyncConn(backend, s.loop, s.pool)

		var wg sync.WaitGroup
		futures := make([]*bridge.Future[*Result], 8)
		wg.Add(len(futures) + 1)
		for j := range futures {
			j := j
			go func() {
				defer wg.Done()
				futures[j] = ac.Query("racy")
			}()
		}
		var closeF *bridge.Future[struct{}]
		go func() {
			defer wg.Done()
			closeF = ac.Close()
		}()
		wg.Wait()

		// each future settles exactly once, with either the result or
		// ErrConnClosed depending on who won the race
		for _, f := range futures {
			_, err := f.Result()
			if err != nil {
				c.Assert(errors.Cause(err), check.Equals, ErrConnClosed)
			}
		}
		_, err := closeF.Result()
		c.Assert(err, check.IsNil)
	}
}
