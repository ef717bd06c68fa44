package client

// Backend is the capability surface shared by every connection
// implementation. The native wire client (Conn) and the database/sql
// shim (SQLBackend) both satisfy it; callers pick one at open time and
// never branch on the concrete type again.
type Backend interface {
	Ping() error

	// Query runs unparameterized SQL over the text protocol.
	Query(sql string) (*Result, error)

	// Exec runs parameterized SQL through the statement cache over
	// the binary protocol.
	Exec(sql string, args ...interface{}) (*Result, error)

	// ExecBatch runs the same statement once per argument tuple,
	// preparing it at most once.
	ExecBatch(sql string, batches [][]interface{}) (*Result, error)

	// Reset restores session state and invalidates every cached
	// prepared statement.
	Reset() error

	ConnectionID() uint32
	AffectedRows() uint64
	LastInsertID() uint64

	Close() error
}

var (
	_ Backend = (*Conn)(nil)
	_ Backend = (*SQLBackend)(nil)
)
