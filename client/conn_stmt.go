package client

import (
	"encoding/binary"
	"math"
	"strconv"
	"time"

	"github.com/elbaro/gomysql/protocol"
	"github.com/juju/errors"
)

// Stmt is a server-side prepared statement. Handles live in the
// connection's statement cache keyed by the exact SQL text that
// prepared them.
type Stmt struct {
	conn *Conn

	id  uint32
	sql string

	numParams  int
	numColumns int

	columns []*protocol.ColumnInfo
}

func (s *Stmt) NumParams() int {
	return s.numParams
}

func (s *Stmt) NumColumns() int {
	return s.numColumns
}

// Columns returns the column definitions reported at prepare time.
func (s *Stmt) Columns() []*protocol.ColumnInfo {
	return s.columns
}

// getOrPrepare resolves sql through the statement cache. Identical
// text, byte for byte, always maps to the same handle until the cache
// is invalidated. A failed prepare caches nothing.
func (c *Conn) getOrPrepare(sql string) (*Stmt, error) {
	if stmt, ok := c.stmts[sql]; ok {
		counter.Add("stmt_cache_hit", 1)
		return stmt, nil
	}

	counter.Add("stmt_cache_miss", 1)
	stmt, err := c.Prepare(sql)
	if err != nil {
		return nil, errors.Trace(err)
	}

	c.stmts[sql] = stmt
	return stmt, nil
}

func (c *Conn) invalidateStmtCache() {
	c.stmts = make(map[string]*Stmt)
}

// Prepare sends COM_STMT_PREPARE and parses the statement handle. The
// returned statement is not cached; most callers want Exec, which
// routes through the cache.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	counter.Add("prepare", 1)
	if err := c.writeCommandBuf(protocol.ComStmtPrepare, []byte(sql)); err != nil {
		return nil, errors.Trace(err)
	}

	data, err := c.readPacket()
	if err != nil {
		return nil, errors.Trace(err)
	}

	if data[0] == protocol.ErrHeader {
		return nil, c.handleErrorPacket(data)
	}
	if data[0] != protocol.OKHeader || len(data) < 12 {
		return nil, errors.Trace(protocol.ErrMalformPacket)
	}

	stmt := &Stmt{
		conn: c,
		sql:  sql,
	}

	pos := 1
	stmt.id = binary.LittleEndian.Uint32(data[pos:])
	pos += 4

	stmt.numColumns = int(binary.LittleEndian.Uint16(data[pos:]))
	pos += 2

	stmt.numParams = int(binary.LittleEndian.Uint16(data[pos:]))

	// parameter definitions carry no information we use
	if stmt.numParams > 0 {
		if err := c.readUntilEOF(); err != nil {
			return nil, errors.Trace(err)
		}
	}

	if stmt.numColumns > 0 {
		stmt.columns, err = c.readColumns(stmt.numColumns, discardHandler{})
		if err != nil {
			return nil, errors.Trace(err)
		}
	}

	return stmt, nil
}

// discardHandler drops every event. Used where only the side effects
// of packet consumption matter.
type discardHandler struct{}

func (discardHandler) NoResultSet(*protocol.OKPacket) error { return nil }
func (discardHandler) ResultSetStart(int, bool) error       { return nil }
func (discardHandler) Column(*protocol.ColumnInfo) error    { return nil }
func (discardHandler) Row([]interface{}) error              { return nil }
func (discardHandler) ResultSetEnd(uint16, uint16) error    { return nil }

// Exec runs sql with args over the binary protocol, preparing and
// caching the statement on first use.
func (c *Conn) Exec(sql string, args ...interface{}) (*Result, error) {
	var collector Collector
	if err := c.ExecHandler(&collector, sql, args...); err != nil {
		return nil, errors.Trace(err)
	}
	return collector.Result(), nil
}

// ExecHandler is Exec with a caller-provided event sink.
func (c *Conn) ExecHandler(h ResultHandler, sql string, args ...interface{}) error {
	counter.Add("exec", 1)
	stmt, err := c.getOrPrepare(sql)
	if err != nil {
		return errors.Trace(err)
	}
	return stmt.execute(h, args...)
}

// ExecBatch runs the same statement once per argument tuple, preparing
// it at most once. Affected rows accumulate over the whole batch.
func (c *Conn) ExecBatch(sql string, batches [][]interface{}) (*Result, error) {
	stmt, err := c.getOrPrepare(sql)
	if err != nil {
		return nil, errors.Trace(err)
	}

	total := &Result{}
	for _, args := range batches {
		var collector Collector
		if err := stmt.execute(&collector, args...); err != nil {
			return nil, errors.Trace(err)
		}
		res := collector.Result()
		total.AffectedRows += res.AffectedRows
		total.LastInsertID = res.LastInsertID
		total.Status = res.Status
		total.Warnings += res.Warnings
	}
	return total, nil
}

// Execute runs the prepared statement and materializes the outcome.
func (s *Stmt) Execute(args ...interface{}) (*Result, error) {
	var collector Collector
	if err := s.execute(&collector, args...); err != nil {
		return nil, errors.Trace(err)
	}
	return collector.Result(), nil
}

func (s *Stmt) execute(h ResultHandler, args ...interface{}) error {
	if len(args) != s.numParams {
		return errors.Errorf("argument count mismatch (got %d, want %d)",
			len(args), s.numParams)
	}
	if err := s.sendExecuteCommand(args...); err != nil {
		return errors.Trace(err)
	}
	return s.conn.readResults(true, h)
}

// Close deallocates the statement server side and drops it from the
// cache.
func (s *Stmt) Close() error {
	if err := s.conn.writeCommandUint32(protocol.ComStmtClose, s.id); err != nil {
		return errors.Trace(err)
	}
	// COM_STMT_CLOSE has no response
	delete(s.conn.stmts, s.sql)
	return nil
}

// sendExecuteCommand builds the COM_STMT_EXECUTE packet: statement id,
// cursor flags, NULL bitmap, parameter types on first bind, then the
// binary-encoded parameter values.
// https://dev.mysql.com/doc/internals/en/com-stmt-execute.html
func (s *Stmt) sendExecuteCommand(args ...interface{}) error {
	const minPktLen = 4 + 1 + 4 + 1 + 4
	c := s.conn

	if c.closed {
		return errors.Trace(ErrConnClosed)
	}

	c.alloc.Reset()
	data := c.alloc.AllocBytesWithLen(minPktLen, minPktLen+16*len(args))

	data[4] = protocol.ComStmtExecute

	binary.LittleEndian.PutUint32(data[5:], s.id)

	// flags: CURSOR_TYPE_NO_CURSOR
	data[9] = 0x00

	// iteration count, always 1
	data[10] = 0x01
	data[11] = 0x00
	data[12] = 0x00
	data[13] = 0x00

	if len(args) > 0 {
		maskLen := (len(args) + 7) / 8
		nullMask := make([]byte, maskLen)
		paramTypes := make([]byte, 0, 2*len(args))
		paramValues := make([]byte, 0, 8*len(args))

		for i, arg := range args {
			if arg == nil {
				nullMask[i/8] |= 1 << (uint(i) & 7)
				paramTypes = append(paramTypes, protocol.TypeNull, 0x00)
				continue
			}

			switch v := arg.(type) {
			case int64:
				paramTypes = append(paramTypes, protocol.TypeLonglong, 0x00)
				paramValues = append(paramValues, protocol.Uint64ToBytes(uint64(v))...)

			case int:
				paramTypes = append(paramTypes, protocol.TypeLonglong, 0x00)
				paramValues = append(paramValues, protocol.Uint64ToBytes(uint64(v))...)

			case uint64:
				paramTypes = append(paramTypes, protocol.TypeLonglong, 0x80)
				paramValues = append(paramValues, protocol.Uint64ToBytes(v)...)

			case float64:
				paramTypes = append(paramTypes, protocol.TypeDouble, 0x00)
				paramValues = append(paramValues, protocol.Uint64ToBytes(math.Float64bits(v))...)

			case bool:
				paramTypes = append(paramTypes, protocol.TypeTiny, 0x00)
				if v {
					paramValues = append(paramValues, 0x01)
				} else {
					paramValues = append(paramValues, 0x00)
				}

			case []byte:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString(v)...)

			case string:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString([]byte(v))...)

			case protocol.Decimal:
				paramTypes = append(paramTypes, protocol.TypeNewDecimal, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString([]byte(v))...)

			case protocol.Date:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString([]byte(v.String()))...)

			case protocol.DateTime:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString([]byte(v.String()))...)

			case protocol.Duration:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				paramValues = append(paramValues, protocol.PutLengthEncodedString([]byte(v.String()))...)

			case time.Time:
				paramTypes = append(paramTypes, protocol.TypeString, 0x00)
				var val []byte
				if v.IsZero() {
					val = []byte("0000-00-00")
				} else {
					val = []byte(v.Format("2006-01-02 15:04:05.999999"))
				}
				paramValues = append(paramValues, protocol.PutLengthEncodedString(val)...)

			default:
				return errors.Errorf("cannot bind parameter of type %T", arg)
			}
		}

		data = append(data, nullMask...)

		// newParameterBoundFlag
		data = append(data, 0x01)

		data = append(data, paramTypes...)
		data = append(data, paramValues...)
	}

	c.pkg.Sequence = 0
	c.warningCount = 0
	return c.writePacket(data)
}

// Mogrify interpolates args into the ? placeholders of query, escaping
// string and byte values. A ? inside a '...' or "..." literal is part
// of the literal, not a placeholder; backslash escapes inside literals
// are honored. Useful for logging and for servers without
// prepared-statement support; prefer Exec for real parameter binding.
func Mogrify(query string, args ...interface{}) (string, error) {
	buf := make([]byte, 0, len(query)*2)
	argPos := 0

	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch ch {
		case '\'', '"':
			quote := ch
			buf = append(buf, ch)
			for i++; i < len(query); i++ {
				buf = append(buf, query[i])
				if query[i] == '\\' && i+1 < len(query) {
					i++
					buf = append(buf, query[i])
					continue
				}
				if query[i] == quote {
					break
				}
			}

		case '?':
			if argPos >= len(args) {
				return "", errors.Errorf("placeholder count mismatch (got %d args)", len(args))
			}
			var err error
			buf, err = appendSQLValue(buf, args[argPos])
			if err != nil {
				return "", errors.Trace(err)
			}
			argPos++

		default:
			buf = append(buf, ch)
		}
	}

	if argPos != len(args) {
		return "", errors.Errorf("placeholder count mismatch (got %d args)", len(args))
	}
	return string(buf), nil
}

func appendSQLValue(buf []byte, arg interface{}) ([]byte, error) {
	if arg == nil {
		return append(buf, "NULL"...), nil
	}

	switch v := arg.(type) {
	case int:
		buf = strconv.AppendInt(buf, int64(v), 10)
	case int64:
		buf = strconv.AppendInt(buf, v, 10)
	case uint64:
		buf = strconv.AppendUint(buf, v, 10)
	case float64:
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	case bool:
		if v {
			buf = append(buf, '1')
		} else {
			buf = append(buf, '0')
		}
	case protocol.Decimal:
		buf = append(buf, v...)
	case []byte:
		buf = append(buf, '\'')
		buf = escapeBytesBackslash(buf, v)
		buf = append(buf, '\'')
	case string:
		buf = append(buf, '\'')
		buf = escapeStringBackslash(buf, v)
		buf = append(buf, '\'')
	default:
		return nil, errors.Errorf("cannot interpolate type %T", arg)
	}
	return buf, nil
}

// reserveBuffer checks cap(buf) and expands buffer to len(buf) + appendSize.
// If cap(buf) is not enough, reallocate new buffer.
func reserveBuffer(buf []byte, appendSize int) []byte {
	newSize := len(buf) + appendSize
	if cap(buf) < newSize {
		// Grow buffer exponentially
		newBuf := make([]byte, len(buf)*2+appendSize)
		copy(newBuf, buf)
		buf = newBuf
	}
	return buf[:newSize]
}

// escapeBytesBackslash escapes []byte with backslashes (\)
// This escapes the contents of a string (provided as []byte) by adding backslashes before special
// characters, and turning others into specific escape sequences, such as
// turning newlines into \n and null bytes into \0.
// https://github.com/mysql/mysql-server/blob/mysql-5.7.5/mysys/charset.c#L823-L932
func escapeBytesBackslash(buf, v []byte) []byte {
	pos := len(buf)
	buf = reserveBuffer(buf, len(v)*2)

	for _, c := range v {
		switch c {
		case '\x00':
			buf[pos] = '\\'
			buf[pos+1] = '0'
			pos += 2
		case '\n':
			buf[pos] = '\\'
			buf[pos+1] = 'n'
			pos += 2
		case '\r':
			buf[pos] = '\\'
			buf[pos+1] = 'r'
			pos += 2
		case '\x1a':
			buf[pos] = '\\'
			buf[pos+1] = 'Z'
			pos += 2
		case '\'':
			buf[pos] = '\\'
			buf[pos+1] = '\''
			pos += 2
		case '"':
			buf[pos] = '\\'
			buf[pos+1] = '"'
			pos += 2
		case '\\':
			buf[pos] = '\\'
			buf[pos+1] = '\\'
			pos += 2
		default:
			buf[pos] = c
			pos += 1
		}
	}

	return buf[:pos]
}

// escapeStringBackslash is similar to escapeBytesBackslash but for string.
func escapeStringBackslash(buf []byte, v string) []byte {
	pos := len(buf)
	buf = reserveBuffer(buf, len(v)*2)

	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '\x00':
			buf[pos] = '\\'
			buf[pos+1] = '0'
			pos += 2
		case '\n':
			buf[pos] = '\\'
			buf[pos+1] = 'n'
			pos += 2
		case '\r':
			buf[pos] = '\\'
			buf[pos+1] = 'r'
			pos += 2
		case '\x1a':
			buf[pos] = '\\'
			buf[pos+1] = 'Z'
			pos += 2
		case '\'':
			buf[pos] = '\\'
			buf[pos+1] = '\''
			pos += 2
		case '"':
			buf[pos] = '\\'
			buf[pos+1] = '"'
			pos += 2
		case '\\':
			buf[pos] = '\\'
			buf[pos+1] = '\\'
			pos += 2
		default:
			buf[pos] = c
			pos += 1
		}
	}

	return buf[:pos]
}
