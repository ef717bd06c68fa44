package client

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/elbaro/gomysql/protocol"
)

// testReply scripts one server response: an OK, an error, or a result
// set, optionally chained to the next result of the same execution.
type testReply struct {
	columns []*protocol.ColumnInfo
	rows    [][]interface{}
	// rawRows overrides rows with verbatim row payloads, for
	// malformed-packet scenarios.
	rawRows [][]byte

	ok     *protocol.OKPacket
	sqlErr *protocol.SQLError

	next *testReply
}

type testStmt struct {
	sql        string
	numParams  int
	numColumns int
}

// testServer speaks just enough of the server side of the protocol to
// exercise the client: handshake, COM_QUERY, prepared statements,
// COM_PING and COM_RESET_CONNECTION. Responses come from a script
// keyed by SQL text.
type testServer struct {
	ln net.Listener

	mu           sync.Mutex
	queries      map[string]*testReply
	execs        map[string]*testReply
	numParams    map[string]int
	prepareCount map[string]int

	stmts      map[uint32]*testStmt
	nextStmtID uint32
}

func newTestServer() (*testServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &testServer{
		ln:           ln,
		queries:      make(map[string]*testReply),
		execs:        make(map[string]*testReply),
		numParams:    make(map[string]int),
		prepareCount: make(map[string]int),
		stmts:        make(map[uint32]*testStmt),
	}
	go s.serve()
	return s, nil
}

func (s *testServer) addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) close() {
	s.ln.Close()
}

func (s *testServer) addQuery(sql string, reply *testReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[sql] = reply
}

func (s *testServer) addExec(sql string, numParams int, reply *testReply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[sql] = reply
	s.numParams[sql] = numParams
}

func (s *testServer) prepares(sql string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prepareCount[sql]
}

func okReply(affected, lastInsert uint64) *testReply {
	return &testReply{ok: &protocol.OKPacket{
		AffectedRows: affected,
		LastInsertID: lastInsert,
		Status:       protocol.ServerStatusAutocommit,
	}}
}

func (s *testServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

var testSalt = []byte("12345678901234567890")

func (s *testServer) handleConn(conn net.Conn) {
	defer conn.Close()
	pkg := NewPacketIO(conn)

	if err := s.handshake(pkg); err != nil {
		return
	}

	for {
		pkg.Sequence = 0
		data, err := pkg.ReadPacket()
		if err != nil {
			return
		}

		switch data[0] {
		case protocol.ComQuit:
			return

		case protocol.ComPing, protocol.ComInitDB:
			s.writeOK(pkg, &protocol.OKPacket{Status: protocol.ServerStatusAutocommit})

		case protocol.ComResetConnection:
			s.mu.Lock()
			s.stmts = make(map[uint32]*testStmt)
			s.mu.Unlock()
			s.writeOK(pkg, &protocol.OKPacket{Status: protocol.ServerStatusAutocommit})

		case protocol.ComQuery:
			sql := string(data[1:])
			s.mu.Lock()
			reply := s.queries[sql]
			s.mu.Unlock()
			if reply == nil {
				s.writeError(pkg, protocol.NewSQLError(1064, "42000", "unscripted query %q", sql))
				continue
			}
			s.writeReply(pkg, reply, false)

		case protocol.ComStmtPrepare:
			s.handlePrepare(pkg, string(data[1:]))

		case protocol.ComStmtExecute:
			s.handleExecute(pkg, data)

		case protocol.ComStmtClose:
			id := binary.LittleEndian.Uint32(data[1:])
			s.mu.Lock()
			delete(s.stmts, id)
			s.mu.Unlock()
			// no response

		default:
			s.writeError(pkg, protocol.NewSQLError(1047, "08S01", "unknown command %d", data[0]))
		}
	}
}

func (s *testServer) handshake(pkg *PacketIO) error {
	data := make([]byte, 4, 128)
	data = append(data, protocol.MinProtocolVersion)
	data = append(data, "5.7.25-test"...)
	data = append(data, 0)
	// connection id
	data = append(data, 42, 0, 0, 0)
	data = append(data, testSalt[0:8]...)
	data = append(data, 0)
	capability := protocol.DefaultCapability
	data = append(data, byte(capability), byte(capability>>8))
	data = append(data, byte(protocol.DefaultCollationID))
	data = append(data, protocol.Uint16ToBytes(protocol.ServerStatusAutocommit)...)
	data = append(data, byte(capability>>16), byte(capability>>24))
	data = append(data, 0x15)
	data = append(data, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	data = append(data, testSalt[8:20]...)
	data = append(data, 0)

	if err := pkg.WritePacket(data); err != nil {
		return err
	}
	if err := pkg.Flush(); err != nil {
		return err
	}

	// auth response, accepted regardless of credentials
	if _, err := pkg.ReadPacket(); err != nil {
		return err
	}

	err := s.writeOK(pkg, &protocol.OKPacket{Status: protocol.ServerStatusAutocommit})
	pkg.Sequence = 0
	return err
}

func (s *testServer) handlePrepare(pkg *PacketIO, sql string) {
	s.mu.Lock()
	reply, scripted := s.execs[sql]
	numParams := s.numParams[sql]
	s.prepareCount[sql]++
	s.nextStmtID++
	id := s.nextStmtID
	s.mu.Unlock()

	if !scripted {
		s.writeError(pkg, protocol.NewSQLError(1064, "42000", "unscripted statement %q", sql))
		return
	}

	numColumns := len(reply.columns)
	s.mu.Lock()
	s.stmts[id] = &testStmt{sql: sql, numParams: numParams, numColumns: numColumns}
	s.mu.Unlock()

	data := make([]byte, 4, 16)
	data = append(data, protocol.OKHeader)
	data = append(data, protocol.Uint32ToBytes(id)...)
	data = append(data, protocol.Uint16ToBytes(uint16(numColumns))...)
	data = append(data, protocol.Uint16ToBytes(uint16(numParams))...)
	data = append(data, 0)    // filler
	data = append(data, 0, 0) // warnings
	if s.write(pkg, data) != nil {
		return
	}

	if numParams > 0 {
		for i := 0; i < numParams; i++ {
			column := &protocol.ColumnInfo{Name: "?", Type: protocol.TypeVarString}
			if s.writePayload(pkg, column.Dump()) != nil {
				return
			}
		}
		if s.writeEOF(pkg, 0) != nil {
			return
		}
	}

	if numColumns > 0 {
		for _, column := range reply.columns {
			if s.writePayload(pkg, column.Dump()) != nil {
				return
			}
		}
		if s.writeEOF(pkg, 0) != nil {
			return
		}
	}

	pkg.Flush()
}

func (s *testServer) handleExecute(pkg *PacketIO, data []byte) {
	id := binary.LittleEndian.Uint32(data[1:])

	s.mu.Lock()
	stmt := s.stmts[id]
	s.mu.Unlock()

	if stmt == nil {
		s.writeError(pkg, protocol.NewSQLError(1243, "HY000", "unknown prepared statement handler (%d)", id))
		return
	}

	s.mu.Lock()
	reply := s.execs[stmt.sql]
	s.mu.Unlock()

	s.writeReply(pkg, reply, true)
}

func (s *testServer) writeReply(pkg *PacketIO, reply *testReply, binaryMode bool) {
	for reply != nil {
		more := reply.next != nil

		switch {
		case reply.sqlErr != nil:
			s.writeError(pkg, reply.sqlErr)
			return

		case reply.ok != nil:
			ok := *reply.ok
			if more {
				ok.Status |= protocol.ServerMoreResultsExists
			}
			if s.writeOK(pkg, &ok) != nil {
				return
			}

		default:
			if s.writeResultSet(pkg, reply, binaryMode, more) != nil {
				return
			}
		}

		reply = reply.next
	}
}

func (s *testServer) writeResultSet(pkg *PacketIO, reply *testReply, binaryMode, more bool) error {
	if err := s.writePayload(pkg, protocol.PutLengthEncodedInt(uint64(len(reply.columns)))); err != nil {
		return err
	}

	for _, column := range reply.columns {
		if err := s.writePayload(pkg, column.Dump()); err != nil {
			return err
		}
	}
	if err := s.writeEOF(pkg, 0); err != nil {
		return err
	}

	rawRows := reply.rawRows
	if rawRows == nil {
		for _, row := range reply.rows {
			var payload []byte
			var err error
			if binaryMode {
				payload, err = protocol.DumpBinaryRow(reply.columns, row)
			} else {
				payload, err = protocol.DumpTextRow(reply.columns, row)
			}
			if err != nil {
				return err
			}
			rawRows = append(rawRows, payload)
		}
	}

	for _, payload := range rawRows {
		if err := s.writePayload(pkg, payload); err != nil {
			return err
		}
	}

	var status uint16 = protocol.ServerStatusAutocommit
	if more {
		status |= protocol.ServerMoreResultsExists
	}
	return s.writeEOF(pkg, status)
}

func (s *testServer) writeOK(pkg *PacketIO, ok *protocol.OKPacket) error {
	return s.writePayload(pkg, ok.Dump(protocol.DefaultCapability))
}

func (s *testServer) writeError(pkg *PacketIO, e *protocol.SQLError) error {
	return s.writePayload(pkg, e.Dump(protocol.DefaultCapability))
}

func (s *testServer) writeEOF(pkg *PacketIO, status uint16) error {
	eof := &protocol.EOFPacket{Status: status}
	return s.writePayload(pkg, eof.Dump(protocol.DefaultCapability))
}

func (s *testServer) writePayload(pkg *PacketIO, payload []byte) error {
	data := make([]byte, 4, 4+len(payload))
	data = append(data, payload...)
	return s.write(pkg, data)
}

func (s *testServer) write(pkg *PacketIO, data []byte) error {
	if err := pkg.WritePacket(data); err != nil {
		return err
	}
	return pkg.Flush()
}
