package client

import (
	"github.com/elbaro/gomysql/protocol"
	"github.com/juju/errors"
)

// ResultHandler receives the events of one execution as its packets
// are consumed. One decode path serves every output shape; callers
// that want rows as maps, as tuples, or not at all plug in here.
//
// Event order per execution:
//
//	NoResultSet                                    for statements without rows
//	ResultSetStart, Column xN, Row xM, ResultSetEnd  per result set
//
// Either sequence may repeat when the server chains multiple results.
type ResultHandler interface {
	NoResultSet(ok *protocol.OKPacket) error
	ResultSetStart(columnCount int, binary bool) error
	Column(column *protocol.ColumnInfo) error
	Row(values []interface{}) error
	ResultSetEnd(status, warnings uint16) error
}

// Collector is the ResultHandler that materializes everything into a
// Result. It is the default sink for Query and Exec.
type Collector struct {
	result  Result
	current *ResultSet
}

func (c *Collector) NoResultSet(ok *protocol.OKPacket) error {
	c.result.AffectedRows = ok.AffectedRows
	c.result.LastInsertID = ok.LastInsertID
	c.result.Status = ok.Status
	c.result.Warnings = ok.Warnings
	return nil
}

func (c *Collector) ResultSetStart(columnCount int, binary bool) error {
	c.current = &ResultSet{
		Columns: make([]*protocol.ColumnInfo, 0, columnCount),
		Binary:  binary,
	}
	return nil
}

func (c *Collector) Column(column *protocol.ColumnInfo) error {
	if c.current == nil {
		return errors.Trace(protocol.ErrMalformPacket)
	}
	c.current.Columns = append(c.current.Columns, column)
	return nil
}

func (c *Collector) Row(values []interface{}) error {
	if c.current == nil {
		return errors.Trace(protocol.ErrMalformPacket)
	}
	if len(values) != len(c.current.Columns) {
		return errors.Trace(protocol.ErrMalformPacket)
	}
	c.current.Rows = append(c.current.Rows, NewRow(c.current.Columns, values))
	return nil
}

func (c *Collector) ResultSetEnd(status, warnings uint16) error {
	if c.current == nil {
		return errors.Trace(protocol.ErrMalformPacket)
	}
	c.result.Status = status
	c.result.Warnings = warnings
	c.result.Sets = append(c.result.Sets, c.current)
	c.current = nil
	return nil
}

// Result returns the materialized outcome. Valid once the execution
// has been fully consumed.
func (c *Collector) Result() *Result {
	return &c.result
}
