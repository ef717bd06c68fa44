package client

import (
	"github.com/elbaro/gomysql/protocol"
	"github.com/juju/errors"
)

// readResults drains every result set the server chained for the last
// command, feeding events into h. Row buffers are freshly read per
// packet, so decoded byte slices are owned and safe to keep.
func (c *Conn) readResults(binary bool, h ResultHandler) error {
	for {
		more, err := c.readOneResult(binary, h)
		if err != nil {
			return errors.Trace(err)
		}
		if !more {
			return nil
		}
	}
}

// readOneResult consumes one response: an OK packet for statements
// without rows, or a column count followed by column definitions, row
// packets, and a terminator. Returns whether another result follows.
func (c *Conn) readOneResult(binary bool, h ResultHandler) (bool, error) {
	data, err := c.readPacket()
	if err != nil {
		return false, errors.Trace(err)
	}

	switch data[0] {
	case protocol.OKHeader:
		ok, err := c.handleOKPacket(data)
		if err != nil {
			return false, errors.Trace(err)
		}
		if err := h.NoResultSet(ok); err != nil {
			return false, errors.Trace(err)
		}
		return ok.MoreResults(), nil

	case protocol.ErrHeader:
		return false, c.handleErrorPacket(data)

	case protocol.LocalInFileHeader:
		// LOCAL INFILE is not supported
		return false, errors.Trace(protocol.ErrMalformPacket)
	}

	count, _, n := protocol.LengthEncodedInt(data)
	if n == 0 || n != len(data) {
		return false, errors.Trace(protocol.ErrMalformPacket)
	}

	if err := h.ResultSetStart(int(count), binary); err != nil {
		return false, errors.Trace(err)
	}

	columns, err := c.readColumns(int(count), h)
	if err != nil {
		return false, errors.Trace(err)
	}

	return c.readRows(columns, binary, h)
}

func (c *Conn) readColumns(count int, h ResultHandler) ([]*protocol.ColumnInfo, error) {
	columns := make([]*protocol.ColumnInfo, 0, count)

	for {
		data, err := c.readPacket()
		if err != nil {
			return nil, errors.Trace(err)
		}

		if protocol.IsEOFPacket(data) {
			eof, err := protocol.ParseEOFPacket(data, c.capability)
			if err != nil {
				return nil, errors.Trace(err)
			}
			c.status = eof.Status

			if len(columns) != count {
				return nil, errors.Trace(protocol.ErrMalformPacket)
			}
			return columns, nil
		}

		column, err := protocol.ParseColumnInfo(data)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if len(columns) >= count {
			return nil, errors.Trace(protocol.ErrMalformPacket)
		}
		if err := h.Column(column); err != nil {
			return nil, errors.Trace(err)
		}
		columns = append(columns, column)
	}
}

func (c *Conn) readRows(columns []*protocol.ColumnInfo, binary bool, h ResultHandler) (bool, error) {
	for {
		data, err := c.readPacket()
		if err != nil {
			return false, errors.Trace(err)
		}

		if protocol.IsEOFPacket(data) {
			eof, err := protocol.ParseEOFPacket(data, c.capability)
			if err != nil {
				return false, errors.Trace(err)
			}
			c.status = eof.Status
			c.warningCount = eof.Warnings

			if err := h.ResultSetEnd(eof.Status, eof.Warnings); err != nil {
				return false, errors.Trace(err)
			}
			return eof.MoreResults(), nil
		}

		if data[0] == protocol.ErrHeader {
			return false, c.handleErrorPacket(data)
		}

		var values []interface{}
		if binary {
			values, err = protocol.ParseBinaryRow(columns, data)
		} else {
			values, err = protocol.ParseTextRow(columns, data)
		}
		if err != nil {
			// a malformed row aborts the whole execution
			return false, errors.Trace(err)
		}

		if err := h.Row(values); err != nil {
			return false, errors.Trace(err)
		}
	}
}

// readUntilEOF discards packets up to the next EOF. The prepare
// response uses it to skip parameter definitions.
func (c *Conn) readUntilEOF() error {
	for {
		data, err := c.readPacket()
		if err != nil {
			return errors.Trace(err)
		}
		if protocol.IsEOFPacket(data) {
			return nil
		}
	}
}
