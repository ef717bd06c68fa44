package protocol

import (
	"fmt"

	"github.com/juju/errors"
)

// OKPacket is a parsed OK (or terminating EOF) packet.
// https://dev.mysql.com/doc/internals/en/packet-OK_Packet.html
type OKPacket struct {
	AffectedRows uint64
	LastInsertID uint64
	Status       uint16
	Warnings     uint16
	Info         []byte
}

// MoreResults reports whether another result set follows this one.
func (p *OKPacket) MoreResults() bool {
	return p.Status&ServerMoreResultsExists > 0
}

// ParseOKPacket parses an OK packet payload, header byte included.
func ParseOKPacket(data []byte, capability uint32) (*OKPacket, error) {
	if len(data) < 1 || data[0] != OKHeader {
		return nil, errors.Trace(ErrMalformPacket)
	}

	p := new(OKPacket)
	var n, m int
	pos := 1

	p.AffectedRows, _, n = LengthEncodedInt(data[pos:])
	if n == 0 {
		return nil, errors.Trace(ErrMalformPacket)
	}
	pos += n
	p.LastInsertID, _, m = LengthEncodedInt(data[pos:])
	if m == 0 {
		return nil, errors.Trace(ErrMalformPacket)
	}
	pos += m

	if capability&ClientProtocol41 > 0 {
		if len(data) < pos+4 {
			return nil, errors.Trace(ErrMalformPacket)
		}
		p.Status = uint16(data[pos]) | uint16(data[pos+1])<<8
		pos += 2
		p.Warnings = uint16(data[pos]) | uint16(data[pos+1])<<8
		pos += 2
	}
	p.Info = data[pos:]
	return p, nil
}

// Dump serializes the packet back into an OK payload.
func (p *OKPacket) Dump(capability uint32) []byte {
	data := make([]byte, 0, 16+len(p.Info))
	data = append(data, OKHeader)
	data = append(data, PutLengthEncodedInt(p.AffectedRows)...)
	data = append(data, PutLengthEncodedInt(p.LastInsertID)...)
	if capability&ClientProtocol41 > 0 {
		data = append(data, byte(p.Status), byte(p.Status>>8))
		data = append(data, byte(p.Warnings), byte(p.Warnings>>8))
	}
	data = append(data, p.Info...)
	return data
}

// EOFPacket is a parsed non-terminating EOF packet.
type EOFPacket struct {
	Warnings uint16
	Status   uint16
}

// MoreResults reports whether another result set follows this one.
func (p *EOFPacket) MoreResults() bool {
	return p.Status&ServerMoreResultsExists > 0
}

// ParseEOFPacket parses an EOF packet payload, header byte included.
func ParseEOFPacket(data []byte, capability uint32) (*EOFPacket, error) {
	if len(data) < 1 || data[0] != EOFHeader || len(data) > 5 {
		return nil, errors.Trace(ErrMalformPacket)
	}
	p := new(EOFPacket)
	if capability&ClientProtocol41 > 0 {
		if len(data) < 5 {
			return nil, errors.Trace(ErrMalformPacket)
		}
		p.Warnings = uint16(data[1]) | uint16(data[2])<<8
		p.Status = uint16(data[3]) | uint16(data[4])<<8
	}
	return p, nil
}

// Dump serializes the packet back into an EOF payload.
func (p *EOFPacket) Dump(capability uint32) []byte {
	if capability&ClientProtocol41 > 0 {
		return []byte{EOFHeader,
			byte(p.Warnings), byte(p.Warnings >> 8),
			byte(p.Status), byte(p.Status >> 8)}
	}
	return []byte{EOFHeader}
}

// IsEOFPacket reports whether the payload is an EOF packet rather than
// a row whose first length-encoded integer starts with 0xfe.
func IsEOFPacket(data []byte) bool {
	return len(data) > 0 && data[0] == EOFHeader && len(data) <= 5
}

// SQLError is an error reported by the server in an ERR packet.
type SQLError struct {
	Code    uint16
	State   string
	Message string
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.State, e.Message)
}

// ParseErrorPacket parses an ERR packet payload, header byte included.
func ParseErrorPacket(data []byte, capability uint32) (*SQLError, error) {
	if len(data) < 3 || data[0] != ErrHeader {
		return nil, errors.Trace(ErrMalformPacket)
	}

	e := new(SQLError)
	pos := 1
	e.Code = uint16(data[pos]) | uint16(data[pos+1])<<8
	pos += 2

	if capability&ClientProtocol41 > 0 {
		if len(data) < pos+6 || data[pos] != '#' {
			return nil, errors.Trace(ErrMalformPacket)
		}
		pos++
		e.State = string(data[pos : pos+5])
		pos += 5
	}
	e.Message = string(data[pos:])
	return e, nil
}

// Dump serializes the error back into an ERR payload.
func (e *SQLError) Dump(capability uint32) []byte {
	data := make([]byte, 0, 9+len(e.Message))
	data = append(data, ErrHeader)
	data = append(data, byte(e.Code), byte(e.Code>>8))
	if capability&ClientProtocol41 > 0 {
		data = append(data, '#')
		data = append(data, e.State...)
	}
	data = append(data, e.Message...)
	return data
}

// NewSQLError builds a server error with a formatted message.
func NewSQLError(code uint16, state, format string, args ...interface{}) *SQLError {
	if state == "" {
		state = "HY000"
	}
	return &SQLError{
		Code:    code,
		State:   state,
		Message: fmt.Sprintf(format, args...),
	}
}
