package protocol

import (
	"github.com/juju/errors"
)

// ColumnInfo is one parsed column-definition packet. It is built once
// per result set and never mutated afterwards.
type ColumnInfo struct {
	Schema             string
	Table              string
	OrgTable           string
	Name               string
	OrgName            string
	ColumnLength       uint32
	Charset            uint16
	Flag               uint16
	Decimal            uint8
	Type               byte
	DefaultValueLength uint64
	DefaultValue       []byte
}

// IsUnsigned reports whether integer bytes reinterpret as unsigned.
func (column *ColumnInfo) IsUnsigned() bool {
	return column.Flag&UnsignedFlag > 0
}

// IsBinary reports whether the column carries opaque bytes rather than
// text. The binary charset sentinel decides this, and it must be
// checked before any text validation of the payload.
func (column *ColumnInfo) IsBinary() bool {
	return column.Charset == BinaryCharsetID
}

// IsNullable reports whether the column admits NULL.
func (column *ColumnInfo) IsNullable() bool {
	return column.Flag&NotNullFlag == 0
}

// ParseColumnInfo parses a column-definition packet payload.
// https://dev.mysql.com/doc/internals/en/com-query-response.html#column-definition
func ParseColumnInfo(data []byte) (*ColumnInfo, error) {
	column := new(ColumnInfo)

	var n int
	var err error
	pos := 0

	// catalog, always "def"
	n, err = skipColumnString(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	column.Schema, n, err = readColumnString(data[pos:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	column.Table, n, err = readColumnString(data[pos:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	column.OrgTable, n, err = readColumnString(data[pos:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	column.Name, n, err = readColumnString(data[pos:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	column.OrgName, n, err = readColumnString(data[pos:])
	if err != nil {
		return nil, errors.Trace(err)
	}
	pos += n

	// length of fixed fields, always 0x0c
	pos++

	if len(data) < pos+10 {
		return nil, errors.Trace(ErrMalformPacket)
	}

	column.Charset = uint16(data[pos]) | uint16(data[pos+1])<<8
	pos += 2

	column.ColumnLength = uint32(data[pos]) | uint32(data[pos+1])<<8 |
		uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24
	pos += 4

	column.Type = data[pos]
	pos++

	column.Flag = uint16(data[pos]) | uint16(data[pos+1])<<8
	pos += 2

	column.Decimal = data[pos]
	pos++

	// 2 filler bytes
	pos += 2

	// default value, only present in COM_FIELD_LIST responses
	if pos < len(data) {
		var isNull bool
		column.DefaultValueLength, isNull, n = LengthEncodedInt(data[pos:])
		if n == 0 {
			return nil, errors.Trace(ErrMalformPacket)
		}
		pos += n
		if !isNull {
			if len(data) < pos+int(column.DefaultValueLength) {
				return nil, errors.Trace(ErrMalformPacket)
			}
			column.DefaultValue = data[pos : pos+int(column.DefaultValueLength)]
		}
	}

	return column, nil
}

// Dump serializes the column back into a definition packet payload.
// Used by the test harness to script server responses.
func (column *ColumnInfo) Dump() []byte {
	l := len(column.Schema) + len(column.Table) + len(column.OrgTable) +
		len(column.Name) + len(column.OrgName) + len(column.DefaultValue) + 48

	data := make([]byte, 0, l)

	data = append(data, PutLengthEncodedString([]byte("def"))...)
	data = append(data, PutLengthEncodedString([]byte(column.Schema))...)
	data = append(data, PutLengthEncodedString([]byte(column.Table))...)
	data = append(data, PutLengthEncodedString([]byte(column.OrgTable))...)
	data = append(data, PutLengthEncodedString([]byte(column.Name))...)
	data = append(data, PutLengthEncodedString([]byte(column.OrgName))...)

	data = append(data, 0x0c)

	data = append(data, Uint16ToBytes(column.Charset)...)
	data = append(data, Uint32ToBytes(column.ColumnLength)...)
	data = append(data, column.Type)
	data = append(data, Uint16ToBytes(column.Flag)...)
	data = append(data, column.Decimal)
	data = append(data, 0, 0)

	if column.DefaultValue != nil {
		data = append(data, PutLengthEncodedInt(uint64(len(column.DefaultValue)))...)
		data = append(data, column.DefaultValue...)
	}

	return data
}

func readColumnString(b []byte) (string, int, error) {
	v, _, n, err := LengthEncodedBytes(b)
	if err != nil {
		return "", n, errors.Trace(err)
	}
	return string(v), n, nil
}

func skipColumnString(b []byte) (int, error) {
	n, err := SkipLengthEncodedString(b)
	if err != nil {
		return n, errors.Trace(err)
	}
	return n, nil
}
