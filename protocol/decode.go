package protocol

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// ParseBinaryRow decodes one binary-protocol row packet into one value
// per column. The row header byte must be 0x00; it is followed by a
// NULL bitmap of ceil((n+2)/8) bytes (the first two bits are reserved),
// then the non-NULL values in column order.
func ParseBinaryRow(columns []*ColumnInfo, rowData []byte) ([]interface{}, error) {
	if len(rowData) == 0 || rowData[0] != OKHeader {
		return nil, errors.Trace(ErrMalformPacket)
	}

	values := make([]interface{}, len(columns))

	pos := 1 + ((len(columns) + 7 + 2) >> 3)
	if len(rowData) < pos {
		return nil, errors.Trace(ErrMalformPacket)
	}
	nullBitmap := rowData[1:pos]

	for i := range values {
		if nullBitmap[(i+2)/8]&(1<<(uint(i+2)%8)) > 0 {
			values[i] = nil
			continue
		}

		v, n, err := DecodeBinaryValue(columns[i], rowData[pos:])
		if err != nil {
			return nil, errors.Trace(err)
		}
		values[i] = v
		pos += n
	}

	if pos != len(rowData) {
		return nil, errors.Trace(ErrMalformPacket)
	}
	return values, nil
}

// DecodeBinaryValue decodes a single non-NULL binary-protocol value.
// Returns the decoded value and the number of bytes consumed.
func DecodeBinaryValue(column *ColumnInfo, data []byte) (interface{}, int, error) {
	isUnsigned := column.IsUnsigned()

	switch column.Type {
	case TypeNull:
		return nil, 0, nil

	case TypeTiny:
		if len(data) < 1 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		if isUnsigned {
			return uint64(data[0]), 1, nil
		}
		return int64(int8(data[0])), 1, nil

	case TypeShort, TypeYear:
		if len(data) < 2 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		v := binary.LittleEndian.Uint16(data)
		if isUnsigned {
			return uint64(v), 2, nil
		}
		return int64(int16(v)), 2, nil

	case TypeInt24, TypeLong:
		if len(data) < 4 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		v := binary.LittleEndian.Uint32(data)
		if isUnsigned {
			return uint64(v), 4, nil
		}
		return int64(int32(v)), 4, nil

	case TypeLonglong:
		if len(data) < 8 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		v := binary.LittleEndian.Uint64(data)
		if isUnsigned {
			return v, 8, nil
		}
		return int64(v), 8, nil

	case TypeFloat:
		if len(data) < 4 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		f := math.Float32frombits(binary.LittleEndian.Uint32(data))
		return WidenFloat32(f), 4, nil

	case TypeDouble:
		if len(data) < 8 {
			return nil, 0, errors.Trace(ErrMalformPacket)
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data)), 8, nil

	case TypeDecimal, TypeNewDecimal:
		v, isNull, n, err := LengthEncodedBytes(data)
		if err != nil {
			return nil, n, errors.Trace(err)
		}
		if isNull {
			return nil, n, nil
		}
		return Decimal(v), n, nil

	case TypeVarchar, TypeVarString, TypeString, TypeEnum, TypeSet,
		TypeJSON, TypeBlob, TypeTinyBlob, TypeMediumBlob, TypeLongBlob,
		TypeBit, TypeGeometry:
		v, isNull, n, err := LengthEncodedBytes(data)
		if err != nil {
			return nil, n, errors.Trace(err)
		}
		if isNull {
			return nil, n, nil
		}
		// binary charset decides bytes vs text, before any text handling
		if column.IsBinary() || column.Type == TypeBit || column.Type == TypeGeometry {
			return v, n, nil
		}
		return string(v), n, nil

	case TypeDate, TypeNewDate:
		return decodeBinaryDate(data, false)

	case TypeTimestamp, TypeDatetime:
		return decodeBinaryDate(data, true)

	case TypeDuration:
		return decodeBinaryDuration(data)
	}

	return nil, 0, errors.Errorf("unknown column type %d for column %s", column.Type, column.Name)
}

// decodeBinaryDate reads the length-prefixed temporal encodings:
// 0 bytes is the zero-date sentinel (NULL), 4 bytes is date-only,
// 7 adds time to the second, 11 adds microseconds.
func decodeBinaryDate(data []byte, asDateTime bool) (interface{}, int, error) {
	if len(data) < 1 {
		return nil, 0, errors.Trace(ErrMalformPacket)
	}
	length := int(data[0])
	if len(data) < 1+length {
		return nil, 0, errors.Trace(ErrMalformPacket)
	}
	data = data[1 : 1+length]

	switch length {
	case 0:
		return nil, 1, nil

	case 4:
		if asDateTime {
			return DateTime{
				Year:  binary.LittleEndian.Uint16(data),
				Month: data[2],
				Day:   data[3],
			}, 5, nil
		}
		return Date{
			Year:  binary.LittleEndian.Uint16(data),
			Month: data[2],
			Day:   data[3],
		}, 5, nil

	case 7:
		return DateTime{
			Year:   binary.LittleEndian.Uint16(data),
			Month:  data[2],
			Day:    data[3],
			Hour:   data[4],
			Minute: data[5],
			Second: data[6],
		}, 8, nil

	case 11:
		return DateTime{
			Year:        binary.LittleEndian.Uint16(data),
			Month:       data[2],
			Day:         data[3],
			Hour:        data[4],
			Minute:      data[5],
			Second:      data[6],
			Microsecond: binary.LittleEndian.Uint32(data[7:11]),
		}, 12, nil
	}

	return nil, 0, errors.Errorf("invalid datetime packet length %d", length)
}

// decodeBinaryDuration reads the length-prefixed TIME encodings:
// 0 bytes is the zero-time sentinel (NULL), 8 bytes carries
// sign/days/h/m/s, 12 adds microseconds.
func decodeBinaryDuration(data []byte) (interface{}, int, error) {
	if len(data) < 1 {
		return nil, 0, errors.Trace(ErrMalformPacket)
	}
	length := int(data[0])
	if len(data) < 1+length {
		return nil, 0, errors.Trace(ErrMalformPacket)
	}
	data = data[1 : 1+length]

	switch length {
	case 0:
		return nil, 1, nil

	case 8:
		return Duration{
			Negative: data[0] == 1,
			Days:     binary.LittleEndian.Uint32(data[1:5]),
			Hours:    data[5],
			Minutes:  data[6],
			Seconds:  data[7],
		}, 9, nil

	case 12:
		return Duration{
			Negative:    data[0] == 1,
			Days:        binary.LittleEndian.Uint32(data[1:5]),
			Hours:       data[5],
			Minutes:     data[6],
			Seconds:     data[7],
			Microsecond: binary.LittleEndian.Uint32(data[8:12]),
		}, 13, nil
	}

	return nil, 0, errors.Errorf("invalid time packet length %d", length)
}

// ParseTextRow decodes one text-protocol row packet. Every value is a
// length-prefixed byte string; the 0xfb marker byte signals NULL.
func ParseTextRow(columns []*ColumnInfo, rowData []byte) ([]interface{}, error) {
	values := make([]interface{}, len(columns))

	pos := 0
	for i, column := range columns {
		v, isNull, n, err := LengthEncodedBytes(rowData[pos:])
		if err != nil {
			return nil, errors.Trace(err)
		}
		pos += n

		if isNull {
			values[i] = nil
			continue
		}

		values[i], err = DecodeTextValue(column, v)
		if err != nil {
			return nil, errors.Trace(err)
		}
	}

	if pos != len(rowData) {
		return nil, errors.Trace(ErrMalformPacket)
	}
	return values, nil
}

// DecodeTextValue converts one textual cell using the same type
// dispatch as the binary path.
func DecodeTextValue(column *ColumnInfo, v []byte) (interface{}, error) {
	switch column.Type {
	case TypeNull:
		return nil, nil

	case TypeTiny, TypeShort, TypeInt24, TypeLong, TypeLonglong, TypeYear:
		if column.IsUnsigned() {
			u, err := strconv.ParseUint(string(v), 10, 64)
			if err != nil {
				return nil, errors.Trace(ErrMalformPacket)
			}
			return u, nil
		}
		i, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return nil, errors.Trace(ErrMalformPacket)
		}
		return i, nil

	case TypeFloat, TypeDouble:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, errors.Trace(ErrMalformPacket)
		}
		return f, nil

	case TypeDecimal, TypeNewDecimal:
		return Decimal(v), nil

	case TypeDate, TypeNewDate:
		return parseTextDate(string(v))

	case TypeTimestamp, TypeDatetime:
		return parseTextDateTime(string(v))

	case TypeDuration:
		return parseTextDuration(string(v))

	case TypeBit, TypeGeometry:
		return v, nil
	}

	if column.IsBinary() {
		return v, nil
	}
	return string(v), nil
}

const (
	zeroDateStr     = "0000-00-00"
	zeroDateTimeStr = "0000-00-00 00:00:00"
)

func parseTextDate(s string) (interface{}, error) {
	if s == zeroDateStr {
		return nil, nil
	}

	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return nil, errors.Trace(ErrMalformPacket)
	}

	year, err1 := strconv.ParseUint(parts[0], 10, 16)
	month, err2 := strconv.ParseUint(parts[1], 10, 8)
	day, err3 := strconv.ParseUint(parts[2], 10, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, errors.Trace(ErrMalformPacket)
	}

	return Date{Year: uint16(year), Month: uint8(month), Day: uint8(day)}, nil
}

func parseTextDateTime(s string) (interface{}, error) {
	if s == zeroDateStr || strings.HasPrefix(s, zeroDateTimeStr) {
		return nil, nil
	}

	datePart, timePart, found := strings.Cut(s, " ")
	if !found {
		return nil, errors.Trace(ErrMalformPacket)
	}

	d, err := parseTextDate(datePart)
	if err != nil {
		return nil, errors.Trace(err)
	}
	date, ok := d.(Date)
	if !ok {
		return nil, errors.Trace(ErrMalformPacket)
	}

	hour, minute, second, micro, err := parseClock(timePart)
	if err != nil {
		return nil, errors.Trace(err)
	}

	return DateTime{
		Year:        date.Year,
		Month:       date.Month,
		Day:         date.Day,
		Hour:        uint8(hour),
		Minute:      minute,
		Second:      second,
		Microsecond: micro,
	}, nil
}

func parseTextDuration(s string) (interface{}, error) {
	negative := false
	if rest, ok := strings.CutPrefix(s, "-"); ok {
		negative = true
		s = rest
	}

	// hours may exceed 24; the overflow becomes whole days
	hours, minute, second, micro, err := parseClock(s)
	if err != nil {
		return nil, errors.Trace(err)
	}

	// all-zero sentinel, same treatment as the zero-length binary form
	if hours == 0 && minute == 0 && second == 0 && micro == 0 {
		return nil, nil
	}

	return Duration{
		Negative:    negative,
		Days:        hours / 24,
		Hours:       uint8(hours % 24),
		Minutes:     minute,
		Seconds:     second,
		Microsecond: micro,
	}, nil
}

// parseClock parses [H]H:MM:SS with an optional fractional part padded
// right to microseconds.
func parseClock(s string) (hours uint32, minute, second uint8, micro uint32, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, 0, errors.Trace(ErrMalformPacket)
	}

	h, err1 := strconv.ParseUint(parts[0], 10, 32)
	m, err2 := strconv.ParseUint(parts[1], 10, 8)
	if err1 != nil || err2 != nil {
		return 0, 0, 0, 0, errors.Trace(ErrMalformPacket)
	}

	secPart, microPart, hasMicro := strings.Cut(parts[2], ".")
	sec, err3 := strconv.ParseUint(secPart, 10, 8)
	if err3 != nil {
		return 0, 0, 0, 0, errors.Trace(ErrMalformPacket)
	}

	var us uint64
	if hasMicro {
		if len(microPart) > 6 {
			microPart = microPart[:6]
		}
		for len(microPart) < 6 {
			microPart += "0"
		}
		us, err3 = strconv.ParseUint(microPart, 10, 32)
		if err3 != nil {
			return 0, 0, 0, 0, errors.Trace(ErrMalformPacket)
		}
	}

	return uint32(h), uint8(m), uint8(sec), uint32(us), nil
}
