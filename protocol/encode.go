package protocol

import (
	"math"
	"strconv"

	"github.com/juju/errors"
)

// DumpBinaryRow serializes one row into a binary-protocol row packet
// payload (header byte, NULL bitmap, values). The inverse of
// ParseBinaryRow; used by the test harness to script server responses.
func DumpBinaryRow(columns []*ColumnInfo, row []interface{}) ([]byte, error) {
	if len(columns) != len(row) {
		return nil, errors.Trace(ErrMalformPacket)
	}

	data := make([]byte, 0, 16*len(row))
	data = append(data, OKHeader)

	nullsLen := (len(columns) + 7 + 2) / 8
	nulls := make([]byte, nullsLen)
	for i, val := range row {
		if val == nil {
			nulls[(i+2)/8] |= 1 << (uint(i+2) % 8)
		}
	}
	data = append(data, nulls...)

	for i, val := range row {
		if val == nil {
			continue
		}
		valData, err := DumpBinaryValue(columns[i].Type, val)
		if err != nil {
			return nil, errors.Trace(err)
		}
		data = append(data, valData...)
	}
	return data, nil
}

// DumpBinaryValue serializes one non-NULL value in its binary-protocol
// form for the given column type.
func DumpBinaryValue(tp byte, val interface{}) ([]byte, error) {
	switch tp {
	case TypeTiny:
		switch v := val.(type) {
		case int64:
			return []byte{byte(v)}, nil
		case uint64:
			return []byte{byte(v)}, nil
		}

	case TypeShort, TypeYear:
		switch v := val.(type) {
		case int64:
			return Uint16ToBytes(uint16(v)), nil
		case uint64:
			return Uint16ToBytes(uint16(v)), nil
		}

	case TypeInt24, TypeLong:
		switch v := val.(type) {
		case int64:
			return Uint32ToBytes(uint32(v)), nil
		case uint64:
			return Uint32ToBytes(uint32(v)), nil
		}

	case TypeLonglong:
		switch v := val.(type) {
		case int64:
			return Uint64ToBytes(uint64(v)), nil
		case uint64:
			return Uint64ToBytes(v), nil
		}

	case TypeFloat:
		if v, ok := val.(float64); ok {
			return Uint32ToBytes(math.Float32bits(float32(v))), nil
		}

	case TypeDouble:
		if v, ok := val.(float64); ok {
			return Uint64ToBytes(math.Float64bits(v)), nil
		}

	case TypeDecimal, TypeNewDecimal:
		if v, ok := val.(Decimal); ok {
			return PutLengthEncodedString([]byte(v)), nil
		}

	case TypeVarchar, TypeVarString, TypeString, TypeEnum, TypeSet,
		TypeJSON, TypeBlob, TypeTinyBlob, TypeMediumBlob, TypeLongBlob,
		TypeBit, TypeGeometry:
		switch v := val.(type) {
		case string:
			return PutLengthEncodedString([]byte(v)), nil
		case []byte:
			return PutLengthEncodedString(v), nil
		}

	case TypeDate, TypeNewDate:
		if v, ok := val.(Date); ok {
			data := make([]byte, 0, 5)
			data = append(data, 4)
			data = append(data, Uint16ToBytes(v.Year)...)
			data = append(data, v.Month, v.Day)
			return data, nil
		}

	case TypeTimestamp, TypeDatetime:
		if v, ok := val.(DateTime); ok {
			if v.Microsecond > 0 {
				data := make([]byte, 0, 12)
				data = append(data, 11)
				data = append(data, Uint16ToBytes(v.Year)...)
				data = append(data, v.Month, v.Day, v.Hour, v.Minute, v.Second)
				data = append(data, Uint32ToBytes(v.Microsecond)...)
				return data, nil
			}
			data := make([]byte, 0, 8)
			data = append(data, 7)
			data = append(data, Uint16ToBytes(v.Year)...)
			data = append(data, v.Month, v.Day, v.Hour, v.Minute, v.Second)
			return data, nil
		}

	case TypeDuration:
		if v, ok := val.(Duration); ok {
			var sign byte
			if v.Negative {
				sign = 1
			}
			if v.Microsecond > 0 {
				data := make([]byte, 0, 13)
				data = append(data, 12, sign)
				data = append(data, Uint32ToBytes(v.Days)...)
				data = append(data, v.Hours, v.Minutes, v.Seconds)
				data = append(data, Uint32ToBytes(v.Microsecond)...)
				return data, nil
			}
			data := make([]byte, 0, 9)
			data = append(data, 8, sign)
			data = append(data, Uint32ToBytes(v.Days)...)
			data = append(data, v.Hours, v.Minutes, v.Seconds)
			return data, nil
		}
	}

	return nil, errors.Errorf("cannot encode %T as column type %d", val, tp)
}

// DumpTextRow serializes one row into a text-protocol row packet
// payload: every cell a length-prefixed string, NULL as 0xfb.
func DumpTextRow(columns []*ColumnInfo, row []interface{}) ([]byte, error) {
	if len(columns) != len(row) {
		return nil, errors.Trace(ErrMalformPacket)
	}

	data := make([]byte, 0, 16*len(row))
	for _, val := range row {
		if val == nil {
			data = append(data, 0xfb)
			continue
		}
		valData, err := DumpTextValue(val)
		if err != nil {
			return nil, errors.Trace(err)
		}
		data = append(data, PutLengthEncodedString(valData)...)
	}
	return data, nil
}

// DumpTextValue formats one non-NULL value in its text-protocol form.
func DumpTextValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
	case Decimal:
		return []byte(v), nil
	case Date:
		return []byte(v.String()), nil
	case DateTime:
		return []byte(v.String()), nil
	case Duration:
		return []byte(v.String()), nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return nil, errors.Errorf("invalid type %T", value)
}
