package protocol

import (
	"io"
)

var tinyIntCache [251][]byte

func init() {
	for i := 0; i < len(tinyIntCache); i++ {
		tinyIntCache[i] = []byte{byte(i)}
	}
}

// LengthEncodedInt reads a length-encoded integer from b.
// Returns the value, whether the marker was the NULL byte, and the
// number of bytes consumed.
func LengthEncodedInt(b []byte) (num uint64, isNull bool, n int) {
	if len(b) == 0 {
		return 0, false, 0
	}

	switch b[0] {
	// 251: NULL
	case 0xfb:
		n = 1
		isNull = true
		return

	// 252: value of following 2
	case 0xfc:
		if len(b) < 3 {
			return 0, false, 0
		}
		num = uint64(b[1]) | uint64(b[2])<<8
		n = 3
		return

	// 253: value of following 3
	case 0xfd:
		if len(b) < 4 {
			return 0, false, 0
		}
		num = uint64(b[1]) | uint64(b[2])<<8 | uint64(b[3])<<16
		n = 4
		return

	// 254: value of following 8
	case 0xfe:
		if len(b) < 9 {
			return 0, false, 0
		}
		num = uint64(b[1]) | uint64(b[2])<<8 | uint64(b[3])<<16 |
			uint64(b[4])<<24 | uint64(b[5])<<32 | uint64(b[6])<<40 |
			uint64(b[7])<<48 | uint64(b[8])<<56
		n = 9
		return
	}

	// 0-250: value of first byte
	num = uint64(b[0])
	n = 1
	return
}

// PutLengthEncodedInt appends the length-encoded form of n.
func PutLengthEncodedInt(n uint64) []byte {
	switch {
	case n <= 250:
		return tinyIntCache[n]

	case n <= 0xffff:
		return []byte{0xfc, byte(n), byte(n >> 8)}

	case n <= 0xffffff:
		return []byte{0xfd, byte(n), byte(n >> 8), byte(n >> 16)}
	}

	return []byte{0xfe, byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56)}
}

// LengthEncodedBytes reads a length-prefixed byte string. The returned
// slice aliases b; callers that keep it past the current decode pass
// must copy.
func LengthEncodedBytes(b []byte) ([]byte, bool, int, error) {
	num, isNull, n := LengthEncodedInt(b)
	if n == 0 {
		return nil, false, 0, io.EOF
	}
	if num < 1 {
		return nil, isNull, n, nil
	}

	n += int(num)

	if len(b) >= n {
		return b[n-int(num) : n], false, n, nil
	}

	return nil, false, n, io.EOF
}

// SkipLengthEncodedString advances past one length-prefixed string.
func SkipLengthEncodedString(b []byte) (int, error) {
	num, _, n := LengthEncodedInt(b)
	if n == 0 {
		return 0, io.EOF
	}
	if num < 1 {
		return n, nil
	}

	n += int(num)

	if len(b) >= n {
		return n, nil
	}
	return n, io.EOF
}

// PutLengthEncodedString appends a length-prefixed byte string.
func PutLengthEncodedString(b []byte) []byte {
	data := make([]byte, 0, len(b)+9)
	data = append(data, PutLengthEncodedInt(uint64(len(b)))...)
	data = append(data, b...)
	return data
}

func Uint16ToBytes(n uint16) []byte {
	return []byte{
		byte(n),
		byte(n >> 8),
	}
}

func Uint32ToBytes(n uint32) []byte {
	return []byte{
		byte(n),
		byte(n >> 8),
		byte(n >> 16),
		byte(n >> 24),
	}
}

func Uint64ToBytes(n uint64) []byte {
	return []byte{
		byte(n),
		byte(n >> 8),
		byte(n >> 16),
		byte(n >> 24),
		byte(n >> 32),
		byte(n >> 40),
		byte(n >> 48),
		byte(n >> 56),
	}
}
