package protocol

import (
	"fmt"
	"strconv"
)

// A decoded cell is one of:
//
//	nil        SQL NULL
//	int64      signed integers (TINY..LONGLONG, YEAR)
//	uint64     unsigned integers
//	float64    FLOAT/DOUBLE (FLOAT widened, see WidenFloat32)
//	[]byte     binary-charset strings, BLOB, BIT, GEOMETRY
//	string     text-charset strings, ENUM, SET, JSON
//	Decimal    DECIMAL/NEWDECIMAL, exact textual form
//	Date       DATE
//	DateTime   DATETIME/TIMESTAMP
//	Duration   TIME
//
// Decode never produces a partially filled value: a malformed cell
// fails the whole row.

// Decimal is the exact textual form of a DECIMAL value. It is never
// parsed into a binary float.
type Decimal string

func (d Decimal) String() string { return string(d) }

// Date is a calendar date without a time component.
type Date struct {
	Year  uint16
	Month uint8
	Day   uint8
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports the 0000-00-00 sentinel.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// DateTime is a calendar date with a time-of-day component.
type DateTime struct {
	Year        uint16
	Month       uint8
	Day         uint8
	Hour        uint8
	Minute      uint8
	Second      uint8
	Microsecond uint32
}

func (t DateTime) String() string {
	if t.Microsecond > 0 {
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d",
			t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second, t.Microsecond)
	}
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// IsZero reports the 0000-00-00 00:00:00 sentinel.
func (t DateTime) IsZero() bool {
	return t.Year == 0 && t.Month == 0 && t.Day == 0 &&
		t.Hour == 0 && t.Minute == 0 && t.Second == 0 && t.Microsecond == 0
}

// Duration is a signed TIME interval. MySQL TIME may exceed 24 hours;
// the day component carries the overflow.
type Duration struct {
	Negative    bool
	Days        uint32
	Hours       uint8
	Minutes     uint8
	Seconds     uint8
	Microsecond uint32
}

func (d Duration) String() string {
	sign := ""
	if d.Negative {
		sign = "-"
	}
	totalHours := d.Days*24 + uint32(d.Hours)
	if d.Microsecond > 0 {
		return fmt.Sprintf("%s%02d:%02d:%02d.%06d",
			sign, totalHours, d.Minutes, d.Seconds, d.Microsecond)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, totalHours, d.Minutes, d.Seconds)
}

// WidenFloat32 converts a wire FLOAT to float64 by round-tripping
// through the shortest 32-bit decimal representation. A direct
// float64(f) conversion drags the binary approximation error of the
// 32-bit value into extra decimal digits; re-parsing the shortest
// decimal form keeps exactly the digits the original value carried.
func WidenFloat32(f float32) float64 {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	d, _ := strconv.ParseFloat(s, 64)
	return d
}
