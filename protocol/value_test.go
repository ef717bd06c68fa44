package protocol

import (
	"math"

	. "gopkg.in/check.v1"
)

var _ = Suite(&testValueSuite{})

type testValueSuite struct {
}

func (s *testValueSuite) TestWidenFloat32(c *C) {
	c.Assert(WidenFloat32(0.1), Equals, 0.1)
	c.Assert(WidenFloat32(0.1), Not(Equals), float64(float32(0.1)))

	c.Assert(WidenFloat32(1.5), Equals, 1.5)
	c.Assert(WidenFloat32(0), Equals, 0.0)
	c.Assert(WidenFloat32(-123.456), Equals, -123.456)
	c.Assert(math.IsInf(WidenFloat32(float32(math.Inf(1))), 1), Equals, true)
}

func (s *testValueSuite) TestTemporalStrings(c *C) {
	c.Assert(Date{Year: 2024, Month: 1, Day: 2}.String(), Equals, "2024-01-02")

	dt := DateTime{Year: 2024, Month: 1, Day: 2, Hour: 3, Minute: 4, Second: 5}
	c.Assert(dt.String(), Equals, "2024-01-02 03:04:05")
	dt.Microsecond = 60000
	c.Assert(dt.String(), Equals, "2024-01-02 03:04:05.060000")

	d := Duration{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}
	c.Assert(d.String(), Equals, "26:03:04")
	d.Negative = true
	d.Microsecond = 7
	c.Assert(d.String(), Equals, "-26:03:04.000007")
}

func (s *testValueSuite) TestZeroSentinels(c *C) {
	c.Assert(Date{}.IsZero(), Equals, true)
	c.Assert(Date{Year: 1}.IsZero(), Equals, false)
	c.Assert(DateTime{}.IsZero(), Equals, true)
	c.Assert(DateTime{Microsecond: 1}.IsZero(), Equals, false)
}
