package protocol

import (
	. "gopkg.in/check.v1"
)

var _ = Suite(&testUtilSuite{})

type testUtilSuite struct {
}

func (s *testUtilSuite) TestLengthEncodedInt(c *C) {
	for _, num := range []uint64{0, 250, 251, 65535, 65536, 16777215, 16777216, 1<<64 - 1} {
		data := PutLengthEncodedInt(num)
		got, isNull, n := LengthEncodedInt(data)
		c.Assert(isNull, Equals, false)
		c.Assert(n, Equals, len(data))
		c.Assert(got, Equals, num)
	}
}

func (s *testUtilSuite) TestLengthEncodedIntNull(c *C) {
	_, isNull, n := LengthEncodedInt([]byte{0xfb})
	c.Assert(isNull, Equals, true)
	c.Assert(n, Equals, 1)
}

func (s *testUtilSuite) TestLengthEncodedIntTruncated(c *C) {
	// multi-byte prefixes with the tail missing
	for _, data := range [][]byte{{}, {0xfc}, {0xfd, 1}, {0xfe, 1, 2, 3}} {
		_, _, n := LengthEncodedInt(data)
		c.Assert(n, Equals, 0)
	}
}

func (s *testUtilSuite) TestLengthEncodedBytes(c *C) {
	for _, str := range []string{"", "a", "hello", string(make([]byte, 300))} {
		data := PutLengthEncodedString([]byte(str))
		got, isNull, n, err := LengthEncodedBytes(data)
		c.Assert(err, IsNil)
		c.Assert(isNull, Equals, false)
		c.Assert(n, Equals, len(data))
		c.Assert(string(got), Equals, str)
	}
}

func (s *testUtilSuite) TestLengthEncodedBytesNull(c *C) {
	v, isNull, n, err := LengthEncodedBytes([]byte{0xfb})
	c.Assert(err, IsNil)
	c.Assert(isNull, Equals, true)
	c.Assert(n, Equals, 1)
	c.Assert(v, IsNil)
}

func (s *testUtilSuite) TestSkipLengthEncodedString(c *C) {
	data := PutLengthEncodedString([]byte("skip me"))
	data = append(data, 0xff)
	n, err := SkipLengthEncodedString(data)
	c.Assert(err, IsNil)
	c.Assert(n, Equals, len(data)-1)
}
