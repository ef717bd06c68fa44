package protocol

import (
	"github.com/juju/errors"
	. "gopkg.in/check.v1"
)

var _ = Suite(&testPacketSuite{})

type testPacketSuite struct {
}

func (s *testPacketSuite) TestOKPacket(c *C) {
	p := &OKPacket{
		AffectedRows: 3,
		LastInsertID: 1000,
		Status:       ServerStatusAutocommit | ServerMoreResultsExists,
		Warnings:     1,
	}

	got, err := ParseOKPacket(p.Dump(DefaultCapability), DefaultCapability)
	c.Assert(err, IsNil)
	c.Assert(got.AffectedRows, Equals, uint64(3))
	c.Assert(got.LastInsertID, Equals, uint64(1000))
	c.Assert(got.Warnings, Equals, uint16(1))
	c.Assert(got.MoreResults(), Equals, true)

	got.Status &^= ServerMoreResultsExists
	c.Assert(got.MoreResults(), Equals, false)
}

func (s *testPacketSuite) TestOKPacketMalformed(c *C) {
	_, err := ParseOKPacket([]byte{ErrHeader}, DefaultCapability)
	c.Assert(errors.Cause(err), Equals, ErrMalformPacket)

	_, err = ParseOKPacket([]byte{OKHeader, 0xfc, 0x01}, DefaultCapability)
	c.Assert(errors.Cause(err), Equals, ErrMalformPacket)
}

func (s *testPacketSuite) TestEOFPacket(c *C) {
	p := &EOFPacket{Warnings: 2, Status: ServerStatusAutocommit}
	data := p.Dump(DefaultCapability)
	c.Assert(IsEOFPacket(data), Equals, true)

	got, err := ParseEOFPacket(data, DefaultCapability)
	c.Assert(err, IsNil)
	c.Assert(got.Warnings, Equals, uint16(2))
	c.Assert(got.MoreResults(), Equals, false)
}

func (s *testPacketSuite) TestIsEOFPacket(c *C) {
	c.Assert(IsEOFPacket([]byte{EOFHeader, 0, 0, 0, 0}), Equals, true)
	// a row whose first length-encoded integer uses the 8-byte prefix
	c.Assert(IsEOFPacket([]byte{0xfe, 1, 2, 3, 4, 5, 6, 7, 8}), Equals, false)
	c.Assert(IsEOFPacket(nil), Equals, false)
}

func (s *testPacketSuite) TestErrorPacket(c *C) {
	e := NewSQLError(1064, "42000", "syntax error near %q", "FROM")

	got, err := ParseErrorPacket(e.Dump(DefaultCapability), DefaultCapability)
	c.Assert(err, IsNil)
	c.Assert(got.Code, Equals, uint16(1064))
	c.Assert(got.State, Equals, "42000")
	c.Assert(got.Message, Equals, `syntax error near "FROM"`)
	c.Assert(got.Error(), Equals, `ERROR 1064 (42000): syntax error near "FROM"`)
}
