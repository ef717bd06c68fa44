package client

import (
	"bufio"
	"fmt"
	"io"
	"net"

	"github.com/elbaro/gomysql/protocol"
	"github.com/juju/errors"
)

// PacketIO frames payloads into wire packets: a 3-byte little-endian
// length, a sequence byte, then the payload. Payloads at MaxPayloadLen
// continue in the next packet.
type PacketIO struct {
	rb *bufio.Reader
	wb *bufio.Writer

	Sequence uint8
}

func NewPacketIO(conn net.Conn) *PacketIO {
	p := &PacketIO{
		rb: bufio.NewReaderSize(conn, 2048),
		wb: bufio.NewWriterSize(conn, 2048),
	}

	return p
}

func (p *PacketIO) ReadPacket() ([]byte, error) {
	header := []byte{0, 0, 0, 0}

	if _, err := io.ReadFull(p.rb, header); err != nil {
		return nil, errors.Trace(err)
	}

	length := int(uint32(header[0]) | uint32(header[1])<<8 | uint32(header[2])<<16)
	if length < 1 {
		return nil, errors.Trace(fmt.Errorf("invalid payload length %d", length))
	}

	sequence := uint8(header[3])
	if sequence != p.Sequence {
		return nil, errors.Trace(fmt.Errorf("invalid sequence %d != %d", sequence, p.Sequence))
	}

	p.Sequence++

	data := make([]byte, length)
	if _, err := io.ReadFull(p.rb, data); err != nil {
		return nil, errors.Trace(err)
	}

	if length < protocol.MaxPayloadLen {
		return data, nil
	}

	buf, err := p.ReadPacket()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return append(data, buf...), nil
}

// WritePacket fills in the 4 header bytes the caller reserved at the
// front of data.
func (p *PacketIO) WritePacket(data []byte) error {
	length := len(data) - 4

	for length >= protocol.MaxPayloadLen {
		data[0] = 0xff
		data[1] = 0xff
		data[2] = 0xff

		data[3] = p.Sequence

		if n, err := p.wb.Write(data[:4+protocol.MaxPayloadLen]); err != nil {
			return errors.Trace(protocol.ErrBadConn)
		} else if n != (4 + protocol.MaxPayloadLen) {
			return errors.Trace(protocol.ErrBadConn)
		}

		p.Sequence++
		length -= protocol.MaxPayloadLen
		data = data[protocol.MaxPayloadLen:]
	}

	data[0] = byte(length)
	data[1] = byte(length >> 8)
	data[2] = byte(length >> 16)
	data[3] = p.Sequence

	if n, err := p.wb.Write(data); err != nil {
		return errors.Trace(protocol.ErrBadConn)
	} else if n != len(data) {
		return errors.Trace(protocol.ErrBadConn)
	}

	p.Sequence++
	return nil
}

func (p *PacketIO) Flush() error {
	return p.wb.Flush()
}
