package protocol

import (
	"github.com/juju/errors"
)

var (
	// ErrMalformPacket reports a packet whose layout contradicts its
	// declared structure. It aborts the whole execution; no partial
	// result set is surfaced.
	ErrMalformPacket = errors.New("malformed packet")

	// ErrBadConn reports an unusable network connection.
	ErrBadConn = errors.New("connection was bad")
)
