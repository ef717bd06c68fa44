package client

import (
	"github.com/juju/errors"
	"github.com/reborndb/go/errors2"
)

var (
	// ErrConnClosed reports an operation on a closed connection.
	ErrConnClosed = errors.New("connection is closed")

	// ErrNoRows reports a first-row request against an empty result.
	ErrNoRows = errors.New("no rows in result set")
)

// ErrorEqual reports whether the causes of the two errors are equal.
func ErrorEqual(err1, err2 error) bool {
	return errors2.ErrorEqual(err1, err2)
}

// ErrorNotEqual reports whether the causes of the two errors differ.
func ErrorNotEqual(err1, err2 error) bool {
	return errors2.ErrorNotEqual(err1, err2)
}
