// Package client implements the result-set path of the MySQL wire
// protocol from the client side: queries and prepared-statement
// executions in, typed rows out. Two backends satisfy the same
// capability interface, a native protocol implementation and a shim
// over database/sql.
package client

import (
	"github.com/juju/errors"
)

// QueryFirst runs sql and returns the first row of the first result
// set. ErrNoRows when the result is empty.
func QueryFirst(b Backend, sql string) (Row, error) {
	res, err := b.Query(sql)
	if err != nil {
		return Row{}, errors.Trace(err)
	}
	row, ok := res.FirstRow()
	if !ok {
		return Row{}, errors.Trace(ErrNoRows)
	}
	return row, nil
}

// QueryDrop runs sql and discards whatever comes back.
func QueryDrop(b Backend, sql string) error {
	_, err := b.Query(sql)
	return errors.Trace(err)
}

// ExecFirst runs parameterized sql and returns the first row of the
// first result set. ErrNoRows when the result is empty.
func ExecFirst(b Backend, sql string, args ...interface{}) (Row, error) {
	res, err := b.Exec(sql, args...)
	if err != nil {
		return Row{}, errors.Trace(err)
	}
	row, ok := res.FirstRow()
	if !ok {
		return Row{}, errors.Trace(ErrNoRows)
	}
	return row, nil
}

// ExecDrop runs parameterized sql and discards any rows. The returned
// result still carries affected rows and the last insert id.
func ExecDrop(b Backend, sql string, args ...interface{}) (*Result, error) {
	res, err := b.Exec(sql, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return res, nil
}
