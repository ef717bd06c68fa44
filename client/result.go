package client

import (
	"github.com/elbaro/gomysql/protocol"
)

// Row is one materialized result row. It is immutable once built and
// may outlive the connection that produced it.
type Row struct {
	columns []*protocol.ColumnInfo
	values  []interface{}
}

func NewRow(columns []*protocol.ColumnInfo, values []interface{}) Row {
	return Row{columns: columns, values: values}
}

// Len returns the number of cells, always equal to the column count of
// the owning result set.
func (r Row) Len() int {
	return len(r.values)
}

// Values is the ordered view of the row.
func (r Row) Values() []interface{} {
	return r.values
}

// Map is the name-keyed view of the row. Duplicate column names keep
// the last value.
func (r Row) Map() map[string]interface{} {
	m := make(map[string]interface{}, len(r.values))
	for i, column := range r.columns {
		m[column.Name] = r.values[i]
	}
	return m
}

// Get returns the value of the named column. With duplicate names the
// last column wins, matching Map.
func (r Row) Get(name string) (interface{}, bool) {
	for i := len(r.columns) - 1; i >= 0; i-- {
		if r.columns[i].Name == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// ResultSet is one complete set of columns plus rows produced by a
// single statement. Binary records which protocol produced it.
type ResultSet struct {
	Columns []*protocol.ColumnInfo
	Rows    []Row
	Binary  bool
}

// Result is the outcome of one execution: either one or more result
// sets, or the no-result-set shape. AffectedRows and LastInsertID are
// only meaningful when Sets is empty.
type Result struct {
	Sets []*ResultSet

	AffectedRows uint64
	LastInsertID uint64
	Status       uint16
	Warnings     uint16
}

// HasResultSet reports whether the execution produced rows.
func (r *Result) HasResultSet() bool {
	return len(r.Sets) > 0
}

// FirstRow returns the first row of the first result set.
func (r *Result) FirstRow() (Row, bool) {
	if len(r.Sets) == 0 || len(r.Sets[0].Rows) == 0 {
		return Row{}, false
	}
	return r.Sets[0].Rows[0], true
}
