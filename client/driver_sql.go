package client

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/elbaro/gomysql/protocol"
	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/ngaut/log"
)

// SQLBackend adapts a database/sql connection to the Backend
// interface. It pins a single pooled connection so that session state,
// and therefore the statement cache, stays coherent.
type SQLBackend struct {
	db   *sql.DB
	conn *sql.Conn
	ctx  context.Context

	stmts map[string]*sql.Stmt

	connectionID uint32
	affectedRows uint64
	lastInsertID uint64
}

// OpenSQL opens a go-sql-driver/mysql backed connection from a DSN
// like user:password@tcp(host:port)/dbname.
func OpenSQL(dsn string) (*SQLBackend, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Trace(err)
	}

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, errors.Trace(err)
	}

	b := &SQLBackend{
		db:    db,
		conn:  conn,
		ctx:   ctx,
		stmts: make(map[string]*sql.Stmt),
	}

	var id uint32
	if err := conn.QueryRowContext(ctx, "SELECT CONNECTION_ID()").Scan(&id); err != nil {
		conn.Close()
		db.Close()
		return nil, errors.Trace(err)
	}
	b.connectionID = id

	log.Infof("opened sql backend, connection id %d", id)
	return b, nil
}

func (b *SQLBackend) Ping() error {
	return errors.Trace(b.conn.PingContext(b.ctx))
}

func (b *SQLBackend) ConnectionID() uint32 {
	return b.connectionID
}

func (b *SQLBackend) AffectedRows() uint64 {
	return b.affectedRows
}

func (b *SQLBackend) LastInsertID() uint64 {
	return b.lastInsertID
}

// returnsRows reports whether the leading keyword produces a result
// set. database/sql hides the wire protocol, so the split between the
// query and exec paths has to come from the statement itself.
func returnsRows(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	if i := strings.IndexAny(trimmed, " \t\r\n("); i > 0 {
		trimmed = trimmed[:i]
	}
	switch strings.ToUpper(trimmed) {
	case "SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH":
		return true
	}
	return false
}

func (b *SQLBackend) Query(sqlText string) (*Result, error) {
	counter.Add("sql_query", 1)
	if !returnsRows(sqlText) {
		return b.execDirect(sqlText)
	}

	rows, err := b.conn.QueryContext(b.ctx, sqlText)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b.collectRows(rows, false)
}

func (b *SQLBackend) Exec(sqlText string, args ...interface{}) (*Result, error) {
	counter.Add("sql_exec", 1)
	stmt, err := b.getOrPrepare(sqlText)
	if err != nil {
		return nil, errors.Trace(err)
	}

	if returnsRows(sqlText) {
		rows, err := stmt.QueryContext(b.ctx, args...)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return b.collectRows(rows, true)
	}

	res, err := stmt.ExecContext(b.ctx, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b.resultOf(res)
}

func (b *SQLBackend) ExecBatch(sqlText string, batches [][]interface{}) (*Result, error) {
	stmt, err := b.getOrPrepare(sqlText)
	if err != nil {
		return nil, errors.Trace(err)
	}

	total := &Result{}
	for _, args := range batches {
		res, err := stmt.ExecContext(b.ctx, args...)
		if err != nil {
			return nil, errors.Trace(err)
		}
		one, err := b.resultOf(res)
		if err != nil {
			return nil, errors.Trace(err)
		}
		total.AffectedRows += one.AffectedRows
		total.LastInsertID = one.LastInsertID
	}
	b.affectedRows = total.AffectedRows
	return total, nil
}

// Reset drops every cached statement. Closing them deallocates the
// server-side handles, which matches what a session reset does to
// prepared statements.
func (b *SQLBackend) Reset() error {
	for _, stmt := range b.stmts {
		stmt.Close()
	}
	b.stmts = make(map[string]*sql.Stmt)
	return nil
}

func (b *SQLBackend) Close() error {
	for _, stmt := range b.stmts {
		stmt.Close()
	}
	b.stmts = make(map[string]*sql.Stmt)
	err := b.conn.Close()
	if dbErr := b.db.Close(); err == nil {
		err = dbErr
	}
	return errors.Trace(err)
}

func (b *SQLBackend) getOrPrepare(sqlText string) (*sql.Stmt, error) {
	if stmt, ok := b.stmts[sqlText]; ok {
		counter.Add("stmt_cache_hit", 1)
		return stmt, nil
	}

	counter.Add("stmt_cache_miss", 1)
	stmt, err := b.conn.PrepareContext(b.ctx, sqlText)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b.stmts[sqlText] = stmt
	return stmt, nil
}

func (b *SQLBackend) execDirect(sqlText string) (*Result, error) {
	res, err := b.conn.ExecContext(b.ctx, sqlText)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return b.resultOf(res)
}

func (b *SQLBackend) resultOf(res sql.Result) (*Result, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Trace(err)
	}
	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Trace(err)
	}

	b.affectedRows = uint64(affected)
	b.lastInsertID = uint64(lastID)
	return &Result{
		AffectedRows: uint64(affected),
		LastInsertID: uint64(lastID),
	}, nil
}

func (b *SQLBackend) collectRows(rows *sql.Rows, binary bool) (*Result, error) {
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errors.Trace(err)
	}

	columns := make([]*protocol.ColumnInfo, len(types))
	for i, t := range types {
		columns[i] = columnInfoOf(t)
	}

	set := &ResultSet{Columns: columns, Binary: binary}

	dest := make([]interface{}, len(columns))
	for i := range dest {
		dest[i] = new(interface{})
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Trace(err)
		}

		values := make([]interface{}, len(columns))
		for i := range dest {
			values[i] = convertSQLValue(*(dest[i].(*interface{})), columns[i])
		}
		set.Rows = append(set.Rows, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	return &Result{Sets: []*ResultSet{set}}, nil
}

func columnInfoOf(t *sql.ColumnType) *protocol.ColumnInfo {
	column := &protocol.ColumnInfo{Name: t.Name()}

	switch t.DatabaseTypeName() {
	case "TINYINT":
		column.Type = protocol.TypeTiny
	case "SMALLINT":
		column.Type = protocol.TypeShort
	case "INT", "MEDIUMINT":
		column.Type = protocol.TypeLong
	case "BIGINT":
		column.Type = protocol.TypeLonglong
	case "FLOAT":
		column.Type = protocol.TypeFloat
	case "DOUBLE":
		column.Type = protocol.TypeDouble
	case "DECIMAL":
		column.Type = protocol.TypeNewDecimal
	case "DATE":
		column.Type = protocol.TypeDate
	case "DATETIME":
		column.Type = protocol.TypeDatetime
	case "TIMESTAMP":
		column.Type = protocol.TypeTimestamp
	case "TIME":
		column.Type = protocol.TypeDuration
	case "JSON":
		column.Type = protocol.TypeJSON
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "VARBINARY", "BINARY", "GEOMETRY":
		column.Type = protocol.TypeBlob
		column.Charset = protocol.BinaryCharsetID
		column.Flag |= protocol.BinaryFlag
	default:
		column.Type = protocol.TypeVarString
		column.Charset = protocol.DefaultCollationID
	}

	if nullable, ok := t.Nullable(); ok && !nullable {
		column.Flag |= protocol.NotNullFlag
	}
	if length, ok := t.Length(); ok {
		column.ColumnLength = uint32(length)
	}

	return column
}

// convertSQLValue maps driver values onto the tagged value vocabulary
// the native backend produces, so both backends look identical to
// callers.
func convertSQLValue(v interface{}, column *protocol.ColumnInfo) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case int64:
		return val
	case uint64:
		return val
	case float64:
		return val
	case time.Time:
		return protocol.DateTime{
			Year:        uint16(val.Year()),
			Month:       uint8(val.Month()),
			Day:         uint8(val.Day()),
			Hour:        uint8(val.Hour()),
			Minute:      uint8(val.Minute()),
			Second:      uint8(val.Second()),
			Microsecond: uint32(val.Nanosecond() / 1000),
		}
	case []byte:
		decoded, err := protocol.DecodeTextValue(column, val)
		if err != nil {
			// fall back to the raw form rather than dropping the row
			if column.IsBinary() {
				return append([]byte(nil), val...)
			}
			return string(val)
		}
		// the driver reuses scan buffers between rows
		if raw, ok := decoded.([]byte); ok {
			return append([]byte(nil), raw...)
		}
		return decoded
	default:
		return v
	}
}
