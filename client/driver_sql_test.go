package client

import (
	"os"
	"time"

	"github.com/elbaro/gomysql/protocol"
	"github.com/joho/godotenv"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&testSQLBackendSuite{})

type testSQLBackendSuite struct {
}

func (s *testSQLBackendSuite) TestReturnsRows(c *check.C) {
	cases := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  select *\nfrom t", true},
		{"SHOW TABLES", true},
		{"DESCRIBE t", true},
		{"desc t", true},
		{"EXPLAIN SELECT 1", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET v = 1", false},
		{"DELETE FROM t", false},
		{"SET @a = 1", false},
	}
	for _, tc := range cases {
		c.Assert(returnsRows(tc.sql), check.Equals, tc.want, check.Commentf("sql: %q", tc.sql))
	}
}

func (s *testSQLBackendSuite) TestConvertSQLValue(c *check.C) {
	text := textColumn("v")
	c.Assert(convertSQLValue(nil, text), check.IsNil)
	c.Assert(convertSQLValue(int64(7), text), check.Equals, int64(7))
	c.Assert(convertSQLValue(float64(1.5), text), check.Equals, float64(1.5))

	got := convertSQLValue([]byte("hello"), text)
	c.Assert(got, check.Equals, "hello")

	ts := time.Date(2024, 3, 9, 12, 34, 56, 789000, time.UTC)
	dt := convertSQLValue(ts, textColumn("t")).(protocol.DateTime)
	c.Assert(dt.Year, check.Equals, uint16(2024))
	c.Assert(dt.Microsecond, check.Equals, uint32(789))

	// binary columns keep raw bytes, copied out of the scan buffer
	blob := &protocol.ColumnInfo{
		Name:    "b",
		Type:    protocol.TypeBlob,
		Charset: protocol.BinaryCharsetID,
	}
	buf := []byte{0x01, 0x02}
	raw := convertSQLValue(buf, blob).([]byte)
	buf[0] = 0xff
	c.Assert(raw, check.DeepEquals, []byte{0x01, 0x02})
}

func (s *testSQLBackendSuite) TestConvertSQLValueDecimal(c *check.C) {
	dec := &protocol.ColumnInfo{
		Name:    "d",
		Type:    protocol.TypeNewDecimal,
		Charset: protocol.DefaultCollationID,
	}
	got := convertSQLValue([]byte("12.50"), dec)
	c.Assert(got, check.Equals, protocol.Decimal("12.50"))
}

var _ = check.Suite(&testSQLIntegrationSuite{})

// testSQLIntegrationSuite runs against a live server. Set
// GOMYSQL_TEST_DSN (directly or through .env) to enable it.
type testSQLIntegrationSuite struct {
	backend *SQLBackend
}

func (s *testSQLIntegrationSuite) SetUpSuite(c *check.C) {
	godotenv.Load()
	dsn := os.Getenv("GOMYSQL_TEST_DSN")
	if dsn == "" {
		c.Skip("GOMYSQL_TEST_DSN not set")
	}

	backend, err := OpenSQL(dsn)
	c.Assert(err, check.IsNil)
	s.backend = backend
}

func (s *testSQLIntegrationSuite) TearDownSuite(c *check.C) {
	if s.backend != nil {
		s.backend.Close()
	}
}

func (s *testSQLIntegrationSuite) TestRoundTrip(c *check.C) {
	c.Assert(s.backend.Ping(), check.IsNil)
	c.Assert(s.backend.ConnectionID(), check.Not(check.Equals), uint32(0))

	_, err := s.backend.Query("DROP TABLE IF EXISTS gomysql_test")
	c.Assert(err, check.IsNil)
	_, err = s.backend.Query("CREATE TABLE gomysql_test (id BIGINT PRIMARY KEY AUTO_INCREMENT, v VARCHAR(32))")
	c.Assert(err, check.IsNil)
	defer s.backend.Query("DROP TABLE gomysql_test")

	res, err := s.backend.ExecBatch("INSERT INTO gomysql_test (v) VALUES (?)", [][]interface{}{
		{"a"}, {"b"}, {"c"},
	})
	c.Assert(err, check.IsNil)
	c.Assert(res.AffectedRows, check.Equals, uint64(3))

	res, err = s.backend.Exec("SELECT v FROM gomysql_test ORDER BY id")
	c.Assert(err, check.IsNil)
	c.Assert(res.Sets, check.HasLen, 1)
	c.Assert(res.Sets[0].Rows, check.HasLen, 3)
	c.Assert(res.Sets[0].Rows[0].Values(), check.DeepEquals, []interface{}{"a"})

	c.Assert(s.backend.Reset(), check.IsNil)
	_, err = s.backend.Exec("SELECT COUNT(*) FROM gomysql_test")
	c.Assert(err, check.IsNil)
}
