package sqldb

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T, p engine.Params) engine.Cursor {
	t.Helper()
	p.Engine = "sqlite"
	sess, err := SQLite().Open(context.Background(), p.WithDefaults())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	cur, err := sess.Cursor()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cur.Close() })
	return cur
}

func TestCursor_SelectOne(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "SELECT 1 AS one", nil))
	cols := cur.Description()
	require.Len(t, cols, 1)
	assert.Equal(t, "one", cols[0].Name)
	assert.Equal(t, int64(-1), cur.RowCount())

	rows, err := cur.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1)}}, rows)

	rows, err = cur.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCursor_ExecAndPaging(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "CREATE TABLE items (id INTEGER, name TEXT)", nil))
	assert.Empty(t, cur.Description())

	require.NoError(t, cur.Execute(ctx,
		"INSERT INTO items (id, name) VALUES (?, ?), (?, ?), (?, ?)",
		[]any{1, "a", 2, "b", 3, "c"}))
	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(3), cur.RowCount())

	require.NoError(t, cur.Execute(ctx, "INSERT INTO items (id, name) VALUES (4, 'd'), (5, 'e')", nil))

	require.NoError(t, cur.Execute(ctx, "SELECT id, name FROM items ORDER BY id", nil))
	cols := cur.Description()
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "INTEGER", cols[0].TypeCode)
	assert.Equal(t, "name", cols[1].Name)
	assert.Equal(t, "TEXT", cols[1].TypeCode)

	var sizes []int
	var ids []any
	for {
		rows, err := cur.FetchMany(ctx, 2)
		require.NoError(t, err)
		sizes = append(sizes, len(rows))
		for _, r := range rows {
			ids = append(ids, r[0])
		}
		if len(rows) == 0 {
			break
		}
	}
	assert.Equal(t, []int{2, 2, 1, 0}, sizes)
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, ids)
}

func TestCursor_TextIsString(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "SELECT CAST('abc' AS BLOB) AS b, NULL AS n", nil))
	rows, err := cur.FetchMany(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "abc", rows[0][0])
	assert.Nil(t, rows[0][1])
}

func TestCursor_FetchBeforeExecute(t *testing.T) {
	cur := openSQLite(t, engine.Params{})

	_, err := cur.FetchMany(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoResultSet)
}

func TestCursor_ErrorKeepsCursorUsable(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.Error(t, cur.Execute(ctx, "SELEC 1", nil))
	require.Error(t, cur.Execute(ctx, "SELECT * FROM missing", nil))

	require.NoError(t, cur.Execute(ctx, "SELECT 2", nil))
	rows, err := cur.FetchMany(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}}, rows)
}

func TestCursor_ExecuteReplacesPendingRows(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "WITH RECURSIVE n(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM n WHERE x < 10) SELECT x FROM n", nil))
	rows, err := cur.FetchMany(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.NoError(t, cur.Execute(ctx, "SELECT 'z'", nil))
	rows, err = cur.FetchMany(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"z"}}, rows)
}

func TestCursor_Closed(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Close())
	require.NoError(t, cur.Close())
	assert.ErrorIs(t, cur.Execute(ctx, "SELECT 1", nil), ErrCursorClosed)
	_, err := cur.FetchMany(ctx, 1)
	assert.ErrorIs(t, err, ErrCursorClosed)
}

func TestSQLite_MemoryDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := openSQLite(t, engine.Params{})
	b := openSQLite(t, engine.Params{})

	require.NoError(t, a.Execute(ctx, "CREATE TABLE only_in_a (x INTEGER)", nil))
	assert.Error(t, b.Execute(ctx, "SELECT * FROM only_in_a", nil))
}

func TestSQLite_FileCatalogIsShared(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a := openSQLite(t, engine.Params{Catalog: path})
	require.NoError(t, a.Execute(ctx, "CREATE TABLE t (x INTEGER)", nil))
	require.NoError(t, a.Execute(ctx, "INSERT INTO t VALUES (7)", nil))

	b := openSQLite(t, engine.Params{Catalog: path})
	require.NoError(t, b.Execute(ctx, "SELECT x FROM t", nil))
	rows, err := b.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(7)}}, rows)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  statement
	}{
		{"SELECT 1", statement{verb: "SELECT"}},
		{"  select 1", statement{verb: "SELECT"}},
		{"\n\t(SELECT 1)", statement{verb: "SELECT"}},
		{"-- comment\nWITH x AS (SELECT 1) SELECT * FROM x", statement{verb: "SELECT"}},
		{"WITH x AS (SELECT 1) INSERT INTO t SELECT * FROM x", statement{verb: "INSERT"}},
		{"WITH RECURSIVE n(i) AS (SELECT 1 UNION ALL SELECT i+1 FROM n) SELECT i FROM n", statement{verb: "SELECT"}},
		{"WITH x AS (SELECT 1)", statement{verb: "WITH"}},
		{"/* hint */ show catalogs", statement{verb: "SHOW"}},
		{"insert into t values (1)", statement{verb: "INSERT"}},
		{"INSERT INTO t VALUES (1) RETURNING id", statement{verb: "INSERT", returning: true}},
		{"DELETE FROM t WHERE x = 'returning' -- RETURNING", statement{verb: "DELETE"}},
		{"UPDATE t SET x = 'it''s' /* RETURNING */ WHERE y = 1", statement{verb: "UPDATE"}},
		{"CREATE TABLE t (x int)", statement{verb: "CREATE"}},
		{"-- only a comment", statement{}},
		{"/* unterminated", statement{}},
		{"", statement{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.query))
		})
	}
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, returnsRows("SELECT 1"))
	assert.True(t, returnsRows("explain select 1"))
	assert.True(t, returnsRows("PRAGMA table_info(t)"))
	assert.True(t, returnsRows("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, returnsRows("update t set x = 1 returning x"))
	assert.False(t, returnsRows("WITH x AS (SELECT 1) DELETE FROM t WHERE x IN (SELECT * FROM x)"))
	assert.False(t, returnsRows("UPDATE t SET x = 1"))
	assert.False(t, returnsRows("DROP TABLE t"))
}

func TestCursor_InsertReturning(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "CREATE TABLE t (x INTEGER)", nil))
	require.NoError(t, cur.Execute(ctx, "INSERT INTO t VALUES (7), (8) RETURNING x", nil))
	cols := cur.Description()
	require.Len(t, cols, 1)
	assert.Equal(t, "x", cols[0].Name)

	rows, err := cur.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(7)}, {int64(8)}}, rows)

	require.NoError(t, cur.Execute(ctx, "SELECT count(*) FROM t", nil))
	rows, err = cur.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(2)}}, rows)
}

func TestCursor_DataModifyingWith(t *testing.T) {
	ctx := context.Background()
	cur := openSQLite(t, engine.Params{})

	require.NoError(t, cur.Execute(ctx, "CREATE TABLE t (x INTEGER)", nil))
	require.NoError(t, cur.Execute(ctx, "WITH src AS (SELECT 1 UNION ALL SELECT 2) INSERT INTO t SELECT * FROM src", nil))
	assert.Nil(t, cur.Description())
	assert.Equal(t, int64(2), cur.RowCount())

	rows, err := cur.FetchMany(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTrinoDSN(t *testing.T) {
	p := engine.Params{
		Host:              "coordinator",
		Port:              8443,
		User:              "alice",
		Password:          "s3cret",
		Catalog:           "hive",
		Schema:            "web",
		HTTPScheme:        "https",
		SessionProperties: map[string]string{"query_max_run_time": "1h"},
	}.WithDefaults()

	dsn, release, err := trinoDSN(p)
	require.NoError(t, err)
	defer release()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "coordinator:8443", u.Host)
	assert.Equal(t, "alice", u.User.Username())
	pw, ok := u.User.Password()
	assert.True(t, ok)
	assert.Equal(t, "s3cret", pw)

	q := u.Query()
	assert.Equal(t, "hive", q.Get("catalog"))
	assert.Equal(t, "web", q.Get("schema"))
	assert.Equal(t, TrinoSource, q.Get("source"))
	assert.Contains(t, q.Get("session_properties"), "query_max_run_time")
	assert.Empty(t, q.Get("custom_client"))
}

func TestTrinoDSN_NoPasswordWithoutCredentials(t *testing.T) {
	dsn, release, err := trinoDSN(engine.Params{}.WithDefaults())
	require.NoError(t, err)
	defer release()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", u.Host)
	assert.Equal(t, engine.DefaultUser, u.User.Username())
	_, ok := u.User.Password()
	assert.False(t, ok)
}

func TestTrinoDSN_InsecureRegistersClient(t *testing.T) {
	off := false
	p := engine.Params{HTTPScheme: "https", Verify: &off}.WithDefaults()

	dsn, release, err := trinoDSN(p)
	require.NoError(t, err)
	release()

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.Query().Get("custom_client"), "trinodbc-"))
}

func TestPostgresDSN(t *testing.T) {
	off := false
	tests := []struct {
		name    string
		params  engine.Params
		sslmode string
	}{
		{"plain", engine.Params{}, "disable"},
		{"tls", engine.Params{HTTPScheme: "https"}, "verify-full"},
		{"tls no verify", engine.Params{HTTPScheme: "https", Verify: &off}, "require"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.params
			p.Engine = "postgres"
			p.User = "app"
			p.Password = "pw"
			p.Catalog = "analytics"
			p.Schema = "public"
			dsn, release, err := postgresDSN(p.WithDefaults())
			require.NoError(t, err)
			assert.Nil(t, release)

			u, err := url.Parse(dsn)
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "localhost:5432", u.Host)
			assert.Equal(t, "/analytics", u.Path)
			assert.Equal(t, tt.sslmode, u.Query().Get("sslmode"))
			assert.Equal(t, "public", u.Query().Get("search_path"))
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn, _, err := sqliteDSN(engine.Params{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "file:"))
	assert.Contains(t, dsn, "mode=memory")
	assert.Contains(t, dsn, "cache=shared")

	dsn, _, err = sqliteDSN(engine.Params{
		Catalog:           "/tmp/x.db",
		SessionProperties: map[string]string{"foreign_keys": "1", "busy_timeout": "5000"},
	})
	require.NoError(t, err)
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, []string{"busy_timeout(5000)", "foreign_keys(1)"}, u.Query()["_pragma"])
	assert.NotContains(t, dsn, "mode=memory")
}

func TestEngines(t *testing.T) {
	m := Engines()
	for _, name := range []string{"trino", "postgres", "sqlite"} {
		assert.Contains(t, m, name)
	}
}
