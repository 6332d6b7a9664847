// Package sqldb implements the engine capability on top of database/sql.
// Each engine is a Dialect that knows how to turn connection parameters
// into a driver name and DSN; sessions and cursors are shared.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
)

var (
	// ErrNoResultSet is returned when rows are fetched before any statement ran.
	ErrNoResultSet = errors.New("no result set; execute a query first")
	// ErrCursorClosed is returned by operations on a closed cursor.
	ErrCursorClosed = errors.New("cursor is closed")
)

// Statements whose verb is one of these return a row set and are run with
// QueryContext; everything else goes through ExecContext.
var rowVerbs = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"VALUES":   true,
	"TABLE":    true,
	"PRAGMA":   true,
}

// Dialect opens database/sql pools for one engine.
type Dialect struct {
	Name       string
	DriverName string
	// Build returns the DSN for params and a release func run after the
	// session's pool is closed.
	Build        func(params engine.Params) (dsn string, release func(), err error)
	MaxOpenConns int
}

// Open implements engine.Driver. The pool is pinged so that unreachable
// servers fail here rather than on first execute.
func (d Dialect) Open(ctx context.Context, params engine.Params) (engine.Session, error) {
	dsn, release, err := d.Build(params)
	if err != nil {
		return nil, err
	}
	if release == nil {
		release = func() {}
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		release()
		return nil, err
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		release()
		return nil, err
	}
	return &Session{db: db, release: release}, nil
}

// Engines returns every built-in dialect keyed by engine name.
func Engines() engine.Mux {
	return engine.Mux{
		"trino":    Trino(),
		"postgres": Postgres(),
		"sqlite":   SQLite(),
	}
}

// Session is one database/sql pool.
type Session struct {
	db      *sql.DB
	release func()
}

func (s *Session) Cursor() (engine.Cursor, error) {
	return &Cursor{db: s.db}, nil
}

func (s *Session) Close() error {
	err := s.db.Close()
	s.release()
	return err
}

// Cursor keeps the current *sql.Rows open between fetches.
type Cursor struct {
	db *sql.DB

	executed bool
	closed   bool
	rows     *sql.Rows
	columns  []engine.Column
	rowCount int64
}

func (c *Cursor) Execute(ctx context.Context, query string, args []any) error {
	if c.closed {
		return ErrCursorClosed
	}
	c.reset()
	c.executed = true

	if !returnsRows(query) {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			c.rowCount = n
		}
		return nil
	}

	// The row set outlives this request, so it must not be tied to the
	// caller's cancellation.
	rows, err := c.db.QueryContext(context.WithoutCancel(ctx), query, args...)
	if err != nil {
		return err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return err
	}
	if len(types) == 0 {
		return rows.Close()
	}
	c.rows = rows
	c.columns = describe(types)
	return nil
}

func (c *Cursor) Description() []engine.Column {
	return c.columns
}

func (c *Cursor) RowCount() int64 {
	return c.rowCount
}

// FetchMany scans up to n rows without reading ahead. The row set is closed
// once it is exhausted.
func (c *Cursor) FetchMany(ctx context.Context, n int) ([][]any, error) {
	if c.closed {
		return nil, ErrCursorClosed
	}
	if !c.executed {
		return nil, ErrNoResultSet
	}
	if c.rows == nil {
		return [][]any{}, nil
	}

	out := make([][]any, 0, min(n, 1024))
	for len(out) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.rows.Next() {
			break
		}
		values := make([]any, len(c.columns))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := c.rows.Scan(dest...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}

	if len(out) < n {
		err := c.rows.Err()
		_ = c.rows.Close()
		c.rows = nil
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.reset()
}

func (c *Cursor) reset() error {
	var err error
	if c.rows != nil {
		err = c.rows.Close()
		c.rows = nil
	}
	c.columns = nil
	c.rowCount = -1
	return err
}

func describe(types []*sql.ColumnType) []engine.Column {
	columns := make([]engine.Column, len(types))
	for i, ct := range types {
		col := engine.Column{Name: ct.Name(), TypeCode: ct.DatabaseTypeName()}
		if length, ok := ct.Length(); ok {
			col.InternalSize = &length
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			col.Precision = &precision
			col.Scale = &scale
		}
		if nullable, ok := ct.Nullable(); ok {
			col.NullOK = &nullable
		}
		columns[i] = col
	}
	return columns
}

// returnsRows reports whether query produces a row set: its leading verb
// (the main statement's verb after a WITH clause) is a row-returning one, or
// it carries a RETURNING clause.
func returnsRows(query string) bool {
	st := classify(query)
	return st.returning || rowVerbs[st.verb]
}

// Verbs that may follow a WITH clause as the main statement.
var mainVerbs = map[string]bool{
	"SELECT": true,
	"INSERT": true,
	"UPDATE": true,
	"DELETE": true,
	"MERGE":  true,
	"VALUES": true,
	"TABLE":  true,
}

type statement struct {
	verb      string
	returning bool
}

// classify scans query outside comments and quoted text. verb is the first
// keyword, or for WITH the first main verb at the same nesting depth.
func classify(query string) statement {
	var st statement
	lead, depth, leadDepth := "", 0, 0
	done := func() statement {
		st.verb = lead
		return st
	}

	s := query
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return done()
			}
			s = s[i+1:]
			continue
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return done()
			}
			s = s[i+4:]
			continue
		case r == '\'' || r == '"' || r == '`':
			i := strings.IndexRune(s[size:], r)
			if i < 0 {
				return done()
			}
			s = s[2*size+i:]
			continue
		case r == '(':
			depth++
		case r == ')':
			depth--
		case unicode.IsLetter(r) || r == '_':
			end := strings.IndexFunc(s, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
			})
			if end < 0 {
				end = len(s)
			}
			word := strings.ToUpper(s[:end])
			s = s[end:]
			switch {
			case lead == "":
				lead, leadDepth = word, depth
			case word == "RETURNING":
				st.returning = true
			case lead == "WITH" && depth == leadDepth && mainVerbs[word]:
				lead = word
			}
			continue
		}
		s = s[size:]
	}
	return done()
}
