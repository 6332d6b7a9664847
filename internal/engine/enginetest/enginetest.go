// Package enginetest provides an in-memory engine.Driver for tests. Queries
// resolve against a table of canned results, every call is recorded, and
// hooks allow tests to inject failures or block inside backend calls.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
)

// ErrNoResultSet is returned by FetchMany before any statement has run.
var ErrNoResultSet = errors.New("no result set")

// Result is a canned answer for one query string.
type Result struct {
	Columns  []engine.Column
	Rows     [][]any
	RowCount int64
	Err      error
}

// SelectOne is preloaded for "SELECT 1".
var SelectOne = Result{
	Columns:  []engine.Column{{Name: "_col0", TypeCode: "integer"}},
	Rows:     [][]any{{int64(1)}},
	RowCount: -1,
}

// Engine is a fake engine.Driver.
type Engine struct {
	mu       sync.Mutex
	results  map[string]Result
	sessions []*Session

	// OpenErr makes every Open fail.
	OpenErr error
	// CursorErr makes every Session.Cursor fail.
	CursorErr error
	// FetchErr makes every FetchMany fail.
	FetchErr error
	// Hook runs inside Execute and FetchMany before the result is touched.
	// It may block to hold a backend call open.
	Hook func(op, query string)
}

// New returns an Engine that knows "SELECT 1".
func New() *Engine {
	return &Engine{results: map[string]Result{"SELECT 1": SelectOne}}
}

// SetResult registers the result returned for query.
func (e *Engine) SetResult(query string, r Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[query] = r
}

func (e *Engine) result(query string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.results[query]
	return r, ok
}

// Open implements engine.Driver.
func (e *Engine) Open(ctx context.Context, params engine.Params) (engine.Session, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	s := &Session{engine: e, Params: params}
	e.mu.Lock()
	e.sessions = append(e.sessions, s)
	e.mu.Unlock()
	return s, nil
}

// Sessions returns every session opened so far.
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Session(nil), e.sessions...)
}

// Session is a fake engine.Session.
type Session struct {
	engine *Engine
	Params engine.Params

	mu      sync.Mutex
	closed  bool
	cursors []*Cursor
}

func (s *Session) Cursor() (engine.Cursor, error) {
	if s.engine.CursorErr != nil {
		return nil, s.engine.CursorErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session closed")
	}
	c := &Cursor{session: s}
	s.cursors = append(s.cursors, c)
	return c, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Cursors returns every cursor created from the session.
func (s *Session) Cursors() []*Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Cursor(nil), s.cursors...)
}

// Call records one Execute invocation.
type Call struct {
	Query string
	Args  []any
}

// Cursor is a fake engine.Cursor. It flags any overlapping calls, which the
// registry must never allow.
type Cursor struct {
	session *Session

	active  atomic.Int32
	overlap atomic.Bool

	mu       sync.Mutex
	closed   bool
	calls    []Call
	result   *Result
	position int
}

func (c *Cursor) enter(op, query string) func() {
	if c.active.Add(1) > 1 {
		c.overlap.Store(true)
	}
	if h := c.session.engine.Hook; h != nil {
		h(op, query)
	}
	return func() { c.active.Add(-1) }
}

func (c *Cursor) Execute(ctx context.Context, query string, args []any) error {
	defer c.enter("execute", query)()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Query: query, Args: args})
	if c.closed {
		return errors.New("cursor closed")
	}
	r, ok := c.session.engine.result(query)
	if !ok {
		return fmt.Errorf("line 1:1: mismatched input '%s'", query)
	}
	if r.Err != nil {
		return r.Err
	}
	c.result = &r
	c.position = 0
	return nil
}

func (c *Cursor) Description() []engine.Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil
	}
	return c.result.Columns
}

func (c *Cursor) RowCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return -1
	}
	return c.result.RowCount
}

func (c *Cursor) FetchMany(ctx context.Context, n int) ([][]any, error) {
	defer c.enter("fetch", "")()

	if err := c.session.engine.FetchErr; err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return nil, ErrNoResultSet
	}
	end := c.position + n
	if end > len(c.result.Rows) {
		end = len(c.result.Rows)
	}
	rows := c.result.Rows[c.position:end]
	c.position = end
	return rows, nil
}

func (c *Cursor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Cursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Calls returns every Execute invocation in order.
func (c *Cursor) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Overlapped reports whether two backend calls ever ran at the same time.
func (c *Cursor) Overlapped() bool {
	return c.overlap.Load()
}
