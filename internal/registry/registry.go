// Package registry holds live engine connections and cursors behind opaque
// handles so that stateless requests can drive stateful query sessions.
//
// Locking: one registry mutex guards the handle maps, the connection to
// cursor index and entry membership. Engine calls never run under it. Every
// entry has its own mutex that serializes engine calls against that handle,
// so work on different handles runs in parallel while two operations on the
// same cursor never overlap. Locks are always taken entry first, registry
// second.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/engine"
	"github.com/kartikbazzad/bunbase/trinodbc/internal/metrics"
	"github.com/kartikbazzad/bunbase/trinodbc/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

const (
	opOpenConnection  = "open_connection"
	opCloseConnection = "close_connection"
	opOpenCursor      = "open_cursor"
	opCloseCursor     = "close_cursor"
	opExecute         = "execute"
	opFetch           = "fetch"
	opInfo            = "connection_info"

	// DefaultShutdownWorkers bounds how many connections CloseAll closes at once.
	DefaultShutdownWorkers = 8

	logQueryLimit = 100
)

type connection struct {
	id      string
	params  engine.Params
	created time.Time

	mu      sync.Mutex
	session engine.Session
	closed  bool
}

type cursor struct {
	id      string
	connID  string
	created time.Time

	mu     sync.Mutex
	cursor engine.Cursor
	closed bool
}

// ExecuteResult describes the outcome of a statement.
type ExecuteResult struct {
	Columns  []engine.Column `json:"columns"`
	RowCount int64           `json:"rowcount"`
}

// FetchResult is one page of rows. HasMore is true when the page was full;
// it does not look ahead, so a full final page still reports true and the
// next fetch returns no rows.
type FetchResult struct {
	Rows    []Row `json:"rows"`
	HasMore bool  `json:"has_more"`
}

// Stats is a point-in-time count of registry entries.
type Stats struct {
	Connections int `json:"connections"`
	Cursors     int `json:"cursors"`
}

// Registry owns every engine session and cursor opened through it.
type Registry struct {
	driver          engine.Driver
	logger          *slog.Logger
	shutdownWorkers int

	mu          sync.Mutex
	connections map[string]*connection
	cursors     map[string]*cursor
	owned       map[string]map[string]struct{} // connection handle -> cursor handles
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithShutdownWorkers bounds the parallelism of CloseAll.
func WithShutdownWorkers(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.shutdownWorkers = n
		}
	}
}

// New creates an empty registry that opens sessions through driver.
func New(driver engine.Driver, opts ...Option) *Registry {
	r := &Registry{
		driver:          driver,
		logger:          logger.Get(),
		shutdownWorkers: DefaultShutdownWorkers,
		connections:     make(map[string]*connection),
		cursors:         make(map[string]*cursor),
		owned:           make(map[string]map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenConnection dials the engine with params (defaults applied) and returns
// the handle of the new connection. On failure nothing is stored.
func (r *Registry) OpenConnection(ctx context.Context, params engine.Params) (string, error) {
	dial := params.WithDefaults()

	start := time.Now()
	session, err := r.driver.Open(ctx, dial)
	metrics.ObserveOperation(opOpenConnection, start, err)
	if err != nil {
		r.log(ctx).Error("Failed to connect", "engine", dial.Engine, "host", dial.Host, "port", dial.Port, "error", err)
		return "", connectionError(opOpenConnection, "", dial.Engine, err)
	}

	c := &connection{
		id:      uuid.NewString(),
		params:  params.Clone(),
		created: time.Now(),
		session: session,
	}

	r.mu.Lock()
	r.connections[c.id] = c
	r.owned[c.id] = make(map[string]struct{})
	r.publishLocked()
	r.mu.Unlock()

	r.log(ctx).Info("Created connection", "connection_id", c.id, "engine", dial.Engine, "host", dial.Host, "port", dial.Port)
	return c.id, nil
}

// CloseConnection closes the connection and every cursor opened on it. It
// returns false, without error, when the handle is unknown. The connection
// and its cursors leave the registry in one step; engine resources are
// released afterwards.
func (r *Registry) CloseConnection(ctx context.Context, id string) bool {
	r.mu.Lock()
	c, ok := r.connections[id]
	if !ok {
		r.mu.Unlock()
		r.log(ctx).Warn("Attempted to close non-existent connection", "connection_id", id)
		return false
	}
	cursors := r.detachLocked(c)
	r.publishLocked()
	r.mu.Unlock()

	start := time.Now()
	r.release(ctx, c, cursors)
	metrics.ObserveOperation(opCloseConnection, start, nil)

	r.log(ctx).Info("Closed connection", "connection_id", id, "cursors_closed", len(cursors), "age", time.Since(c.created))
	return true
}

// OpenCursor creates a cursor on the given connection and returns its
// handle, which is prefixed by the connection handle.
func (r *Registry) OpenCursor(ctx context.Context, connID string) (string, error) {
	r.mu.Lock()
	c, ok := r.connections[connID]
	r.mu.Unlock()
	if !ok {
		return "", connectionNotFound(opOpenCursor, connID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", connectionNotFound(opOpenCursor, connID)
	}

	start := time.Now()
	ec, err := c.session.Cursor()
	metrics.ObserveOperation(opOpenCursor, start, err)
	if err != nil {
		r.log(ctx).Error("Failed to create cursor", "connection_id", connID, "error", err)
		return "", cursorError(opOpenCursor, connID, err)
	}

	cur := &cursor{
		id:      connID + "_" + uuid.NewString(),
		connID:  connID,
		created: time.Now(),
		cursor:  ec,
	}

	r.mu.Lock()
	if r.connections[connID] != c {
		// Closed while the engine cursor was being created.
		r.mu.Unlock()
		if err := ec.Close(); err != nil {
			r.log(ctx).Error("Failed to close orphaned cursor", "connection_id", connID, "error", err)
		}
		return "", connectionNotFound(opOpenCursor, connID)
	}
	r.cursors[cur.id] = cur
	r.owned[connID][cur.id] = struct{}{}
	r.publishLocked()
	r.mu.Unlock()

	r.log(ctx).Info("Created cursor", "cursor_id", cur.id, "connection_id", connID)
	return cur.id, nil
}

// CloseCursor closes a cursor. It returns false, without error, when the
// handle is unknown.
func (r *Registry) CloseCursor(ctx context.Context, id string) bool {
	r.mu.Lock()
	cur, ok := r.cursors[id]
	if !ok {
		r.mu.Unlock()
		r.log(ctx).Warn("Attempted to close non-existent cursor", "cursor_id", id)
		return false
	}
	delete(r.cursors, id)
	delete(r.owned[cur.connID], id)
	r.publishLocked()
	r.mu.Unlock()

	start := time.Now()
	r.closeCursor(ctx, cur)
	metrics.ObserveOperation(opCloseCursor, start, nil)

	r.log(ctx).Info("Closed cursor", "cursor_id", id, "age", time.Since(cur.created))
	return true
}

// ExecuteQuery runs query on the cursor. A nil args sends the statement
// without parameters. On failure the cursor stays open and usable.
func (r *Registry) ExecuteQuery(ctx context.Context, id, query string, args []any) (*ExecuteResult, error) {
	cur, err := r.acquireCursor(opExecute, id)
	if err != nil {
		return nil, err
	}
	defer cur.mu.Unlock()

	start := time.Now()
	err = cur.cursor.Execute(ctx, query, args)
	metrics.ObserveOperation(opExecute, start, err)
	if err != nil {
		r.log(ctx).Error("Query execution error", "cursor_id", id, "error", err)
		return nil, queryError(id, err)
	}

	desc := cur.cursor.Description()
	columns := make([]engine.Column, len(desc))
	copy(columns, desc)

	rowCount := cur.cursor.RowCount()
	if rowCount < 0 {
		rowCount = -1
	}

	r.log(ctx).Info("Executed query", "cursor_id", id, "query", truncate(query, logQueryLimit))
	return &ExecuteResult{Columns: columns, RowCount: rowCount}, nil
}

// FetchResults returns up to maxRows rows from the cursor's current result
// set. Rows are records when the statement described its columns, lists
// otherwise. Each call advances the cursor.
func (r *Registry) FetchResults(ctx context.Context, id string, maxRows int) (*FetchResult, error) {
	cur, err := r.acquireCursor(opFetch, id)
	if err != nil {
		return nil, err
	}
	defer cur.mu.Unlock()

	if maxRows < 1 {
		return nil, fetchError(id, errMaxRows)
	}

	start := time.Now()
	rows, err := cur.cursor.FetchMany(ctx, maxRows)
	metrics.ObserveOperation(opFetch, start, err)
	if err != nil {
		r.log(ctx).Error("Error fetching results", "cursor_id", id, "error", err)
		return nil, fetchError(id, err)
	}

	out := make([]Row, 0, len(rows))
	if desc := cur.cursor.Description(); len(desc) > 0 {
		names := make([]string, len(desc))
		for i, col := range desc {
			names[i] = col.Name
		}
		for _, row := range rows {
			out = append(out, Record(names, row))
		}
	} else {
		for _, row := range rows {
			out = append(out, List(row))
		}
	}
	metrics.RowsFetched.Add(float64(len(rows)))

	r.log(ctx).Info("Fetched rows", "cursor_id", id, "rows", len(rows))
	return &FetchResult{Rows: out, HasMore: len(rows) >= maxRows}, nil
}

// GetConnectionInfo returns the parameters the connection was opened with,
// password masked.
func (r *Registry) GetConnectionInfo(ctx context.Context, id string) (engine.Params, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.connections[id]
	if !ok {
		return engine.Params{}, connectionNotFound(opInfo, id)
	}
	return c.params.Masked(), nil
}

// Stats returns the number of live connections and cursors.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Connections: len(r.connections), Cursors: len(r.cursors)}
}

// CloseAll removes every connection and closes them on a bounded worker
// pool. It returns when all are closed or ctx is done.
func (r *Registry) CloseAll(ctx context.Context) error {
	type job struct {
		conn    *connection
		cursors []*cursor
	}

	r.mu.Lock()
	jobs := make([]job, 0, len(r.connections))
	for _, c := range r.connections {
		jobs = append(jobs, job{conn: c, cursors: r.detachLocked(c)})
	}
	r.publishLocked()
	r.mu.Unlock()

	if len(jobs) == 0 {
		return nil
	}

	pool, err := ants.NewPool(r.shutdownWorkers, ants.WithPanicHandler(func(v any) {
		r.logger.Error("Panic while closing connection", "panic", v)
	}))
	if err != nil {
		return err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, j := range jobs {
		j := j
		wg.Add(1)
		task := func() {
			defer wg.Done()
			r.release(ctx, j.conn, j.cursors)
		}
		if err := pool.Submit(task); err != nil {
			task()
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("Closed all connections", "connections", len(jobs))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detachLocked removes c and its cursors from the maps. r.mu must be held.
func (r *Registry) detachLocked(c *connection) []*cursor {
	ids := r.owned[c.id]
	cursors := make([]*cursor, 0, len(ids))
	for cid := range ids {
		if cur, ok := r.cursors[cid]; ok {
			cursors = append(cursors, cur)
			delete(r.cursors, cid)
		}
	}
	delete(r.owned, c.id)
	delete(r.connections, c.id)
	return cursors
}

// publishLocked mirrors the entry counts into the gauges. r.mu must be held.
func (r *Registry) publishLocked() {
	metrics.OpenConnections.Set(float64(len(r.connections)))
	metrics.OpenCursors.Set(float64(len(r.cursors)))
}

// release closes detached cursors, then the session. Each close waits for
// any in-flight call on the same entry.
func (r *Registry) release(ctx context.Context, c *connection, cursors []*cursor) {
	for _, cur := range cursors {
		r.closeCursor(ctx, cur)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if err := c.session.Close(); err != nil {
		r.log(ctx).Error("Failed to close connection", "connection_id", c.id, "error", err)
	}
}

func (r *Registry) closeCursor(ctx context.Context, cur *cursor) {
	cur.mu.Lock()
	defer cur.mu.Unlock()
	if cur.closed {
		return
	}
	cur.closed = true
	if err := cur.cursor.Close(); err != nil {
		r.log(ctx).Error("Failed to close cursor", "cursor_id", cur.id, "error", err)
	}
}

// acquireCursor looks up a cursor and returns it with its mutex held.
func (r *Registry) acquireCursor(op, id string) (*cursor, error) {
	r.mu.Lock()
	cur, ok := r.cursors[id]
	r.mu.Unlock()
	if !ok {
		return nil, cursorNotFound(op, id)
	}

	cur.mu.Lock()
	if cur.closed {
		cur.mu.Unlock()
		return nil, cursorNotFound(op, id)
	}
	return cur, nil
}

func (r *Registry) log(ctx context.Context) *slog.Logger {
	return logger.WithTraceID(ctx, r.logger)
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
