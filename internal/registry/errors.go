package registry

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the registry matches exactly one of
// these with errors.Is.
var (
	// ErrConnection: the engine session (or a cursor on it) could not be established.
	ErrConnection = errors.New("connection error")
	// ErrNotFound: the referenced connection or cursor handle does not exist.
	ErrNotFound = errors.New("not found")
	// ErrQueryExecution: the engine rejected or failed a statement.
	ErrQueryExecution = errors.New("query execution error")
	// ErrFetch: the engine failed while retrieving rows.
	ErrFetch = errors.New("fetch error")

	errMaxRows = errors.New("max_rows must be a positive integer")
)

// Error is returned by registry operations. The message preserves the
// engine's original text.
type Error struct {
	Kind   error
	Op     string
	Handle string
	Err    error

	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func connectionError(op, handle, engineName string, err error) *Error {
	return &Error{
		Kind:   ErrConnection,
		Op:     op,
		Handle: handle,
		Err:    err,
		msg:    fmt.Sprintf("Failed to connect to %s: %v", displayName(engineName), err),
	}
}

func cursorError(op, handle string, err error) *Error {
	return &Error{
		Kind:   ErrConnection,
		Op:     op,
		Handle: handle,
		Err:    err,
		msg:    fmt.Sprintf("Failed to create cursor: %v", err),
	}
}

func connectionNotFound(op, handle string) *Error {
	return &Error{
		Kind:   ErrNotFound,
		Op:     op,
		Handle: handle,
		msg:    fmt.Sprintf("Connection %s does not exist", handle),
	}
}

func cursorNotFound(op, handle string) *Error {
	return &Error{
		Kind:   ErrNotFound,
		Op:     op,
		Handle: handle,
		msg:    fmt.Sprintf("Cursor %s does not exist", handle),
	}
}

func queryError(handle string, err error) *Error {
	return &Error{
		Kind:   ErrQueryExecution,
		Op:     opExecute,
		Handle: handle,
		Err:    err,
		msg:    fmt.Sprintf("Query execution error: %v", err),
	}
}

func fetchError(handle string, err error) *Error {
	return &Error{
		Kind:   ErrFetch,
		Op:     opFetch,
		Handle: handle,
		Err:    err,
		msg:    fmt.Sprintf("Error fetching results: %v", err),
	}
}

var engineNames = map[string]string{
	"trino":    "Trino",
	"postgres": "PostgreSQL",
	"sqlite":   "SQLite",
}

func displayName(engineName string) string {
	if n, ok := engineNames[engineName]; ok {
		return n
	}
	return engineName
}
