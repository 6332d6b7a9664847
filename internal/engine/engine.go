// Package engine defines the capability the session registry uses to talk to
// a query engine: open a session, derive cursors, execute, fetch and close.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

const (
	DefaultEngine = "trino"
	DefaultHost   = "localhost"
	DefaultPort   = 8080
	DefaultUser   = "trino"
	DefaultScheme = "http"

	DefaultPostgresPort = 5432

	// PasswordMask replaces the password whenever parameters are echoed back.
	PasswordMask = "***"
)

// Params are the connection parameters a client supplies when opening a
// connection. Absent fields stay absent; WithDefaults fills them for dialing.
// Keys no engine reads are kept in Extra and echoed back with the rest.
type Params struct {
	Engine            string            `json:"engine,omitempty" mapstructure:"engine"`
	Host              string            `json:"host,omitempty" mapstructure:"host"`
	Port              int               `json:"port,omitempty" mapstructure:"port"`
	User              string            `json:"user,omitempty" mapstructure:"user"`
	Password          string            `json:"password,omitempty" mapstructure:"password"`
	Catalog           string            `json:"catalog,omitempty" mapstructure:"catalog"`
	Schema            string            `json:"schema,omitempty" mapstructure:"schema"`
	HTTPScheme        string            `json:"http_scheme,omitempty" mapstructure:"http_scheme"`
	Verify            *bool             `json:"verify,omitempty" mapstructure:"verify"`
	SessionProperties map[string]string `json:"session_properties,omitempty" mapstructure:"session_properties"`
	Extra             map[string]any    `json:"-" mapstructure:",remain"`

	// passwordSet records a password key in the decoded body, even an empty one.
	passwordSet bool
}

var paramKeys = []string{
	"engine", "host", "port", "user", "password", "catalog",
	"schema", "http_scheme", "verify", "session_properties",
}

func (p *Params) UnmarshalJSON(data []byte) error {
	type plain Params
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	_, out.passwordSet = raw["password"]
	for _, k := range paramKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		out.Extra = raw
	}
	*p = Params(out)
	return nil
}

func (p Params) MarshalJSON() ([]byte, error) {
	type plain Params
	data, err := json.Marshal(plain(p))
	if err != nil || len(p.Extra) == 0 {
		return data, err
	}

	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	out := p
	if p.Verify != nil {
		v := *p.Verify
		out.Verify = &v
	}
	if p.SessionProperties != nil {
		out.SessionProperties = make(map[string]string, len(p.SessionProperties))
		for k, v := range p.SessionProperties {
			out.SessionProperties[k] = v
		}
	}
	if p.Extra != nil {
		out.Extra = make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// WithDefaults returns a copy of p with every unset dial field defaulted.
func (p Params) WithDefaults() Params {
	out := p.Clone()
	if out.Engine == "" {
		out.Engine = DefaultEngine
	}
	if out.Host == "" {
		out.Host = DefaultHost
	}
	if out.Port == 0 {
		out.Port = DefaultPort
		if out.Engine == "postgres" {
			out.Port = DefaultPostgresPort
		}
	}
	if out.User == "" {
		// A credential needs an explicit user; the default user never
		// authenticates with a password.
		out.User = DefaultUser
		out.Password = ""
	}
	if out.HTTPScheme == "" {
		out.HTTPScheme = DefaultScheme
	}
	if out.Verify == nil {
		v := true
		out.Verify = &v
	}
	if out.SessionProperties == nil {
		out.SessionProperties = map[string]string{}
	}
	return out
}

// Masked returns a copy of p with the password replaced by PasswordMask
// whenever one was supplied, empty or not.
func (p Params) Masked() Params {
	out := p.Clone()
	if out.Password != "" || out.passwordSet {
		out.Password = PasswordMask
	}
	return out
}

// HasCredentials reports whether both user and password were supplied.
// Drivers only build a credential when this holds.
func (p Params) HasCredentials() bool {
	return p.User != "" && p.Password != ""
}

// VerifyTLS reports the effective TLS verification toggle.
func (p Params) VerifyTLS() bool {
	return p.Verify == nil || *p.Verify
}

// Column describes one column of a result set. Pointer fields are nil when
// the engine does not expose the attribute.
type Column struct {
	Name         string `json:"name"`
	TypeCode     string `json:"type_code"`
	DisplaySize  *int64 `json:"display_size"`
	InternalSize *int64 `json:"internal_size"`
	Precision    *int64 `json:"precision"`
	Scale        *int64 `json:"scale"`
	NullOK       *bool  `json:"null_ok"`
}

// Driver opens sessions against a query engine.
type Driver interface {
	Open(ctx context.Context, params Params) (Session, error)
}

// Session is a live connection to an engine. Implementations need not be
// safe for concurrent use; the registry serializes access per session.
type Session interface {
	Cursor() (Cursor, error)
	Close() error
}

// Cursor is an execution context bound to one session. Implementations need
// not be safe for concurrent use.
type Cursor interface {
	// Execute runs query. A nil args means the statement is sent without
	// parameters; a non-nil empty slice is passed through as is.
	Execute(ctx context.Context, query string, args []any) error
	// Description returns the columns of the current result set, or nil when
	// the last statement produced no row set.
	Description() []Column
	// RowCount returns the engine-reported row count; negative means unknown.
	RowCount() int64
	// FetchMany returns up to n rows from the current result set.
	FetchMany(ctx context.Context, n int) ([][]any, error)
	Close() error
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, params Params) (Session, error)

func (f DriverFunc) Open(ctx context.Context, params Params) (Session, error) {
	return f(ctx, params)
}

// Mux dispatches Open to the driver registered under Params.Engine, falling
// back to DefaultEngine when the field is empty.
type Mux map[string]Driver

func (m Mux) Open(ctx context.Context, params Params) (Session, error) {
	name := params.Engine
	if name == "" {
		name = DefaultEngine
	}
	d, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unsupported engine %q", name)
	}
	return d.Open(ctx, params)
}
