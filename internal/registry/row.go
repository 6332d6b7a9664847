package registry

import (
	"bytes"
	"encoding/json"
)

// Row is one fetched row. A record row pairs values with column names and
// serializes as a JSON object whose keys follow column order; a list row
// serializes as a JSON array.
type Row struct {
	columns []string
	values  []any
}

// Record builds a row keyed by column name. Extra values or names beyond the
// shorter of the two slices are dropped.
func Record(columns []string, values []any) Row {
	n := len(columns)
	if len(values) < n {
		n = len(values)
	}
	return Row{columns: columns[:n:n], values: values[:n:n]}
}

// List builds a positional row.
func List(values []any) Row {
	if values == nil {
		values = []any{}
	}
	return Row{values: values}
}

// IsRecord reports whether the row carries column names.
func (r Row) IsRecord() bool { return r.columns != nil }

// Values returns the row's values in column order.
func (r Row) Values() []any { return r.values }

// Get returns the value of the named column. A repeated name resolves to its
// last occurrence.
func (r Row) Get(name string) (any, bool) {
	for i := len(r.columns) - 1; i >= 0; i-- {
		if r.columns[i] == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// MarshalJSON keeps column order. A repeated column name keeps the position
// of its first occurrence and the value of its last.
func (r Row) MarshalJSON() ([]byte, error) {
	if !r.IsRecord() {
		return json.Marshal(r.values)
	}

	order := make([]string, 0, len(r.columns))
	last := make(map[string]int, len(r.columns))
	for i, name := range r.columns {
		if _, seen := last[name]; !seen {
			order = append(order, name)
		}
		last[name] = i
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[last[name]])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
