package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_RecordKeepsColumnOrder(t *testing.T) {
	row := Record([]string{"zeta", "alpha", "mid"}, []any{1, "two", nil})

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"two","mid":null}`, string(out))
}

func TestRow_RecordDuplicateColumns(t *testing.T) {
	row := Record([]string{"a", "b", "a"}, []any{1, 2, 3})

	out, err := json.Marshal(row)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"b":2}`, string(out))

	v, ok := row.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = row.Get("missing")
	assert.False(t, ok)
}

func TestRow_RecordLengthMismatch(t *testing.T) {
	out, err := json.Marshal(Record([]string{"a", "b"}, []any{1}))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))
}

func TestRow_List(t *testing.T) {
	out, err := json.Marshal(List([]any{"x", 1.5, true}))
	require.NoError(t, err)
	assert.Equal(t, `["x",1.5,true]`, string(out))

	out, err = json.Marshal(List(nil))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(out))
}

func TestRow_InPage(t *testing.T) {
	page := FetchResult{
		Rows:    []Row{Record([]string{"n"}, []any{1}), Record([]string{"n"}, []any{2})},
		HasMore: true,
	}
	out, err := json.Marshal(page)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":[{"n":1},{"n":2}],"has_more":true}`, string(out))
}
