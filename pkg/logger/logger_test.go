package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "WARN", Format: "json", Output: &buf})

	l.Info("dropped")
	l.Warn("kept", "cursor_id", "c1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "c1", rec["cursor_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "text", Output: &buf})
	l.Debug("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestWithTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	assert.Same(t, base, WithTraceID(context.Background(), base))

	ctx := ContextWithTraceID(context.Background(), "req-42")
	WithTraceID(ctx, base).Info("traced")
	assert.Contains(t, buf.String(), `"trace_id":"req-42"`)
}
