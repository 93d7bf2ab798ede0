package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func call(t *testing.T, fn toolFunc, args map[string]any) (map[string]any, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out, res.IsError
}

func newHandlers(t *testing.T) *handlers {
	t.Helper()
	eng, err := engine.Open(engine.Options{FS: memfs.New()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return &handlers{eng: eng}
}

func TestToolsScenario(t *testing.T) {
	h := newHandlers(t)

	out, isErr := call(t, h.appendRecords, map[string]any{
		"dataset": "postData",
		"records": `[{"content": "a"}, {"content": "b"}, {"content": "c"}]`,
	})
	require.False(t, isErr, out)
	assert.EqualValues(t, 3, out["total"])

	out, isErr = call(t, h.initLeads, map[string]any{"dataset": "postData"})
	require.False(t, isErr, out)
	assert.EqualValues(t, 3, out["created"])

	out, isErr = call(t, h.updateLeads, map[string]any{
		"index_field": "postIndex",
		"indices":     []any{float64(0), float64(2)},
		"field":       "relevant",
		"value":       "true",
	})
	require.False(t, isErr, out)
	assert.EqualValues(t, 2, out["updated"])

	out, isErr = call(t, h.extractItems, map[string]any{
		"dataset": "postData",
		"path":    "[*].content",
		"where":   "relevant=true",
	})
	require.False(t, isErr, out)
	data := out["data"].([]any)
	require.Len(t, data, 2)
	assert.EqualValues(t, 2, data[1].(map[string]any)["index"])

	out, isErr = call(t, h.linkIndices, map[string]any{
		"source_index_field": "postIndex",
		"source_indices":     []any{float64(2)},
		"target_index_field": "profileIndex",
	})
	require.False(t, isErr, out)
	assert.EqualValues(t, 0, out["target_start"])

	out, isErr = call(t, h.listRegistry, map[string]any{})
	require.False(t, isErr, out)
	assert.Equal(t, "success", out["status"])
}

func TestToolErrors(t *testing.T) {
	h := newHandlers(t)

	out, isErr := call(t, h.initLeads, map[string]any{"dataset": "nopeData"})
	assert.True(t, isErr)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "not_found", out["kind"])

	out, isErr = call(t, h.initLeads, map[string]any{})
	assert.True(t, isErr)
	assert.Equal(t, "invalid_argument", out["kind"])

	out, isErr = call(t, h.updateLeads, map[string]any{
		"index_field": "postIndex",
		"indices":     []any{"zero"},
		"field":       "x",
		"value":       "1",
	})
	assert.True(t, isErr)
	assert.Equal(t, "invalid_argument", out["kind"])
}

func TestNewRegistersTools(t *testing.T) {
	eng, err := engine.Open(engine.Options{FS: memfs.New()})
	require.NoError(t, err)
	defer func() { _ = eng.Close() }()
	assert.NotNil(t, New(eng, "test"))
}
