package host

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/meacode/bridge"
)

func requireNode(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not installed")
	}
}

func TestRunJSMissingRuntime(t *testing.T) {
	h := newTestHandler(t, Config{Workspace: t.TempDir(), Node: "meacode-no-such-node"})
	logs, err := bridge.Do[[]bridge.LogItem](context.Background(), h, bridge.CmdRunJS, map[string]string{"code": "1"})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "error", logs[0].Type)
	assert.Contains(t, logs[0].Content, "not found")
}

func TestRunJSCapturesConsole(t *testing.T) {
	requireNode(t)
	h := newTestHandler(t, Config{Workspace: t.TempDir()})

	logs := h.RunJS(context.Background(), `console.log("hi", 1, {a: 2}); console.warn("careful"); console.error(new Error("x").message)`)
	assert.Equal(t, []bridge.LogItem{
		{Type: "log", Content: `hi 1 {"a":2}`},
		{Type: "warn", Content: "careful"},
		{Type: "error", Content: "x"},
	}, logs)
}

func TestRunJSException(t *testing.T) {
	requireNode(t)
	h := newTestHandler(t, Config{Workspace: t.TempDir()})

	logs := h.RunJS(context.Background(), `console.log("before"); throw new Error("boom")`)
	assert.Equal(t, []bridge.LogItem{
		{Type: "log", Content: "before"},
		{Type: "error", Content: "boom"},
	}, logs)
}

func TestRunJSIsolated(t *testing.T) {
	requireNode(t)
	h := newTestHandler(t, Config{Workspace: t.TempDir()})

	logs := h.RunJS(context.Background(), `console.log(typeof require, typeof process)`)
	assert.Equal(t, []bridge.LogItem{{Type: "log", Content: "undefined undefined"}}, logs)
}

func TestRunJSTimeout(t *testing.T) {
	requireNode(t)
	h := newTestHandler(t, Config{Workspace: t.TempDir(), SandboxTimeout: 200 * time.Millisecond})

	logs := h.RunJS(context.Background(), `while (true) {}`)
	require.Len(t, logs, 1)
	assert.Equal(t, "error", logs[0].Type)
	assert.Contains(t, logs[0].Content, "timed out")
}
