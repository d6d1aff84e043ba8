package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/config"
)

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &bridge.GitStatus{
		Branch:         "main",
		StagedFiles:    []string{"a.go"},
		ModifiedFiles:  []string{"b.go"},
		UntrackedFiles: []string{"c.go"},
	}, []bridge.GitBranch{
		{Name: "main", IsCurrent: true},
		{Name: "feature"},
		{Name: "origin/main", IsRemote: true},
	})

	out := buf.String()
	assert.Contains(t, out, "On branch main")
	assert.Contains(t, out, "Staged:")
	assert.Contains(t, out, "a.go")
	assert.Contains(t, out, "Modified:")
	assert.Contains(t, out, "Untracked:")
	assert.Contains(t, out, "feature, origin/main")
	assert.NotContains(t, out, "working tree clean")
}

func TestRenderStatusClean(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, &bridge.GitStatus{Branch: "dev", IsClean: true}, nil)

	out := buf.String()
	assert.Contains(t, out, "working tree clean")
	assert.NotContains(t, out, "Staged:")
	assert.NotContains(t, out, "other branches")
}

func TestHostConfig(t *testing.T) {
	cfg := config.DefaultConfig
	cfg.Workspace = "/work"
	cfg.Exec.Timeout = 5 * time.Second
	cfg.AI.APIKey = "sk-test"

	hc := (&app{cfg: &cfg}).hostConfig()
	assert.Equal(t, "/work", hc.Workspace)
	assert.Equal(t, 5*time.Second, hc.ExecTimeout)
	assert.Equal(t, "sk-test", hc.AI.APIKey)
	assert.Equal(t, cfg.Sandbox.Node, hc.Node)
}
