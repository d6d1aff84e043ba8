package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/odvcencio/meacode/bridge"
)

// sandboxPrelude reads a script from stdin, runs it in a fresh vm context
// with a capturing console and prints the captured lines as JSON.
const sandboxPrelude = `
const vm = require('vm');
let src = '';
process.stdin.setEncoding('utf8');
process.stdin.on('data', (c) => { src += c; });
process.stdin.on('end', () => {
  const logs = [];
  const show = (v) => {
    if (typeof v === 'string') return v;
    try { return JSON.stringify(v); } catch (e) { return String(v); }
  };
  const capture = (type) => (...args) => logs.push({ type, content: args.map(show).join(' ') });
  const console = { log: capture('log'), info: capture('info'), debug: capture('log'), warn: capture('warn'), error: capture('error') };
  try {
    vm.runInNewContext(src, { console }, { timeout: %d });
  } catch (e) {
    logs.push({ type: 'error', content: String(e && e.message ? e.message : e) });
  }
  process.stdout.write(JSON.stringify(logs));
});
`

func (h *Handler) sandboxCommands() []Command {
	return []Command{
		{
			Name:        bridge.CmdRunJS,
			Description: "Runs JavaScript in an isolated node context and returns its console output.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					Code string `json:"code"`
				}](params)
				if err != nil {
					return nil, err
				}
				return h.RunJS(ctx, p.Code), nil
			},
		},
	}
}

func errorLog(format string, args ...any) []bridge.LogItem {
	return []bridge.LogItem{{Type: "error", Content: fmt.Sprintf(format, args...)}}
}

// RunJS never fails: problems are reported as a single error entry.
func (h *Handler) RunJS(ctx context.Context, code string) []bridge.LogItem {
	node := h.cfg.Node
	if node == "" {
		node = "node"
	}
	bin, err := exec.LookPath(node)
	if err != nil {
		return errorLog("%s not found: install Node.js to run scripts", node)
	}

	// The vm timeout stops synchronous loops; the process deadline catches
	// timers that keep node alive.
	ctx, cancel := context.WithTimeout(ctx, 2*h.cfg.SandboxTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "-e", fmt.Sprintf(sandboxPrelude, h.cfg.SandboxTimeout.Milliseconds()))
	cmd.Stdin = strings.NewReader(code)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errorLog("Script execution timed out after %s", h.cfg.SandboxTimeout)
	}
	if err != nil && stdout.Len() == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return errorLog("%s", msg)
	}

	var logs []bridge.LogItem
	if err := json.Unmarshal(stdout.Bytes(), &logs); err != nil {
		return errorLog("unreadable script output: %v", err)
	}
	if logs == nil {
		logs = []bridge.LogItem{}
	}
	return logs
}
