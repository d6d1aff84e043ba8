package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/odvcencio/meacode/bridge"
)

// exitTimeout is reported when a command outlives the exec timeout.
const exitTimeout = 124

func (h *Handler) execCommands() []Command {
	return []Command{{
		Name:        bridge.CmdExecuteCommand,
		Description: "Runs a shell command in the tracked working directory. A bare cd changes that directory.",
		Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
			p, err := bind[struct {
				Command string `json:"command"`
			}](params)
			if err != nil {
				return nil, err
			}
			if err := required("command", strings.TrimSpace(p.Command)); err != nil {
				return nil, err
			}
			return h.Execute(ctx, p.Command)
		},
	}}
}

// Execute runs command through the shell and captures its output.
func (h *Handler) Execute(ctx context.Context, command string) (bridge.ExecResult, error) {
	command = strings.TrimSpace(command)
	if target, ok := parseCd(command); ok {
		return h.changeDir(target), nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.ExecTimeout)
	defer cancel()

	shell, flag := h.shell()
	cmd := exec.CommandContext(ctx, shell, flag, command)
	cmd.Dir = h.Cwd()
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := bridge.ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.Stderr += fmt.Sprintf("command timed out after %s\n", h.cfg.ExecTimeout)
		res.ExitCode = exitTimeout
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, fmt.Errorf("run %s: %w", shell, err)
}

func (h *Handler) shell() (string, string) {
	if h.cfg.Shell != "" {
		if filepath.Base(h.cfg.Shell) == "cmd" || strings.EqualFold(filepath.Base(h.cfg.Shell), "cmd.exe") {
			return h.cfg.Shell, "/C"
		}
		return h.cfg.Shell, "-c"
	}
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "sh", "-c"
}

// parseCd recognizes "cd" and "cd <dir>" with no other shell syntax.
func parseCd(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 || fields[0] != "cd" || len(fields) > 2 {
		return "", false
	}
	if strings.ContainsAny(command, ";&|<>$`") {
		return "", false
	}
	if len(fields) == 1 {
		return "~", true
	}
	return strings.Trim(fields[1], `"'`), true
}

func (h *Handler) changeDir(target string) bridge.ExecResult {
	dir := target
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
		}
	}
	dir = h.resolvePath(dir)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return bridge.ExecResult{
			Stderr:   fmt.Sprintf("cd: no such file or directory: %s\n", target),
			ExitCode: 1,
		}
	}
	h.setCwd(dir)
	return bridge.ExecResult{}
}
