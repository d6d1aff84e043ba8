package bridge

import "context"

// Host exposes the host commands whose failures the caller must see: disk
// I/O, dialogs and shell execution.
type Host struct {
	inv Invoker
}

// NewHost wraps inv.
func NewHost(inv Invoker) *Host {
	return &Host{inv: inv}
}

// ReadFile returns the text of the file at path.
func (h *Host) ReadFile(ctx context.Context, path string) (string, error) {
	return Do[string](ctx, h.inv, CmdReadFile, map[string]any{"path": path})
}

// WriteFile replaces the file at path with contents.
func (h *Host) WriteFile(ctx context.Context, path, contents string) error {
	_, err := Do[any](ctx, h.inv, CmdWriteFile, map[string]any{"path": path, "contents": contents})
	return err
}

// ListDir returns a recursive listing of dir.
func (h *Host) ListDir(ctx context.Context, dir string) ([]FsTreeItem, error) {
	return Do[[]FsTreeItem](ctx, h.inv, CmdListDir, map[string]any{"path": dir})
}

// CreateDir creates dir and any missing parents.
func (h *Host) CreateDir(ctx context.Context, dir string) error {
	_, err := Do[any](ctx, h.inv, CmdCreateDir, map[string]any{"path": dir})
	return err
}

// DeletePath removes a file or directory tree.
func (h *Host) DeletePath(ctx context.Context, path string) error {
	_, err := Do[any](ctx, h.inv, CmdDeletePath, map[string]any{"path": path})
	return err
}

// RenamePath moves from to to.
func (h *Host) RenamePath(ctx context.Context, from, to string) error {
	_, err := Do[any](ctx, h.inv, CmdRenamePath, map[string]any{"from": from, "to": to})
	return err
}

// PickFolder asks the user for a directory. An empty result means the
// prompt was cancelled.
func (h *Host) PickFolder(ctx context.Context) (string, error) {
	return Do[string](ctx, h.inv, CmdPickFolder, nil)
}

// SaveDialog asks the user for a destination file, proposing defaultPath.
// An empty result means the prompt was cancelled.
func (h *Host) SaveDialog(ctx context.Context, defaultPath string) (string, error) {
	return Do[string](ctx, h.inv, CmdSaveDialog, map[string]any{"defaultPath": defaultPath})
}

// Cwd returns the host's current working directory.
func (h *Host) Cwd(ctx context.Context) (string, error) {
	return Do[string](ctx, h.inv, CmdGetCwd, nil)
}

// AppConfigDir returns the per-application configuration directory.
func (h *Host) AppConfigDir(ctx context.Context) (string, error) {
	return Do[string](ctx, h.inv, CmdAppConfigDir, nil)
}

// Execute runs a shell command line.
func (h *Host) Execute(ctx context.Context, command string) (ExecResult, error) {
	return Do[ExecResult](ctx, h.inv, CmdExecuteCommand, map[string]any{"command": command})
}
