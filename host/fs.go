package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/meacode/bridge"
)

// skippedDirs are never listed or watched.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".next":        true,
	"target":       true,
}

// Dialogs asks the user for locations.
type Dialogs interface {
	PickFolder(ctx context.Context) (string, error)
	SaveFile(ctx context.Context, defaultPath string) (string, error)
}

// AutoDialogs answers without asking: the workspace for folder picks and
// the proposed path for saves.
type AutoDialogs struct {
	Workspace string
}

// PickFolder returns the configured workspace, or "" (cancelled).
func (d AutoDialogs) PickFolder(context.Context) (string, error) {
	return d.Workspace, nil
}

// SaveFile accepts defaultPath, resolved against the workspace when
// relative.
func (d AutoDialogs) SaveFile(_ context.Context, defaultPath string) (string, error) {
	if defaultPath == "" || filepath.IsAbs(defaultPath) || d.Workspace == "" {
		return defaultPath, nil
	}
	return filepath.Join(d.Workspace, defaultPath), nil
}

type pathParams struct {
	Path string `json:"path"`
}

func (h *Handler) fsCommands() []Command {
	return []Command{
		{
			Name:        bridge.CmdReadFile,
			Description: "Reads a file as UTF-8 text.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[pathParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("path", p.Path); err != nil {
					return nil, err
				}
				data, err := os.ReadFile(h.resolvePath(p.Path))
				if err != nil {
					return nil, err
				}
				return string(data), nil
			},
		},
		{
			Name:        bridge.CmdWriteFile,
			Description: "Writes text to a file, creating parent directories.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					Path     string `json:"path"`
					Contents string `json:"contents"`
				}](params)
				if err != nil {
					return nil, err
				}
				if err := required("path", p.Path); err != nil {
					return nil, err
				}
				path := h.resolvePath(p.Path)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return nil, err
				}
				return nil, os.WriteFile(path, []byte(p.Contents), 0o644)
			},
		},
		{
			Name:        bridge.CmdListDir,
			Description: "Lists a directory recursively, directories first.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[pathParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("path", p.Path); err != nil {
					return nil, err
				}
				return ListTree(h.resolvePath(p.Path))
			},
		},
		{
			Name:        bridge.CmdCreateDir,
			Description: "Creates a directory and any missing parents.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[pathParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("path", p.Path); err != nil {
					return nil, err
				}
				return nil, os.MkdirAll(h.resolvePath(p.Path), 0o755)
			},
		},
		{
			Name:        bridge.CmdDeletePath,
			Description: "Deletes a file or a directory tree.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[pathParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("path", p.Path); err != nil {
					return nil, err
				}
				path := h.resolvePath(p.Path)
				if _, err := os.Lstat(path); err != nil {
					return nil, err
				}
				return nil, os.RemoveAll(path)
			},
		},
		{
			Name:        bridge.CmdRenamePath,
			Description: "Renames or moves a file or directory, creating missing parents.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					From string `json:"from"`
					To   string `json:"to"`
				}](params)
				if err != nil {
					return nil, err
				}
				if err := required("from", p.From); err != nil {
					return nil, err
				}
				if err := required("to", p.To); err != nil {
					return nil, err
				}
				to := h.resolvePath(p.To)
				if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
					return nil, err
				}
				return nil, os.Rename(h.resolvePath(p.From), to)
			},
		},
		{
			Name:        bridge.CmdPickFolder,
			Description: "Asks for a folder; null when cancelled.",
			Handler: func(ctx context.Context, _ json.RawMessage) (any, error) {
				dir, err := h.dialogs.PickFolder(ctx)
				if err != nil || dir == "" {
					return nil, err
				}
				return dir, nil
			},
		},
		{
			Name:        bridge.CmdSaveDialog,
			Description: "Asks for a save destination; null when cancelled.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					DefaultPath string `json:"defaultPath"`
				}](params)
				if err != nil {
					return nil, err
				}
				dest, err := h.dialogs.SaveFile(ctx, p.DefaultPath)
				if err != nil || dest == "" {
					return nil, err
				}
				return dest, nil
			},
		},
		{
			Name:        bridge.CmdGetCwd,
			Description: "Returns the directory shell commands run in.",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return h.Cwd(), nil
			},
		},
		{
			Name:        bridge.CmdAppConfigDir,
			Description: "Returns the per-user application config directory.",
			Handler: func(context.Context, json.RawMessage) (any, error) {
				return h.appConfigDir()
			},
		},
	}
}

func (h *Handler) appConfigDir() (string, error) {
	dir := h.cfg.ConfigDir
	if dir == "" {
		root, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("user config dir: %w", err)
		}
		dir = filepath.Join(root, "meacode")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// readDir is swapped in tests to simulate concurrent deletes.
var readDir = os.ReadDir

// ListTree returns the recursive listing of dir, directories first then by
// name, skipping VCS and dependency folders. Subdirectories that vanish or
// cannot be read while listing are tolerated; dir itself must be readable.
func ListTree(dir string) ([]bridge.FsTreeItem, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	items := make([]bridge.FsTreeItem, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil {
				isDir = info.IsDir()
			}
		}
		item := bridge.FsTreeItem{Name: name, Path: path, IsDir: isDir}
		if isDir && skippedDirs[name] {
			continue
		}
		// Symlinked directories are listed but not followed.
		if entry.IsDir() {
			children, err := ListTree(path)
			switch {
			case errors.Is(err, os.ErrNotExist):
				continue
			case err != nil && !errors.Is(err, os.ErrPermission):
				return nil, err
			}
			item.Children = children
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDir != items[j].IsDir {
			return items[i].IsDir
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}
