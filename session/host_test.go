package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/odvcencio/meacode/bridge"
)

var errFake = errors.New("fake host failure")

// fakeHost is an in-memory Host. Directory listings are derived from the
// stored file paths.
type fakeHost struct {
	mu sync.Mutex

	files     map[string]string
	dirs      map[string]bool
	configDir string

	pickFolder   string
	saveDest     string
	saveDefaults []string

	writeErr error
	listErr  error

	writes    int
	listCalls int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		files:     map[string]string{},
		dirs:      map[string]bool{},
		configDir: "/config",
	}
}

func (f *fakeHost) put(path, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = text
}

func (f *fakeHost) get(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.files[path]
	return text, ok
}

func (f *fakeHost) ReadFile(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("read %s: %w", path, errFake)
	}
	return text, nil
}

func (f *fakeHost) WriteFile(_ context.Context, path, contents string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes++
	f.files[path] = contents
	return nil
}

func (f *fakeHost) ListDir(_ context.Context, dir string) ([]bridge.FsTreeItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listLocked(dir), nil
}

func (f *fakeHost) listLocked(dir string) []bridge.FsTreeItem {
	prefix := strings.TrimSuffix(dir, "/") + "/"
	children := map[string]bool{}
	for _, paths := range []map[string]bool{f.fileSet(), f.dirs} {
		for p := range paths {
			if !strings.HasPrefix(p, prefix) {
				continue
			}
			rest := strings.TrimPrefix(p, prefix)
			name, _, nested := strings.Cut(rest, "/")
			if nested || f.dirs[prefix+name] {
				children[name] = true
			} else if _, seen := children[name]; !seen {
				children[name] = false
			}
		}
	}
	names := make([]string, 0, len(children))
	for name := range children {
		names = append(names, name)
	}
	sort.Strings(names)
	items := make([]bridge.FsTreeItem, 0, len(names))
	for _, name := range names {
		item := bridge.FsTreeItem{Name: name, Path: prefix + name, IsDir: children[name]}
		if item.IsDir {
			item.Children = f.listLocked(item.Path)
		}
		items = append(items, item)
	}
	return items
}

func (f *fakeHost) fileSet() map[string]bool {
	set := make(map[string]bool, len(f.files))
	for p := range f.files {
		set[p] = true
	}
	return set
}

func (f *fakeHost) CreateDir(_ context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[dir] = true
	return nil
}

func (f *fakeHost) DeletePath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := range f.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(f.files, p)
		}
	}
	delete(f.dirs, path)
	return nil
}

func (f *fakeHost) RenamePath(_ context.Context, from, to string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	moved := false
	for p, text := range f.files {
		switch {
		case p == from:
			delete(f.files, p)
			f.files[to] = text
			moved = true
		case strings.HasPrefix(p, from+"/"):
			delete(f.files, p)
			f.files[to+strings.TrimPrefix(p, from)] = text
			moved = true
		}
	}
	if !moved {
		return fmt.Errorf("rename %s: %w", from, errFake)
	}
	return nil
}

func (f *fakeHost) PickFolder(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pickFolder, nil
}

func (f *fakeHost) SaveDialog(_ context.Context, defaultPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveDefaults = append(f.saveDefaults, defaultPath)
	return f.saveDest, nil
}

func (f *fakeHost) AppConfigDir(context.Context) (string, error) {
	return f.configDir, nil
}

type fakeGit struct {
	mu     sync.Mutex
	status *bridge.GitStatus
}

func (g *fakeGit) set(status *bridge.GitStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func (g *fakeGit) GitStatus(context.Context, string) *bridge.GitStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}
