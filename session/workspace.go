package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/editor"
)

// OpenFolder prompts for a directory and makes it the workspace, replacing
// the cached tree with a fresh listing. A cancelled prompt changes nothing.
func (s *Store) OpenFolder(ctx context.Context) (string, error) {
	dir, err := s.host.PickFolder(ctx)
	if err != nil {
		return "", fmt.Errorf("pick folder: %w", err)
	}
	if dir == "" {
		return "", nil
	}
	if err := s.SetWorkspace(ctx, dir); err != nil {
		return "", err
	}
	return dir, nil
}

// SetWorkspace opens dir as the workspace without prompting.
func (s *Store) SetWorkspace(ctx context.Context, dir string) error {
	tree, err := s.host.ListDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	s.mu.Lock()
	s.workspaceRoot = dir
	s.fsTree = tree
	s.treeSig = treeSignature(tree)
	s.gitStatus = nil
	s.mu.Unlock()

	s.publish(EventWorkspace, EventFsTree)
	return nil
}

// ReloadFsTree re-reads the workspace listing. It is a no-op when no
// workspace is open.
func (s *Store) ReloadFsTree(ctx context.Context) error {
	root := s.WorkspaceRoot()
	if root == "" {
		return nil
	}
	tree, err := s.host.ListDir(ctx, root)
	if err != nil {
		return fmt.Errorf("list %s: %w", root, err)
	}
	s.mu.Lock()
	if s.workspaceRoot != root {
		s.mu.Unlock()
		return nil
	}
	s.fsTree = tree
	s.treeSig = treeSignature(tree)
	s.mu.Unlock()

	s.publish(EventFsTree)
	return nil
}

// refreshFsTree replaces the tree only when its structure changed, and
// reports whether it did.
func (s *Store) refreshFsTree(ctx context.Context) (bool, error) {
	root := s.WorkspaceRoot()
	if root == "" {
		return false, nil
	}
	tree, err := s.host.ListDir(ctx, root)
	if err != nil {
		return false, fmt.Errorf("list %s: %w", root, err)
	}
	sig := treeSignature(tree)

	s.mu.Lock()
	if s.workspaceRoot != root || sig == s.treeSig {
		s.mu.Unlock()
		return false, nil
	}
	s.fsTree = tree
	s.treeSig = sig
	s.mu.Unlock()

	s.publish(EventFsTree)
	return true, nil
}

// ApplyRename updates every tab affected by renaming oldPath to newPath on
// disk: the file itself, or anything under it when it is a directory.
func (s *Store) ApplyRename(oldPath, newPath string) int {
	s.mu.Lock()
	n := s.tabs.Relocate(oldPath, newPath)
	s.mu.Unlock()
	if n > 0 {
		s.publish(EventTabs)
	}
	return n
}

// RenamePath renames a file or directory on disk and propagates the change
// to open tabs and the tree.
func (s *Store) RenamePath(ctx context.Context, from, to string) error {
	if err := s.host.RenamePath(ctx, from, to); err != nil {
		return fmt.Errorf("rename %s: %w", from, err)
	}
	s.ApplyRename(from, to)
	return s.ReloadFsTree(ctx)
}

// CreateFolder creates a directory and refreshes the tree.
func (s *Store) CreateFolder(ctx context.Context, dir string) error {
	if err := s.host.CreateDir(ctx, dir); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return s.ReloadFsTree(ctx)
}

// DeletePath removes a file or directory after confirmation, closing any
// tabs backed by it. It reports false when the prompt was declined.
func (s *Store) DeletePath(ctx context.Context, path string) (bool, error) {
	ok, err := s.confirmAction(ctx, fmt.Sprintf("Delete %s? This cannot be undone.", path))
	if err != nil || !ok {
		return false, err
	}
	if err := s.host.DeletePath(ctx, path); err != nil {
		return false, fmt.Errorf("delete %s: %w", path, err)
	}

	s.mu.Lock()
	var doomed []string
	for _, buf := range s.tabs.Buffers() {
		if editor.Contains(path, buf.Path()) {
			doomed = append(doomed, buf.ID())
		}
	}
	for _, id := range doomed {
		s.tabs.Close(id)
	}
	s.mu.Unlock()

	if len(doomed) > 0 {
		s.publish(EventTabs, EventActive)
	}
	return true, s.ReloadFsTree(ctx)
}

// treeSignature hashes names and directory flags in order, so two listings
// with the same shape compare equal without walking both.
func treeSignature(items []bridge.FsTreeItem) uint64 {
	h := xxh3.New()
	writeTree(h, items)
	return h.Sum64()
}

func writeTree(h *xxh3.Hasher, items []bridge.FsTreeItem) {
	for _, item := range items {
		_, _ = h.Write([]byte(item.Name))
		if item.IsDir {
			_, _ = h.Write([]byte{0, 'd', '('})
			writeTree(h, item.Children)
			_, _ = h.Write([]byte{')'})
		} else {
			_, _ = h.Write([]byte{0, 'f'})
		}
	}
}

func sameGitStatus(a, b *bridge.GitStatus) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Branch == b.Branch &&
		a.IsClean == b.IsClean &&
		slices.Equal(a.ModifiedFiles, b.ModifiedFiles) &&
		slices.Equal(a.UntrackedFiles, b.UntrackedFiles) &&
		slices.Equal(a.StagedFiles, b.StagedFiles)
}
