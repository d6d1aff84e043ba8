package session

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/odvcencio/meacode/editor"
	"github.com/odvcencio/meacode/lang"
)

func newTabID() string {
	return uuid.NewString()
}

// CreateFile appends an empty, unsaved tab and makes it active. No disk I/O
// happens until the tab is saved.
func (s *Store) CreateFile(name string, language lang.Language) FileTab {
	s.mu.Lock()
	buf := editor.NewBuffer(s.newID(), name, language)
	s.tabs.Add(buf)
	tab := snapshot(buf)
	s.mu.Unlock()

	s.publish(EventTabs, EventActive)
	return tab
}

// UpdateFileContent replaces a tab's content and marks it dirty. Byte-equal
// content is ignored.
func (s *Store) UpdateFileContent(id, content string) {
	s.mu.Lock()
	buf := s.tabs.Get(id)
	changed := buf != nil && buf.SetText(content)
	s.mu.Unlock()

	if changed {
		s.publish(EventContent)
	}
}

// QueueContentUpdate coalesces rapid edits to a tab; only the last content
// queued within the debounce window is committed.
func (s *Store) QueueContentUpdate(id, content string) {
	s.debounceMu.Lock()
	s.pending[id] = content
	debounced, ok := s.debouncers[id]
	if !ok {
		debounced = debounce.New(s.debounceDelay)
		s.debouncers[id] = debounced
	}
	s.debounceMu.Unlock()

	debounced(func() { s.flushPending(id) })
}

func (s *Store) flushPending(id string) {
	s.debounceMu.Lock()
	content, ok := s.pending[id]
	delete(s.pending, id)
	s.debounceMu.Unlock()
	if ok {
		s.UpdateFileContent(id, content)
	}
}

// FlushPendingUpdates commits every queued edit immediately.
func (s *Store) FlushPendingUpdates() {
	s.debounceMu.Lock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	s.debounceMu.Unlock()
	for _, id := range ids {
		s.flushPending(id)
	}
}

// CloseFile removes a tab. Closing a dirty tab asks for confirmation first;
// a declined prompt leaves everything untouched and reports false.
func (s *Store) CloseFile(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	buf := s.tabs.Get(id)
	if buf == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("close %s: %w", id, ErrFileNotFound)
	}
	dirty, name := buf.Dirty(), buf.Name()
	s.mu.Unlock()

	if dirty {
		ok, err := s.confirmAction(ctx, fmt.Sprintf("%s has unsaved changes. Close anyway?", name))
		if err != nil || !ok {
			return false, err
		}
	}

	s.mu.Lock()
	closed := s.tabs.Close(id)
	s.mu.Unlock()
	if !closed {
		return false, nil
	}

	s.debounceMu.Lock()
	delete(s.pending, id)
	delete(s.debouncers, id)
	s.debounceMu.Unlock()

	s.publish(EventTabs, EventActive)
	return true, nil
}

func (s *Store) confirmAction(ctx context.Context, message string) (bool, error) {
	if s.confirm == nil {
		s.log.Debug().Str("prompt", message).Msg("no confirmer configured, declining")
		return false, nil
	}
	ok, err := s.confirm.Confirm(ctx, message)
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}

// SetActiveFile switches the active tab. Unknown ids are accepted and
// resolve to no active file.
func (s *Store) SetActiveFile(id string) {
	s.mu.Lock()
	changed := s.tabs.ActiveID() != id
	s.tabs.SetActive(id)
	s.mu.Unlock()
	if changed {
		s.publish(EventActive)
	}
}

// SaveFile writes a tab to its path and clears dirty. A tab without a path
// is handed to SaveFileAs.
func (s *Store) SaveFile(ctx context.Context, id string) error {
	s.mu.Lock()
	buf := s.tabs.Get(id)
	if buf == nil {
		s.mu.Unlock()
		return fmt.Errorf("save %s: %w", id, ErrFileNotFound)
	}
	path, content := buf.Path(), buf.Text()
	s.mu.Unlock()

	if path == "" {
		return s.SaveFileAs(ctx, id)
	}
	if err := s.host.WriteFile(ctx, path, content); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	s.mu.Lock()
	changed := false
	if buf := s.tabs.Get(id); buf != nil && buf.Text() == content && buf.Dirty() {
		buf.MarkSaved()
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.publish(EventContent)
	}
	return nil
}

// SaveFileAs asks for a destination, proposing the tab name inside the
// workspace, writes the content there and adopts the new path and name. A
// cancelled prompt leaves the tab unchanged.
func (s *Store) SaveFileAs(ctx context.Context, id string) error {
	s.mu.Lock()
	buf := s.tabs.Get(id)
	if buf == nil {
		s.mu.Unlock()
		return fmt.Errorf("save as %s: %w", id, ErrFileNotFound)
	}
	name, content, root := buf.Name(), buf.Text(), s.workspaceRoot
	s.mu.Unlock()

	defaultPath := name
	if root != "" {
		defaultPath = filepath.Join(root, name)
	}
	dest, err := s.host.SaveDialog(ctx, defaultPath)
	if err != nil {
		return fmt.Errorf("save dialog: %w", err)
	}
	if dest == "" {
		return nil
	}
	if err := s.host.WriteFile(ctx, dest, content); err != nil {
		return fmt.Errorf("save %s: %w", dest, err)
	}

	s.mu.Lock()
	if buf := s.tabs.Get(id); buf != nil {
		buf.SaveAs(dest)
		if buf.Text() != content {
			buf.MarkDirty()
		}
	}
	s.mu.Unlock()

	s.publish(EventTabs)
	return nil
}

// OpenFileFromDisk reads path into a tab. A tab already backed by path is
// refreshed in place and activated instead of duplicated.
func (s *Store) OpenFileFromDisk(ctx context.Context, path string) (FileTab, error) {
	text, err := s.host.ReadFile(ctx, path)
	if err != nil {
		return FileTab{}, fmt.Errorf("open %s: %w", path, err)
	}

	s.mu.Lock()
	buf := s.tabs.FindPath(path)
	created := buf == nil
	if created {
		buf = editor.OpenedBuffer(s.newID(), path, text)
		s.tabs.Add(buf)
	} else {
		buf.Reload(text)
		s.tabs.SetActive(buf.ID())
	}
	tab := snapshot(buf)
	s.mu.Unlock()

	if created {
		s.publish(EventTabs, EventActive)
	} else {
		s.publish(EventContent, EventActive)
	}
	return tab, nil
}
