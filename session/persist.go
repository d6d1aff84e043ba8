package session

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/odvcencio/meacode/editor"
	"github.com/odvcencio/meacode/lang"
)

// savedSession is the on-disk session descriptor. Content is not stored.
type savedSession struct {
	WorkspaceRoot *string    `json:"workspaceRoot"`
	Tabs          []savedTab `json:"tabs"`
}

type savedTab struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Language string  `json:"language"`
	Path     *string `json:"path"`
}

func (s *Store) sessionPath(ctx context.Context) (string, error) {
	dir := s.configDir
	if dir == "" {
		var err error
		dir, err = s.host.AppConfigDir(ctx)
		if err != nil {
			return "", fmt.Errorf("config dir: %w", err)
		}
	}
	if dir == "" {
		return "", fmt.Errorf("config dir: empty")
	}
	return filepath.Join(dir, sessionFileName), nil
}

func (s *Store) requestPersist() {
	select {
	case s.persistCh <- struct{}{}:
	default:
	}
}

// Persist writes the session descriptor now.
func (s *Store) Persist(ctx context.Context) error {
	path, err := s.sessionPath(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	saved := savedSession{Tabs: make([]savedTab, 0, s.tabs.Count())}
	if s.workspaceRoot != "" {
		root := s.workspaceRoot
		saved.WorkspaceRoot = &root
	}
	for _, buf := range s.tabs.Buffers() {
		tab := savedTab{ID: buf.ID(), Name: buf.Name(), Language: string(buf.Language())}
		if !buf.Untitled() {
			p := buf.Path()
			tab.Path = &p
		}
		saved.Tabs = append(saved.Tabs, tab)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.host.WriteFile(ctx, path, string(data)); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Restore loads the last session. The workspace listing is re-read and each
// remembered tab with a path is reloaded from disk; unsaved tabs and tabs
// whose file can no longer be read are dropped. The first restored tab
// becomes active. A missing session file is not an error.
func (s *Store) Restore(ctx context.Context) error {
	path, err := s.sessionPath(ctx)
	if err != nil {
		return err
	}
	raw, err := s.host.ReadFile(ctx, path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("no saved session")
		return nil
	}
	var saved savedSession
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return fmt.Errorf("decode session %s: %w", path, err)
	}

	if saved.WorkspaceRoot != nil && *saved.WorkspaceRoot != "" {
		if err := s.SetWorkspace(ctx, *saved.WorkspaceRoot); err != nil {
			s.log.Warn().Err(err).Str("workspace", *saved.WorkspaceRoot).Msg("restore workspace")
		}
	}

	restored := make([]*editor.Buffer, 0, len(saved.Tabs))
	for _, t := range saved.Tabs {
		if t.Path == nil || *t.Path == "" {
			continue
		}
		text, err := s.host.ReadFile(ctx, *t.Path)
		if err != nil {
			s.log.Debug().Err(err).Str("path", *t.Path).Msg("dropping tab on restore")
			continue
		}
		id := t.ID
		if id == "" {
			id = s.newID()
		}
		restored = append(restored, editor.RestoredBuffer(id, t.Name, lang.Language(t.Language), *t.Path, text))
	}

	s.mu.Lock()
	s.tabs.Reset()
	for _, buf := range restored {
		s.tabs.Add(buf)
	}
	if len(restored) > 0 {
		s.tabs.SetActive(restored[0].ID())
	}
	s.mu.Unlock()

	s.publish(EventTabs, EventActive)
	return nil
}
