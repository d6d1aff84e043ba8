package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Start launches the background tasks: autosave, session persistence, and
// filesystem and git polling. They run until ctx is done or Close is
// called. Calling Start on a running store is a no-op.
func (s *Store) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = g

	g.Go(func() error { return s.every(ctx, s.autosaveInterval, s.autosaveTick) })
	g.Go(func() error { return s.every(ctx, s.pollInterval, s.pollTick) })
	if s.git != nil {
		g.Go(func() error { return s.every(ctx, s.gitPollInterval, s.gitTick) })
	}
	g.Go(func() error { return s.persistLoop(ctx) })
}

// Close stops the background tasks and waits for them, committing queued
// edits and writing the session one last time if it changed.
func (s *Store) Close() error {
	s.lifeMu.Lock()
	cancel, g := s.cancel, s.group
	s.cancel, s.group = nil, nil
	s.lifeMu.Unlock()

	s.FlushPendingUpdates()
	if cancel == nil {
		return nil
	}
	cancel()
	return g.Wait()
}

func (s *Store) every(ctx context.Context, period time.Duration, tick func(context.Context)) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tick(ctx)
		}
	}
}

// autosaveTick saves the first dirty tab that has a path. Only one tab is
// saved per tick.
func (s *Store) autosaveTick(ctx context.Context) {
	s.mu.Lock()
	id := ""
	for _, buf := range s.tabs.Buffers() {
		if buf.Dirty() && buf.Path() != "" {
			id = buf.ID()
			break
		}
	}
	s.mu.Unlock()
	if id == "" {
		return
	}
	if err := s.SaveFile(ctx, id); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Str("tab", id).Msg("autosave failed")
	}
}

func (s *Store) pollTick(ctx context.Context) {
	if _, err := s.refreshFsTree(ctx); err != nil && ctx.Err() == nil {
		s.log.Debug().Err(err).Msg("fs poll failed")
	}
}

func (s *Store) gitTick(ctx context.Context) {
	root := s.WorkspaceRoot()
	if root == "" {
		return
	}
	status := s.git.GitStatus(ctx, root)

	s.mu.Lock()
	if s.workspaceRoot != root || sameGitStatus(s.gitStatus, status) {
		s.mu.Unlock()
		return
	}
	s.gitStatus = status
	s.mu.Unlock()
	s.publish(EventGit)
}

func (s *Store) persistLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			select {
			case <-s.persistCh:
				s.persistNow(context.WithoutCancel(ctx))
			default:
			}
			return nil
		case <-s.persistCh:
			s.persistNow(ctx)
		}
	}
}

func (s *Store) persistNow(ctx context.Context) {
	if err := s.Persist(ctx); err != nil {
		s.log.Warn().Err(err).Msg("persist session")
	}
}
