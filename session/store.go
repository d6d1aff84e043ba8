// Package session owns the editor's open tabs, the active tab, the console
// buffer and the workspace identity, and runs the background tasks tied to
// them: autosave, session persistence, filesystem and git polling.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/editor"
	"github.com/odvcencio/meacode/lang"
)

var (
	ErrFileNotFound = errors.New("session: file not found")
	ErrNoWorkspace  = errors.New("session: no workspace open")
)

const (
	DefaultAutosaveInterval = 2 * time.Second
	DefaultPollInterval     = 1500 * time.Millisecond
	DefaultGitPollInterval  = 5 * time.Second
	DefaultDebounce         = 120 * time.Millisecond

	sessionFileName = "workspace.json"
)

// Host is the set of host capabilities the store needs. *bridge.Host
// satisfies it.
type Host interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, contents string) error
	ListDir(ctx context.Context, dir string) ([]bridge.FsTreeItem, error)
	CreateDir(ctx context.Context, dir string) error
	DeletePath(ctx context.Context, path string) error
	RenamePath(ctx context.Context, from, to string) error
	PickFolder(ctx context.Context) (string, error)
	SaveDialog(ctx context.Context, defaultPath string) (string, error)
	AppConfigDir(ctx context.Context) (string, error)
}

// GitSource reports repository state. *bridge.Client satisfies it.
type GitSource interface {
	GitStatus(ctx context.Context, workspace string) *bridge.GitStatus
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// FileTab is a snapshot of one open tab.
type FileTab struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Language lang.Language `json:"language"`
	Content  string        `json:"content"`
	IsDirty  bool          `json:"isDirty"`
	Path     string        `json:"path,omitempty"`
}

// EventKind names the part of the state that changed.
type EventKind string

const (
	EventTabs      EventKind = "tabs"
	EventContent   EventKind = "content"
	EventActive    EventKind = "active"
	EventWorkspace EventKind = "workspace"
	EventFsTree    EventKind = "fsTree"
	EventConsole   EventKind = "console"
	EventPreview   EventKind = "preview"
	EventGit       EventKind = "git"
)

// Event is delivered to subscribers after a mutation completes.
type Event struct {
	Kind EventKind
}

// Store is the single source of truth for editor session state. All methods
// are safe for concurrent use. Host calls are made without holding the
// lock, so concurrent saves race independently.
type Store struct {
	host    Host
	git     GitSource
	confirm Confirmer
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string

	configDir        string
	autosaveInterval time.Duration
	pollInterval     time.Duration
	gitPollInterval  time.Duration
	debounceDelay    time.Duration

	mu            sync.Mutex
	tabs          *editor.TabManager
	workspaceRoot string
	fsTree        []bridge.FsTreeItem
	treeSig       uint64
	logs          []ConsoleLogEntry
	previewError  string
	gitStatus     *bridge.GitStatus

	subsMu sync.Mutex
	subs   map[string]func(Event)

	debounceMu sync.Mutex
	debouncers map[string]func(func())
	pending    map[string]string

	persistCh chan struct{}

	lifeMu sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithConfirmer sets the prompt used before destructive actions. Without one,
// destructive actions on unsaved work are declined.
func WithConfirmer(c Confirmer) Option {
	return func(s *Store) { s.confirm = c }
}

// WithGit enables git-status polling.
func WithGit(g GitSource) Option {
	return func(s *Store) { s.git = g }
}

// WithConfigDir overrides where the session file is written. By default the
// host's application config directory is used.
func WithConfigDir(dir string) Option {
	return func(s *Store) { s.configDir = dir }
}

// WithIntervals overrides the background task periods. Zero values keep the
// defaults.
func WithIntervals(autosave, poll, gitPoll time.Duration) Option {
	return func(s *Store) {
		if autosave > 0 {
			s.autosaveInterval = autosave
		}
		if poll > 0 {
			s.pollInterval = poll
		}
		if gitPoll > 0 {
			s.gitPollInterval = gitPoll
		}
	}
}

// WithDebounce sets the keystroke coalescing delay for QueueContentUpdate.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.debounceDelay = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the tab id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a store backed by host.
func New(host Host, opts ...Option) *Store {
	s := &Store{
		host:             host,
		log:              zerolog.Nop(),
		now:              time.Now,
		newID:            newTabID,
		autosaveInterval: DefaultAutosaveInterval,
		pollInterval:     DefaultPollInterval,
		gitPollInterval:  DefaultGitPollInterval,
		debounceDelay:    DefaultDebounce,
		tabs:             editor.NewTabManager(),
		subs:             make(map[string]func(Event)),
		debouncers:       make(map[string]func(func())),
		pending:          make(map[string]string),
		persistCh:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. Subscribers are called synchronously, in registration
// order, after the store's lock is released.
func (s *Store) Subscribe(fn func(Event)) func() {
	id := ulid.Make().String()
	s.subsMu.Lock()
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) publish(kinds ...EventKind) {
	s.subsMu.Lock()
	ids := make([]string, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subsMu.Unlock()

	persist := false
	for _, kind := range kinds {
		if kind == EventTabs || kind == EventWorkspace {
			persist = true
		}
		for _, fn := range fns {
			fn(Event{Kind: kind})
		}
	}
	if persist {
		s.requestPersist()
	}
}

// Files returns a snapshot of the open tabs in order.
func (s *Store) Files() []FileTab {
	s.mu.Lock()
	defer s.mu.Unlock()
	bufs := s.tabs.Buffers()
	out := make([]FileTab, 0, len(bufs))
	for _, buf := range bufs {
		out = append(out, snapshot(buf))
	}
	return out
}

// File returns the tab with id.
func (s *Store) File(id string) (FileTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.tabs.Get(id)
	if buf == nil {
		return FileTab{}, false
	}
	return snapshot(buf), true
}

// ActiveFile returns the active tab, if the active id names an open tab.
func (s *Store) ActiveFile() (FileTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.tabs.ActiveBuffer()
	if buf == nil {
		return FileTab{}, false
	}
	return snapshot(buf), true
}

// ActiveFileID returns the active id, which may not name an open tab.
func (s *Store) ActiveFileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs.ActiveID()
}

// WorkspaceRoot returns the open folder, or "".
func (s *Store) WorkspaceRoot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceRoot
}

// FsTree returns the cached listing of the workspace. It is advisory and
// may lag behind the disk.
func (s *Store) FsTree() []bridge.FsTreeItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fsTree
}

// GitStatus returns the last polled repository state, or nil.
func (s *Store) GitStatus() *bridge.GitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gitStatus
}

func snapshot(buf *editor.Buffer) FileTab {
	return FileTab{
		ID:       buf.ID(),
		Name:     buf.Name(),
		Language: buf.Language(),
		Content:  buf.Text(),
		IsDirty:  buf.Dirty(),
		Path:     buf.Path(),
	}
}
