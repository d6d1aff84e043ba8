package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoServer is returned when no server is configured for a language.
var ErrNoServer = errors.New("lsp: no server configured")

// DefaultDiagnosticsWait bounds how long Diagnostics waits for a
// publishDiagnostics notification after syncing a document.
const DefaultDiagnosticsWait = 1500 * time.Millisecond

// Document is one file as the editor currently sees it.
type Document struct {
	Path     string
	Language string
	Root     string
	Text     string
}

// StartFunc launches a language server.
type StartFunc func(ctx context.Context, log zerolog.Logger, command string, args ...string) (*Client, error)

// Manager owns one client per language and workspace root, starting
// servers lazily and restarting them after transport failures.
type Manager struct {
	servers  map[string]ServerConfig
	start    StartFunc
	log      zerolog.Logger
	diagWait time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	clients  map[string]*Client
	versions map[string]int
	diags    map[string][]Diagnostic
	waiters  map[string][]chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithStartFunc replaces how servers are launched.
func WithStartFunc(fn StartFunc) ManagerOption {
	return func(m *Manager) { m.start = fn }
}

// WithDiagnosticsWait overrides DefaultDiagnosticsWait.
func WithDiagnosticsWait(d time.Duration) ManagerOption {
	return func(m *Manager) { m.diagWait = d }
}

// NewManager creates a manager for the given language table.
func NewManager(servers map[string]ServerConfig, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		servers:  servers,
		start:    Start,
		log:      zerolog.Nop(),
		diagWait: DefaultDiagnosticsWait,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]*Client),
		versions: make(map[string]int),
		diags:    make(map[string][]Diagnostic),
		waiters:  make(map[string][]chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Completion syncs doc and requests completions at pos.
func (m *Manager) Completion(ctx context.Context, doc Document, pos Position) ([]CompletionItem, error) {
	var items []CompletionItem
	err := m.withRetryingClient(ctx, doc, func(c *Client, uri string) error {
		var err error
		items, err = c.Completion(ctx, uri, pos)
		return err
	})
	return items, err
}

// Hover syncs doc and requests hover information at pos.
func (m *Manager) Hover(ctx context.Context, doc Document, pos Position) (*Hover, error) {
	var hover *Hover
	err := m.withRetryingClient(ctx, doc, func(c *Client, uri string) error {
		var err error
		hover, err = c.Hover(ctx, uri, pos)
		return err
	})
	return hover, err
}

// Diagnostics syncs doc and waits for the server to publish diagnostics for
// it. When nothing arrives in time the last known set is returned.
func (m *Manager) Diagnostics(ctx context.Context, doc Document) ([]Diagnostic, error) {
	uri := FileURI(doc.Path)
	ready := make(chan struct{})
	m.mu.Lock()
	m.waiters[uri] = append(m.waiters[uri], ready)
	m.mu.Unlock()
	defer m.dropWaiter(uri, ready)

	if err := m.withRetryingClient(ctx, doc, func(*Client, string) error { return nil }); err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.diagWait)
	defer timer.Stop()
	select {
	case <-ready:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Diagnostic(nil), m.diags[uri]...), nil
}

func (m *Manager) dropWaiter(uri string, ready chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.waiters[uri]
	for i, ch := range list {
		if ch == ready {
			m.waiters[uri] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(m.waiters[uri]) == 0 {
		delete(m.waiters, uri)
	}
}

func (m *Manager) handleNotify(method string, params json.RawMessage) {
	if method != "textDocument/publishDiagnostics" {
		return
	}
	var payload PublishDiagnosticsParams
	if err := json.Unmarshal(params, &payload); err != nil {
		m.log.Debug().Err(err).Msg("decode publishDiagnostics")
		return
	}
	m.mu.Lock()
	m.diags[payload.URI] = payload.Diagnostics
	waiters := m.waiters[payload.URI]
	delete(m.waiters, payload.URI)
	m.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}

func clientKey(language, root string) string {
	return language + "\x00" + root
}

func (m *Manager) withRetryingClient(ctx context.Context, doc Document, op func(*Client, string) error) error {
	run := func() error {
		c, err := m.clientFor(ctx, doc.Language, doc.Root)
		if err != nil {
			return err
		}
		uri, err := m.sync(c, doc)
		if err != nil {
			return err
		}
		return op(c, uri)
	}
	err := run()
	if !IsTransportError(err) {
		return err
	}
	m.log.Debug().Err(err).Str("language", doc.Language).Msg("restarting language server")
	m.reset(doc.Language, doc.Root)
	return run()
}

// sync sends didOpen the first time a document is seen by a client and
// didChange with an incremented version afterwards.
func (m *Manager) sync(c *Client, doc Document) (string, error) {
	uri := FileURI(doc.Path)
	key := clientKey(doc.Language, doc.Root) + "\x00" + uri

	m.mu.Lock()
	version, opened := m.versions[key]
	version++
	m.versions[key] = version
	m.mu.Unlock()

	var err error
	if opened {
		err = c.DidChange(uri, version, doc.Text)
	} else {
		err = c.DidOpen(uri, doc.Language, version, doc.Text)
	}
	if err != nil {
		m.mu.Lock()
		delete(m.versions, key)
		m.mu.Unlock()
		return "", err
	}
	return uri, nil
}

func (m *Manager) clientFor(ctx context.Context, language, root string) (*Client, error) {
	if language == "" {
		return nil, fmt.Errorf("missing language id: %w", ErrNoServer)
	}
	config, ok := m.servers[language]
	if !ok || config.Command == "" {
		return nil, fmt.Errorf("%s: %w", language, ErrNoServer)
	}
	key := clientKey(language, root)

	m.mu.Lock()
	existing := m.clients[key]
	m.mu.Unlock()
	if existing != nil {
		return existing, nil
	}

	client, err := m.start(m.ctx, m.log, config.Command, config.Args...)
	if err != nil {
		return nil, err
	}
	client.SetNotifyHandler(m.handleNotify)

	if err := client.Initialize(ctx, FileURI(root)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("initialize %s: %w", config.Command, err)
	}

	m.mu.Lock()
	existing = m.clients[key]
	if existing != nil {
		// A concurrent initialization won the race.
		m.mu.Unlock()
		_ = client.Close()
		return existing, nil
	}
	m.clients[key] = client
	m.mu.Unlock()
	m.log.Info().Str("language", language).Str("root", root).Str("server", config.Command).Msg("language server started")
	return client, nil
}

func (m *Manager) reset(language, root string) {
	key := clientKey(language, root)
	m.mu.Lock()
	client := m.clients[key]
	delete(m.clients, key)
	for k := range m.versions {
		if strings.HasPrefix(k, key+"\x00") {
			delete(m.versions, k)
		}
	}
	m.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

// Close stops every server.
func (m *Manager) Close() error {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*Client)
	m.versions = make(map[string]int)
	m.mu.Unlock()

	m.cancel()
	for _, c := range clients {
		if err := c.Close(); err != nil {
			m.log.Debug().Err(err).Msg("language server exit")
		}
	}
	return nil
}
