// Package host implements the bridge commands on the local machine: disk
// access, shell execution, language servers, git, AI, billing placeholders
// and the script sandbox.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/intellisense"
	"github.com/odvcencio/meacode/lsp"
)

var (
	ErrUnknownCommand = errors.New("host: unknown command")
	ErrInvalidParams  = errors.New("host: invalid params")
	ErrNotConfigured  = errors.New("host: not configured")
)

const (
	DefaultExecTimeout    = 60 * time.Second
	DefaultSandboxTimeout = 1500 * time.Millisecond
)

// Command describes one named host command.
type Command struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, params json.RawMessage) (any, error)
}

// Config holds the host settings.
type Config struct {
	// Workspace is the folder offered by pick_folder and the root for
	// language servers. The process working directory is used when empty.
	Workspace string
	// ConfigDir overrides <user config dir>/meacode.
	ConfigDir string
	// Shell runs execute_command; sh (cmd on Windows) when empty.
	Shell          string
	ExecTimeout    time.Duration
	SandboxTimeout time.Duration
	// Node is the JavaScript runtime used by run_js; "node" when empty.
	Node string
	Dev  bool
	AI   AIConfig
}

// Handler dispatches bridge commands. It implements bridge.Invoker.
type Handler struct {
	cfg     Config
	log     zerolog.Logger
	dialogs Dialogs
	lsp     *lsp.Manager
	ai      *aiService
	cache   *intellisense.Cache

	commands map[string]Command

	mu  sync.Mutex
	cwd string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(log zerolog.Logger) Option {
	return func(h *Handler) { h.log = log }
}

// WithDialogs replaces the folder and save pickers.
func WithDialogs(d Dialogs) Option {
	return func(h *Handler) { h.dialogs = d }
}

// WithLSP replaces the language server manager.
func WithLSP(m *lsp.Manager) Option {
	return func(h *Handler) { h.lsp = m }
}

// WithCache sets the cache in front of model-backed ai_intellisense calls.
// The caller owns the cache and runs its sweeper.
func WithCache(c *intellisense.Cache) Option {
	return func(h *Handler) { h.cache = c }
}

// New creates a handler with every command registered.
func New(cfg Config, opts ...Option) *Handler {
	if cfg.ExecTimeout <= 0 {
		cfg.ExecTimeout = DefaultExecTimeout
	}
	if cfg.SandboxTimeout <= 0 {
		cfg.SandboxTimeout = DefaultSandboxTimeout
	}
	if cfg.Workspace != "" {
		if abs, err := filepath.Abs(cfg.Workspace); err == nil {
			cfg.Workspace = abs
		}
	}

	h := &Handler{
		cfg:      cfg,
		log:      zerolog.Nop(),
		commands: make(map[string]Command),
	}
	h.cwd = cfg.Workspace
	if h.cwd == "" {
		h.cwd, _ = os.Getwd()
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dialogs == nil {
		h.dialogs = AutoDialogs{Workspace: cfg.Workspace}
	}
	if h.lsp == nil {
		servers := lsp.DefaultServers()
		if path := lsp.ApplyOverrides(servers, cfg.Workspace); path != "" {
			h.log.Info().Str("path", path).Msg("language server overrides loaded")
		}
		h.lsp = lsp.NewManager(servers, lsp.WithLogger(h.log))
	}
	if h.cache == nil {
		h.cache = intellisense.New(intellisense.WithLogger(h.log))
	}
	h.ai = newAIService(cfg.AI, h.log)

	for _, group := range [][]Command{
		h.fsCommands(),
		h.execCommands(),
		h.lspCommands(),
		h.gitCommands(),
		h.aiCommands(),
		h.billingCommands(),
		h.sandboxCommands(),
		h.infoCommands(),
	} {
		for _, cmd := range group {
			h.commands[cmd.Name] = cmd
		}
	}
	return h
}

// Commands lists the registered commands sorted by name.
func (h *Handler) Commands() []Command {
	out := make([]Command, 0, len(h.commands))
	for _, cmd := range h.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke runs command with payload and returns its JSON-encoded result.
func (h *Handler) Invoke(ctx context.Context, command string, payload any) (json.RawMessage, error) {
	cmd, ok := h.commands[command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
	params, err := bridge.Payload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	start := time.Now()
	result, err := cmd.Handler(ctx, params)
	event := h.log.Debug().Str("command", command).Dur("took", time.Since(start))
	if err != nil {
		event.Err(err).Msg("command failed")
		return nil, err
	}
	event.Msg("command ok")

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%s: encode result: %w", command, err)
	}
	return data, nil
}

// Close stops the language servers.
func (h *Handler) Close() error {
	return h.lsp.Close()
}

// Cwd returns the directory execute_command runs in.
func (h *Handler) Cwd() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cwd
}

func (h *Handler) setCwd(dir string) {
	h.mu.Lock()
	h.cwd = dir
	h.mu.Unlock()
}

// Workspace returns the configured workspace, or the tracked cwd.
func (h *Handler) Workspace() string {
	if h.cfg.Workspace != "" {
		return h.cfg.Workspace
	}
	return h.Cwd()
}

// resolvePath makes path absolute relative to the tracked cwd.
func (h *Handler) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(h.Cwd(), path)
}

func bind[T any](params json.RawMessage) (T, error) {
	var p T
	if len(params) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return p, nil
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidParams, name)
	}
	return nil
}
