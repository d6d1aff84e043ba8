// Package terminal implements the line discipline behind the embedded
// terminal widget: it turns raw keystrokes into commands, runs them through
// the host shell, and renders the results.
package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/odvcencio/meacode/bridge"
)

const (
	keyInterrupt = 3
	keyBackspace = 8
	keyClear     = 12
	keyEnter     = 13
	keyEscape    = 27
	keyDelete    = 127

	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
	ansiClear  = "\x1b[2J\x1b[H"

	notFoundHint = "Hint: command not found. Check the spelling or install it first."
)

// Shell runs commands on the host. *bridge.Host satisfies it.
type Shell interface {
	Execute(ctx context.Context, command string) (bridge.ExecResult, error)
	Cwd(ctx context.Context) (string, error)
}

// Discipline is a minimal line editor: one input buffer, a history that is
// recorded but not recalled, no cursor movement within the line.
type Discipline struct {
	shell Shell
	out   io.Writer
	log   zerolog.Logger

	mu      sync.Mutex
	line    []byte
	history []string
	cwd     string
}

// Option configures a Discipline.
type Option func(*Discipline)

// WithLogger sets the logger used for host failures.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Discipline) { d.log = log }
}

// New creates a discipline that executes through shell and renders to out.
func New(shell Shell, out io.Writer, opts ...Option) *Discipline {
	d := &Discipline{shell: shell, out: out, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start resolves the working directory and prints the first prompt.
func (d *Discipline) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshCwd(ctx)
	d.write(d.prompt())
}

// Feed consumes one chunk of input from the widget. Commands run
// synchronously; Feed returns after the command completes and the next
// prompt is printed.
func (d *Discipline) Feed(ctx context.Context, data string) {
	if data == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	// Arrow keys and other escape sequences arrive as one chunk.
	if data[0] == keyEscape {
		return
	}
	for i := 0; i < len(data); i++ {
		switch c := data[i]; {
		case c == keyInterrupt:
			d.line = d.line[:0]
			d.write("^C\r\n" + d.prompt())
		case c == keyClear:
			d.write(ansiClear + d.prompt())
		case c == keyEnter:
			d.write("\r\n")
			d.execute(ctx)
		case c == keyDelete || c == keyBackspace:
			if len(d.line) > 0 {
				d.line = d.line[:len(d.line)-1]
				d.write("\b \b")
			}
		case c >= 32 && c <= 126:
			d.line = append(d.line, c)
			d.write(string(c))
		}
	}
}

// Line returns the pending input.
func (d *Discipline) Line() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.line)
}

// History returns every command entered, oldest first.
func (d *Discipline) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.history...)
}

// Prompt returns the current prompt text.
func (d *Discipline) Prompt() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prompt()
}

func (d *Discipline) execute(ctx context.Context) {
	command := strings.TrimSpace(string(d.line))
	d.line = d.line[:0]
	if command == "" {
		d.write(d.prompt())
		return
	}
	d.history = append(d.history, command)

	res, err := d.shell.Execute(ctx, command)
	if err != nil {
		d.log.Debug().Err(err).Str("command", command).Msg("shell execution failed")
		d.writeColored(ansiRed, err.Error())
		if isNotFound(err.Error()) {
			d.writeColored(ansiYellow, notFoundHint)
		}
	} else {
		if res.Stdout != "" {
			d.write(crlf(res.Stdout))
			if !strings.HasSuffix(res.Stdout, "\n") {
				d.write("\r\n")
			}
		}
		if res.Stderr != "" {
			d.writeColored(ansiRed, strings.TrimRight(res.Stderr, "\n"))
			if isNotFound(res.Stderr) {
				d.writeColored(ansiYellow, notFoundHint)
			}
		}
		if res.ExitCode != 0 {
			d.write(fmt.Sprintf("exit code %d\r\n", res.ExitCode))
		}
	}

	d.refreshCwd(ctx)
	d.write(d.prompt())
}

func (d *Discipline) refreshCwd(ctx context.Context) {
	cwd, err := d.shell.Cwd(ctx)
	if err != nil {
		d.log.Debug().Err(err).Msg("resolve cwd")
		return
	}
	d.cwd = cwd
}

func (d *Discipline) prompt() string {
	return lastSegment(d.cwd) + " $ "
}

func (d *Discipline) write(s string) {
	if _, err := io.WriteString(d.out, s); err != nil {
		d.log.Debug().Err(err).Msg("terminal write")
	}
}

func (d *Discipline) writeColored(color, s string) {
	d.write(color + crlf(s) + ansiReset + "\r\n")
}

// isNotFound also matches "command not found".
func isNotFound(s string) bool {
	return strings.Contains(strings.ToLower(s), "not found")
}

func crlf(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func lastSegment(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if trimmed == "" {
		if path != "" {
			return path[:1]
		}
		return "~"
	}
	if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
