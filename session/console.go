package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// LogType is the severity of a console entry.
type LogType string

const (
	LogLog   LogType = "log"
	LogError LogType = "error"
	LogWarn  LogType = "warn"
	LogInfo  LogType = "info"
)

// ConsoleLogEntry is one line of captured program output.
type ConsoleLogEntry struct {
	ID        string    `json:"id"`
	Type      LogType   `json:"type"`
	Content   []any     `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Text joins the entry's values with spaces.
func (e ConsoleLogEntry) Text() string {
	parts := make([]string, len(e.Content))
	for i, v := range e.Content {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}

// AddConsoleLog appends an entry to the console buffer.
func (s *Store) AddConsoleLog(typ LogType, content ...any) ConsoleLogEntry {
	entry := ConsoleLogEntry{
		ID:        ulid.Make().String(),
		Type:      typ,
		Content:   append([]any(nil), content...),
		Timestamp: s.now(),
	}
	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()

	s.publish(EventConsole)
	return entry
}

// ConsoleLogs returns the console buffer.
func (s *Store) ConsoleLogs() []ConsoleLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ConsoleLogEntry(nil), s.logs...)
}

// ClearConsoleLogs empties the console buffer.
func (s *Store) ClearConsoleLogs() {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()
	s.publish(EventConsole)
}

// SetPreviewError records the live preview's failure, or clears it when msg
// is empty.
func (s *Store) SetPreviewError(msg string) {
	s.mu.Lock()
	changed := s.previewError != msg
	s.previewError = msg
	s.mu.Unlock()
	if changed {
		s.publish(EventPreview)
	}
}

type aiContext struct {
	CurrentFile *aiCurrentFile `json:"currentFile"`
	OpenFiles   []aiOpenFile   `json:"openFiles"`
	Console     aiConsole      `json:"console"`
	Preview     aiPreview      `json:"preview"`
	Timestamp   time.Time      `json:"timestamp"`
}

type aiCurrentFile struct {
	Name      string `json:"name"`
	Language  string `json:"language"`
	Code      string `json:"code"`
	LineCount int    `json:"lineCount"`
}

type aiOpenFile struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	IsDirty  bool   `json:"isDirty"`
}

type aiConsole struct {
	TotalLogs int            `json:"totalLogs"`
	Errors    []aiConsoleErr `json:"errors"`
	Warnings  int            `json:"warnings"`
	HasErrors bool           `json:"hasErrors"`
}

type aiConsoleErr struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type aiPreview struct {
	HasError bool    `json:"hasError"`
	Error    *string `json:"error"`
}

// GetContextForAI serializes the state AI features need: the active file,
// the open tabs, a console summary and the preview error.
func (s *Store) GetContextForAI() (string, error) {
	s.mu.Lock()
	ctx := aiContext{
		OpenFiles: make([]aiOpenFile, 0, s.tabs.Count()),
		Console:   aiConsole{TotalLogs: len(s.logs), Errors: []aiConsoleErr{}},
		Timestamp: s.now().UTC(),
	}
	if buf := s.tabs.ActiveBuffer(); buf != nil {
		ctx.CurrentFile = &aiCurrentFile{
			Name:      buf.Name(),
			Language:  string(buf.Language()),
			Code:      buf.Text(),
			LineCount: strings.Count(buf.Text(), "\n") + 1,
		}
	}
	for _, buf := range s.tabs.Buffers() {
		ctx.OpenFiles = append(ctx.OpenFiles, aiOpenFile{
			Name:     buf.Name(),
			Language: string(buf.Language()),
			IsDirty:  buf.Dirty(),
		})
	}
	for _, entry := range s.logs {
		switch entry.Type {
		case LogError:
			ctx.Console.Errors = append(ctx.Console.Errors, aiConsoleErr{Content: entry.Text(), Timestamp: entry.Timestamp.UTC()})
		case LogWarn:
			ctx.Console.Warnings++
		}
	}
	ctx.Console.HasErrors = len(ctx.Console.Errors) > 0
	if s.previewError != "" {
		msg := s.previewError
		ctx.Preview = aiPreview{HasError: true, Error: &msg}
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(ctx, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode ai context: %w", err)
	}
	return string(data), nil
}
