// Package telemetry keeps a small on-disk log of recent errors.
package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MaxEntries bounds the log.
const MaxEntries = 50

// FileName is the log file inside the app config dir.
const FileName = "telemetry-errors.json"

// Entry is one recorded error.
type Entry struct {
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// Recorder appends errors to a JSON file, newest first.
type Recorder struct {
	path string
	log  zerolog.Logger
	now  func() time.Time
	mu   sync.Mutex
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger used for swallowed failures.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Recorder) { r.log = log }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// New returns a recorder writing to path.
func New(path string, opts ...Option) *Recorder {
	r := &Recorder{path: path, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record stores err with optional context. Failures are logged and
// otherwise ignored.
func (r *Recorder) Record(err error, context map[string]any) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, _ := r.load()
	entries = append([]Entry{{Message: err.Error(), Timestamp: r.now().UTC(), Context: context}}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	if werr := r.store(entries); werr != nil {
		r.log.Debug().Err(werr).Str("path", r.path).Msg("telemetry write failed")
	}
}

// Entries returns the recorded errors, newest first. An unreadable log is
// reported as empty.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := r.load()
	if err != nil {
		r.log.Debug().Err(err).Str("path", r.path).Msg("telemetry read failed")
		return []Entry{}
	}
	return entries
}

func (r *Recorder) load() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return []Entry{}, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []Entry{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

func (r *Recorder) store(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
