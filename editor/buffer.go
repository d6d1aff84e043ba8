package editor

import (
	"path/filepath"
	"strings"

	"github.com/odvcencio/meacode/lang"
)

// Buffer holds the state of one open tab. It performs no I/O; callers
// persist text themselves and report the outcome with MarkSaved or SaveAs.
type Buffer struct {
	id       string
	name     string
	language lang.Language
	path     string // absolute path, or "" if never saved
	text     string
	dirty    bool
}

// NewBuffer creates an empty, unsaved buffer. New buffers start dirty.
func NewBuffer(id, name string, language lang.Language) *Buffer {
	return &Buffer{
		id:       id,
		name:     name,
		language: language,
		dirty:    true,
	}
}

// OpenedBuffer creates a clean buffer for text read from path. The language
// is derived from the file name once and never recomputed.
func OpenedBuffer(id, path, text string) *Buffer {
	return &Buffer{
		id:       id,
		name:     baseName(path),
		language: lang.DetectByExt(path),
		path:     path,
		text:     text,
	}
}

// RestoredBuffer recreates a clean buffer from a saved session entry.
func RestoredBuffer(id, name string, language lang.Language, path, text string) *Buffer {
	if !language.Valid() {
		language = lang.DetectByExt(path)
	}
	if name == "" {
		name = baseName(path)
	}
	return &Buffer{
		id:       id,
		name:     name,
		language: language,
		path:     path,
		text:     text,
	}
}

// ID returns the immutable tab identifier.
func (b *Buffer) ID() string { return b.id }

// Name returns the display file name.
func (b *Buffer) Name() string { return b.name }

// Language returns the tab language.
func (b *Buffer) Language() lang.Language { return b.language }

// Path returns the backing file path, or "" for an unsaved buffer.
func (b *Buffer) Path() string { return b.path }

// Text returns the in-memory content.
func (b *Buffer) Text() string { return b.text }

// Dirty reports whether the content diverged from what was last persisted.
func (b *Buffer) Dirty() bool { return b.dirty }

// Untitled reports whether the buffer has no backing path.
func (b *Buffer) Untitled() bool { return b.path == "" }

// SetText replaces the content and marks the buffer dirty. Byte-equal text
// is ignored and reported as false.
func (b *Buffer) SetText(text string) bool {
	if text == b.text {
		return false
	}
	b.text = text
	b.dirty = true
	return true
}

// Reload replaces the content with text read from disk and clears dirty.
func (b *Buffer) Reload(text string) {
	b.text = text
	b.dirty = false
}

// MarkDirty flags the buffer as diverged from disk.
func (b *Buffer) MarkDirty() {
	b.dirty = true
}

// MarkSaved records that the current text was persisted.
func (b *Buffer) MarkSaved() {
	b.dirty = false
}

// SaveAs adopts path as the buffer's identity and clears dirty.
func (b *Buffer) SaveAs(path string) {
	b.path = path
	b.name = baseName(path)
	b.dirty = false
}

// Relocate rewrites the path after oldPath was renamed to newPath on disk.
// An exact match also updates the name; a path nested under oldPath keeps
// its remainder. Returns false when the buffer is unaffected.
func (b *Buffer) Relocate(oldPath, newPath string) bool {
	if b.path == "" || oldPath == "" {
		return false
	}
	if b.path == oldPath {
		b.path = newPath
		b.name = baseName(newPath)
		return true
	}
	for _, sep := range separators(oldPath) {
		prefix := strings.TrimSuffix(oldPath, sep) + sep
		if strings.HasPrefix(b.path, prefix) {
			b.path = strings.TrimSuffix(newPath, sep) + sep + strings.TrimPrefix(b.path, prefix)
			return true
		}
	}
	return false
}

// separators returns the path separators to try for p, preferring the one
// p already uses.
func separators(p string) []string {
	if strings.Contains(p, "\\") && !strings.Contains(p, "/") {
		return []string{"\\"}
	}
	if filepath.Separator == '\\' {
		return []string{"\\", "/"}
	}
	return []string{"/"}
}

// Contains reports whether path is dir itself or nested under it.
func Contains(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	if path == dir {
		return true
	}
	for _, sep := range separators(dir) {
		if strings.HasPrefix(path, strings.TrimSuffix(dir, sep)+sep) {
			return true
		}
	}
	return false
}

func baseName(path string) string {
	idx := strings.LastIndexAny(path, "/\\")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
