package editor

// TabManager tracks open buffers in tab order and which one is active.
// It is pure data management, with no I/O and no UI dependency.
type TabManager struct {
	buffers  []*Buffer
	activeID string // may name a closed or unknown tab
}

// NewTabManager creates a TabManager with no open buffers.
func NewTabManager() *TabManager {
	return &TabManager{}
}

// Count returns the number of open buffers.
func (tm *TabManager) Count() int {
	return len(tm.buffers)
}

// ActiveID returns the active tab id, or "" when none is active.
func (tm *TabManager) ActiveID() string {
	return tm.activeID
}

// Active returns the index of the active tab, or -1.
func (tm *TabManager) Active() int {
	return tm.Index(tm.activeID)
}

// ActiveBuffer returns the active buffer, or nil when the active id does not
// name an open tab.
func (tm *TabManager) ActiveBuffer() *Buffer {
	return tm.Buffer(tm.Active())
}

// Buffer returns the buffer at index, or nil if out of range.
func (tm *TabManager) Buffer(index int) *Buffer {
	if index < 0 || index >= len(tm.buffers) {
		return nil
	}
	return tm.buffers[index]
}

// Buffers returns all open buffers in tab order.
func (tm *TabManager) Buffers() []*Buffer {
	return tm.buffers
}

// Index returns the position of the tab with id, or -1.
func (tm *TabManager) Index(id string) int {
	if id == "" {
		return -1
	}
	for i, buf := range tm.buffers {
		if buf.ID() == id {
			return i
		}
	}
	return -1
}

// Get returns the buffer with id, or nil.
func (tm *TabManager) Get(id string) *Buffer {
	return tm.Buffer(tm.Index(id))
}

// FindPath returns the buffer backed by path, or nil.
func (tm *TabManager) FindPath(path string) *Buffer {
	if path == "" {
		return nil
	}
	for _, buf := range tm.buffers {
		if buf.Path() == path {
			return buf
		}
	}
	return nil
}

// Add appends buf and makes it active.
func (tm *TabManager) Add(buf *Buffer) {
	tm.buffers = append(tm.buffers, buf)
	tm.activeID = buf.ID()
}

// SetActive switches the active tab. The id is not validated.
func (tm *TabManager) SetActive(id string) {
	tm.activeID = id
}

// Close removes the tab with id and reports whether it existed. When the
// closed tab was active, the tab that preceded it becomes active, or the new
// first tab, or none if no tabs remain.
func (tm *TabManager) Close(id string) bool {
	index := tm.Index(id)
	if index < 0 {
		return false
	}
	tm.buffers = append(tm.buffers[:index:index], tm.buffers[index+1:]...)

	if tm.activeID != id {
		return true
	}
	switch {
	case len(tm.buffers) == 0:
		tm.activeID = ""
	case index-1 >= 0:
		tm.activeID = tm.buffers[index-1].ID()
	default:
		tm.activeID = tm.buffers[0].ID()
	}
	return true
}

// Relocate applies an on-disk rename to every affected buffer and returns how
// many changed.
func (tm *TabManager) Relocate(oldPath, newPath string) int {
	n := 0
	for _, buf := range tm.buffers {
		if buf.Relocate(oldPath, newPath) {
			n++
		}
	}
	return n
}

// Reset drops every tab.
func (tm *TabManager) Reset() {
	tm.buffers = nil
	tm.activeID = ""
}
