package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	r := New(filepath.Join(t.TempDir(), "nested", FileName), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	r.Record(errors.New("first"), nil)
	r.Record(errors.New("second"), map[string]any{"command": "ask"})

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "ask", entries[0].Context["command"])
	assert.Equal(t, base.Add(2*time.Second), entries[0].Timestamp)
	assert.Equal(t, "first", entries[1].Message)
	assert.Nil(t, entries[1].Context)
}

func TestRecordKeepsFifty(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), FileName))
	for i := 0; i < MaxEntries+7; i++ {
		r.Record(fmt.Errorf("err %d", i), nil)
	}
	entries := r.Entries()
	require.Len(t, entries, MaxEntries)
	assert.Equal(t, fmt.Sprintf("err %d", MaxEntries+6), entries[0].Message)
	assert.Equal(t, "err 7", entries[MaxEntries-1].Message)
}

func TestEntriesEmptyOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	r := New(path)
	assert.Equal(t, []Entry{}, r.Entries())

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Equal(t, []Entry{}, r.Entries())

	r.Record(errors.New("after corruption"), nil)
	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "after corruption", entries[0].Message)
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	r := New(filepath.Join(blocker, FileName))
	assert.NotPanics(t, func() { r.Record(errors.New("lost"), nil) })
	assert.Equal(t, []Entry{}, r.Entries())

	var nilRecorder *Recorder
	assert.NotPanics(t, func() { nilRecorder.Record(errors.New("x"), nil) })
}
