package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/lang"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, host *fakeHost, opts ...Option) *Store {
	t.Helper()
	var n atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("tab-%d", n.Add(1)) }),
	}
	return New(host, append(base, opts...)...)
}

func confirmWith(answer bool, asked *int) Confirmer {
	return ConfirmFunc(func(context.Context, string) (bool, error) {
		*asked++
		return answer, nil
	})
}

func TestCreateFileIsDirtyAndActive(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	tab := s.CreateFile("untitled.js", lang.JavaScript)

	assert.True(t, tab.IsDirty)
	assert.Empty(t, tab.Content)
	assert.Empty(t, tab.Path)
	assert.Equal(t, tab.ID, s.ActiveFileID())
}

func TestUpdateFileContentIdempotent(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "x")
	s := newTestStore(t, host)
	ctx := context.Background()

	tab, err := s.OpenFileFromDisk(ctx, "/ws/a.js")
	require.NoError(t, err)
	require.False(t, tab.IsDirty)

	events := 0
	s.Subscribe(func(e Event) {
		if e.Kind == EventContent {
			events++
		}
	})

	s.UpdateFileContent(tab.ID, "x")
	got, _ := s.File(tab.ID)
	assert.False(t, got.IsDirty, "equal content must not mark dirty")

	s.UpdateFileContent(tab.ID, "y")
	s.UpdateFileContent(tab.ID, "y")
	got, _ = s.File(tab.ID)
	assert.True(t, got.IsDirty)
	assert.Equal(t, "y", got.Content)
	assert.Equal(t, 1, events, "second identical update is a no-op")
}

func TestDirtyThenCleanRoundTrip(t *testing.T) {
	host := newFakeHost()
	host.saveDest = "/ws/new.js"
	s := newTestStore(t, host)
	ctx := context.Background()

	tab := s.CreateFile("new.js", lang.JavaScript)
	s.UpdateFileContent(tab.ID, "console.log(1)")
	require.NoError(t, s.SaveFile(ctx, tab.ID))

	got, _ := s.File(tab.ID)
	assert.False(t, got.IsDirty)
	assert.Equal(t, "/ws/new.js", got.Path)
	onDisk, ok := host.get("/ws/new.js")
	require.True(t, ok)
	assert.Equal(t, got.Content, onDisk)

	s.UpdateFileContent(tab.ID, "console.log(2)")
	require.NoError(t, s.SaveFile(ctx, tab.ID))
	onDisk, _ = host.get("/ws/new.js")
	assert.Equal(t, "console.log(2)", onDisk)
	assert.Len(t, host.saveDefaults, 1, "a saved tab is written without prompting")
}

func TestSaveFileWriteFailurePropagates(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "x")
	s := newTestStore(t, host)
	ctx := context.Background()

	tab, err := s.OpenFileFromDisk(ctx, "/ws/a.js")
	require.NoError(t, err)
	s.UpdateFileContent(tab.ID, "y")

	host.writeErr = errFake
	assert.ErrorIs(t, s.SaveFile(ctx, tab.ID), errFake)
	got, _ := s.File(tab.ID)
	assert.True(t, got.IsDirty)
}

func TestSaveFileUnknown(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	assert.ErrorIs(t, s.SaveFile(context.Background(), "nope"), ErrFileNotFound)
}

func TestSaveFileAsCancelled(t *testing.T) {
	host := newFakeHost()
	s := newTestStore(t, host)
	tab := s.CreateFile("draft.py", lang.Python)
	s.UpdateFileContent(tab.ID, "print()")

	require.NoError(t, s.SaveFileAs(context.Background(), tab.ID))
	got, _ := s.File(tab.ID)
	assert.Equal(t, tab.Name, got.Name)
	assert.Empty(t, got.Path)
	assert.True(t, got.IsDirty)
	assert.Zero(t, host.writes)
}

func TestSaveFileAsDefaultsInsideWorkspace(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/readme.md", "")
	host.saveDest = "/ws/sub/renamed.py"
	s := newTestStore(t, host)
	ctx := context.Background()
	require.NoError(t, s.SetWorkspace(ctx, "/ws"))

	tab := s.CreateFile("draft.py", lang.Python)
	require.NoError(t, s.SaveFileAs(ctx, tab.ID))

	assert.Equal(t, []string{"/ws/draft.py"}, host.saveDefaults)
	got, _ := s.File(tab.ID)
	assert.Equal(t, "renamed.py", got.Name)
	assert.Equal(t, "/ws/sub/renamed.py", got.Path)
	assert.Equal(t, lang.Python, got.Language)
	assert.False(t, got.IsDirty)
}

func TestCloseActiveTabReassignment(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	ctx := context.Background()
	a := s.CreateFile("a.js", lang.JavaScript)
	b := s.CreateFile("b.js", lang.JavaScript)
	c := s.CreateFile("c.js", lang.JavaScript)
	asked := 0
	s.confirm = confirmWith(true, &asked)

	s.SetActiveFile(b.ID)
	closed, err := s.CloseFile(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, closed)
	assert.Equal(t, a.ID, s.ActiveFileID())

	closed, err = s.CloseFile(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, closed)
	assert.Equal(t, c.ID, s.ActiveFileID(), "closing the active first tab activates the new first tab")

	closed, err = s.CloseFile(ctx, c.ID)
	require.NoError(t, err)
	require.True(t, closed)
	assert.Empty(t, s.ActiveFileID())
	_, ok := s.ActiveFile()
	assert.False(t, ok)
	assert.Equal(t, 3, asked, "every new tab is dirty")
}

func TestCloseDirtyDeclined(t *testing.T) {
	asked := 0
	s := newTestStore(t, newFakeHost(), WithConfirmer(confirmWith(false, &asked)))
	tab := s.CreateFile("a.js", lang.JavaScript)

	closed, err := s.CloseFile(context.Background(), tab.ID)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Equal(t, 1, asked)
	assert.Len(t, s.Files(), 1)
	assert.Equal(t, tab.ID, s.ActiveFileID())
}

func TestCloseDirtyWithoutConfirmerDeclines(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	tab := s.CreateFile("a.js", lang.JavaScript)
	closed, err := s.CloseFile(context.Background(), tab.ID)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Len(t, s.Files(), 1)
}

func TestCloseCleanSkipsConfirmation(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "x")
	asked := 0
	s := newTestStore(t, host, WithConfirmer(confirmWith(false, &asked)))
	tab, err := s.OpenFileFromDisk(context.Background(), "/ws/a.js")
	require.NoError(t, err)

	closed, err := s.CloseFile(context.Background(), tab.ID)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Zero(t, asked)
}

func TestSetActiveFileUnknown(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	s.CreateFile("a.js", lang.JavaScript)
	s.SetActiveFile("ghost")
	assert.Equal(t, "ghost", s.ActiveFileID())
	_, ok := s.ActiveFile()
	assert.False(t, ok)
}

func TestOpenFileFromDiskDedupes(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.py", "v1")
	host.put("/ws/b.css", "")
	s := newTestStore(t, host)
	ctx := context.Background()

	first, err := s.OpenFileFromDisk(ctx, "/ws/a.py")
	require.NoError(t, err)
	assert.Equal(t, lang.Python, first.Language)
	assert.Equal(t, "a.py", first.Name)

	_, err = s.OpenFileFromDisk(ctx, "/ws/b.css")
	require.NoError(t, err)

	s.UpdateFileContent(first.ID, "local edit")
	host.put("/ws/a.py", "v2")
	again, err := s.OpenFileFromDisk(ctx, "/ws/a.py")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "v2", again.Content)
	assert.False(t, again.IsDirty)
	assert.Len(t, s.Files(), 2)
	assert.Equal(t, first.ID, s.ActiveFileID())
}

func TestOpenFileFromDiskReadFailure(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	_, err := s.OpenFileFromDisk(context.Background(), "/missing")
	assert.ErrorIs(t, err, errFake)
	assert.Empty(t, s.Files())
}

func TestApplyRename(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/src/a.ts", "")
	s := newTestStore(t, host)
	tab, err := s.OpenFileFromDisk(context.Background(), "/ws/src/a.ts")
	require.NoError(t, err)

	assert.Equal(t, 1, s.ApplyRename("/ws/src", "/ws/lib"))
	got, _ := s.File(tab.ID)
	assert.Equal(t, "/ws/lib/a.ts", got.Path)
	assert.Equal(t, "a.ts", got.Name)

	s.ApplyRename("/ws/lib/a.ts", "/ws/lib/b.ts")
	got, _ = s.File(tab.ID)
	assert.Equal(t, "/ws/lib/b.ts", got.Path)
	assert.Equal(t, "b.ts", got.Name)

	assert.Zero(t, s.ApplyRename("/elsewhere", "/x"))
}

func TestRenamePathUpdatesTabsAndTree(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/src/a.ts", "")
	s := newTestStore(t, host)
	ctx := context.Background()
	require.NoError(t, s.SetWorkspace(ctx, "/ws"))
	tab, err := s.OpenFileFromDisk(ctx, "/ws/src/a.ts")
	require.NoError(t, err)

	require.NoError(t, s.RenamePath(ctx, "/ws/src", "/ws/lib"))
	got, _ := s.File(tab.ID)
	assert.Equal(t, "/ws/lib/a.ts", got.Path)
	require.Len(t, s.FsTree(), 1)
	assert.Equal(t, "lib", s.FsTree()[0].Name)
}

func TestDeletePathClosesTabs(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/src/a.ts", "")
	host.put("/ws/keep.ts", "")
	asked := 0
	s := newTestStore(t, host, WithConfirmer(confirmWith(true, &asked)))
	ctx := context.Background()
	require.NoError(t, s.SetWorkspace(ctx, "/ws"))
	_, err := s.OpenFileFromDisk(ctx, "/ws/src/a.ts")
	require.NoError(t, err)
	keep, err := s.OpenFileFromDisk(ctx, "/ws/keep.ts")
	require.NoError(t, err)

	deleted, err := s.DeletePath(ctx, "/ws/src")
	require.NoError(t, err)
	assert.True(t, deleted)
	files := s.Files()
	require.Len(t, files, 1)
	assert.Equal(t, keep.ID, files[0].ID)
	_, ok := host.get("/ws/src/a.ts")
	assert.False(t, ok)
}

func TestDeletePathDeclined(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.ts", "")
	asked := 0
	s := newTestStore(t, host, WithConfirmer(confirmWith(false, &asked)))
	deleted, err := s.DeletePath(context.Background(), "/ws/a.ts")
	require.NoError(t, err)
	assert.False(t, deleted)
	_, ok := host.get("/ws/a.ts")
	assert.True(t, ok)
}

func TestOpenFolder(t *testing.T) {
	host := newFakeHost()
	host.put("/proj/main.go", "")
	host.put("/proj/pkg/util.go", "")
	s := newTestStore(t, host)
	ctx := context.Background()

	dir, err := s.OpenFolder(ctx)
	require.NoError(t, err)
	assert.Empty(t, dir, "empty pick means cancelled")
	assert.Empty(t, s.WorkspaceRoot())

	host.pickFolder = "/proj"
	dir, err = s.OpenFolder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/proj", dir)
	assert.Equal(t, "/proj", s.WorkspaceRoot())

	tree := s.FsTree()
	require.Len(t, tree, 2)
	assert.Equal(t, "main.go", tree[0].Name)
	assert.True(t, tree[1].IsDir)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "/proj/pkg/util.go", tree[1].Children[0].Path)
}

func TestReloadFsTreeWithoutWorkspace(t *testing.T) {
	host := newFakeHost()
	s := newTestStore(t, host)
	require.NoError(t, s.ReloadFsTree(context.Background()))
	assert.Zero(t, host.listCalls)
}

func TestCreateFolderRefreshesTree(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "")
	s := newTestStore(t, host)
	ctx := context.Background()
	require.NoError(t, s.SetWorkspace(ctx, "/ws"))

	require.NoError(t, s.CreateFolder(ctx, "/ws/lib"))
	tree := s.FsTree()
	require.Len(t, tree, 2)
	assert.Equal(t, "lib", tree[1].Name)
	assert.True(t, tree[1].IsDir)
}

func TestRefreshFsTreeOnlyOnStructuralChange(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "one")
	s := newTestStore(t, host)
	ctx := context.Background()
	require.NoError(t, s.SetWorkspace(ctx, "/ws"))

	treeEvents := 0
	s.Subscribe(func(e Event) {
		if e.Kind == EventFsTree {
			treeEvents++
		}
	})

	host.put("/ws/a.js", "content changes are invisible to the tree")
	changed, err := s.refreshFsTree(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	host.put("/ws/b.js", "")
	changed, err = s.refreshFsTree(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, treeEvents)
	assert.Len(t, s.FsTree(), 2)
}

func TestTreeSignature(t *testing.T) {
	a := []bridge.FsTreeItem{{Name: "src", IsDir: true, Children: []bridge.FsTreeItem{{Name: "a.go"}}}, {Name: "b.go"}}
	same := []bridge.FsTreeItem{{Name: "src", Path: "/other/src", IsDir: true, Children: []bridge.FsTreeItem{{Name: "a.go"}}}, {Name: "b.go"}}
	reordered := []bridge.FsTreeItem{{Name: "b.go"}, {Name: "src", IsDir: true, Children: []bridge.FsTreeItem{{Name: "a.go"}}}}
	flag := []bridge.FsTreeItem{{Name: "src", IsDir: false}, {Name: "b.go"}}
	moved := []bridge.FsTreeItem{{Name: "src", IsDir: true}, {Name: "a.go"}, {Name: "b.go"}}

	assert.Equal(t, treeSignature(a), treeSignature(same))
	assert.NotEqual(t, treeSignature(a), treeSignature(reordered))
	assert.NotEqual(t, treeSignature(a), treeSignature(flag))
	assert.NotEqual(t, treeSignature(a), treeSignature(moved))
}

func TestGetContextForAI(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/app.py", "import os\nprint(os.getcwd())\n")
	s := newTestStore(t, host)
	ctx := context.Background()

	s.CreateFile("scratch.js", lang.JavaScript)
	_, err := s.OpenFileFromDisk(ctx, "/ws/app.py")
	require.NoError(t, err)
	s.AddConsoleLog(LogLog, "hello")
	s.AddConsoleLog(LogError, "boom", 42)
	s.AddConsoleLog(LogWarn, "careful")
	s.SetPreviewError("render failed")

	raw, err := s.GetContextForAI()
	require.NoError(t, err)

	var got struct {
		CurrentFile *struct {
			Name      string `json:"name"`
			Language  string `json:"language"`
			Code      string `json:"code"`
			LineCount int    `json:"lineCount"`
		} `json:"currentFile"`
		OpenFiles []struct {
			Name    string `json:"name"`
			IsDirty bool   `json:"isDirty"`
		} `json:"openFiles"`
		Console struct {
			TotalLogs int `json:"totalLogs"`
			Errors    []struct {
				Content   string    `json:"content"`
				Timestamp time.Time `json:"timestamp"`
			} `json:"errors"`
			Warnings  int  `json:"warnings"`
			HasErrors bool `json:"hasErrors"`
		} `json:"console"`
		Preview struct {
			HasError bool    `json:"hasError"`
			Error    *string `json:"error"`
		} `json:"preview"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	require.NotNil(t, got.CurrentFile)
	assert.Equal(t, "app.py", got.CurrentFile.Name)
	assert.Equal(t, "python", got.CurrentFile.Language)
	assert.Equal(t, 3, got.CurrentFile.LineCount)
	require.Len(t, got.OpenFiles, 2)
	assert.True(t, got.OpenFiles[0].IsDirty)
	assert.False(t, got.OpenFiles[1].IsDirty)
	assert.Equal(t, 3, got.Console.TotalLogs)
	require.Len(t, got.Console.Errors, 1)
	assert.Equal(t, "boom 42", got.Console.Errors[0].Content)
	assert.True(t, got.Console.Errors[0].Timestamp.Equal(fixedNow))
	assert.Equal(t, 1, got.Console.Warnings)
	assert.True(t, got.Console.HasErrors)
	assert.True(t, got.Preview.HasError)
	require.NotNil(t, got.Preview.Error)
	assert.Equal(t, "render failed", *got.Preview.Error)
}

func TestGetContextForAIEmpty(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	raw, err := s.GetContextForAI()
	require.NoError(t, err)
	assert.Contains(t, raw, `"currentFile": null`)
	assert.Contains(t, raw, `"error": null`)
	assert.Contains(t, raw, `"errors": []`)
}

func TestGetContextForAIUsesUTC(t *testing.T) {
	local := fixedNow.In(time.FixedZone("UTC+2", 2*60*60))
	s := newTestStore(t, newFakeHost(), WithClock(func() time.Time { return local }))
	s.AddConsoleLog(LogError, "boom")

	raw, err := s.GetContextForAI()
	require.NoError(t, err)
	assert.Contains(t, raw, `"timestamp": "2024-05-01T12:00:00Z"`)
	assert.NotContains(t, raw, "+02:00")
}

func TestConsoleLogs(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	first := s.AddConsoleLog(LogInfo, "a", map[string]int{"n": 1})
	second := s.AddConsoleLog(LogInfo, "b")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "a map[n:1]", first.Text())
	assert.Len(t, s.ConsoleLogs(), 2)

	s.ClearConsoleLogs()
	assert.Empty(t, s.ConsoleLogs())
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	var mu sync.Mutex
	var kinds []EventKind
	unsubscribe := s.Subscribe(func(e Event) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	})

	s.CreateFile("a.js", lang.JavaScript)
	unsubscribe()
	s.CreateFile("b.js", lang.JavaScript)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []EventKind{EventTabs, EventActive}, kinds)
}

func TestQueueContentUpdateCoalesces(t *testing.T) {
	s := newTestStore(t, newFakeHost(), WithDebounce(20*time.Millisecond))
	tab := s.CreateFile("a.js", lang.JavaScript)

	var updates atomic.Int32
	s.Subscribe(func(e Event) {
		if e.Kind == EventContent {
			updates.Add(1)
		}
	})
	for _, text := range []string{"c", "co", "con", "cons"} {
		s.QueueContentUpdate(tab.ID, text)
	}

	require.Eventually(t, func() bool {
		return updates.Load() == 1
	}, time.Second, 5*time.Millisecond)
	got, _ := s.File(tab.ID)
	assert.Equal(t, "cons", got.Content)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), updates.Load())
}

func TestFlushPendingUpdates(t *testing.T) {
	s := newTestStore(t, newFakeHost(), WithDebounce(time.Hour))
	tab := s.CreateFile("a.js", lang.JavaScript)
	s.QueueContentUpdate(tab.ID, "typed")
	s.FlushPendingUpdates()
	got, _ := s.File(tab.ID)
	assert.Equal(t, "typed", got.Content)
}

func TestAutosaveOneTabPerTick(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "a")
	host.put("/ws/b.js", "b")
	s := newTestStore(t, host)
	ctx := context.Background()

	s.CreateFile("untitled.js", lang.JavaScript)
	a, err := s.OpenFileFromDisk(ctx, "/ws/a.js")
	require.NoError(t, err)
	b, err := s.OpenFileFromDisk(ctx, "/ws/b.js")
	require.NoError(t, err)
	s.UpdateFileContent(a.ID, "a2")
	s.UpdateFileContent(b.ID, "b2")

	s.autosaveTick(ctx)
	gotA, _ := s.File(a.ID)
	gotB, _ := s.File(b.ID)
	assert.False(t, gotA.IsDirty)
	assert.True(t, gotB.IsDirty, "only one tab is saved per tick")

	s.autosaveTick(ctx)
	gotB, _ = s.File(b.ID)
	assert.False(t, gotB.IsDirty)
	onDisk, _ := host.get("/ws/b.js")
	assert.Equal(t, "b2", onDisk)

	writes := host.writes
	s.autosaveTick(ctx)
	assert.Equal(t, writes, host.writes, "untitled tabs are never autosaved")
}

func TestPersistAndRestore(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.py", "print(1)")
	host.put("/ws/b.json", "{}")
	first := newTestStore(t, host)
	ctx := context.Background()

	require.NoError(t, first.SetWorkspace(ctx, "/ws"))
	first.CreateFile("scratch.js", lang.JavaScript)
	a, err := first.OpenFileFromDisk(ctx, "/ws/a.py")
	require.NoError(t, err)
	b, err := first.OpenFileFromDisk(ctx, "/ws/b.json")
	require.NoError(t, err)
	require.NoError(t, first.Persist(ctx))

	raw, ok := host.get("/config/workspace.json")
	require.True(t, ok)
	var saved map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &saved))
	assert.Equal(t, "/ws", saved["workspaceRoot"])
	tabs := saved["tabs"].([]any)
	require.Len(t, tabs, 3)
	assert.NotContains(t, tabs[1].(map[string]any), "content")
	unsaved := tabs[0].(map[string]any)
	require.Contains(t, unsaved, "path", "unsaved tabs keep the path key")
	assert.Nil(t, unsaved["path"])
	assert.Equal(t, "/ws/a.py", tabs[1].(map[string]any)["path"])

	host.put("/ws/a.py", "print(2)")
	second := newTestStore(t, host)
	require.NoError(t, second.Restore(ctx))

	assert.Equal(t, "/ws", second.WorkspaceRoot())
	assert.NotEmpty(t, second.FsTree())
	files := second.Files()
	require.Len(t, files, 2, "tabs without a path are dropped")
	assert.Equal(t, a.ID, files[0].ID)
	assert.Equal(t, "print(2)", files[0].Content)
	assert.False(t, files[0].IsDirty)
	assert.Equal(t, b.ID, files[1].ID)
	assert.Equal(t, lang.JSON, files[1].Language)
	assert.Equal(t, a.ID, second.ActiveFileID())
}

func TestPersistWithoutWorkspace(t *testing.T) {
	host := newFakeHost()
	s := newTestStore(t, host, WithConfigDir("/elsewhere"))
	require.NoError(t, s.Persist(context.Background()))
	raw, ok := host.get("/elsewhere/workspace.json")
	require.True(t, ok)
	assert.JSONEq(t, `{"workspaceRoot": null, "tabs": []}`, raw)
}

func TestRestoreMissingSession(t *testing.T) {
	s := newTestStore(t, newFakeHost())
	require.NoError(t, s.Restore(context.Background()))
	assert.Empty(t, s.Files())
}

func TestRestoreCorruptSession(t *testing.T) {
	host := newFakeHost()
	host.put("/config/workspace.json", "{not json")
	s := newTestStore(t, host)
	assert.Error(t, s.Restore(context.Background()))
}

func TestRestoreSkipsUnreadableTabs(t *testing.T) {
	host := newFakeHost()
	host.put("/config/workspace.json", `{"workspaceRoot":null,"tabs":[
		{"id":"gone","name":"gone.js","language":"javascript","path":"/ws/gone.js"},
		{"id":"here","name":"here.css","language":"css","path":"/ws/here.css"}]}`)
	host.put("/ws/here.css", "body{}")
	s := newTestStore(t, host)
	require.NoError(t, s.Restore(context.Background()))

	files := s.Files()
	require.Len(t, files, 1)
	assert.Equal(t, "here", files[0].ID)
	assert.Equal(t, "here", s.ActiveFileID())
}

func TestGitTickPublishesChanges(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.go", "")
	git := &fakeGit{status: &bridge.GitStatus{Branch: "main", IsClean: true}}
	s := newTestStore(t, host, WithGit(git))
	ctx := context.Background()

	s.gitTick(ctx)
	assert.Nil(t, s.GitStatus(), "no polling without a workspace")

	require.NoError(t, s.SetWorkspace(ctx, "/ws"))
	events := 0
	s.Subscribe(func(e Event) {
		if e.Kind == EventGit {
			events++
		}
	})
	s.gitTick(ctx)
	s.gitTick(ctx)
	assert.Equal(t, 1, events)

	git.set(&bridge.GitStatus{Branch: "main", ModifiedFiles: []string{"a.go"}})
	s.gitTick(ctx)
	assert.Equal(t, 2, events)
	assert.Equal(t, []string{"a.go"}, s.GitStatus().ModifiedFiles)
}

func TestStartAndClosePersists(t *testing.T) {
	host := newFakeHost()
	host.put("/ws/a.js", "x")
	s := newTestStore(t, host, WithIntervals(5*time.Millisecond, 5*time.Millisecond, 5*time.Millisecond))
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx)
	tab, err := s.OpenFileFromDisk(ctx, "/ws/a.js")
	require.NoError(t, err)
	s.UpdateFileContent(tab.ID, "autosaved")

	assert.Eventually(t, func() bool {
		text, _ := host.get("/ws/a.js")
		return text == "autosaved"
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	raw, ok := host.get("/config/workspace.json")
	require.True(t, ok)
	assert.Contains(t, raw, tab.ID)
}
