package watcher

import (
	"encoding/base64"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/docloom/docloom/internal/access"
	"github.com/docloom/docloom/internal/git"
	"github.com/docloom/docloom/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []types.FileEvent
	err    error
}

func (s *recordingSink) Push(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok := v.(types.FileEvent); ok {
		s.events = append(s.events, ev)
	}
	return s.err
}

func (s *recordingSink) last(t *testing.T) types.FileEvent {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		t.Fatal("no event pushed")
	}
	return s.events[len(s.events)-1]
}

// scriptedCommander satisfies git.Commander without a real git binary.
type scriptedCommander struct {
	tracked     map[string]bool
	diffOut     string
	failCommits bool
	calls       [][]string
}

func (c *scriptedCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

func (c *scriptedCommander) RunInDir(dir, name string, args ...string) (string, error) {
	c.calls = append(c.calls, append([]string{name}, args...))
	if len(args) == 0 {
		return "", nil
	}
	switch args[0] {
	case "ls-files":
		if c.tracked[args[len(args)-1]] {
			return args[len(args)-1], nil
		}
		return "", errors.New("did not match any file")
	case "diff":
		return c.diffOut, nil
	case "commit":
		if c.failCommits {
			return "", errors.New("commit failed")
		}
	}
	return "", nil
}

const accessSeed = `users:
  alice:
    - eng/spec.txt
  bob:
    - eng
folders:
  eng:
    - bob
    - carol
`

func newTestAgent(t *testing.T, cmd *scriptedCommander) (*Agent, afero.Fs, *recordingSink, *access.Oracle) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/table.yaml", []byte(accessSeed), 0o644); err != nil {
		t.Fatal(err)
	}
	oracle, err := access.Load(fs, "/table.yaml")
	if err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	a := &Agent{
		root:     "/root",
		userID:   "alice",
		allowed:  extSet([]string{".txt"}),
		fs:       fs,
		snapshot: git.NewSnapshotWithCommander("/root", "alice", cmd, fs),
		oracle:   oracle,
		sink:     sink,
	}
	return a, fs, sink, oracle
}

func TestEmitCreate(t *testing.T) {
	a, fs, sink, oracle := newTestAgent(t, &scriptedCommander{})
	if err := afero.WriteFile(fs, "/root/eng/notes.txt", []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.emitCreate("eng/notes.txt"); err != nil {
		t.Fatal(err)
	}

	ev := sink.last(t)
	if ev.EventType != types.EventCreate || ev.RelativePath != "eng/notes.txt" || ev.UserID != "alice" {
		t.Fatalf("event header = %+v", ev)
	}
	if !ev.GitCommitted {
		t.Fatal("expected git_committed true")
	}
	if ev.Timestamp <= 0 {
		t.Fatal("missing timestamp")
	}
	want := []string{"bob", "carol"}
	if !slices.Equal(ev.LikedUsers, want) {
		t.Fatalf("liked_users = %v, want %v", ev.LikedUsers, want)
	}
	if ev.FileContent == nil {
		t.Fatal("create event must carry content")
	}
	decoded, err := base64.StdEncoding.DecodeString(*ev.FileContent)
	if err != nil || string(decoded) != "hello world" {
		t.Fatalf("content = %q (%v)", decoded, err)
	}
	if ev.FileSize != len("hello world") {
		t.Fatalf("file_size = %d", ev.FileSize)
	}

	if !slices.Contains(oracle.Authorized("bob"), "eng/notes.txt") {
		t.Fatalf("oracle not updated: %v", oracle.Authorized("bob"))
	}
}

func TestEmitCreateSurvivesCommitFailure(t *testing.T) {
	a, fs, sink, _ := newTestAgent(t, &scriptedCommander{failCommits: true})
	if err := afero.WriteFile(fs, "/root/eng/notes.txt", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.emitCreate("eng/notes.txt"); err != nil {
		t.Fatal(err)
	}
	ev := sink.last(t)
	if ev.GitCommitted {
		t.Fatal("expected git_committed false after commit failure")
	}
	if ev.FileContent == nil {
		t.Fatal("event must still carry content")
	}
}

func TestEmitCreateUnreadableFileStillAnnounces(t *testing.T) {
	a, _, sink, _ := newTestAgent(t, &scriptedCommander{})

	if err := a.emitCreate("eng/ghost.txt"); err != nil {
		t.Fatal(err)
	}
	ev := sink.last(t)
	if ev.FileContent != nil || ev.FileSize != 0 {
		t.Fatalf("expected empty payload, got %+v", ev)
	}
}

func TestEmitUpdateTrackedFile(t *testing.T) {
	cmd := &scriptedCommander{
		tracked: map[string]bool{"eng/notes.txt": true},
		diffOut: "diff --git a/eng/notes.txt b/eng/notes.txt\n-old\n+new\n",
	}
	a, fs, sink, _ := newTestAgent(t, cmd)
	if err := afero.WriteFile(fs, "/root/eng/notes.txt", []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.emitUpdate("eng/notes.txt"); err != nil {
		t.Fatal(err)
	}
	ev := sink.last(t)
	if ev.EventType != types.EventUpdate {
		t.Fatalf("event_type = %q", ev.EventType)
	}
	if ev.DiffType != types.DiffModification {
		t.Fatalf("diff_type = %q", ev.DiffType)
	}
	if ev.DiffContent != cmd.diffOut {
		t.Fatalf("diff_content = %q", ev.DiffContent)
	}
	if ev.FileContent == nil {
		t.Fatal("update event must carry content")
	}
}

func TestEmitUpdateUntrackedFileSynthesizesDiff(t *testing.T) {
	a, fs, sink, _ := newTestAgent(t, &scriptedCommander{})
	if err := afero.WriteFile(fs, "/root/eng/notes.txt", []byte("line one\nline two"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.emitUpdate("eng/notes.txt"); err != nil {
		t.Fatal(err)
	}
	ev := sink.last(t)
	if ev.DiffType != types.DiffNewFile {
		t.Fatalf("diff_type = %q", ev.DiffType)
	}
	for _, want := range []string{"--- /dev/null", "+++ b/eng/notes.txt", "+line one", "+line two"} {
		if !strings.Contains(ev.DiffContent, want) {
			t.Fatalf("diff missing %q:\n%s", want, ev.DiffContent)
		}
	}
}

func TestEmitDelete(t *testing.T) {
	a, _, sink, oracle := newTestAgent(t, &scriptedCommander{})

	if err := a.emitDelete("eng/spec.txt"); err != nil {
		t.Fatal(err)
	}
	ev := sink.last(t)
	if ev.EventType != types.EventDelete {
		t.Fatalf("event_type = %q", ev.EventType)
	}
	if ev.FileContent != nil || ev.FileSize != 0 {
		t.Fatalf("delete must carry no content, got %+v", ev)
	}
	if slices.Contains(oracle.Authorized("alice"), "eng/spec.txt") {
		t.Fatalf("oracle still lists deleted file: %v", oracle.Authorized("alice"))
	}
}

func TestFlushBatchDispatchesByOp(t *testing.T) {
	a, fs, sink, _ := newTestAgent(t, &scriptedCommander{})
	if err := afero.WriteFile(fs, "/root/eng/a.txt", []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.flushBatch([]Change{
		{Path: "eng/a.txt", Op: types.EventCreate},
		{Path: "eng/spec.txt", Op: types.EventDelete},
	})

	if len(sink.events) != 2 {
		t.Fatalf("pushed %d events, want 2", len(sink.events))
	}
	if sink.events[0].EventType != types.EventCreate || sink.events[1].EventType != types.EventDelete {
		t.Fatalf("ops = %q, %q", sink.events[0].EventType, sink.events[1].EventType)
	}
}

func TestFlushBatchToleratesSinkFailure(t *testing.T) {
	a, fs, sink, _ := newTestAgent(t, &scriptedCommander{})
	sink.err = errors.New("socket closed")
	if err := afero.WriteFile(fs, "/root/eng/a.txt", []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	a.flushBatch([]Change{
		{Path: "eng/a.txt", Op: types.EventCreate},
		{Path: "eng/spec.txt", Op: types.EventDelete},
	})

	if len(sink.events) != 2 {
		t.Fatalf("a failed push must not halt the batch, got %d events", len(sink.events))
	}
}

func TestIgnoredPath(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{".", true},
		{".git/objects/ab", true},
		{"eng/.hidden.txt", true},
		{"eng/notes.txt", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := ignoredPath(tt.rel); got != tt.want {
			t.Errorf("ignoredPath(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestFolderOf(t *testing.T) {
	if got := folderOf("eng/notes.txt"); got != "eng" {
		t.Fatalf("folderOf nested = %q", got)
	}
	if got := folderOf("notes.txt"); got != "" {
		t.Fatalf("folderOf root-level = %q", got)
	}
}
