package git

import (
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// MockCommander is a test double for Commander that records calls and returns configured responses.
type MockCommander struct {
	// Calls records all commands that were executed
	Calls []MockCall
	// Responses maps command strings to their outputs/errors
	Responses map[string]MockResponse
}

// MockCall records a single command invocation.
type MockCall struct {
	Dir  string
	Name string
	Args []string
}

// MockResponse holds the output and error for a mocked command.
type MockResponse struct {
	Output string
	Error  error
}

// NewMockCommander creates a mock commander with pre-configured responses.
func NewMockCommander() *MockCommander {
	return &MockCommander{
		Responses: make(map[string]MockResponse),
	}
}

// Run implements Commander.Run
func (m *MockCommander) Run(name string, args ...string) (string, error) {
	return m.RunInDir("", name, args...)
}

// RunInDir implements Commander.RunInDir
func (m *MockCommander) RunInDir(dir, name string, args ...string) (string, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Name: name, Args: args})

	key := name + " " + strings.Join(args, " ")
	if resp, ok := m.Responses[key]; ok {
		return resp.Output, resp.Error
	}
	// Default: command succeeds with empty output
	return "", nil
}

// SetResponse configures the response for a command.
func (m *MockCommander) SetResponse(cmd string, output string, err error) {
	m.Responses[cmd] = MockResponse{Output: output, Error: err}
}

// CommandLines renders every recorded call as "name arg arg...".
func (m *MockCommander) CommandLines() []string {
	lines := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		lines[i] = c.Name + " " + strings.Join(c.Args, " ")
	}
	return lines
}

func newTestSnapshot(mock *MockCommander) (*Snapshot, afero.Fs) {
	fs := afero.NewMemMapFs()
	return NewSnapshotWithCommander("/data/watched", "tester", mock, fs), fs
}

func TestIsGitInstalled(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*MockCommander)
		expected bool
	}{
		{
			name: "git is installed",
			setup: func(m *MockCommander) {
				m.SetResponse("git --version", "git version 2.40.0", nil)
			},
			expected: true,
		},
		{
			name: "git is not installed",
			setup: func(m *MockCommander) {
				m.SetResponse("git --version", "", errors.New("executable not found"))
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCommander()
			tt.setup(mock)
			snap, _ := newTestSnapshot(mock)

			if got := snap.IsGitInstalled(); got != tt.expected {
				t.Errorf("IsGitInstalled() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEnsureRepoInitializesFreshRoot(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git rev-parse --is-inside-work-tree", "", errors.New("not a git repository"))
	snap, fs := newTestSnapshot(mock)

	if err := snap.EnsureRepo(); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}

	lines := mock.CommandLines()
	wantOrder := []string{
		"git init",
		"git config user.name tester",
		"git config user.email tester@localhost",
		"git add -A",
		"git commit -m Initial commit by tester",
	}
	idx := 0
	for _, line := range lines {
		if idx < len(wantOrder) && line == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Errorf("missing or misordered git calls, got:\n%s", strings.Join(lines, "\n"))
	}

	data, err := afero.ReadFile(fs, "/data/watched/.gitignore")
	if err != nil {
		t.Fatalf("read .gitignore: %v", err)
	}
	for _, rule := range []string{"*.tmp", "*.swp", "*.swo"} {
		if !strings.Contains(string(data), rule) {
			t.Errorf(".gitignore missing rule %s", rule)
		}
	}
}

func TestEnsureRepoSkipsExistingRepository(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git rev-parse --is-inside-work-tree", "true", nil)
	snap, fs := newTestSnapshot(mock)

	if err := snap.EnsureRepo(); err != nil {
		t.Fatalf("EnsureRepo() error = %v", err)
	}
	for _, line := range mock.CommandLines() {
		if strings.HasPrefix(line, "git init") {
			t.Error("EnsureRepo re-initialized an existing repository")
		}
	}
	if exists, _ := afero.Exists(fs, "/data/watched/.gitignore"); exists {
		t.Error("EnsureRepo wrote .gitignore into an existing repository")
	}
}

func TestCommitMessagesCarryOperationAndUser(t *testing.T) {
	tests := []struct {
		name    string
		commit  func(*Snapshot) error
		wantMsg string
	}{
		{"add", func(s *Snapshot) error { return s.CommitAdd("project1/a.txt") }, "Add project1/a.txt by tester"},
		{"update", func(s *Snapshot) error { return s.CommitUpdate("project1/a.txt") }, "Update project1/a.txt by tester"},
		{"delete", func(s *Snapshot) error { return s.CommitDelete("project1/a.txt") }, "Delete project1/a.txt by tester"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCommander()
			snap, _ := newTestSnapshot(mock)

			if err := tt.commit(snap); err != nil {
				t.Fatalf("commit error = %v", err)
			}
			lines := mock.CommandLines()
			if len(lines) != 2 {
				t.Fatalf("expected stage+commit, got %v", lines)
			}
			if lines[0] != "git add -A -- project1/a.txt" {
				t.Errorf("stage call = %q", lines[0])
			}
			if lines[1] != "git commit -m "+tt.wantMsg {
				t.Errorf("commit call = %q, want message %q", lines[1], tt.wantMsg)
			}
		})
	}
}

func TestCommitToleratesNoChanges(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git commit -m Update a.txt by tester", "", errors.New("exit status 1: nothing to commit, working tree clean"))
	snap, _ := newTestSnapshot(mock)

	if err := snap.CommitUpdate("a.txt"); err != nil {
		t.Errorf("CommitUpdate() on unchanged file should succeed, got %v", err)
	}
}

func TestCommitPropagatesRealFailures(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git add -A -- a.txt", "", errors.New("fatal: pathspec did not match"))
	snap, _ := newTestSnapshot(mock)

	if err := snap.CommitAdd("a.txt"); err == nil {
		t.Error("expected staging failure to propagate")
	}
}

func TestIsTracked(t *testing.T) {
	mock := NewMockCommander()
	mock.SetResponse("git ls-files --error-unmatch -- known.txt", "known.txt", nil)
	mock.SetResponse("git ls-files --error-unmatch -- unknown.txt", "", errors.New("did not match"))
	snap, _ := newTestSnapshot(mock)

	if !snap.IsTracked("known.txt") {
		t.Error("IsTracked(known.txt) = false, want true")
	}
	if snap.IsTracked("unknown.txt") {
		t.Error("IsTracked(unknown.txt) = true, want false")
	}
}

func TestDiffHead(t *testing.T) {
	mock := NewMockCommander()
	diff := "--- a/notes.txt\n+++ b/notes.txt\n@@ -1 +1 @@\n-old\n+new"
	mock.SetResponse("git diff HEAD -- notes.txt", diff, nil)
	snap, _ := newTestSnapshot(mock)

	got, err := snap.DiffHead("notes.txt")
	if err != nil {
		t.Fatalf("DiffHead() error = %v", err)
	}
	if got != diff {
		t.Errorf("DiffHead() = %q, want %q", got, diff)
	}
}

func TestSynthesizeAddDiff(t *testing.T) {
	got := SynthesizeAddDiff("docs/new.txt", "line one\nline two")
	want := "--- /dev/null\n+++ b/docs/new.txt\n+line one\n+line two\n"
	if got != want {
		t.Errorf("SynthesizeAddDiff() = %q, want %q", got, want)
	}

	if got := SynthesizeAddDiff("empty.txt", ""); got != "--- /dev/null\n+++ b/empty.txt\n" {
		t.Errorf("empty content diff = %q", got)
	}
}
