// Package git keeps a version history of the watched directory. It shells
// out to the git binary instead of using a Go implementation so repository
// state stays inspectable with ordinary git tooling.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ErrGitNotInstalled is returned when the git binary cannot be found.
var ErrGitNotInstalled = errors.New("git is not installed or not in PATH")

// scratch editor artifacts that must never be committed or watched
const ignoreRules = "*.tmp\n*.swp\n*.swo\n"

// Commander is an interface for executing commands.
// This allows mocking in tests.
type Commander interface {
	Run(name string, args ...string) (string, error)
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command in the current directory.
func (c *ShellCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		// Include stderr in error for debugging
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%w: %s", err, errMsg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Snapshot commits every observed change to the watched root, building an
// audit trail alongside the live tree. All paths are relative to the root.
type Snapshot struct {
	commander Commander
	fs        afero.Fs
	root      string
	user      string
}

// NewSnapshot creates a snapshot client for the given root. Commits are
// attributed to user.
func NewSnapshot(root, user string) *Snapshot {
	return &Snapshot{
		commander: &ShellCommander{},
		fs:        afero.NewOsFs(),
		root:      root,
		user:      user,
	}
}

// NewSnapshotWithCommander creates a snapshot client with a custom commander
// and filesystem (for testing).
func NewSnapshotWithCommander(root, user string, commander Commander, fs afero.Fs) *Snapshot {
	return &Snapshot{commander: commander, fs: fs, root: root, user: user}
}

// IsGitInstalled checks if the git binary is available in PATH.
func (s *Snapshot) IsGitInstalled() bool {
	_, err := s.commander.Run("git", "--version")
	return err == nil
}

// IsRepository checks if the root is already a git repository.
func (s *Snapshot) IsRepository() bool {
	_, err := s.commander.RunInDir(s.root, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// EnsureRepo initializes the root as a repository when it is not one yet:
// git init, a .gitignore for editor scratch files, and an initial commit of
// whatever the tree already holds.
func (s *Snapshot) EnsureRepo() error {
	if !s.IsGitInstalled() {
		return ErrGitNotInstalled
	}
	if s.IsRepository() {
		return nil
	}
	if _, err := s.commander.RunInDir(s.root, "git", "init"); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	// Local identity so commits never depend on the host's git config.
	if _, err := s.commander.RunInDir(s.root, "git", "config", "user.name", s.user); err != nil {
		return fmt.Errorf("set commit identity: %w", err)
	}
	if _, err := s.commander.RunInDir(s.root, "git", "config", "user.email", s.user+"@localhost"); err != nil {
		return fmt.Errorf("set commit email: %w", err)
	}
	ignorePath := filepath.Join(s.root, ".gitignore")
	if err := afero.WriteFile(s.fs, ignorePath, []byte(ignoreRules), 0o644); err != nil {
		return fmt.Errorf("write .gitignore: %w", err)
	}
	if _, err := s.commander.RunInDir(s.root, "git", "add", "-A"); err != nil {
		return fmt.Errorf("stage initial tree: %w", err)
	}
	message := fmt.Sprintf("Initial commit by %s", s.user)
	if _, err := s.commander.RunInDir(s.root, "git", "commit", "-m", message); err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}
	return nil
}

// CommitAdd commits a newly created file.
func (s *Snapshot) CommitAdd(relPath string) error {
	return s.commitPath(relPath, fmt.Sprintf("Add %s by %s", relPath, s.user))
}

// CommitUpdate commits a modified file.
func (s *Snapshot) CommitUpdate(relPath string) error {
	return s.commitPath(relPath, fmt.Sprintf("Update %s by %s", relPath, s.user))
}

// CommitDelete commits a file removal.
func (s *Snapshot) CommitDelete(relPath string) error {
	return s.commitPath(relPath, fmt.Sprintf("Delete %s by %s", relPath, s.user))
}

func (s *Snapshot) commitPath(relPath, message string) error {
	if _, err := s.commander.RunInDir(s.root, "git", "add", "-A", "--", relPath); err != nil {
		return fmt.Errorf("stage %s: %w", relPath, err)
	}
	if _, err := s.commander.RunInDir(s.root, "git", "commit", "-m", message); err != nil {
		// A no-op change (same bytes rewritten) is not a failure.
		if strings.Contains(err.Error(), "nothing to commit") || strings.Contains(err.Error(), "nothing added") {
			return nil
		}
		return fmt.Errorf("commit %s: %w", relPath, err)
	}
	return nil
}

// IsTracked reports whether HEAD already knows the file. Untracked files get
// a synthesized all-added diff instead of git diff output.
func (s *Snapshot) IsTracked(relPath string) bool {
	_, err := s.commander.RunInDir(s.root, "git", "ls-files", "--error-unmatch", "--", relPath)
	return err == nil
}

// DiffHead returns the working-tree diff of one file against HEAD. Call it
// before committing the change, or the diff comes back empty.
func (s *Snapshot) DiffHead(relPath string) (string, error) {
	out, err := s.commander.RunInDir(s.root, "git", "diff", "HEAD", "--", relPath)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", relPath, err)
	}
	return out, nil
}

// SynthesizeAddDiff builds an all-added unified diff for a file git has
// never seen.
func SynthesizeAddDiff(relPath, text string) string {
	var sb strings.Builder
	sb.WriteString("--- /dev/null\n")
	sb.WriteString("+++ b/" + relPath + "\n")
	if text == "" {
		return sb.String()
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		sb.WriteString("+" + line + "\n")
	}
	return sb.String()
}
