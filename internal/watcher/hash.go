package watcher

import (
	"crypto/md5"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
)

// ContentHashTracker remembers the last seen content hash per path so
// byte-identical rewrites can be dropped before they reach the pipeline.
type ContentHashTracker struct {
	fs     afero.Fs
	mu     sync.Mutex
	hashes map[string]string
}

func NewContentHashTracker(fs afero.Fs) *ContentHashTracker {
	return &ContentHashTracker{
		fs:     fs,
		hashes: make(map[string]string),
	}
}

// HasChanged reports whether the file's content differs from the last
// call for the same path. New paths and unreadable files count as
// changed; suppression must never lose a real mutation.
func (t *ContentHashTracker) HasChanged(path string) bool {
	hash, err := t.computeHash(path)
	if err != nil {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	oldHash, exists := t.hashes[path]
	t.hashes[path] = hash
	if !exists {
		return true
	}
	return hash != oldHash
}

// Remove forgets a path, so a file recreated after deletion always
// counts as changed.
func (t *ContentHashTracker) Remove(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hashes, path)
}

func (t *ContentHashTracker) computeHash(path string) (string, error) {
	f, err := t.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
